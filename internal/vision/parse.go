package vision

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ParseReply normalizes a vision service reply. Replies that carry a JSON
// (or single-quoted dict) object with at least a brand or product name
// become structured; everything else is kept as raw text.
func ParseReply(text string) entities.Analysis {
	body := extractObject(text)
	if body == "" {
		return entities.NewRawAnalysis(text)
	}

	fields, ok := decodeObject(body)
	if !ok {
		return entities.NewRawAnalysis(text)
	}

	result, ok := normalize(fields)
	if !ok {
		return entities.NewRawAnalysis(text)
	}
	return entities.NewStructuredAnalysis(result, text)
}

func extractObject(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func decodeObject(body string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err == nil {
		return fields, true
	}
	// The model sometimes answers with a Python style dict.
	if err := json.Unmarshal([]byte(strings.ReplaceAll(body, "'", `"`)), &fields); err == nil {
		return fields, true
	}
	return nil, false
}

func normalize(fields map[string]any) (entities.AnalysisResult, bool) {
	brand := firstString(fields, "brand")
	product := firstString(fields, "product", "product_name", "productName", "name")
	if brand == "" && product == "" {
		return entities.AnalysisResult{}, false
	}
	if brand == "" {
		brand = "Unknown"
	}
	if product == "" {
		product = "Unknown"
	}

	result := entities.AnalysisResult{
		Brand:       brand,
		ProductName: product,
	}

	if c, ok := toNumber(fields["confidence"]); ok {
		result.Confidence = int(math.Round(math.Max(0, math.Min(100, c))))
	}

	if low, ok := lowPrice(fields); ok {
		result.PriceEstimateLow = &low
	}

	return result, true
}

// MaxPrice caps model-supplied prices so they fit an int on 32-bit boards.
const MaxPrice = math.MaxInt32

func toPrice(v float64) int {
	return int(math.Round(math.Min(v, MaxPrice)))
}

func lowPrice(fields map[string]any) (int, bool) {
	for _, key := range []string{"price_estimate_low", "price_low", "low_price"} {
		if v, ok := toNumber(fields[key]); ok && v >= 0 {
			return toPrice(v), true
		}
	}

	prices, ok := fields["used_price"].([]any)
	if !ok {
		return 0, false
	}
	found := false
	low := math.MaxFloat64
	for _, p := range prices {
		if v, ok := toNumber(p); ok && v >= 0 && v < low {
			low = v
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return toPrice(low), true
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// toNumber accepts JSON numbers and numeric strings such as "92%" or
// "12,000원".
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		digits := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, n)
		if digits == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
