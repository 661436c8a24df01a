package entities

// AnalysisResult is the structured description of a captured item.
type AnalysisResult struct {
	Brand            string `json:"brand" bson:"brand"`
	ProductName      string `json:"product_name" bson:"product_name"`
	Confidence       int    `json:"confidence" bson:"confidence"`
	PriceEstimateLow *int   `json:"price_estimate_low,omitempty" bson:"price_estimate_low,omitempty"`
}

// QualityStatus grades a captured frame.
type QualityStatus string

const (
	QualityGood QualityStatus = "Good"
	QualityPoor QualityStatus = "Poor"
)

// ImageQuality holds basic exposure and focus metrics of a frame.
type ImageQuality struct {
	Brightness float64       `json:"brightness" bson:"brightness"`
	Sharpness  float64       `json:"sharpness" bson:"sharpness"`
	Score      float64       `json:"score" bson:"score"`
	Status     QualityStatus `json:"status" bson:"status"`
}

// Analysis is either Structured (Result != nil) or Raw. Raw always keeps
// the service reply text, so nothing is lost when parsing fails.
type Analysis struct {
	Result  *AnalysisResult `json:"result,omitempty" bson:"result,omitempty"`
	Raw     string          `json:"raw" bson:"raw"`
	Quality *ImageQuality   `json:"quality,omitempty" bson:"quality,omitempty"`
}

// NewStructuredAnalysis returns a structured analysis.
func NewStructuredAnalysis(result AnalysisResult, raw string) Analysis {
	return Analysis{Result: &result, Raw: raw}
}

// NewRawAnalysis returns a fallback analysis holding only text.
func NewRawAnalysis(raw string) Analysis {
	return Analysis{Raw: raw}
}

// Structured reports whether the reply was parsed into an AnalysisResult.
func (a Analysis) Structured() (AnalysisResult, bool) {
	if a.Result == nil {
		return AnalysisResult{}, false
	}
	return *a.Result, true
}

// LowPrice returns the lowest price estimate, if the analysis has one.
func (a Analysis) LowPrice() *int {
	if a.Result == nil || a.Result.PriceEstimateLow == nil {
		return nil
	}
	p := *a.Result.PriceEstimateLow
	return &p
}
