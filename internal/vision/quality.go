package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// Reference levels: a mean grey of 128 and a Laplacian variance of 150 both
// score 100.
const (
	brightnessReference = 128.0
	sharpnessReference  = 150.0
	goodQualityScore    = 70.0
)

// MeasureQuality computes brightness (mean grey level), sharpness (variance
// of the 4-neighbour Laplacian) and a weighted score of a JPEG or PNG frame.
func MeasureQuality(data []byte) (*entities.ImageQuality, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return nil, errors.New("frame too small")
	}

	gray := make([]float64, w*h)
	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
			gray[y*w+x] = v
			sum += v
		}
	}
	brightness := sum / float64(w*h)

	var lapSum, lapSq float64
	n := float64((w - 2) * (h - 2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			lap := gray[i-1] + gray[i+1] + gray[i-w] + gray[i+w] - 4*gray[i]
			lapSum += lap
			lapSq += lap * lap
		}
	}
	mean := lapSum / n
	sharpness := lapSq/n - mean*mean

	brightnessScore := clamp(brightness/brightnessReference*100, 0, 100)
	sharpnessScore := clamp(sharpness/sharpnessReference*100, 0, 100)
	score := round2(brightnessScore*0.4 + sharpnessScore*0.6)

	status := entities.QualityPoor
	if score > goodQualityScore {
		status = entities.QualityGood
	}

	return &entities.ImageQuality{
		Brightness: round2(brightness),
		Sharpness:  round2(sharpness),
		Score:      score,
		Status:     status,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
