package vision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// Pipeline sends a frame to the vision model and normalizes the reply.
type Pipeline struct {
	model  repositories.VisionModel
	logger *zap.Logger
}

// NewPipeline creates a vision pipeline
func NewPipeline(model repositories.VisionModel, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		model:  model,
		logger: logger.With(zap.String("component", "vision")),
	}
}

// Analyze describes img. An unparseable reply is not an error: it comes
// back as a raw analysis. The error is non-nil only when the service call
// itself failed, and wraps domain.ErrAnalysis; the returned analysis still
// carries the image quality so callers can persist a fallback.
func (p *Pipeline) Analyze(ctx context.Context, img entities.CapturedImage) (entities.Analysis, error) {
	quality, err := MeasureQuality(img.Data)
	if err != nil {
		p.logger.Debug("Image quality unavailable", zap.Error(err))
	}

	text, err := p.model.Describe(ctx, img.Data, img.MIMEType)
	if err != nil {
		p.logger.Error("Vision service call failed", zap.Error(err))
		analysis := entities.NewRawAnalysis("")
		analysis.Quality = quality
		return analysis, fmt.Errorf("%w: %w", domain.ErrAnalysis, err)
	}

	analysis := ParseReply(text)
	analysis.Quality = quality

	if result, ok := analysis.Structured(); ok {
		p.logger.Info("Vision analysis parsed",
			zap.String("brand", result.Brand),
			zap.String("product", result.ProductName),
			zap.Int("confidence", result.Confidence))
	} else {
		p.logger.Warn("Vision reply is not structured, keeping raw text",
			zap.String("reply", preview(text, 120)))
	}

	return analysis, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
