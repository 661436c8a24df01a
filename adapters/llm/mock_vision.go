package llm

import (
	"context"

	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// MockVision is a placeholder vision model for bench setups without an API key
type MockVision struct {
	Reply string
}

// NewMockVision creates a new mock vision model
func NewMockVision() repositories.VisionModel {
	return &MockVision{
		Reply: `{"brand": "Unknown", "product": "Bench sample", "confidence": 50}`,
	}
}

// Describe implements repositories.VisionModel
func (m *MockVision) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	return m.Reply, nil
}
