package repositories

import "context"

// VisionModel abstracts any image description provider. Implementations
// return the reply text as-is; normalization happens in the vision pipeline.
type VisionModel interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}
