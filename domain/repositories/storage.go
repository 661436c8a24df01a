package repositories

import (
	"context"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// RecordStore is the read side of the order/listing store, plus the single
// write the capture pipeline performs.
type RecordStore interface {
	// Get returns the order for a listing, or an error wrapping
	// domain.ErrNotFound when the listing has none.
	Get(ctx context.Context, listingID string) (*entities.OrderRecord, error)
	// Latest returns the most recent order awaiting pickup, or nil when
	// there is none.
	Latest(ctx context.Context) (*entities.OrderRecord, error)
	// PersistCapture attaches a capture result to the record's listing.
	PersistCapture(ctx context.Context, record *entities.OrderRecord, update entities.CaptureUpdate) error
}

// ImageStore keeps captured frames and hands out references to them.
type ImageStore interface {
	Save(ctx context.Context, image entities.CapturedImage) (string, error)
	Remove(ref string) error
}
