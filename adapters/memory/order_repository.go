package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// OrderRepository is an in-memory RecordStore. It backs bench runs and
// tests; orders are registered with Put.
type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]*entities.OrderRecord  // listing_id -> latest order
	captures map[string]entities.CaptureUpdate // listing_id -> capture result
}

var _ repositories.RecordStore = (*OrderRepository)(nil)

// NewOrderRepository creates a new in-memory order repository
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[string]*entities.OrderRecord),
		captures: make(map[string]entities.CaptureUpdate),
	}
}

// Put registers an order, replacing any previous order for the same listing.
func (m *OrderRepository) Put(record entities.OrderRecord) error {
	if record.ListingID == "" {
		return errors.New("listing ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recordCopy := record
	m.orders[record.ListingID] = &recordCopy
	return nil
}

// Get implements repositories.RecordStore
func (m *OrderRepository) Get(ctx context.Context, listingID string) (*entities.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.orders[listingID]
	if !exists {
		return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
	}
	return m.view(record), nil
}

// Latest implements repositories.RecordStore
func (m *OrderRepository) Latest(ctx context.Context) (*entities.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *entities.OrderRecord
	for _, record := range m.orders {
		if record.ConfirmationCode == "" {
			continue
		}
		if latest == nil || record.CreatedAt.After(latest.CreatedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, nil
	}
	return m.view(latest), nil
}

// PersistCapture implements repositories.RecordStore
func (m *OrderRepository) PersistCapture(ctx context.Context, record *entities.OrderRecord, update entities.CaptureUpdate) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[record.ListingID]; !exists {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, record.ListingID)
	}
	m.captures[record.ListingID] = update
	return nil
}

// Capture returns the stored capture result for a listing.
func (m *OrderRepository) Capture(listingID string) (entities.CaptureUpdate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	update, ok := m.captures[listingID]
	return update, ok
}

// view returns a copy so callers cannot modify stored records. Caller holds mu.
func (m *OrderRepository) view(record *entities.OrderRecord) *entities.OrderRecord {
	recordCopy := *record
	if update, ok := m.captures[record.ListingID]; ok && update.ImageRef != "" {
		recordCopy.HasCapturedImage = true
	}
	return &recordCopy
}
