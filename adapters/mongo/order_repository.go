package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// orderDocument is the stored shape of an order. The capture result is
// embedded once the pipeline has run for the order's listing.
type orderDocument struct {
	ID               primitive.ObjectID      `bson:"_id,omitempty"`
	ListingID        string                  `bson:"listing_id"`
	ConfirmationCode string                  `bson:"confirmation_code"`
	CreatedAt        time.Time               `bson:"created_at"`
	Capture          *entities.CaptureUpdate `bson:"capture,omitempty"`
}

func (d *orderDocument) record() *entities.OrderRecord {
	return &entities.OrderRecord{
		OrderID:          d.ID.Hex(),
		ListingID:        d.ListingID,
		ConfirmationCode: d.ConfirmationCode,
		HasCapturedImage: d.Capture != nil && d.Capture.ImageRef != "",
		CreatedAt:        d.CreatedAt,
	}
}

type OrderRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.RecordStore = (*OrderRepository)(nil)

// NewOrderRepository creates a new MongoDB order repository
func NewOrderRepository(db *mongo.Database, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{
		collection: db.Collection("orders"),
		logger:     logger.With(zap.String("component", "mongo-orders")),
	}
}

// Get implements repositories.RecordStore
func (r *OrderRepository) Get(ctx context.Context, listingID string) (*entities.OrderRecord, error) {
	filter := bson.M{"listing_id": listingID}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc orderDocument
	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order for listing %s: %w", domain.ErrLookup, listingID, err)
	}
	return doc.record(), nil
}

// Latest implements repositories.RecordStore
func (r *OrderRepository) Latest(ctx context.Context) (*entities.OrderRecord, error) {
	filter := bson.M{"confirmation_code": bson.M{"$nin": bson.A{nil, ""}}}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc orderDocument
	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest order: %w", domain.ErrLookup, err)
	}
	return doc.record(), nil
}

// PersistCapture implements repositories.RecordStore. The capture belongs to
// the listing, so every order of that listing gets it.
func (r *OrderRepository) PersistCapture(ctx context.Context, record *entities.OrderRecord, update entities.CaptureUpdate) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}

	result, err := r.collection.UpdateMany(ctx,
		bson.M{"listing_id": record.ListingID},
		bson.M{"$set": bson.M{"capture": update}},
	)
	if err != nil {
		return fmt.Errorf("failed to store capture: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, record.ListingID)
	}

	r.logger.Info("Capture stored on orders",
		zap.String("listing_id", record.ListingID),
		zap.Int64("orders", result.ModifiedCount),
		zap.String("image_ref", update.ImageRef))
	return nil
}
