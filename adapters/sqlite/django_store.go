package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// DjangoStore reads orders from the marketplace web application's SQLite
// database (tables orders_order and listings_listing) and writes capture
// results onto the listing row.
type DjangoStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ repositories.RecordStore = (*DjangoStore)(nil)

const orderColumns = `
	SELECT o.id, o.listing_id, COALESCE(o.confirmation_code, ''),
	       COALESCE(l.capture_image, ''), o.created_at
	FROM orders_order o
	JOIN listings_listing l ON l.id = o.listing_id`

// busyTimeoutMillis applies to every pooled connection, since the web
// application writes concurrently.
const busyTimeoutMillis = 5000

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", path, sep, busyTimeoutMillis)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// NewDjangoStore opens the database at path. The schema is owned by the web
// application and is never migrated from here.
func NewDjangoStore(path string, logger *zap.Logger) (*DjangoStore, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	logger.Info("Opened order database", zap.String("path", path))

	return &DjangoStore{
		db:     db,
		logger: logger.With(zap.String("component", "django-store")),
	}, nil
}

// Get implements repositories.RecordStore
func (s *DjangoStore) Get(ctx context.Context, listingID string) (*entities.OrderRecord, error) {
	id, err := strconv.Atoi(listingID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %q is not numeric", domain.ErrNotFound, listingID)
	}

	row := s.db.QueryRowContext(ctx,
		orderColumns+` WHERE o.listing_id = ? ORDER BY o.created_at DESC, o.id DESC LIMIT 1`, id)
	record, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order for listing %s: %w", domain.ErrLookup, listingID, err)
	}
	return record, nil
}

// Latest implements repositories.RecordStore
func (s *DjangoStore) Latest(ctx context.Context) (*entities.OrderRecord, error) {
	row := s.db.QueryRowContext(ctx,
		orderColumns+` WHERE COALESCE(o.confirmation_code, '') != '' ORDER BY o.created_at DESC, o.id DESC LIMIT 1`)
	record, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest order: %w", domain.ErrLookup, err)
	}
	return record, nil
}

// PersistCapture implements repositories.RecordStore. Only the image path and
// the low price have columns; the rest of the analysis is logged.
func (s *DjangoStore) PersistCapture(ctx context.Context, record *entities.OrderRecord, update entities.CaptureUpdate) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	id, err := strconv.Atoi(record.ListingID)
	if err != nil {
		return fmt.Errorf("%w: listing %q is not numeric", domain.ErrNotFound, record.ListingID)
	}

	var lowPrice sql.NullInt64
	if update.LowPrice != nil {
		lowPrice = sql.NullInt64{Int64: int64(*update.LowPrice), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE listings_listing SET capture_image = ?, used_low_price = ? WHERE id = ?`,
		update.ImageRef, lowPrice, id)
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: listing %d", domain.ErrNotFound, id)
	}

	fields := []zap.Field{
		zap.Int("listing_id", id),
		zap.String("image_ref", update.ImageRef),
	}
	if structured, ok := update.Analysis.Structured(); ok {
		fields = append(fields,
			zap.String("brand", structured.Brand),
			zap.String("product", structured.ProductName),
			zap.Int("confidence", structured.Confidence))
	}
	if update.LowPrice != nil {
		fields = append(fields, zap.Int("used_low_price", *update.LowPrice))
	}
	s.logger.Info("Capture stored on listing", fields...)
	return nil
}

// Close closes the database
func (s *DjangoStore) Close() error {
	return s.db.Close()
}

func (s *DjangoStore) scan(row *sql.Row) (*entities.OrderRecord, error) {
	var (
		orderID, listingID int64
		code, captureImage string
		createdAt          sql.NullString
	)
	if err := row.Scan(&orderID, &listingID, &code, &captureImage, &createdAt); err != nil {
		return nil, err
	}
	return &entities.OrderRecord{
		OrderID:          strconv.FormatInt(orderID, 10),
		ListingID:        strconv.FormatInt(listingID, 10),
		ConfirmationCode: code,
		HasCapturedImage: captureImage != "",
		CreatedAt:        parseTimestamp(createdAt.String),
	}, nil
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
