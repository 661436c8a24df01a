package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

const DefaultLookupTimeout = 5 * time.Second

// VerificationService answers keypad code checks. It is stateless and
// independent of the capture pipeline.
type VerificationService struct {
	records repositories.RecordStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewVerificationService creates a new verification service
func NewVerificationService(records repositories.RecordStore, lookupTimeout time.Duration, logger *zap.Logger) *VerificationService {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &VerificationService{
		records: records,
		timeout: lookupTimeout,
		logger:  logger.With(zap.String("component", "verification")),
	}
}

// Verify compares submittedCode with the listing's confirmation code as
// trimmed strings.
func (s *VerificationService) Verify(ctx context.Context, listingID, submittedCode string) entities.Verdict {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record, err := s.records.Get(ctx, listingID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Info("No order for listing", zap.String("listing_id", listingID))
		return entities.VerdictNoListing
	case err != nil:
		s.logger.Error("Order lookup failed", zap.String("listing_id", listingID), zap.Error(err))
		return entities.VerdictError
	case record == nil:
		return entities.VerdictNoListing
	}

	expected := strings.TrimSpace(record.ConfirmationCode)
	if expected != "" && expected == strings.TrimSpace(submittedCode) {
		s.logger.Info("Code matched", zap.String("listing_id", listingID))
		return entities.VerdictMatch
	}

	s.logger.Info("Code mismatch", zap.String("listing_id", listingID))
	return entities.VerdictNoMatch
}
