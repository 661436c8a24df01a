package dispatch

import (
	"context"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/internal/protocol"
)

const DefaultMaxInFlight = 8

// Detector receives detection events. It must not block.
type Detector interface {
	OnDetection(event entities.DetectionEvent) bool
}

// Verifier answers verification requests.
type Verifier interface {
	Verify(ctx context.Context, listingID, submittedCode string) entities.Verdict
}

// Config for a dispatcher bound to one connection
type Config struct {
	MaxInFlight int
	// OnFault is called when a reply cannot be written.
	OnFault func(err error)
}

// Dispatcher classifies lines and routes them. Verification requests run
// as bounded background tasks; a request over the limit is answered with
// ERROR immediately.
type Dispatcher struct {
	ctx      context.Context
	detector Detector
	verifier Verifier
	replies  *protocol.ReplyWriter
	tasks    *errgroup.Group
	onFault  func(err error)
	logger   *zap.Logger
}

// New creates a dispatcher writing replies to w. ctx bounds verification
// lookups and is normally the connection lifetime.
func New(ctx context.Context, w io.Writer, detector Detector, verifier Verifier, config Config, logger *zap.Logger) *Dispatcher {
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = DefaultMaxInFlight
	}
	tasks := new(errgroup.Group)
	tasks.SetLimit(config.MaxInFlight)

	return &Dispatcher{
		ctx:      ctx,
		detector: detector,
		verifier: verifier,
		replies:  protocol.NewReplyWriter(w),
		tasks:    tasks,
		onFault:  config.OnFault,
		logger:   logger.With(zap.String("component", "dispatcher")),
	}
}

// Dispatch handles one line and returns how it was classified. It returns
// without waiting for any work it started.
func (d *Dispatcher) Dispatch(line string) entities.DeviceMessage {
	msg := protocol.Classify(line)

	switch m := msg.(type) {
	case entities.DetectionEvent:
		if !m.Present {
			d.logger.Debug("Object gone")
			return msg
		}
		if d.detector.OnDetection(m) {
			d.logger.Info("Detection accepted, capture started")
		}

	case entities.VerificationRequest:
		started := d.tasks.TryGo(func() error {
			d.reply(m, d.verifier.Verify(d.ctx, m.ListingID, m.SubmittedCode))
			return nil
		})
		if !started {
			d.logger.Warn("Too many verifications in flight", zap.String("listing_id", m.ListingID))
			d.reply(m, entities.VerdictError)
		}

	case entities.Unrecognized:
		d.logger.Warn("Unrecognized line",
			zap.String("line", m.Line),
			zap.String("reason", m.Reason))
	}

	return msg
}

// Wait blocks until every verification task has replied.
func (d *Dispatcher) Wait() {
	d.tasks.Wait()
}

func (d *Dispatcher) reply(req entities.VerificationRequest, verdict entities.Verdict) {
	if err := d.replies.Send(verdict); err != nil {
		d.logger.Warn("Failed to send reply",
			zap.String("listing_id", req.ListingID),
			zap.String("verdict", string(verdict)),
			zap.Error(err))
		if d.onFault != nil {
			d.onFault(err)
		}
		return
	}
	d.logger.Debug("Reply sent",
		zap.String("listing_id", req.ListingID),
		zap.String("verdict", string(verdict)))
}
