package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

const (
	DefaultDebounce   = 3 * time.Second
	DefaultRunTimeout = 60 * time.Second
)

// Camera takes one frame per call.
type Camera interface {
	Capture(ctx context.Context) (entities.CapturedImage, error)
}

// Analyzer turns a frame into an analysis. A returned error still comes with
// a usable (raw) analysis.
type Analyzer interface {
	Analyze(ctx context.Context, img entities.CapturedImage) (entities.Analysis, error)
}

// CaptureConfig holds the coordinator timing policy
type CaptureConfig struct {
	Debounce   time.Duration
	RunTimeout time.Duration
}

// CaptureService runs the capture, analyze and persist pipeline for
// detection events. At most one run is active at a time and two accepted
// triggers are always more than the debounce window apart. Events that do
// not qualify are dropped, never queued.
type CaptureService struct {
	records  repositories.RecordStore
	images   repositories.ImageStore
	camera   Camera
	analyzer Analyzer

	debounce   time.Duration
	runTimeout time.Duration
	now        func() time.Time

	mu          sync.Mutex
	busy        bool
	lastTrigger time.Time
	lastRun     *entities.RunReport
	wg          sync.WaitGroup

	dropped atomic.Int64
	dropLog rate.Sometimes

	logger *zap.Logger
}

// NewCaptureService creates a new capture service
func NewCaptureService(
	records repositories.RecordStore,
	images repositories.ImageStore,
	camera Camera,
	analyzer Analyzer,
	config CaptureConfig,
	logger *zap.Logger,
) *CaptureService {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	return &CaptureService{
		records:    records,
		images:     images,
		camera:     camera,
		analyzer:   analyzer,
		debounce:   config.Debounce,
		runTimeout: config.RunTimeout,
		now:        time.Now,
		dropLog:    rate.Sometimes{First: 3, Interval: 10 * time.Second},
		logger:     logger.With(zap.String("component", "capture")),
	}
}

// OnDetection starts a pipeline run in the background if the event
// qualifies and reports whether it did. It never blocks on the run.
func (s *CaptureService) OnDetection(event entities.DetectionEvent) bool {
	if !event.Present {
		return false
	}

	now := s.now()

	s.mu.Lock()
	if s.busy || (!s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) <= s.debounce) {
		busy, last := s.busy, s.lastTrigger
		s.mu.Unlock()
		s.logDrop(busy, now.Sub(last))
		return false
	}
	s.busy = true
	s.lastTrigger = now
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(now)
	return true
}

// Busy reports whether a run is in flight.
func (s *CaptureService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// LastTrigger returns when the last accepted detection arrived.
func (s *CaptureService) LastTrigger() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTrigger
}

// LastRun returns the report of the most recently finished run.
func (s *CaptureService) LastRun() (entities.RunReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return entities.RunReport{}, false
	}
	return *s.lastRun, true
}

// Wait blocks until every started run has finished.
func (s *CaptureService) Wait() {
	s.wg.Wait()
}

func (s *CaptureService) logDrop(busy bool, sinceLast time.Duration) {
	s.dropped.Add(1)
	s.dropLog.Do(func() {
		s.logger.Info("Detection dropped",
			zap.Bool("busy", busy),
			zap.Duration("since_last_trigger", sinceLast),
			zap.Int64("drops", s.dropped.Swap(0)))
	})
}

func (s *CaptureService) run(triggeredAt time.Time) {
	report := entities.RunReport{
		ID:        uuid.New().String(),
		StartedAt: triggeredAt,
	}
	logger := s.logger.With(zap.String("run_id", report.ID))

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			report.Outcome = entities.OutcomePanic
			report.Error = fmt.Sprint(r)
			logger.Error("Capture pipeline panicked", zap.Any("panic", r))
		}
		report.FinishedAt = s.now()
		s.finish(report)
	}()

	// The run outlives the device link; only the run timeout bounds it
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	s.execute(ctx, &report, logger)

	logger.Info("Capture pipeline finished",
		zap.String("outcome", string(report.Outcome)),
		zap.String("listing_id", report.ListingID),
		zap.Duration("took", s.now().Sub(triggeredAt)))
}

func (s *CaptureService) finish(report entities.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.lastRun = &report
}

func (s *CaptureService) execute(ctx context.Context, report *entities.RunReport, logger *zap.Logger) {
	record, err := s.records.Latest(ctx)
	if err != nil {
		report.Outcome = entities.OutcomeLookupFault
		report.Error = err.Error()
		logger.Error("Failed to load latest order", zap.Error(err))
		return
	}
	if record == nil {
		report.Outcome = entities.OutcomeNoRecord
		logger.Info("No order awaiting pickup, skipping capture")
		return
	}
	report.ListingID = record.ListingID

	if record.HasCapturedImage {
		report.Outcome = entities.OutcomeAlreadyCapture
		logger.Info("Listing already has a captured image", zap.String("listing_id", record.ListingID))
		return
	}

	img, err := s.camera.Capture(ctx)
	if err != nil {
		report.Outcome = entities.OutcomeHardwareFault
		report.Error = err.Error()
		logger.Error("Camera capture failed", zap.Error(err))
		return
	}

	analysis, err := s.analyzer.Analyze(ctx, img)
	if err != nil {
		if analysis.Raw == "" {
			analysis.Raw = err.Error()
		}
		report.Error = err.Error()
		logger.Warn("Analysis failed, keeping raw fallback", zap.Error(err))
	}
	report.Analysis = &analysis

	ref, err := s.images.Save(ctx, img)
	if err != nil {
		report.Outcome = entities.OutcomePersistFault
		report.Error = err.Error()
		logger.Error("Failed to store captured image", zap.Error(err))
		return
	}

	update := entities.CaptureUpdate{
		ImageRef:   ref,
		LowPrice:   analysis.LowPrice(),
		Analysis:   analysis,
		CapturedAt: img.TakenAt,
	}
	if err := s.records.PersistCapture(ctx, record, update); err != nil {
		if rmErr := s.images.Remove(ref); rmErr != nil {
			logger.Warn("Failed to remove orphaned image", zap.String("ref", ref), zap.Error(rmErr))
		}
		report.Outcome = entities.OutcomePersistFault
		report.Error = err.Error()
		logger.Error("Failed to persist capture", zap.Error(err))
		return
	}

	report.ImageRef = ref
	report.Outcome = entities.OutcomeCompleted
}
