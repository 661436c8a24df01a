package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	camdriver "github.com/satriahrh/jungo-bridge/adapters/camera"
	"github.com/satriahrh/jungo-bridge/adapters/llm"
	"github.com/satriahrh/jungo-bridge/adapters/media"
	"github.com/satriahrh/jungo-bridge/adapters/memory"
	"github.com/satriahrh/jungo-bridge/adapters/mongo"
	"github.com/satriahrh/jungo-bridge/adapters/sqlite"
	"github.com/satriahrh/jungo-bridge/adapters/transport"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
	"github.com/satriahrh/jungo-bridge/internal/api"
	"github.com/satriahrh/jungo-bridge/internal/auth"
	"github.com/satriahrh/jungo-bridge/internal/camera"
	"github.com/satriahrh/jungo-bridge/internal/config"
	"github.com/satriahrh/jungo-bridge/internal/logging"
	"github.com/satriahrh/jungo-bridge/internal/supervisor"
	"github.com/satriahrh/jungo-bridge/internal/vision"
	"github.com/satriahrh/jungo-bridge/usecase"
)

const (
	warmupTimeout   = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	os.Exit(start())
}

// start runs the bridge and returns the process exit code once every
// deferred cleanup has run.
func start() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(os.Getenv("BRIDGE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Bridge stopped with error", zap.Error(err))
		return 1
	}
	logger.Info("Bridge exited")
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// Initialize adapters
	records, closeStore, err := newRecordStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	images, err := media.NewDiskStore(cfg.Media.Dir, cfg.Media.Prefix, logger)
	if err != nil {
		return err
	}

	model, err := newVisionModel(ctx, cfg.Vision, logger)
	if err != nil {
		return err
	}

	cameraManager := camera.NewManager(newCameraDriver(cfg.Camera, logger), "image/jpeg", logger)
	closers = append(closers, func() {
		if err := cameraManager.Close(); err != nil {
			logger.Warn("Failed to release camera", zap.Error(err))
		}
	})

	link, err := newTransport(cfg.Transport, logger)
	if err != nil {
		return err
	}

	// Initialize usecase services
	captureService := usecase.NewCaptureService(records, images, cameraManager, vision.NewPipeline(model, logger), usecase.CaptureConfig{
		Debounce:   cfg.Pipeline.Debounce,
		RunTimeout: cfg.Pipeline.RunTimeout,
	}, logger)
	verificationService := usecase.NewVerificationService(records, cfg.Pipeline.LookupTimeout, logger)

	sup := supervisor.New(link, captureService, verificationService, supervisor.Config{
		Backoff:     cfg.Pipeline.ReconnectBackoff,
		MaxInFlight: cfg.Pipeline.MaxInFlight,
	}, logger)
	sup.OnStateChange(func(state entities.ConnectionState) {
		logger.Debug("Link state changed", zap.String("state", string(state)))
	})
	if cfg.Camera.Warmup {
		sup.OnConnect(func(context.Context) {
			// The camera outlives the link, so warm up on a detached context
			warmCtx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
			defer cancel()
			if err := cameraManager.Warmup(warmCtx); err != nil {
				logger.Warn("Camera warm-up failed", zap.Error(err))
			}
		})
	}

	if cfg.HTTP.Enabled {
		e := echo.New()
		e.HideBanner = true
		e.Use(middleware.Recover())

		api.InitRoutes(e, api.Sources{
			Link:      sup,
			Transport: link.Describe(),
			Pipeline:  captureService,
			Camera:    cameraManager,
			Images:    images,
		}, logger)

		go func() {
			if err := e.Start(cfg.HTTP.Addr); err != nil && err != http.ErrServerClosed {
				logger.Error("Status API stopped", zap.Error(err))
			}
		}()
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status API forced to shutdown", zap.Error(err))
			}
		})
		logger.Info("Status API started", zap.String("addr", cfg.HTTP.Addr))
	}

	logger.Info("Bridge started",
		zap.String("link", link.Describe()),
		zap.String("store", cfg.Store.Driver),
		zap.String("vision", cfg.Vision.Provider),
		zap.Duration("debounce", cfg.Pipeline.Debounce))

	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Bridge is shutting down...")
	waitForRun(captureService, cfg.Pipeline.RunTimeout, logger)
	return nil
}

// waitForRun gives an in-flight capture run the chance to persist.
func waitForRun(s *usecase.CaptureService, timeout time.Duration, logger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("Capture run still in flight at shutdown")
	}
}

func newRecordStore(ctx context.Context, cfg config.Store, logger *zap.Logger) (repositories.RecordStore, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.NewDjangoStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "mongo":
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			client.Close(closeCtx)
		}
		return mongo.NewOrderRepository(client.Database, logger), closeClient, nil
	default:
		logger.Warn("Using in-memory order store, orders are not persisted")
		return memory.NewOrderRepository(), func() {}, nil
	}
}

func newVisionModel(ctx context.Context, cfg config.Vision, logger *zap.Logger) (repositories.VisionModel, error) {
	if cfg.Provider == "mock" {
		logger.Warn("Using mock vision model")
		return llm.NewMockVision(), nil
	}
	return llm.NewGeminiVision(ctx, llm.GeminiConfig{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		Temperature:     &cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		TimeoutSeconds:  int(cfg.Timeout / time.Second),
	}, logger)
}

func newCameraDriver(cfg config.Camera, logger *zap.Logger) repositories.CameraDriver {
	if cfg.Driver == "file" {
		logger.Info("Using sample frame as camera", zap.String("file", cfg.File))
		return camdriver.NewFileDriver(cfg.File)
	}
	return camdriver.NewCommandDriver(camdriver.CommandConfig{
		Command: cfg.Command,
		Args:    cfg.Args,
		Device:  cfg.Device,
		Timeout: cfg.Timeout,
	}, logger)
}

func newTransport(cfg config.Transport, logger *zap.Logger) (repositories.Transport, error) {
	switch cfg.Kind {
	case "tcp":
		return transport.NewTCP(cfg.Address), nil
	case "websocket":
		var token transport.TokenSource
		if cfg.TokenSecret != "" {
			issuer, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
			if err != nil {
				return nil, err
			}
			token = func() (string, error) { return issuer.GenerateBridgeToken(cfg.DeviceID) }
		}
		return transport.NewWebSocket(cfg.URL, token, logger), nil
	default:
		return transport.NewSerial(transport.SerialConfig{
			Port:       cfg.Port,
			BaudRate:   cfg.Baud,
			ResetDelay: cfg.ResetDelay,
		}, logger), nil
	}
}
