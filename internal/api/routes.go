package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// Link reports the device link state
type Link interface {
	State() entities.ConnectionState
}

// Pipeline reports the capture pipeline state
type Pipeline interface {
	Busy() bool
	LastTrigger() time.Time
	LastRun() (entities.RunReport, bool)
}

// Camera reports whether the camera handle is open
type Camera interface {
	Ready() bool
}

// Images resolves a stored image reference to a local file
type Images interface {
	Path(ref string) string
}

// Sources bundles what the status endpoints read
type Sources struct {
	Link      Link
	Transport string
	Pipeline  Pipeline
	Camera    Camera
	Images    Images
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, src Sources, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "jungo-bridge",
		})
	})

	v1 := e.Group("/api/v1")

	v1.GET("/bridge/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, buildStatus(src))
	})

	v1.GET("/bridge/runs/last", func(c echo.Context) error {
		report, ok := src.Pipeline.LastRun()
		if !ok {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "no_run",
				Message: "No capture run has finished yet",
			})
		}
		logger.Debug("Served last run report", zap.String("run_id", report.ID))
		return c.JSON(http.StatusOK, report)
	})

	v1.GET("/bridge/runs/last/image", func(c echo.Context) error {
		report, ok := src.Pipeline.LastRun()
		if !ok || report.ImageRef == "" || src.Images == nil {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "no_image",
				Message: "The last run stored no image",
			})
		}
		return c.File(src.Images.Path(report.ImageRef))
	})
}

func buildStatus(src Sources) StatusResponse {
	status := StatusResponse{
		Link:      src.Link.State(),
		Transport: src.Transport,
		Busy:      src.Pipeline.Busy(),
	}
	if src.Camera != nil {
		status.CameraReady = src.Camera.Ready()
	}
	if last := src.Pipeline.LastTrigger(); !last.IsZero() {
		status.LastTrigger = &last
	}
	if report, ok := src.Pipeline.LastRun(); ok {
		status.LastRun = &report
	}
	return status
}
