package api

import (
	"time"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// StatusResponse is the bridge status snapshot
type StatusResponse struct {
	Link        entities.ConnectionState `json:"link"`
	Transport   string                   `json:"transport"`
	Busy        bool                     `json:"busy"`
	CameraReady bool                     `json:"camera_ready"`
	LastTrigger *time.Time               `json:"last_trigger,omitempty"`
	LastRun     *entities.RunReport      `json:"last_run,omitempty"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
