package entities

import "time"

// RunOutcome classifies how a capture pipeline run ended.
type RunOutcome string

const (
	OutcomeCompleted      RunOutcome = "completed"
	OutcomeAlreadyCapture RunOutcome = "already_captured"
	OutcomeNoRecord       RunOutcome = "no_record"
	OutcomeLookupFault    RunOutcome = "lookup_fault"
	OutcomeHardwareFault  RunOutcome = "hardware_fault"
	OutcomePersistFault   RunOutcome = "persist_fault"
	OutcomePanic          RunOutcome = "panic"
)

// RunReport describes one accepted detection and what the pipeline did.
type RunReport struct {
	ID         string     `json:"id"`
	ListingID  string     `json:"listing_id,omitempty"`
	Outcome    RunOutcome `json:"outcome"`
	ImageRef   string     `json:"image_ref,omitempty"`
	Analysis   *Analysis  `json:"analysis,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}
