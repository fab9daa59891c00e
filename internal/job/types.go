// Package job owns in-memory job state and the per-job event bus connecting
// pipeline runners to their transports.
package job

import "time"

// Kind identifies which pipeline a job runs.
type Kind string

const (
	KindExtract  Kind = "extract"
	KindCompress Kind = "compress"
	KindVerify   Kind = "verify"
	KindOrganize Kind = "organize"
)

// State constants for the job lifecycle.
const (
	StateCreated              = "created"
	StateRunning              = "running"
	StateAwaitingConfirmation = "awaiting_confirmation"
	StateCompleted            = "completed"
	StateFailed               = "failed"
	StateCancelled            = "cancelled"
)

// EventType is the wire-level event vocabulary shared by both transports.
type EventType string

const (
	EventLog            EventType = "log"
	EventProgress       EventType = "progress"
	EventConfirmRequest EventType = "confirm_request"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
	EventCancelled      EventType = "cancelled"
)

// Terminal reports whether the event type ends a job's stream.
// No event may follow a terminal event for the same job.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError || t == EventCancelled
}

// Event is one record produced by a runner and consumed by transports.
// Payload must be JSON-marshalable.
type Event struct {
	JobID   string
	Type    EventType
	Payload any
}

// LogPayload is the payload for log, complete, error and cancelled events.
type LogPayload struct {
	Message string `json:"message"`
}

// Stats carries running per-batch counters inside progress events.
type Stats map[string]int

// ProgressPayload is the payload for progress events. A payload carrying
// only Stats (zero Total) is a stats refresh, not a byte-progress update.
type ProgressPayload struct {
	Step    string  `json:"step,omitempty"`
	Current int64   `json:"current,omitempty"`
	Total   int64   `json:"total,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Message string  `json:"message,omitempty"`
	Stats   Stats   `json:"stats,omitempty"`
}

// VerifySummary is the payload for the verify pipeline's complete event.
type VerifySummary struct {
	Message string `json:"message"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
}

// ConfirmCompress is the confirmation payload for the compress pipeline.
type ConfirmCompress struct {
	Filename          string  `json:"filename"`
	OriginalSize      int64   `json:"original_size"`
	OriginalSizeStr   string  `json:"original_size_str"`
	CompressedSize    int64   `json:"compressed_size"`
	CompressedSizeStr string  `json:"compressed_size_str"`
	Savings           string  `json:"savings"`
	Percent           float64 `json:"percent"`
}

// RenameEntry is one old/new pair inside an organize rename plan.
type RenameEntry struct {
	Old     string `json:"old"`
	New     string `json:"new"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// ConfirmOrganize is the confirmation payload for the organize pipeline.
type ConfirmOrganize struct {
	Plan []RenameEntry `json:"plan"`
}

// Info is a point-in-time snapshot of one job.
type Info struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}
