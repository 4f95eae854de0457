package model

import "time"

// Document request status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Service type constants. A service type selects which generator produces
// documents for a request.
const (
	ServiceLocal   = "local"
	ServiceCloud   = "cloud"
	ServicePrivate = "private"
)

// Error codes recorded on failed requests by the service itself. Remote
// generators may report their own codes.
const (
	ErrorCodeTimeout   = "TIMEOUT"
	ErrorCodeAbandoned = "ABANDONED"
	ErrorCodeGenerator = "GENERATOR_FAILED"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status is a final state.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// DocumentRequest represents one document generation request.
type DocumentRequest struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Template     string     `json:"template"`
	FileName     string     `json:"file_name"`
	Service      string     `json:"service"`
	Data         []byte     `json:"-"`
	ArtifactRef  string     `json:"artifact_ref,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DurationMS   *int       `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Document is a generated artifact. ArtifactRef on a completed request holds
// the document's ID.
type Document struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"-"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
