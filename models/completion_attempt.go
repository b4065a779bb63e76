package models

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the outcome of one backend attempt.
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusError   AttemptStatus = "error"
)

// CompletionAttempt is the audit record of one backend attempt within a
// routed chat-completion call. The trail is advisory: routing decisions
// never read it back.
type CompletionAttempt struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	RequestID     string        `json:"request_id" db:"request_id"`
	Model         string        `json:"model" db:"model"`
	ModelID       string        `json:"model_id" db:"model_id"`
	Family        string        `json:"family" db:"family"`
	Endpoint      string        `json:"endpoint" db:"endpoint"`
	Tier          string        `json:"tier" db:"tier"`
	FinalFallback bool          `json:"final_fallback" db:"final_fallback"`
	Status        AttemptStatus `json:"status" db:"status"`
	ErrorMessage  string        `json:"error_message,omitempty" db:"error_message"`
	LatencyMs     int           `json:"latency_ms" db:"latency_ms"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// NewCompletionAttempt creates an attempt record with a fresh ID.
func NewCompletionAttempt(requestID string) *CompletionAttempt {
	return &CompletionAttempt{
		ID:        uuid.New(),
		RequestID: requestID,
		CreatedAt: time.Now(),
	}
}

// MarkSuccess records a successful outcome.
func (a *CompletionAttempt) MarkSuccess(latencyMs int) {
	a.Status = AttemptStatusSuccess
	a.LatencyMs = latencyMs
}

// MarkError records a failed outcome.
func (a *CompletionAttempt) MarkError(message string, latencyMs int) {
	a.Status = AttemptStatusError
	a.ErrorMessage = message
	a.LatencyMs = latencyMs
}
