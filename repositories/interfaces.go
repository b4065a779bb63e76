package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/llm-router/models"
)

// AttemptRepository persists completion attempt audit records.
type AttemptRepository interface {
	// Create inserts a new attempt record.
	Create(ctx context.Context, attempt *models.CompletionAttempt) error

	// GetByID retrieves an attempt record by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.CompletionAttempt, error)

	// ListByRequestID retrieves all attempt records of one routed call,
	// oldest first.
	ListByRequestID(ctx context.Context, requestID string) ([]*models.CompletionAttempt, error)
}
