package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

// AttemptRepository implements the repositories.AttemptRepository interface
type AttemptRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *DB, logger *zap.Logger) repositories.AttemptRepository {
	return &AttemptRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new attempt record
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.CompletionAttempt) error {
	query := `
		INSERT INTO completion_attempts (
			id, request_id, model, model_id, family, endpoint, tier,
			final_fallback, status, error_message, latency_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.RequestID,
		attempt.Model,
		attempt.ModelID,
		attempt.Family,
		attempt.Endpoint,
		attempt.Tier,
		attempt.FinalFallback,
		attempt.Status,
		attempt.ErrorMessage,
		attempt.LatencyMs,
		attempt.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create completion attempt: %w", err)
	}

	r.logger.Debug("completion attempt recorded",
		zap.String("id", attempt.ID.String()),
		zap.String("request_id", attempt.RequestID))
	return nil
}

// GetByID retrieves an attempt record by ID
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CompletionAttempt, error) {
	query := `
		SELECT id, request_id, model, model_id, family, endpoint, tier,
		       final_fallback, status, error_message, latency_ms, created_at
		FROM completion_attempts
		WHERE id = $1
	`

	attempt := &models.CompletionAttempt{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&attempt.ID,
		&attempt.RequestID,
		&attempt.Model,
		&attempt.ModelID,
		&attempt.Family,
		&attempt.Endpoint,
		&attempt.Tier,
		&attempt.FinalFallback,
		&attempt.Status,
		&attempt.ErrorMessage,
		&attempt.LatencyMs,
		&attempt.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("completion attempt not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get completion attempt: %w", err)
	}

	return attempt, nil
}

// ListByRequestID retrieves all attempt records of one routed call
func (r *AttemptRepository) ListByRequestID(ctx context.Context, requestID string) ([]*models.CompletionAttempt, error) {
	query := `
		SELECT id, request_id, model, model_id, family, endpoint, tier,
		       final_fallback, status, error_message, latency_ms, created_at
		FROM completion_attempts
		WHERE request_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completion attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.CompletionAttempt
	for rows.Next() {
		attempt := &models.CompletionAttempt{}
		if err := rows.Scan(
			&attempt.ID,
			&attempt.RequestID,
			&attempt.Model,
			&attempt.ModelID,
			&attempt.Family,
			&attempt.Endpoint,
			&attempt.Tier,
			&attempt.FinalFallback,
			&attempt.Status,
			&attempt.ErrorMessage,
			&attempt.LatencyMs,
			&attempt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan completion attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completion attempts: %w", err)
	}

	return attempts, nil
}
