package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// fakeAttemptRepository captures created records in memory.
type fakeAttemptRepository struct {
	mu      sync.Mutex
	records []*models.CompletionAttempt
	err     error
}

func (f *fakeAttemptRepository) Create(ctx context.Context, attempt *models.CompletionAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, attempt)
	return nil
}

func (f *fakeAttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CompletionAttempt, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAttemptRepository) ListByRequestID(ctx context.Context, requestID string) ([]*models.CompletionAttempt, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAttemptRepository) created() []*models.CompletionAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.CompletionAttempt, len(f.records))
	copy(out, f.records)
	return out
}

func TestObserveAttemptPersistsRecords(t *testing.T) {
	repo := &fakeAttemptRepository{}
	svc := NewAuditService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, svc.Start())

	ctx := utils.WithRequestID(context.Background(), "req-123")

	svc.ObserveAttempt(ctx, routing.Attempt{
		Model:    "gpt-4",
		ModelID:  "gpt4-deployment",
		Family:   providers.FamilyAzure,
		Endpoint: "eastus.openai.azure.com",
		Tier:     routing.TierSecondaryPool,
		Latency:  42 * time.Millisecond,
	})
	svc.ObserveAttempt(ctx, routing.Attempt{
		Model:    "gpt-4",
		ModelID:  "gpt-4",
		Family:   providers.FamilyOpenAI,
		Endpoint: "api.openai.com",
		Tier:     routing.TierPrimary,
		Final:    true,
		Err:      errors.New("rate limited"),
		Latency:  1500 * time.Millisecond,
	})

	// Stop drains the buffer before returning.
	svc.Stop()

	records := repo.created()
	require.Len(t, records, 2)

	success := records[0]
	assert.Equal(t, "req-123", success.RequestID)
	assert.Equal(t, models.AttemptStatusSuccess, success.Status)
	assert.Equal(t, "gpt4-deployment", success.ModelID)
	assert.Equal(t, string(routing.TierSecondaryPool), success.Tier)
	assert.False(t, success.FinalFallback)
	assert.Equal(t, 42, success.LatencyMs)
	assert.Empty(t, success.ErrorMessage)
	assert.NotEqual(t, uuid.Nil, success.ID)

	failure := records[1]
	assert.Equal(t, models.AttemptStatusError, failure.Status)
	assert.Equal(t, "rate limited", failure.ErrorMessage)
	assert.True(t, failure.FinalFallback)
	assert.Equal(t, 1500, failure.LatencyMs)
}

func TestObserveAttemptDropsWhenBufferFull(t *testing.T) {
	repo := &fakeAttemptRepository{}
	// Zero workers, so the single-slot buffer fills immediately.
	svc := NewAuditService(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 0})
	require.NoError(t, svc.Start())

	ctx := context.Background()
	svc.ObserveAttempt(ctx, routing.Attempt{Model: "gpt-4", Endpoint: "a"})
	svc.ObserveAttempt(ctx, routing.Attempt{Model: "gpt-4", Endpoint: "b"})

	require.Len(t, svc.eventChan, 1)
	queued := <-svc.eventChan
	assert.Equal(t, "a", queued.Endpoint)
}

func TestObserveAttemptAfterStopIsDropped(t *testing.T) {
	repo := &fakeAttemptRepository{}
	svc := NewAuditService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, svc.Start())
	svc.Stop()

	// The router observes attempts inline on the request path, so an
	// in-flight completion can outlive a graceful shutdown. The record is
	// dropped, never sent on the closed channel.
	assert.NotPanics(t, func() {
		svc.ObserveAttempt(context.Background(), routing.Attempt{Model: "gpt-4", Endpoint: "a"})
	})
	assert.Empty(t, repo.created())
}

func TestObserveAttemptBeforeStartIsDropped(t *testing.T) {
	repo := &fakeAttemptRepository{}
	svc := NewAuditService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})

	svc.ObserveAttempt(context.Background(), routing.Attempt{Model: "gpt-4", Endpoint: "a"})

	require.NoError(t, svc.Start())
	svc.Stop()
	assert.Empty(t, repo.created())
}

func TestStartTwiceFails(t *testing.T) {
	svc := NewAuditService(&fakeAttemptRepository{}, zap.NewNop(), DefaultConfig())
	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())
	svc.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	svc := NewAuditService(&fakeAttemptRepository{}, zap.NewNop(), DefaultConfig())
	assert.NotPanics(t, func() { svc.Stop() })
}
