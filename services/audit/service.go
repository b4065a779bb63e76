package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// AuditService persists completion attempt records asynchronously. Recording
// is best-effort: when the buffer is full the event is dropped with a warn
// log, so the routing path never blocks on the audit store.
type AuditService struct {
	repo        repositories.AttemptRepository
	logger      *zap.Logger
	eventChan   chan *models.CompletionAttempt
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repositories.AttemptRepository, logger *zap.Logger, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		repo:        repo,
		logger:      logger,
		eventChan:   make(chan *models.CompletionAttempt, config.BufferSize),
		workerCount: config.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("audit service started", zap.Int("workers", s.workerCount))
	return nil
}

// Stop drains pending events and stops the workers. The channel is closed
// under the same mutex that guards sends, so an attempt observed during
// shutdown is dropped instead of hitting a closed channel.
func (s *AuditService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.eventChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
	s.logger.Info("audit service stopped")
}

// ObserveAttempt implements routing.AttemptObserver. The request ID is taken
// from the call context when the HTTP layer set one. Attempts observed while
// the service is stopped are dropped; the send happens under the same mutex
// Stop closes the channel under, so it can never hit a closed channel.
func (s *AuditService) ObserveAttempt(ctx context.Context, attempt routing.Attempt) {
	record := models.NewCompletionAttempt(utils.RequestIDFromContext(ctx))
	record.Model = attempt.Model
	record.ModelID = attempt.ModelID
	record.Family = attempt.Family
	record.Endpoint = attempt.Endpoint
	record.Tier = string(attempt.Tier)
	record.FinalFallback = attempt.Final

	latencyMs := int(attempt.Latency / time.Millisecond)
	if attempt.Err != nil {
		record.MarkError(attempt.Err.Error(), latencyMs)
	} else {
		record.MarkSuccess(latencyMs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	select {
	case s.eventChan <- record:
	default:
		s.logger.Warn("audit buffer full, dropping attempt record",
			zap.String("request_id", record.RequestID),
			zap.String("endpoint", record.Endpoint))
	}
}

// worker consumes attempt records and writes them to the repository.
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	for record := range s.eventChan {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		if err := s.repo.Create(ctx, record); err != nil {
			s.logger.Error("failed to persist attempt record",
				zap.Int("worker", id),
				zap.String("request_id", record.RequestID),
				zap.Error(err))
		}
		cancel()
	}
}
