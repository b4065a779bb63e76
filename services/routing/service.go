package routing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/upb/llm-router/services/providers"
	"go.uber.org/zap"
)

var (
	// ErrBackendsExhausted is returned when every candidate, including the
	// final primary fallback, has failed. Match with errors.Is.
	ErrBackendsExhausted = errors.New("all backends exhausted")

	// ErrNoBackendsConfigured is returned when neither a primary credential
	// nor any secondary endpoint is configured for the requested model.
	ErrNoBackendsConfigured = errors.New("no backends configured")
)

// ExhaustedError is the terminal error for a call where every attempt
// failed. It wraps the last underlying backend error, which is the most
// specific failure available.
type ExhaustedError struct {
	// Attempts is the number of backend attempts made.
	Attempts int

	// Err is the last error encountered.
	Err error
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all backends exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is against ErrBackendsExhausted
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrBackendsExhausted
}

// Tier identifies the candidate set chosen for one call.
type Tier string

const (
	// TierPrimary attempts only the primary provider.
	TierPrimary Tier = "primary"

	// TierSecondarySingle attempts the secondary provider's one endpoint.
	TierSecondarySingle Tier = "secondary_single"

	// TierSecondaryPool attempts every endpoint of the regional pool.
	TierSecondaryPool Tier = "secondary_pool"
)

// Request is one chat-completion call as seen by the router.
type Request struct {
	Model       string
	Messages    []providers.Message
	MaxTokens   int
	Temperature float64
}

// Attempt describes one backend attempt, for diagnostics only. Callers of
// the router never see intermediate attempts; they get text or one terminal
// error.
type Attempt struct {
	Model    string
	ModelID  string
	Family   string
	Endpoint string
	Tier     Tier
	Final    bool // the unconditional primary fallback
	Err      error
	Latency  time.Duration
}

// AttemptObserver receives every attempt outcome. Implementations must not
// block; the router calls them inline.
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, attempt Attempt)
}

// Config holds the router's backend topology. It is read once at
// construction and never mutated, so a single Router is safe for concurrent
// callers without locking.
type Config struct {
	// Primary is the primary provider endpoint; nil when no primary
	// credential is configured.
	Primary *providers.Endpoint

	// Secondary is the secondary provider's single endpoint; nil when the
	// secondary provider is unconfigured.
	Secondary *providers.Endpoint

	// Pool lists the secondary provider's regional mirrors. Empty means no
	// pool; the single Secondary endpoint is used instead.
	Pool []providers.Endpoint

	// Deployments maps model families to the secondary provider's
	// deployment identifiers.
	Deployments Deployments

	// Observer, when set, receives every attempt outcome.
	Observer AttemptObserver
}

// Router dispatches chat-completion calls across the configured backends,
// selecting a tier per call and falling back on failure. Each call is
// self-contained: attempts run sequentially, never in parallel, because a
// capacity error from one region usually signals shared pressure that
// fan-out would make worse.
type Router struct {
	cfg    Config
	client providers.CompletionClient
	logger *zap.Logger

	// shuffle draws a fresh permutation per call. Overridable in tests.
	shuffle func(n int, swap func(i, j int))
}

// NewRouter creates a new Router.
func NewRouter(cfg Config, client providers.CompletionClient, logger *zap.Logger) *Router {
	return &Router{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		shuffle: rand.Shuffle,
	}
}

// Complete routes one chat-completion call. It returns the completion text
// from the first successful backend, or an *ExhaustedError wrapping the last
// failure once every candidate and the final primary fallback have failed.
func (r *Router) Complete(ctx context.Context, req *Request) (string, error) {
	tier, candidates, deploymentID := r.selectTier(req.Model)

	r.logger.Debug("tier selected",
		zap.String("model", req.Model),
		zap.String("tier", string(tier)),
		zap.Int("candidates", len(candidates)))

	// Fresh uniform permutation per call; no memory of prior failures, so
	// load spreads evenly across regions. Weighting by observed load is
	// future work.
	if len(candidates) > 1 {
		r.shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}

	attempts := 0
	var lastErr error

	for _, endpoint := range candidates {
		modelID := req.Model
		if endpoint.Family == providers.FamilyAzure {
			modelID = deploymentID
		}

		attempts++
		text, err := r.attempt(ctx, endpoint, modelID, req, tier, false)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}

	// Hard fallback: one final primary attempt, independent of the tier
	// above, even when the primary tier itself was already tried.
	if r.cfg.Primary != nil {
		attempts++
		text, err := r.attempt(ctx, *r.cfg.Primary, req.Model, req, tier, true)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrNoBackendsConfigured
	}

	return "", &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// selectTier decides the candidate set for one call.
//
// The secondary provider participates only when it is configured and has a
// deployment for the requested model's family; otherwise the call goes
// straight to the primary provider with the raw model name. A configured
// pool takes precedence over the single secondary endpoint.
func (r *Router) selectTier(model string) (Tier, []providers.Endpoint, string) {
	deploymentID, ok := r.cfg.Deployments.Resolve(model)
	if !ok || (r.cfg.Secondary == nil && len(r.cfg.Pool) == 0) {
		if r.cfg.Primary != nil {
			return TierPrimary, []providers.Endpoint{*r.cfg.Primary}, ""
		}
		return TierPrimary, nil, ""
	}

	if len(r.cfg.Pool) > 0 {
		candidates := make([]providers.Endpoint, len(r.cfg.Pool))
		copy(candidates, r.cfg.Pool)
		return TierSecondaryPool, candidates, deploymentID
	}

	return TierSecondarySingle, []providers.Endpoint{*r.cfg.Secondary}, deploymentID
}

// attempt issues one completion call against one endpoint and records the
// outcome. Only the client's declared error type is handled; anything fatal
// propagates unmodified.
func (r *Router) attempt(ctx context.Context, endpoint providers.Endpoint, modelID string, req *Request, tier Tier, final bool) (string, error) {
	start := time.Now()

	completionReq := &providers.CompletionRequest{
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	text, err := r.client.Complete(ctx, endpoint, modelID, completionReq)
	latency := time.Since(start)

	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveAttempt(ctx, Attempt{
			Model:    req.Model,
			ModelID:  modelID,
			Family:   endpoint.Family,
			Endpoint: endpoint.Host(),
			Tier:     tier,
			Final:    final,
			Err:      err,
			Latency:  latency,
		})
	}

	if err != nil {
		r.logger.Warn("backend attempt failed",
			zap.String("model", req.Model),
			zap.String("model_id", modelID),
			zap.String("family", endpoint.Family),
			zap.String("endpoint", endpoint.Host()),
			zap.String("tier", string(tier)),
			zap.Bool("final_fallback", final),
			zap.Duration("latency", latency),
			zap.Error(err))
		return "", err
	}

	r.logger.Info("backend attempt succeeded",
		zap.String("model", req.Model),
		zap.String("model_id", modelID),
		zap.String("family", endpoint.Family),
		zap.String("endpoint", endpoint.Host()),
		zap.String("tier", string(tier)),
		zap.Bool("final_fallback", final),
		zap.Duration("latency", latency))

	return text, nil
}
