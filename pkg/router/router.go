package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sparkie-hq/relay/pkg/classify"
	"sparkie-hq/relay/pkg/keypool"
	"sparkie-hq/relay/pkg/telemetry/metrics"
	"sparkie-hq/relay/pkg/upstream"
)

// Config carries the router's tuning values.
type Config struct {
	// MaxAttempts is the attempt ceiling for one handled request.
	MaxAttempts int

	// ClassifyDefaults are the fallback cooldowns handed to the classifier.
	ClassifyDefaults classify.Defaults
}

// UnavailableNotifier is told when a request found no eligible credential,
// so the pool health monitor can check capacity and trigger replenishment.
// The notification must not block.
type UnavailableNotifier interface {
	NotifyUnavailable()
}

// Router orchestrates one request end-to-end. It holds no long-lived state
// beyond its collaborators; the exclusion set lives on the stack of each
// Handle call.
type Router struct {
	pool     *keypool.Pool
	selector *keypool.Selector
	breaker  *keypool.Breaker
	client   upstream.Client
	config   Config
	notifier UnavailableNotifier
	metrics  *metrics.RouterMetrics
	logger   *slog.Logger
}

// New creates a router. notifier and routerMetrics may be nil.
func New(pool *keypool.Pool, selector *keypool.Selector, breaker *keypool.Breaker,
	client upstream.Client, cfg Config, notifier UnavailableNotifier,
	routerMetrics *metrics.RouterMetrics) *Router {

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Router{
		pool:     pool,
		selector: selector,
		breaker:  breaker,
		client:   client,
		config:   cfg,
		notifier: notifier,
		metrics:  routerMetrics,
		logger:   slog.Default().With("component", "router"),
	}
}

// Handle serves one generation request.
//
// It loops up to the attempt ceiling: pick a credential the request has not
// tried yet, dispatch, classify, apply the outcome to the credential, and on
// anything but success exclude that credential and try another. Credential
// mutation is applied atomically per record and never spans the upstream
// call.
//
// If the caller's context is cancelled, no further attempts are issued.
// State already recorded on credentials stands: the observed upstream
// behavior did happen.
func (r *Router) Handle(ctx context.Context, req *upstream.GenerateRequest) (*upstream.GenerateResponse, error) {
	requestID := requestIDFrom(req)
	excluded := make(map[string]struct{})

	lastOutcome := classify.OutcomeTransient

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			r.metrics.RecordRequest("cancelled", attempt-1)
			return nil, fmt.Errorf("request abandoned after %d attempts: %w", attempt-1, err)
		}

		cred, err := r.selector.Pick(time.Now(), excluded)
		if err != nil {
			r.logger.Warn("no eligible credential",
				"request_id", requestID,
				"attempts", attempt-1,
				"pool_size", r.pool.Len(),
			)
			if r.notifier != nil {
				r.notifier.NotifyUnavailable()
			}
			r.metrics.RecordRequest("unavailable", attempt-1)
			return nil, &AllCredentialsUnavailableError{Attempts: attempt - 1, PoolSize: r.pool.Len()}
		}

		raw := r.client.Dispatch(ctx, cred.Secret(), req)
		r.metrics.RecordDispatch(raw.Latency)

		cl := classify.Classify(raw, r.config.ClassifyDefaults)
		r.metrics.RecordClassification(cl.Outcome.String())

		if cl.Ambiguous {
			r.logger.Warn("unclassifiable upstream outcome, treating as transient",
				"request_id", requestID,
				"credential", cred.ID(),
				"status", raw.StatusCode,
			)
		}

		transition := r.breaker.Apply(cred, cl, time.Now())
		if transition.Changed() {
			r.logger.Info("credential state changed",
				"request_id", requestID,
				"credential", cred.ID(),
				"from", transition.From.String(),
				"to", transition.To.String(),
				"outcome", cl.Outcome.String(),
			)
		}

		if cl.Outcome == classify.OutcomeSuccess {
			resp, err := upstream.DecodeResponse(raw)
			if err != nil {
				// The upstream said 2xx but the body is unusable. Treat the
				// attempt as failed and move on to another credential.
				r.logger.Warn("undecodable success response",
					"request_id", requestID,
					"credential", cred.ID(),
					"error", err,
				)
				lastOutcome = classify.OutcomeTransient
				excluded[cred.ID()] = struct{}{}
				continue
			}

			r.metrics.RecordRequest("success", attempt)
			r.logger.Debug("request served",
				"request_id", requestID,
				"credential", cred.ID(),
				"attempts", attempt,
				"latency", raw.Latency,
			)
			return resp, nil
		}

		lastOutcome = cl.Outcome
		excluded[cred.ID()] = struct{}{}
	}

	r.metrics.RecordRequest("retries_exhausted", r.config.MaxAttempts)
	return nil, &RetriesExhaustedError{Attempts: r.config.MaxAttempts, LastOutcome: lastOutcome}
}

// requestIDFrom returns the caller-provided request ID, or mints one.
func requestIDFrom(req *upstream.GenerateRequest) string {
	if req.Metadata != nil {
		if id, ok := req.Metadata["request_id"]; ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}
