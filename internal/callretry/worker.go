// Package callretry re-dials leads whose previous call did not reach a
// decision, and hands leads that ran out of attempts over to chat outreach.
package callretry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SuperK55/aluri-back-sub001/internal/agents"
	"github.com/SuperK55/aluri-back-sub001/internal/availability"
	"github.com/SuperK55/aluri-back-sub001/internal/business"
	"github.com/SuperK55/aluri-back-sub001/internal/leads"
	"github.com/SuperK55/aluri-back-sub001/internal/observability/metrics"
	"github.com/SuperK55/aluri-back-sub001/internal/voice"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
)

var retryTracer = otel.Tracer("aluri.internal.callretry")

// Task is the name the retry task reports under.
const Task = "call_retry"

// Per-lead outcomes reported to metrics.
const (
	OutcomeCalled      = "called"
	OutcomeExhausted   = "exhausted"
	OutcomeInFlight    = "in_flight"
	OutcomeCooldown    = "cooldown"
	OutcomeClosed      = "outside_hours"
	OutcomeStale       = "stale"
	OutcomeNoAgent     = "no_agent"
	OutcomeConfigError = "config_error"
	OutcomeFailed      = "failed"
)

const (
	defaultCooldown         = 2 * time.Hour
	defaultFailureBackoff   = 30 * time.Minute
	defaultMaxAttempts      = 3
	defaultBatchSize        = 100
	defaultOperationTimeout = 30 * time.Second
	cleanupTimeout          = 5 * time.Second
)

// Resources resolves the resource a lead is booking, for agent assignment.
type Resources interface {
	Resource(ctx context.Context, resourceID string) (*availability.Resource, error)
}

// AgentResolver returns the lead's agent, assigning one when missing.
type AgentResolver interface {
	Ensure(ctx context.Context, leadID, ownerID, currentAgentID, category string) (*agents.Agent, error)
}

// Option customizes worker behavior.
type Option func(*workerConfig)

type workerConfig struct {
	cooldown       time.Duration
	failureBackoff time.Duration
	maxAttempts    int
	batchSize      int
	timeout        time.Duration
	metrics        *metrics.SchedulerMetrics
	now            func() time.Time
}

// WithCooldown sets the minimum gap between two attempts on one lead.
func WithCooldown(d time.Duration) Option {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.cooldown = d
		}
	}
}

// WithFailureBackoff sets how far out a failed retry is rescheduled.
func WithFailureBackoff(d time.Duration) Option {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.failureBackoff = d
		}
	}
}

// WithDefaultMaxAttempts sets the cap for leads that carry none.
func WithDefaultMaxAttempts(n int) Option {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.maxAttempts = n
		}
	}
}

func WithBatchSize(size int) Option {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.batchSize = size
		}
	}
}

func WithOperationTimeout(d time.Duration) Option {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(cfg *workerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Worker is the call retry task.
type Worker struct {
	leads     leads.Store
	business  business.Source
	resources Resources
	agents    AgentResolver
	engine    voice.Engine
	logger    *logging.Logger
	cfg       workerConfig
}

// NewWorker creates a call retry worker.
func NewWorker(leadStore leads.Store, businesses business.Source, resources Resources, resolver AgentResolver, engine voice.Engine, logger *logging.Logger, opts ...Option) *Worker {
	if leadStore == nil || businesses == nil || resources == nil || resolver == nil || engine == nil {
		panic("callretry: lead store, business source, resources, agent resolver and engine are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		cooldown:       defaultCooldown,
		failureBackoff: defaultFailureBackoff,
		maxAttempts:    defaultMaxAttempts,
		batchSize:      defaultBatchSize,
		timeout:        defaultOperationTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		leads:     leadStore,
		business:  businesses,
		resources: resources,
		agents:    resolver,
		engine:    engine,
		logger:    logger,
		cfg:       cfg,
	}
}

// ProcessDue runs one tick: every retryable lead whose retry gate elapsed is
// evaluated in turn. It returns the number of calls placed.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	ctx, span := retryTracer.Start(ctx, "callretry.tick", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	started := time.Now()

	batch, err := w.leads.FindEligible(ctx, leads.EligibilityQuery{
		Statuses:  leads.RetryableStatuses,
		DueBefore: w.cfg.now(),
		Limit:     w.cfg.batchSize,
	})
	if err != nil {
		err = fmt.Errorf("callretry: find eligible: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.cfg.metrics.ObserveTick(Task, err, time.Since(started))
		return 0, err
	}
	span.SetAttributes(attribute.Int("callretry.batch_size", len(batch)))
	if len(batch) > 0 {
		w.logger.Info("callretry: processing due leads", "count", len(batch))
	}

	called := 0
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		outcome := w.processLead(ctx, batch[i])
		w.cfg.metrics.ObserveLead(Task, outcome)
		if outcome == OutcomeCalled {
			called++
		}
	}

	err = ctx.Err()
	w.cfg.metrics.ObserveTick(Task, err, time.Since(started))
	return called, err
}

func (w *Worker) processLead(ctx context.Context, lead leads.Lead) string {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.timeout)
	defer cancel()
	ctx, span := retryTracer.Start(ctx, "callretry.lead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", lead.ID))

	log := w.logger.WithLead(Task, lead.ID, string(lead.Status))
	outcome, err := w.retry(ctx, lead, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("callretry.outcome", outcome))
	return outcome
}

func (w *Worker) retry(ctx context.Context, lead leads.Lead, log *logging.Logger) (string, error) {
	now := w.cfg.now()

	biz, err := w.business.Get(ctx, lead.OwnerID)
	if err != nil {
		return w.fail(ctx, lead, lead.Status, fmt.Errorf("load business: %w", err), log)
	}
	if !biz.IsOpenAt(now) {
		log.Debug("callretry: outside business hours")
		return OutcomeClosed, nil
	}

	agent, err := w.resolveAgent(ctx, lead)
	if err != nil {
		log.Warn("callretry: no agent for lead, skipping", "error", err)
		return OutcomeNoAgent, err
	}

	inFlight, err := w.leads.HasInFlightAttempt(ctx, lead.ID)
	if err != nil {
		return w.fail(ctx, lead, lead.Status, fmt.Errorf("check in-flight attempt: %w", err), log)
	}
	if inFlight {
		log.Info("callretry: call already in flight")
		return OutcomeInFlight, nil
	}

	latest, err := w.leads.LatestAttempt(ctx, lead.ID)
	if err != nil {
		return w.fail(ctx, lead, lead.Status, fmt.Errorf("latest attempt: %w", err), log)
	}
	nextAttempt := 1
	if latest != nil {
		if now.Sub(latest.StartedAt) < w.cfg.cooldown {
			log.Debug("callretry: cooling down", "last_started_at", latest.StartedAt)
			return OutcomeCooldown, nil
		}
		nextAttempt = latest.AttemptNo + 1
	}

	if limit := lead.AttemptCap(w.cfg.maxAttempts); nextAttempt > limit {
		ok, err := w.leads.Transition(ctx, lead.ID, lead.Status, leads.StatusWhatsAppOutreach, nil)
		if err != nil {
			return w.fail(ctx, lead, lead.Status, fmt.Errorf("hand off to outreach: %w", err), log)
		}
		if !ok {
			return OutcomeStale, nil
		}
		log.Info("callretry: attempts exhausted, handed to outreach", "attempts", nextAttempt-1, "cap", limit)
		return OutcomeExhausted, nil
	}

	// Claim the lead before dialing; a concurrent tick loses here.
	ok, err := w.leads.Transition(ctx, lead.ID, lead.Status, leads.StatusCalling, nil)
	if err != nil {
		return w.fail(ctx, lead, lead.Status, fmt.Errorf("claim lead: %w", err), log)
	}
	if !ok {
		log.Info("callretry: lead claimed elsewhere")
		return OutcomeStale, nil
	}

	attempt, err := w.leads.InsertAttempt(ctx, leads.CallAttempt{
		LeadID:    lead.ID,
		AttemptNo: nextAttempt,
		StartedAt: now,
		Outcome:   leads.OutcomeInitiated,
	})
	if err != nil {
		return w.fail(ctx, lead, leads.StatusCalling, fmt.Errorf("insert attempt %d: %w", nextAttempt, err), log)
	}

	result, err := w.engine.PlaceCall(ctx, voice.CallRequest{
		LeadID:      lead.ID,
		OwnerID:     lead.OwnerID,
		AgentHandle: agent.Handle,
		ToNumber:    lead.Phone,
		AttemptNo:   nextAttempt,
		Variables:   lead.Variables,
	})
	if err != nil {
		cleanup, cancel := w.cleanupContext(ctx)
		defer cancel()
		if ferr := w.leads.FinishAttempt(cleanup, attempt.ID, leads.OutcomeFailed, w.cfg.now()); ferr != nil {
			log.Error("callretry: failed to close attempt", "attempt_id", attempt.ID, "error", ferr)
		}
		if voice.IsConfigurationError(err) {
			return w.park(ctx, lead, err, log)
		}
		return w.fail(ctx, lead, leads.StatusCalling, fmt.Errorf("place call: %w", err), log)
	}

	if err := w.leads.AttachCall(ctx, attempt.ID, result.CallID); err != nil {
		log.Error("callretry: failed to record call id", "attempt_id", attempt.ID, "call_id", result.CallID, "error", err)
	}
	log.Info("callretry: call placed", "attempt_no", nextAttempt, "call_id", result.CallID)
	return OutcomeCalled, nil
}

func (w *Worker) resolveAgent(ctx context.Context, lead leads.Lead) (*agents.Agent, error) {
	var category string
	if lead.ResourceID != "" {
		res, err := w.resources.Resource(ctx, lead.ResourceID)
		if err != nil {
			return nil, fmt.Errorf("load resource: %w", err)
		}
		category = res.Category
	}
	return w.agents.Ensure(ctx, lead.ID, lead.OwnerID, lead.AgentID, category)
}

// fail reschedules the lead as retry_failed after the failure backoff.
func (w *Worker) fail(ctx context.Context, lead leads.Lead, from leads.Status, cause error, log *logging.Logger) (string, error) {
	log.Error("callretry: retry failed", "error", cause)
	next := w.cfg.now().Add(w.cfg.failureBackoff)
	w.moveToRetryFailed(ctx, lead, from, &next, log)
	return OutcomeFailed, cause
}

// park marks a lead that needs operator remediation. It keeps retry_failed
// without a retry time, so no tick picks it up again.
func (w *Worker) park(ctx context.Context, lead leads.Lead, cause error, log *logging.Logger) (string, error) {
	log.Warn("callretry: lead needs configuration, not retrying", "error", cause)
	w.moveToRetryFailed(ctx, lead, leads.StatusCalling, nil, log)
	return OutcomeConfigError, cause
}

func (w *Worker) moveToRetryFailed(ctx context.Context, lead leads.Lead, from leads.Status, next *time.Time, log *logging.Logger) {
	cleanup, cancel := w.cleanupContext(ctx)
	defer cancel()
	ok, err := w.leads.Transition(cleanup, lead.ID, from, leads.StatusRetryFailed, next)
	switch {
	case errors.Is(err, leads.ErrLeadNotFound):
		log.Warn("callretry: lead vanished")
	case err != nil:
		log.Error("callretry: failed to reschedule lead", "error", err)
	case !ok:
		log.Info("callretry: lead changed before reschedule")
	}
}

// cleanupContext survives the per-lead deadline so failures still get recorded.
func (w *Worker) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
