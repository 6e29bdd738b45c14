package outreach

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
	"github.com/SuperK55/aluri-back-sub001/internal/messaging"
	"github.com/SuperK55/aluri-back-sub001/internal/observability/metrics"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
	"github.com/SuperK55/aluri-back-sub001/pkg/phone"
)

var outreachTracer = otel.Tracer("aluri.internal.outreach")

// Task names, used for logs and metrics.
const (
	TaskExhausted = "exhausted_outreach"
	TaskScarcity  = "scarcity_outreach"
)

// Per-lead outcomes reported to metrics.
const (
	OutcomeWelcomeSent       = "welcome_sent"
	OutcomeChannelPreference = "channel_preference"
	OutcomeEarlierSlotsSent  = "earlier_slots_sent"
	OutcomeNoEarlierSlots    = "no_earlier_slots"
	OutcomeStale             = "stale"
	OutcomeSkipped           = "skipped"
	OutcomeFailed            = "failed"
)

const (
	defaultBatchSize        = 100
	defaultOperationTimeout = 30 * time.Second
	defaultTemplateLanguage = "en"
	earlierSlotsWanted      = 2
)

var (
	errNoResource      = errors.New("outreach: lead has no resource")
	errNoSuggestedDate = errors.New("outreach: lead has no valid suggested date")
)

// Availability is the slice of the availability service outreach needs.
type Availability interface {
	Resource(ctx context.Context, resourceID string) (*availability.Resource, error)
	SlotsBefore(ctx context.Context, resourceID, cutoffDate string, max int) ([]availability.Slot, error)
}

// AgentResolver returns the conversational agent for a lead, assigning one
// when the lead has none.
type AgentResolver interface {
	Ensure(ctx context.Context, leadID, ownerID, currentAgentID, category string) (*agents.Agent, error)
}

// Option customizes worker behavior.
type Option func(*workerConfig)

type workerConfig struct {
	batchSize int
	timeout   time.Duration
	language  string
	region    string
	metrics   *metrics.SchedulerMetrics
	now       func() time.Time
}

// WithBatchSize caps the leads processed per tick.
func WithBatchSize(size int) Option {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.batchSize = size
		}
	}
}

// WithOperationTimeout bounds the time spent on a single lead.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(cfg *workerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithTemplateLanguage sets the language tag used when the business has none.
func WithTemplateLanguage(lang string) Option {
	return func(cfg *workerConfig) {
		if lang != "" {
			cfg.language = lang
		}
	}
}

// WithPhoneRegion sets the region national numbers are parsed in.
func WithPhoneRegion(region string) Option {
	return func(cfg *workerConfig) {
		if region != "" {
			cfg.region = region
		}
	}
}

func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// WithClock overrides the clock used for eligibility.
func WithClock(now func() time.Time) Option {
	return func(cfg *workerConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Worker runs the two outreach tasks: chat outreach for leads whose call
// retries are exhausted, and earlier-slot callbacks.
type Worker struct {
	leads        leads.Store
	records      RecordStore
	business     business.Source
	availability Availability
	agents       AgentResolver
	templates    messaging.TemplateSender
	sms          messaging.TextSender
	logger       *logging.Logger
	cfg          workerConfig
}

// NewWorker creates an outreach worker.
func NewWorker(
	leadStore leads.Store,
	records RecordStore,
	businesses business.Source,
	avail Availability,
	resolver AgentResolver,
	templates messaging.TemplateSender,
	sms messaging.TextSender,
	logger *logging.Logger,
	opts ...Option,
) *Worker {
	if leadStore == nil || records == nil || businesses == nil || avail == nil || resolver == nil {
		panic("outreach: lead store, record store, business source, availability and agent resolver are required")
	}
	if templates == nil || sms == nil {
		panic("outreach: template and sms senders are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		batchSize: defaultBatchSize,
		timeout:   defaultOperationTimeout,
		language:  defaultTemplateLanguage,
		region:    phone.DefaultRegion,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		leads:        leadStore,
		records:      records,
		business:     businesses,
		availability: avail,
		agents:       resolver,
		templates:    templates,
		sms:          sms,
		logger:       logger,
		cfg:          cfg,
	}
}

type leadFunc func(ctx context.Context, lead leads.Lead, log *logging.Logger) (string, error)

// runBatch processes eligible leads one at a time. A failing lead is logged
// and counted; it never stops the rest of the batch.
func (w *Worker) runBatch(ctx context.Context, task string, q leads.EligibilityQuery, fn leadFunc) (int, error) {
	ctx, span := outreachTracer.Start(ctx, "outreach."+task,
		trace.WithAttributes(attribute.String("outreach.task", task)))
	defer span.End()
	started := time.Now()

	batch, err := w.leads.FindEligible(ctx, q)
	if err != nil {
		err = fmt.Errorf("outreach: %s: find eligible: %w", task, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.cfg.metrics.ObserveTick(task, err, time.Since(started))
		return 0, err
	}
	span.SetAttributes(attribute.Int("outreach.batch_size", len(batch)))
	if len(batch) > 0 {
		w.logger.Info("outreach: processing batch", "task", task, "count", len(batch))
	}

	processed := 0
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		outcome := w.processOne(ctx, task, batch[i], fn)
		w.cfg.metrics.ObserveLead(task, outcome)
		if outcome != OutcomeFailed && outcome != OutcomeSkipped {
			processed++
		}
	}

	err = ctx.Err()
	w.cfg.metrics.ObserveTick(task, err, time.Since(started))
	return processed, err
}

func (w *Worker) processOne(ctx context.Context, task string, lead leads.Lead, fn leadFunc) string {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.timeout)
	defer cancel()
	ctx, span := outreachTracer.Start(ctx, "outreach."+task+".lead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", lead.ID))

	log := w.logger.WithLead(task, lead.ID, string(lead.Status))
	outcome, err := fn(ctx, lead, log)
	if err == nil {
		return outcome
	}
	if isConfigurationError(err) {
		log.Warn("outreach: lead skipped", "error", err)
		return OutcomeSkipped
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error("outreach: lead failed", "error", err)
	return OutcomeFailed
}

func isConfigurationError(err error) bool {
	return errors.Is(err, errNoResource) ||
		errors.Is(err, errNoSuggestedDate) ||
		errors.Is(err, agents.ErrNoAgent) ||
		errors.Is(err, phone.ErrInvalid) ||
		errors.Is(err, messaging.ErrInvalidRecipient)
}

// advance moves the lead out of from. A lost race is not an error; another
// process already moved the lead on.
func (w *Worker) advance(ctx context.Context, lead leads.Lead, to leads.Status, outcome string, log *logging.Logger) (string, error) {
	ok, err := w.leads.Transition(ctx, lead.ID, lead.Status, to, nil)
	if err != nil {
		return "", fmt.Errorf("advance to %s: %w", to, err)
	}
	if !ok {
		log.Info("outreach: lead changed concurrently", "target", to)
		return OutcomeStale, nil
	}
	log.Info("outreach: lead advanced", "to", to, "outcome", outcome)
	return outcome, nil
}

// openRecord reuses the active thread for phone or starts a new one. A
// reused thread keeps only its identity; owner, agent and any previously
// offered slots are replaced by this lead's.
func (w *Worker) openRecord(ctx context.Context, lead leads.Lead, to string) (Record, error) {
	rec := Record{OwnerID: lead.OwnerID, LeadID: lead.ID, Phone: to, Status: RecordOpen}
	existing, err := w.records.FindActiveByPhone(ctx, to)
	if err != nil {
		return Record{}, fmt.Errorf("find outreach record: %w", err)
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	return rec, nil
}

// sendText delivers a plain-text message from the business SMS number.
func (w *Worker) sendText(ctx context.Context, biz *business.Config, to, body string) (string, error) {
	id, err := w.sms.SendText(ctx, messaging.TextMessage{From: biz.SMSFromNumber, To: to, Body: body})
	if err != nil {
		return "", fmt.Errorf("send sms: %w", err)
	}
	return id, nil
}
