package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/SuperK55/aluri-back-sub001/internal/agents"
	"github.com/SuperK55/aluri-back-sub001/internal/api/router"
	"github.com/SuperK55/aluri-back-sub001/internal/availability"
	"github.com/SuperK55/aluri-back-sub001/internal/business"
	"github.com/SuperK55/aluri-back-sub001/internal/callretry"
	appconfig "github.com/SuperK55/aluri-back-sub001/internal/config"
	"github.com/SuperK55/aluri-back-sub001/internal/leads"
	"github.com/SuperK55/aluri-back-sub001/internal/messaging"
	"github.com/SuperK55/aluri-back-sub001/internal/observability/metrics"
	"github.com/SuperK55/aluri-back-sub001/internal/outreach"
	"github.com/SuperK55/aluri-back-sub001/internal/scheduler"
	"github.com/SuperK55/aluri-back-sub001/internal/voice"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
)

// Job names registered with the scheduler.
const (
	jobCallRetry = "call_retry"
	jobExhausted = "exhausted_outreach"
	jobScarcity  = "scarcity_outreach"
)

type deps struct {
	pool  *pgxpool.Pool
	redis *redis.Client

	leads        *leads.PostgresStore
	records      *outreach.PostgresRecordStore
	business     *business.Store
	availability *availability.Service
	assigner     *agents.Assigner
	engine       *voice.Client
	gateway      *messaging.Gateway
	sms          *messaging.TelnyxSender
}

func buildDeps(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*deps, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	d := &deps{pool: pool, redis: buildRedisClient(cfg)}
	if err := d.redis.Ping(ctx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	d.leads = leads.NewPostgresStore(pool)
	d.records = outreach.NewPostgresRecordStore(pool)
	d.business = business.NewStore(d.redis)

	resourceStore := availability.NewPostgresStore(pool)
	cached := availability.NewCachedResourceStore(resourceStore, d.redis, cfg.ScheduleCacheTTL, logger)
	d.availability = availability.NewService(cached, availability.NewFinder(resourceStore))
	d.assigner = agents.NewAssigner(agents.NewPostgresStore(pool), d.leads, logger)

	if d.engine, err = voice.NewClient(voice.Config{
		BaseURL:     cfg.ConversationEngineURL,
		APIKey:      cfg.ConversationEngineAPIKey,
		PhoneRegion: cfg.DefaultPhoneRegion,
		Timeout:     cfg.OperationTimeout,
		Logger:      logger,
	}); err != nil {
		d.Close()
		return nil, fmt.Errorf("conversation engine client: %w", err)
	}
	if d.gateway, err = messaging.NewGateway(messaging.GatewayConfig{
		BaseURL:       cfg.MessagingGatewayURL,
		APIKey:        cfg.MessagingGatewayAPIKey,
		PhoneRegion:   cfg.DefaultPhoneRegion,
		RatePerSecond: cfg.MessagingRatePerSecond,
		Timeout:       cfg.OperationTimeout,
		Logger:        logger,
	}); err != nil {
		d.Close()
		return nil, fmt.Errorf("messaging gateway client: %w", err)
	}
	if d.sms, err = messaging.NewTelnyxSender(messaging.TelnyxConfig{
		BaseURL:            cfg.TelnyxBaseURL,
		APIKey:             cfg.TelnyxAPIKey,
		MessagingProfileID: cfg.TelnyxMessagingProfile,
		PhoneRegion:        cfg.DefaultPhoneRegion,
		Timeout:            cfg.OperationTimeout,
		Logger:             logger,
	}); err != nil {
		d.Close()
		return nil, fmt.Errorf("sms client: %w", err)
	}
	return d, nil
}

func (d *deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *deps) availabilityHandler(logger *logging.Logger) *availability.Handler {
	return availability.NewHandler(d.availability, logger)
}

func (d *deps) readiness() map[string]router.ReadinessCheck {
	return map[string]router.ReadinessCheck{
		"postgres": d.pool.Ping,
		"redis":    func(ctx context.Context) error { return d.redis.Ping(ctx).Err() },
	}
}

func buildRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func buildScheduler(cfg *appconfig.Config, d *deps, m *metrics.SchedulerMetrics, logger *logging.Logger) (*scheduler.Scheduler, error) {
	retry := callretry.NewWorker(d.leads, d.business, d.availability, d.assigner, d.engine, logger,
		callretry.WithCooldown(cfg.RetryCooldown),
		callretry.WithFailureBackoff(cfg.RetryFailedBackoff),
		callretry.WithDefaultMaxAttempts(cfg.DefaultMaxAttempts),
		callretry.WithBatchSize(cfg.BatchSize),
		callretry.WithOperationTimeout(cfg.OperationTimeout),
		callretry.WithMetrics(m),
	)
	out := outreach.NewWorker(d.leads, d.records, d.business, d.availability, d.assigner, d.gateway, d.sms, logger,
		outreach.WithBatchSize(cfg.BatchSize),
		outreach.WithOperationTimeout(cfg.OperationTimeout),
		outreach.WithTemplateLanguage(cfg.TemplateLanguage),
		outreach.WithPhoneRegion(cfg.DefaultPhoneRegion),
		outreach.WithMetrics(m),
	)

	s := scheduler.New(logger)
	for _, job := range []struct {
		name     string
		interval time.Duration
		task     scheduler.Task
	}{
		{jobCallRetry, cfg.RetryInterval, scheduler.CountingTask(retry.ProcessDue)},
		{jobExhausted, cfg.OutreachInterval, scheduler.CountingTask(out.ProcessExhausted)},
		{jobScarcity, cfg.ScarcityInterval, scheduler.CountingTask(out.ProcessScarcity)},
	} {
		if err := s.Add(job.name, job.interval, job.task); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// setupSchedulerMetrics registers scheduler metrics plus Go runtime
// collectors on a dedicated registry.
func setupSchedulerMetrics() (http.Handler, *metrics.SchedulerMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulerMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
