package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tick statuses reported by ObserveTick.
const (
	TickOK    = "ok"
	TickError = "error"
)

// SchedulerMetrics exposes counters/histograms for the periodic lead tasks.
type SchedulerMetrics struct {
	ticksTotal   *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	leadOutcomes *prometheus.CounterVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aluri",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total scheduler task ticks",
		}, []string{"task", "status"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aluri",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one scheduler task tick",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		leadOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aluri",
			Subsystem: "scheduler",
			Name:      "lead_outcomes_total",
			Help:      "Per-lead outcomes of scheduler tasks",
		}, []string{"task", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ticksTotal, m.tickDuration, m.leadOutcomes)
	return m
}

// ObserveTick records one finished tick of task.
func (m *SchedulerMetrics) ObserveTick(task string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := TickOK
	if err != nil {
		status = TickError
	}
	m.ticksTotal.WithLabelValues(task, status).Inc()
	m.tickDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ObserveLead records what a task did with a single lead.
func (m *SchedulerMetrics) ObserveLead(task, outcome string) {
	if m == nil {
		return
	}
	m.leadOutcomes.WithLabelValues(task, outcome).Inc()
}
