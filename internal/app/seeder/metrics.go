package seeder

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/heartmarshall/seedloader/internal/config"
)

// Record stages counted by seeder_records_total.
const (
	stageValidated = "validated"
	stageRejected  = "rejected"
	stageLoaded    = "loaded"
)

// Metrics is the per-run metric set, pushed to a Pushgateway when the run ends.
// A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	records          *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	outcome          *prometheus.GaugeVec
	duration         prometheus.Gauge

	pushURL string
	job     string
}

// NewMetrics creates a fresh registry with the seeder metrics registered.
func NewMetrics(cfg config.MetricsConfig) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeder_records_total",
			Help: "Seed records per file and stage (validated, rejected, loaded).",
		}, []string{"file", "stage"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seeder_validation_errors",
			Help: "Collected schema and reference errors by kind.",
		}, []string{"kind"}),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "seeder_run_outcome",
			Help: "1 for the terminal state reached by the last run.",
		}, []string{"state"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seeder_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		pushURL: cfg.PushgatewayURL,
		job:     cfg.Job,
	}
	m.reg.MustRegister(m.records, m.validationErrors, m.outcome, m.duration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) addRecords(file, stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.records.WithLabelValues(file, stage).Add(float64(n))
}

func (m *Metrics) addError(kind string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeResult(res Result) {
	if m == nil {
		return
	}
	m.outcome.WithLabelValues(string(res.State)).Set(1)
	m.duration.Set(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// Push sends the registry to the configured Pushgateway. Without a URL it does nothing.
func (m *Metrics) Push(ctx context.Context) error {
	if m == nil || m.pushURL == "" {
		return nil
	}
	job := m.job
	if job == "" {
		job = "seeder"
	}
	if err := push.New(m.pushURL, job).Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", m.pushURL, err)
	}
	return nil
}
