package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/riskibarqy/wotstats/internal/usecase"
)

const metricsNamespace = "wotstats"

// IngestionMetrics records ingestion cycle outcomes on a private registry so
// a cron run can dump them for the node exporter textfile collector.
type IngestionMetrics struct {
	registry *prometheus.Registry

	records         *prometheus.CounterVec
	lastRunUnix     prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
	lastRunDuration prometheus.Gauge
}

func NewIngestionMetrics() *IngestionMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &IngestionMetrics{
		registry: registry,
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Records handled by the last ingestion cycle, by outcome.",
		}, []string{"outcome"}),
		lastRunUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last ingestion cycle finished.",
		}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "last_run_success",
			Help:      "1 when the last ingestion cycle finished without a fatal error.",
		}),
		lastRunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last ingestion cycle.",
		}),
	}
}

func (m *IngestionMetrics) ObserveIngestion(summary usecase.IngestionSummary, err error) {
	if m == nil {
		return
	}

	m.records.WithLabelValues("inserted").Add(float64(summary.Inserted))
	m.records.WithLabelValues("skipped").Add(float64(summary.Skipped))
	m.records.WithLabelValues("failed").Add(float64(len(summary.Failed)))

	if !summary.FinishedAt.IsZero() {
		m.lastRunUnix.Set(float64(summary.FinishedAt.Unix()))
		m.lastRunDuration.Set(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}
	if err != nil {
		m.lastRunSuccess.Set(0)
	} else {
		m.lastRunSuccess.Set(1)
	}
}

func (m *IngestionMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes the metrics in text exposition format. An
// empty path is a no-op.
func (m *IngestionMetrics) WriteTextfile(path string) error {
	path = strings.TrimSpace(path)
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
