package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 管道与连接层的运行指标
type Metrics struct {
	SamplesIngested   *prometheus.CounterVec
	IngestFailures    prometheus.Counter
	CryAlerts         prometheus.Counter
	DeliveryFailures  prometheus.Counter
	ActiveConnections prometheus.Gauge
	ClassifierErrors  prometheus.Counter
}

// NewMetrics 创建并注册指标
// reg 传入 prometheus.DefaultRegisterer；测试中传独立 Registry 避免重复注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "babywatch_samples_ingested_total",
			Help: "Samples accepted and persisted, by intake source.",
		}, []string{"source"}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babywatch_ingest_failures_total",
			Help: "Ingestion attempts rejected by validation or persistence.",
		}),
		CryAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babywatch_cry_alerts_total",
			Help: "Cry events broadcast to realtime connections.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babywatch_delivery_failures_total",
			Help: "Per-connection send failures during broadcast.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "babywatch_active_connections",
			Help: "Currently registered realtime connections.",
		}),
		ClassifierErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "babywatch_classifier_errors_total",
			Help: "Audio classifier calls degraded to cry-not-detected.",
		}),
	}

	reg.MustRegister(
		m.SamplesIngested,
		m.IngestFailures,
		m.CryAlerts,
		m.DeliveryFailures,
		m.ActiveConnections,
		m.ClassifierErrors,
	)

	return m
}
