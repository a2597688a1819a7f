package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xela07ax/trust-center/internal/domain"
)

type Metrics struct {
	// Latency: сколько времени заняла загрузка снапшота
	LoadDuration *prometheus.HistogramVec

	// Traffic: число загрузок по триггеру и исходу
	LoadsTotal *prometheus.CounterVec

	// Загрузки, идущие прямо сейчас (таймер и ручной reload могут перекрываться)
	LoadsInFlight prometheus.Gauge

	// Исход запроса к каждому артефакту: ok, absent, error
	SourceFetches *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Данные последнего опубликованного снапшота
	ComplianceScore  prometheus.Gauge
	RecordsByStatus  *prometheus.GaugeVec
	LastSuccessUnix  prometheus.Gauge
	DroppedFragments *prometheus.CounterVec

	// Journal: заполненность буфера (backpressure)
	JournalBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		LoadDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustcenter_load_duration_seconds",
			Help:    "Histogram of snapshot load latencies.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"trigger", "status"}),

		LoadsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trustcenter_loads_total",
			Help: "Total number of snapshot loads.",
		}, []string{"trigger", "status"}),

		LoadsInFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trustcenter_loads_in_flight",
			Help: "Number of snapshot loads currently running.",
		}),

		SourceFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trustcenter_source_fetches_total",
			Help: "Artifact fetch outcomes by source.",
		}, []string{"source", "result"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "trustcenter_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"source"}),

		ComplianceScore: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trustcenter_compliance_score",
			Help: "Compliance score of the published snapshot.",
		}),

		RecordsByStatus: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "trustcenter_validations",
			Help: "Number of validations in the published snapshot by status.",
		}, []string{"status"}),

		LastSuccessUnix: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trustcenter_last_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot publish.",
		}),

		DroppedFragments: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trustcenter_dropped_fragments_total",
			Help: "Malformed JSON fragments and lines dropped during parsing.",
		}, []string{"source"}),

		JournalBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trustcenter_journal_buffer_utilization",
			Help: "Current number of events in load journal buffer.",
		}),
	}
}

func (m *Metrics) observeSnapshot(s *domain.Snapshot) {
	m.ComplianceScore.Set(s.Metrics.Score)
	m.RecordsByStatus.WithLabelValues(string(domain.StatusPassed)).Set(float64(s.Metrics.PassedCount - s.Metrics.WarningCount - s.Metrics.InfoCount))
	m.RecordsByStatus.WithLabelValues(string(domain.StatusWarning)).Set(float64(s.Metrics.WarningCount))
	m.RecordsByStatus.WithLabelValues(string(domain.StatusInfo)).Set(float64(s.Metrics.InfoCount))
	m.RecordsByStatus.WithLabelValues(string(domain.StatusFailed)).Set(float64(s.Metrics.FailedCount))
	m.RecordsByStatus.WithLabelValues(string(domain.StatusUnknown)).Set(float64(s.Metrics.UnknownCount))
	m.LastSuccessUnix.Set(float64(s.LoadedAt.Unix()))
}
