package events

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: Prometheus-метрики очереди и диспетчера. nil-значение допустимо
// и ничего не считает.
type Metrics struct {
	enqueuedTotal   *prometheus.CounterVec
	dispatchedTotal *prometheus.CounterVec
	failedTotal     *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	latency         prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg. Если reg == nil,
// метрики не регистрируются (удобно в тестах).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Subsystem: "events",
			Name:      "enqueued_total",
			Help:      "Число событий, поставленных в очередь.",
		}, []string{"type"}),
		dispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Число событий, успешно обработанных диспетчером.",
		}, []string{"type"}),
		failedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Subsystem: "events",
			Name:      "failed_total",
			Help:      "События, обработчик которых вернул ошибку или запаниковал.",
		}, []string{"type"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tileworld",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "События без зарегистрированного обработчика.",
		}, []string{"type"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tileworld",
			Subsystem: "events",
			Name:      "queue_depth",
			Help:      "Количество событий в очереди.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tileworld",
			Subsystem: "events",
			Name:      "dispatch_seconds",
			Help:      "Время обработки одного события.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.enqueuedTotal, m.dispatchedTotal, m.failedTotal, m.droppedTotal, m.queueDepth, m.latency)
	}
	return m
}

func (m *Metrics) enqueued(t Type, depth int) {
	if m == nil {
		return
	}
	m.enqueuedTotal.WithLabelValues(string(t)).Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) setDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) dispatched(t Type, took time.Duration) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(string(t)).Inc()
	m.latency.Observe(took.Seconds())
}

func (m *Metrics) failed(t Type) {
	if m == nil {
		return
	}
	m.failedTotal.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) dropped(t Type) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(string(t)).Inc()
}
