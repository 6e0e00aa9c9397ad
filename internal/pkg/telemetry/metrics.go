package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fulfillment"

// Metrics holds the order path instruments. A nil *Metrics records nothing.
type Metrics struct {
	orders        *prometheus.CounterVec
	orderDuration prometheus.Histogram
	orderLines    prometheus.Counter
	notifications *prometheus.CounterVec
	txRetries     prometheus.Counter
}

// NewMetrics creates the instruments and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Processed orders by outcome.",
		}, []string{"outcome"}),
		orderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_duration_seconds",
			Help:      "Latency of order processing including the stock transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		orderLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_lines_total",
			Help:      "Distinct product lines committed.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Post-commit notifications by sink and outcome.",
		}, []string{"sink", "outcome"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Stock transactions retried after a lock conflict.",
		}),
	}
	reg.MustRegister(m.orders, m.orderDuration, m.orderLines, m.notifications, m.txRetries)
	return m
}

func (m *Metrics) ObserveOrder(outcome string, seconds float64, lines int) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(outcome).Inc()
	m.orderDuration.Observe(seconds)
	if lines > 0 {
		m.orderLines.Add(float64(lines))
	}
}

func (m *Metrics) ObserveNotification(sink, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) IncTxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}
