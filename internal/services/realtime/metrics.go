package realtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	subscribers       prometheus.Gauge
	broadcasts        prometheus.Counter
	sends             *prometheus.CounterVec
	broadcastDuration prometheus.Histogram
	messageSizeBytes  prometheus.Histogram
}

// NewMetrics registers the realtime collectors. A nil registerer yields nil metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "farmtwin",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Number of currently registered subscribers",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "realtime",
			Name:      "broadcasts_total",
			Help:      "Broadcast passes performed",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "realtime",
			Name:      "sends_total",
			Help:      "Per-subscriber delivery attempts by result",
		}, []string{"result"}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "farmtwin",
			Subsystem: "realtime",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to deliver one message to all subscribers",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		messageSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "farmtwin",
			Subsystem: "realtime",
			Name:      "message_size_bytes",
			Help:      "Size distribution of broadcast messages",
			Buckets:   []float64{100, 500, 1000, 2000, 5000, 10000},
		}),
	}
	reg.MustRegister(m.subscribers, m.broadcasts, m.sends, m.broadcastDuration, m.messageSizeBytes)
	return m
}

func (m *Metrics) setSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) recordBroadcast(res BroadcastResult, size int, took time.Duration) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.sends.WithLabelValues("delivered").Add(float64(res.Delivered))
	m.sends.WithLabelValues("failed").Add(float64(res.Failed))
	m.broadcastDuration.Observe(took.Seconds())
	m.messageSizeBytes.Observe(float64(size))
}
