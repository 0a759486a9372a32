package audit

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	appended     *prometheus.CounterVec
	appendErrors prometheus.Counter
	retained     prometheus.Gauge
}

// NewMetrics registers the audit collectors. A nil registerer yields nil metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "audit",
			Name:      "blocks_appended_total",
			Help:      "Audit blocks appended, by record kind",
		}, []string{"kind"}),
		appendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "audit",
			Name:      "append_errors_total",
			Help:      "Records that could not be encoded for hashing",
		}),
		retained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "farmtwin",
			Subsystem: "audit",
			Name:      "blocks_retained",
			Help:      "Blocks currently held in the retention window",
		}),
	}
	reg.MustRegister(m.appended, m.appendErrors, m.retained)
	return m
}

func (m *Metrics) recordAppend(kind string, retained int) {
	if m == nil {
		return
	}
	m.appended.WithLabelValues(kind).Inc()
	m.retained.Set(float64(retained))
}

func (m *Metrics) recordError() {
	if m == nil {
		return
	}
	m.appendErrors.Inc()
}
