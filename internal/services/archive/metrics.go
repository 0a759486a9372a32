package archive

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	points  *prometheus.CounterVec
	dropped prometheus.Counter
}

// NewMetrics registers the archive collectors. A nil registerer yields nil metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "archive",
			Name:      "points_total",
			Help:      "Points handed to InfluxDB, by result",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "archive",
			Name:      "dropped_total",
			Help:      "Readings dropped because the export queue was full",
		}),
	}
	reg.MustRegister(m.points, m.dropped)
	return m
}

func (m *Metrics) recordWrite(n int, err error) {
	if m == nil {
		return
	}
	result := "written"
	if err != nil {
		result = "failed"
	}
	m.points.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) recordDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
