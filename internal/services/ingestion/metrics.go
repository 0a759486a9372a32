package ingestion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	readings        *prometheus.CounterVec
	stageFailures   *prometheus.CounterVec
	defaulted       *prometheus.CounterVec
	confidence      prometheus.Histogram
	zonesUpdated    prometheus.Counter
	unknownZone     prometheus.Counter
	controls        *prometheus.CounterVec
	processDuration prometheus.Histogram
}

// NewMetrics registers the pipeline collectors. A nil registerer yields nil metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "readings_total",
			Help:      "Readings processed, by outcome",
		}, []string{"status", "type"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "stage_failures_total",
			Help:      "Readings stopped by a failing stage",
		}, []string{"stage"}),
		defaulted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "defaulted_fields_total",
			Help:      "Payload fields filled in by the decoder",
		}, []string{"field"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "confidence_score",
			Help:      "Distribution of reading confidence scores",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
		}),
		zonesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "zone_updates_total",
			Help:      "Zone fields written by readings",
		}),
		unknownZone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "unmatched_readings_total",
			Help:      "Readings that matched no zone field",
		}),
		controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "control_commands_total",
			Help:      "Irrigation control commands, by outcome",
		}, []string{"outcome"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "farmtwin",
			Subsystem: "ingestion",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing one reading",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
	}
	reg.MustRegister(m.readings, m.stageFailures, m.defaulted, m.confidence,
		m.zonesUpdated, m.unknownZone, m.controls, m.processDuration)
	return m
}

func (m *Metrics) recordResult(res ProcessingResult, took time.Duration) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(string(res.Status), string(res.Reading.Type)).Inc()
	if res.Status == StatusFailed {
		m.stageFailures.WithLabelValues(string(res.Stage)).Inc()
	}
	if res.ConfidenceScore > 0 {
		m.confidence.Observe(res.ConfidenceScore)
	}
	m.processDuration.Observe(took.Seconds())
}

func (m *Metrics) recordZones(n int) {
	if m == nil {
		return
	}
	if n == 0 {
		m.unknownZone.Inc()
		return
	}
	m.zonesUpdated.Add(float64(n))
}

func (m *Metrics) recordDefaulted(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.defaulted.WithLabelValues(f).Inc()
	}
}

func (m *Metrics) recordControl(outcome string) {
	if m == nil {
		return
	}
	m.controls.WithLabelValues(outcome).Inc()
}
