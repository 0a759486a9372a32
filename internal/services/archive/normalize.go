package archive

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

const Measurement = "sensor_reading"

// ReadingToPoint maps a processed reading onto one Influx point. Identity goes
// into tags, measured values into fields.
func ReadingToPoint(r messages.ProcessedReading) *write.Point {
	tags := map[string]string{
		"type":    string(r.Type),
		"quality": string(r.QualityLevel),
	}
	if r.SensorID != "" {
		tags["sensor_id"] = r.SensorID
	}
	if r.ZoneID != "" {
		tags["zone"] = r.ZoneID
	}
	if r.Unit != "" {
		tags["unit"] = r.Unit
	}

	fields := map[string]interface{}{
		"value":            r.Value,
		"confidence_score": r.ConfidenceScore,
	}
	if r.Location != nil {
		fields["latitude"] = r.Location.Latitude
		fields["longitude"] = r.Location.Longitude
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = r.ProcessedAt
	}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}
