package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
)

// ErrMalformedPayload is returned when a payload is not a JSON object at all.
// Missing or mistyped fields inside an object are defaulted instead.
var ErrMalformedPayload = errors.New("malformed reading payload")

// GeoPoint is the optional location reported by a sensor.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SensorReading is one observation as sent by a producer.
type SensorReading struct {
	SensorID  string               `json:"sensor_id"`
	Type      entities.ReadingType `json:"type"`
	ZoneID    string               `json:"zone"`
	Value     float64              `json:"value"`
	Unit      string               `json:"unit"`
	Timestamp time.Time            `json:"timestamp"`
	Status    string               `json:"status,omitempty"`
	Location  *GeoPoint            `json:"location,omitempty"`
}

// Decoded is a reading together with the names of the fields that were
// missing or unusable and got a default value.
type Decoded struct {
	Reading   SensorReading
	Defaulted []string
}

// WasDefaulted reports whether field was filled in by the decoder.
func (d Decoded) WasDefaulted(field string) bool {
	for _, f := range d.Defaulted {
		if f == field {
			return true
		}
	}
	return false
}

// DecodeReading parses an untrusted payload. Numbers may arrive as strings,
// "zone_id" and "zone" are both accepted, and anything missing is defaulted
// and reported in Decoded.Defaulted. now is used for a missing timestamp.
func DecodeReading(payload []byte, now time.Time) (Decoded, error) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if m == nil {
		return Decoded{}, fmt.Errorf("%w: null payload", ErrMalformedPayload)
	}
	return DecodeFields(m, now), nil
}

// DecodeFields applies the same defaulting rules as DecodeReading to an
// already parsed object.
func DecodeFields(m map[string]any, now time.Time) Decoded {
	var d Decoded
	r := &d.Reading

	if s, ok := stringField(m, "sensor_id", "sensorId", "id"); ok {
		r.SensorID = s
	} else {
		d.Defaulted = append(d.Defaulted, "sensor_id")
	}
	if s, ok := stringField(m, "type"); ok {
		r.Type = entities.ReadingType(strings.ToLower(s))
	} else {
		d.Defaulted = append(d.Defaulted, "type")
	}
	if s, ok := stringField(m, "zone", "zone_id"); ok {
		r.ZoneID = s
	} else {
		d.Defaulted = append(d.Defaulted, "zone")
	}
	if v, ok := numberField(m["value"]); ok {
		r.Value = v
	} else {
		d.Defaulted = append(d.Defaulted, "value")
	}
	if s, ok := stringField(m, "unit"); ok {
		r.Unit = s
	} else {
		r.Unit = r.Type.Unit()
		d.Defaulted = append(d.Defaulted, "unit")
	}
	if t, ok := timeField(m["timestamp"]); ok {
		r.Timestamp = t
	} else {
		r.Timestamp = now
		d.Defaulted = append(d.Defaulted, "timestamp")
	}
	if s, ok := stringField(m, "status"); ok {
		r.Status = s
	}
	if loc, ok := m["location"].(map[string]any); ok {
		lat, okLat := numberField(loc["latitude"])
		lon, okLon := numberField(loc["longitude"])
		if okLat && okLon {
			r.Location = &GeoPoint{Latitude: lat, Longitude: lon}
		} else {
			d.Defaulted = append(d.Defaulted, "location")
		}
	}
	return d
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func numberField(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(x, ",", ".")), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func timeField(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case float64:
		// unix seconds, or milliseconds when too large to be seconds
		if x > 1e12 {
			return time.UnixMilli(int64(x)).UTC(), true
		}
		if x > 0 {
			sec, frac := math.Modf(x)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
		}
	}
	return time.Time{}, false
}
