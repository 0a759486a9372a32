package entities

import "time"

// WeatherZone is the zone id used by shared weather-station sensors. A reading
// addressed to it updates the matching field on every zone.
const WeatherZone = "weather"

// Geometry places a zone on the farm map.
type Geometry struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Zone is the live state of one field of the farm.
type Zone struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Crop             string    `json:"crop" yaml:"crop"`
	Area             string    `json:"area" yaml:"area"` // e.g. "10 hectares"
	Position         Geometry  `json:"position" yaml:"position"`
	Health           float64   `json:"health" yaml:"health"`
	SoilMoisture     float64   `json:"soil_moisture" yaml:"soil_moisture"` // %
	Temperature      float64   `json:"temperature" yaml:"temperature"`     // °C
	PH               float64   `json:"ph" yaml:"ph"`
	IrrigationActive bool      `json:"irrigation_active" yaml:"irrigation_active"`
	LastIrrigation   time.Time `json:"last_irrigation" yaml:"last_irrigation"`
}

// SetMetric writes the field matching t. It reports false when the zone has no
// field for that reading type (humidity, unknown types).
func (z *Zone) SetMetric(t ReadingType, value float64) bool {
	switch t {
	case SoilMoisture:
		z.SoilMoisture = value
	case Temperature:
		z.Temperature = value
	case PH:
		z.PH = value
	default:
		return false
	}
	return true
}

// Metric returns the current value of the field matching t.
func (z Zone) Metric(t ReadingType) (float64, bool) {
	switch t {
	case SoilMoisture:
		return z.SoilMoisture, true
	case Temperature:
		return z.Temperature, true
	case PH:
		return z.PH, true
	}
	return 0, false
}
