package messages

// PredictionType identifies which forecast a Prediction carries. The zero
// value means no forecast exists for the reading type.
type PredictionType string

const (
	SoilMoistureForecast PredictionType = "soil_moisture_forecast"
	TemperatureForecast  PredictionType = "temperature_forecast"
)

// Trend is the predicted short-term direction of a metric.
type Trend string

const (
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
)

// Prediction is a short-horizon forecast derived from a single reading.
type Prediction struct {
	Type             PredictionType `json:"type,omitempty"`
	Current          float64        `json:"current"`
	SixHours         float64        `json:"6_hours"`
	TwentyFourHours  *float64       `json:"24_hours,omitempty"`
	Trend            Trend          `json:"trend,omitempty"`
	Urgent           bool           `json:"urgent"`
	IrrigationNeeded bool           `json:"irrigation_needed,omitempty"`
	HeatStressRisk   bool           `json:"heat_stress_risk,omitempty"`
	Confidence       float64        `json:"confidence"`
}

// Empty reports whether p is the "no forecast available" prediction.
func (p Prediction) Empty() bool { return p.Type == "" }

// HealthTrend is the qualitative outlook for a zone's health score.
type HealthTrend string

const (
	HealthImproving HealthTrend = "improving"
	HealthStable    HealthTrend = "stable"
	HealthDeclining HealthTrend = "declining"
)

// MoistureOutlook is the multi-horizon soil moisture forecast for a zone.
type MoistureOutlook struct {
	SixHours        float64 `json:"6_hours"`
	TwentyFourHours float64 `json:"24_hours"`
	FortyEightHours float64 `json:"48_hours"`
}

// HealthOutlook forecasts the zone health score a week ahead.
type HealthOutlook struct {
	Current       float64     `json:"current"`
	Trend         HealthTrend `json:"trend"`
	SevenDayValue float64     `json:"7_day_forecast"`
}

// IrrigationAdvice is the recommendation attached to a zone forecast.
type IrrigationAdvice struct {
	Needed                  bool    `json:"needed"`
	Priority                string  `json:"priority"` // high | medium | low
	SuggestedDurationMinute float64 `json:"suggested_duration"`
}

// ZoneForecast is the ad-hoc forecast served for a single zone.
type ZoneForecast struct {
	ZoneID     string           `json:"zone_id"`
	Moisture   MoistureOutlook  `json:"soil_moisture_forecast"`
	Health     HealthOutlook    `json:"health_trend"`
	Irrigation IrrigationAdvice `json:"irrigation_recommendations"`
	Confidence float64          `json:"confidence"`
}
