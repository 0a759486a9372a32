package ingestion

import (
	"math"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

const (
	moistureFloor = 10
	moistureCeil  = 60

	irrigationThreshold = 25.0
	heatStressThreshold = 35.0

	moistureConfidence    = 0.87
	temperatureConfidence = 0.82
	zoneConfidence        = 0.89

	// temperature trend dead band, °C
	tempTrendBand = 0.5
)

// Predictor produces short-horizon forecasts from a single value.
type Predictor struct {
	rnd Random
}

func NewPredictor(rnd Random) *Predictor {
	if rnd == nil {
		rnd = DefaultRandom
	}
	return &Predictor{rnd: rnd}
}

// Supports reports whether Predict yields a forecast for t.
func (p *Predictor) Supports(t entities.ReadingType) bool {
	return t == entities.SoilMoisture || t == entities.Temperature
}

// Predict forecasts the next hours of a metric. Types without a model give
// the empty prediction.
func (p *Predictor) Predict(t entities.ReadingType, current float64) messages.Prediction {
	switch t {
	case entities.SoilMoisture:
		return p.moisture(current)
	case entities.Temperature:
		return p.temperature(current)
	}
	return messages.Prediction{}
}

func (p *Predictor) moisture(v float64) messages.Prediction {
	trend := p.moistureTrend()

	var six, day float64
	switch trend {
	case messages.TrendDecreasing:
		six = v - uniform(p.rnd, 2, 5)
		day = six - uniform(p.rnd, 3, 8)
	case messages.TrendIncreasing:
		six = v + uniform(p.rnd, 2, 5)
		day = six + uniform(p.rnd, 3, 8)
	default:
		six = v + uniform(p.rnd, -1, 1)
		day = v + uniform(p.rnd, -2, 2)
	}
	six = clampMoisture(round(six, 1))
	day = clampMoisture(round(day, 1))

	needed := day < irrigationThreshold
	return messages.Prediction{
		Type:             messages.SoilMoistureForecast,
		Current:          v,
		SixHours:         six,
		TwentyFourHours:  &day,
		Trend:            trend,
		Urgent:           needed,
		IrrigationNeeded: needed,
		Confidence:       moistureConfidence,
	}
}

// moistureTrend picks decreasing 60%, stable 30%, increasing 10%.
func (p *Predictor) moistureTrend() messages.Trend {
	r := p.rnd.Float64()
	switch {
	case r < 0.6:
		return messages.TrendDecreasing
	case r < 0.9:
		return messages.TrendStable
	default:
		return messages.TrendIncreasing
	}
}

func (p *Predictor) temperature(v float64) messages.Prediction {
	six := round(v+uniform(p.rnd, -2, 3), 1)
	trend := messages.TrendStable
	switch {
	case six-v > tempTrendBand:
		trend = messages.TrendIncreasing
	case v-six > tempTrendBand:
		trend = messages.TrendDecreasing
	}
	heat := six > heatStressThreshold
	return messages.Prediction{
		Type:           messages.TemperatureForecast,
		Current:        v,
		SixHours:       six,
		Trend:          trend,
		Urgent:         heat,
		HeatStressRisk: heat,
		Confidence:     temperatureConfidence,
	}
}

var healthTrends = []messages.HealthTrend{
	messages.HealthImproving,
	messages.HealthStable,
	messages.HealthDeclining,
}

// ForecastZone builds the multi-day outlook for a zone from its current state.
// Moisture horizons are floored at 10 but not capped.
func (p *Predictor) ForecastZone(z entities.Zone) messages.ZoneForecast {
	m := z.SoilMoisture
	outlook := messages.MoistureOutlook{
		SixHours:        floorMoisture(round(m-uniform(p.rnd, 1, 3), 1)),
		TwentyFourHours: floorMoisture(round(m-uniform(p.rnd, 3, 8), 1)),
		FortyEightHours: floorMoisture(round(m-uniform(p.rnd, 5, 12), 1)),
	}

	trend := healthTrends[int(p.rnd.Float64()*float64(len(healthTrends)))%len(healthTrends)]
	health := messages.HealthOutlook{
		Current:       z.Health,
		Trend:         trend,
		SevenDayValue: round(z.Health+uniform(p.rnd, -5, 5), 1),
	}

	advice := messages.IrrigationAdvice{
		Needed:                  m < 30,
		Priority:                "low",
		SuggestedDurationMinute: math.Max(30, 60-m),
	}
	switch {
	case m < 20:
		advice.Priority = "high"
	case m < 30:
		advice.Priority = "medium"
	}

	return messages.ZoneForecast{
		ZoneID:     z.ID,
		Moisture:   outlook,
		Health:     health,
		Irrigation: advice,
		Confidence: zoneConfidence,
	}
}

func floorMoisture(v float64) float64 {
	return math.Max(moistureFloor, v)
}

func clampMoisture(v float64) float64 {
	return math.Min(moistureCeil, math.Max(moistureFloor, v))
}
