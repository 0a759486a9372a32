package ingestion

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

func TestPredictMoistureTrends(t *testing.T) {
	tests := []struct {
		name     string
		draws    []float64
		current  float64
		trend    messages.Trend
		six, day float64
		irrigate bool
	}{
		{"decreasing", []float64{0.1, 0.5, 0.5}, 30, messages.TrendDecreasing, 26.5, 21, true},
		{"stable", []float64{0.7, 0.5, 0.5}, 30, messages.TrendStable, 30, 30, false},
		{"increasing", []float64{0.95, 0.5, 0.5}, 30, messages.TrendIncreasing, 33.5, 39, false},
		{"clamped low", []float64{0, 0.99, 0.99}, 12, messages.TrendDecreasing, 10, 10, true},
		{"clamped high", []float64{0.99, 0.99, 0.99}, 59, messages.TrendIncreasing, 60, 60, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPredictor(fixed(tc.draws...)).Predict(entities.SoilMoisture, tc.current)
			assert.Equal(t, messages.SoilMoistureForecast, p.Type)
			assert.Equal(t, tc.trend, p.Trend)
			assert.InDelta(t, tc.six, p.SixHours, 1e-9)
			require.NotNil(t, p.TwentyFourHours)
			assert.InDelta(t, tc.day, *p.TwentyFourHours, 1e-9)
			assert.Equal(t, tc.irrigate, p.IrrigationNeeded)
			assert.Equal(t, tc.irrigate, p.Urgent)
			assert.Equal(t, 0.87, p.Confidence)
		})
	}
}

func TestPredictMoistureAlwaysClamped(t *testing.T) {
	p := NewPredictor(rand.New(rand.NewPCG(7, 11)))
	for i := 0; i < 2000; i++ {
		pred := p.Predict(entities.SoilMoisture, float64(i%120)-10)
		assert.GreaterOrEqual(t, pred.SixHours, 10.0)
		assert.LessOrEqual(t, pred.SixHours, 60.0)
		assert.GreaterOrEqual(t, *pred.TwentyFourHours, 10.0)
		assert.LessOrEqual(t, *pred.TwentyFourHours, 60.0)
	}
}

func TestPredictTemperature(t *testing.T) {
	hot := NewPredictor(fixed(0.8)).Predict(entities.Temperature, 34)
	assert.Equal(t, messages.TemperatureForecast, hot.Type)
	assert.InDelta(t, 36.0, hot.SixHours, 1e-9)
	assert.True(t, hot.HeatStressRisk)
	assert.True(t, hot.Urgent)
	assert.Equal(t, messages.TrendIncreasing, hot.Trend)
	assert.Nil(t, hot.TwentyFourHours)
	assert.Equal(t, 0.82, hot.Confidence)

	cool := NewPredictor(fixed(0)).Predict(entities.Temperature, 30)
	assert.InDelta(t, 28.0, cool.SixHours, 1e-9)
	assert.False(t, cool.HeatStressRisk)
	assert.Equal(t, messages.TrendDecreasing, cool.Trend)
}

func TestPredictUnsupportedTypeIsEmpty(t *testing.T) {
	p := NewPredictor(fixed(0.5))
	assert.True(t, p.Predict(entities.Humidity, 60).Empty())
	assert.True(t, p.Predict(entities.PH, 7).Empty())
	assert.True(t, p.Predict("", 7).Empty())
	assert.False(t, p.Supports(entities.Humidity))
}

func TestForecastZone(t *testing.T) {
	p := NewPredictor(fixed(0.5))
	z := entities.Zone{ID: "fieldB", SoilMoisture: 22, Health: 72}

	f := p.ForecastZone(z)
	assert.Equal(t, "fieldB", f.ZoneID)
	assert.InDelta(t, 20.0, f.Moisture.SixHours, 1e-9)
	assert.InDelta(t, 16.5, f.Moisture.TwentyFourHours, 1e-9)
	assert.InDelta(t, 13.5, f.Moisture.FortyEightHours, 1e-9)
	assert.Equal(t, messages.HealthStable, f.Health.Trend)
	assert.InDelta(t, 72.0, f.Health.SevenDayValue, 1e-9)
	assert.True(t, f.Irrigation.Needed)
	assert.Equal(t, "medium", f.Irrigation.Priority)
	assert.Equal(t, 38.0, f.Irrigation.SuggestedDurationMinute)
	assert.Equal(t, 0.89, f.Confidence)

	dry := p.ForecastZone(entities.Zone{ID: "x", SoilMoisture: 15})
	assert.Equal(t, "high", dry.Irrigation.Priority)
	assert.Equal(t, 10.0, dry.Moisture.FortyEightHours)

	wet := p.ForecastZone(entities.Zone{ID: "y", SoilMoisture: 45})
	assert.False(t, wet.Irrigation.Needed)
	assert.Equal(t, "low", wet.Irrigation.Priority)
	assert.Equal(t, 30.0, wet.Irrigation.SuggestedDurationMinute)

	// readings outside the scoring band are accepted, so the outlook is not capped
	soaked := p.ForecastZone(entities.Zone{ID: "z", SoilMoisture: 80})
	assert.InDelta(t, 78.0, soaked.Moisture.SixHours, 1e-9)
	assert.InDelta(t, 74.5, soaked.Moisture.TwentyFourHours, 1e-9)
	assert.InDelta(t, 71.5, soaked.Moisture.FortyEightHours, 1e-9)
}
