package sensor_simulator

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
)

// ====== Tunables ======
const (
	// gainPerMin: soil moisture points gained per minute while a zone irrigates.
	gainPerMin = 0.6

	// decayPerMin: how fast the irrigation boost fades once the valve is off.
	decayPerMin = 0.1

	// readings are reported around this point
	baseLatitude  = 12.9716
	baseLongitude = 77.5946
	jitterDegrees = 0.01
)

// Profile describes how one simulated sensor behaves over time.
type Profile struct {
	SensorID     string               `yaml:"id"`
	Type         entities.ReadingType `yaml:"type"`
	Zone         string               `yaml:"zone"`
	Base         float64              `yaml:"base_value"`
	Variation    float64              `yaml:"variation"`
	Trend        string               `yaml:"trend"`         // decreasing | increasing | daily_cycle | anything else is flat
	DailyPattern string               `yaml:"daily_pattern"` // morning_peak | afternoon_dip | noon_peak | inverse_temp
	Crop         string               `yaml:"crop_influence"`
}

// DefaultProfiles covers every sensor of the default farm.
func DefaultProfiles() []Profile {
	return []Profile{
		{SensorID: "SM001", Type: entities.SoilMoisture, Zone: "fieldA", Base: 35, Variation: 8, Trend: "decreasing", DailyPattern: "morning_peak", Crop: "rice"},
		{SensorID: "SM002", Type: entities.SoilMoisture, Zone: "fieldB", Base: 22, Variation: 6, Trend: "stable", DailyPattern: "afternoon_dip", Crop: "wheat"},
		{SensorID: "SM003", Type: entities.SoilMoisture, Zone: "fieldC", Base: 41, Variation: 5, Trend: "increasing", DailyPattern: "evening_stable", Crop: "vegetables"},
		{SensorID: "TH001", Type: entities.Temperature, Zone: entities.WeatherZone, Base: 28.5, Variation: 4, Trend: "daily_cycle", DailyPattern: "noon_peak", Crop: "general"},
		{SensorID: "HU001", Type: entities.Humidity, Zone: entities.WeatherZone, Base: 65, Variation: 10, Trend: "morning_high", DailyPattern: "inverse_temp", Crop: "general"},
		{SensorID: "PH001", Type: entities.PH, Zone: "fieldA", Base: 6.8, Variation: 0.3, Trend: "stable", DailyPattern: "minimal_change", Crop: "rice"},
		{SensorID: "PH002", Type: entities.PH, Zone: "fieldB", Base: 7.2, Variation: 0.4, Trend: "slight_increase", DailyPattern: "minimal_change", Crop: "wheat"},
	}
}

// LoadProfiles reads a YAML list of profiles.
func LoadProfiles(path string) ([]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var doc struct {
		Sensors []Profile `yaml:"sensors"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}
	if len(doc.Sensors) == 0 {
		return nil, fmt.Errorf("parse profiles %s: no sensors", path)
	}
	return doc.Sensors, nil
}

var cropInfluence = map[string]map[entities.ReadingType]float64{
	"rice":       {entities.SoilMoisture: 2, entities.Temperature: -0.5},
	"wheat":      {entities.SoilMoisture: -1, entities.Temperature: 0.3},
	"vegetables": {entities.SoilMoisture: 1.5, entities.PH: -0.1},
}

var physicalLimits = map[entities.ReadingType][2]float64{
	entities.SoilMoisture: {5, 65},
	entities.Temperature:  {10, 50},
	entities.Humidity:     {20, 95},
	entities.PH:           {5.0, 9.0},
}

type irrigation struct {
	on    bool
	since time.Time
	boost float64 // moisture points added on top of the profile
}

// DataGenerator produces readings from profiles. It keeps the start time for
// trends and the irrigation state of every zone it was told about.
type DataGenerator struct {
	mu    sync.Mutex
	rnd   ingestion.Random
	now   func() time.Time
	start time.Time
	zones map[string]*irrigation
}

func NewDataGenerator(rnd ingestion.Random, now func() time.Time) *DataGenerator {
	if rnd == nil {
		rnd = ingestion.DefaultRandom
	}
	if now == nil {
		now = time.Now
	}
	return &DataGenerator{rnd: rnd, now: now, start: now(), zones: make(map[string]*irrigation)}
}

// Next builds the next reading for p.
func (g *DataGenerator) Next(p Profile) messages.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	v := p.Base +
		g.trend(p.Trend, now) +
		dailyPattern(p.DailyPattern, now) +
		cropInfluence[p.Crop][p.Type] +
		g.uniform(-p.Variation/2, p.Variation/2)
	if p.Type == entities.SoilMoisture {
		v += g.boostLocked(p.Zone, now)
	}
	v = constrain(p.Type, v)

	return messages.SensorReading{
		SensorID:  p.SensorID,
		Type:      p.Type,
		ZoneID:    p.Zone,
		Value:     math.Round(v*100) / 100,
		Unit:      p.Type.Unit(),
		Timestamp: now.UTC(),
		Status:    "normal",
		Location: &messages.GeoPoint{
			Latitude:  baseLatitude + g.uniform(-jitterDegrees, jitterDegrees),
			Longitude: baseLongitude + g.uniform(-jitterDegrees, jitterDegrees),
		},
	}
}

// ApplyState records a valve change for zone. Moisture climbs while the valve
// is on and the gain fades after it closes.
func (g *DataGenerator) ApplyState(zone string, state entities.SensorState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	z, ok := g.zones[zone]
	if !ok {
		z = &irrigation{since: now}
		g.zones[zone] = z
	}
	z.boost = g.settle(z, now)
	z.on = state == entities.StateOn
	z.since = now
}

// Irrigating reports the last known valve state of zone.
func (g *DataGenerator) Irrigating(zone string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	z, ok := g.zones[zone]
	return ok && z.on
}

func (g *DataGenerator) boostLocked(zone string, now time.Time) float64 {
	z, ok := g.zones[zone]
	if !ok {
		return 0
	}
	return g.settle(z, now)
}

func (g *DataGenerator) settle(z *irrigation, now time.Time) float64 {
	minutes := math.Max(0, now.Sub(z.since).Minutes())
	if z.on {
		return z.boost + gainPerMin*minutes
	}
	return math.Max(0, z.boost-decayPerMin*minutes)
}

func (g *DataGenerator) trend(kind string, now time.Time) float64 {
	hours := now.Sub(g.start).Hours()
	switch kind {
	case "decreasing":
		return -hours * 0.5
	case "increasing":
		return hours * 0.3
	case "daily_cycle":
		return 3 * math.Sin(hours*math.Pi/12)
	}
	return 0
}

func (g *DataGenerator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rnd.Float64()
}

func dailyPattern(kind string, now time.Time) float64 {
	t := float64(now.Hour()) + float64(now.Minute())/60
	bell := func(peak, width float64) float64 { return math.Exp(-(t - peak) * (t - peak) / width) }
	switch kind {
	case "morning_peak":
		return 3 * bell(6, 8)
	case "afternoon_dip":
		return -2 * bell(14, 12)
	case "noon_peak":
		return 5 * bell(12, 8)
	case "inverse_temp":
		return -3 * bell(12, 8)
	}
	return 0
}

func constrain(t entities.ReadingType, v float64) float64 {
	lim, ok := physicalLimits[t]
	if !ok {
		return v
	}
	return math.Max(lim[0], math.Min(lim[1], v))
}

// WeatherEvent is an occasional forecast notice logged alongside readings.
type WeatherEvent struct {
	Type        string `json:"type"`
	Intensity   string `json:"intensity,omitempty"`
	DurationH   int    `json:"duration,omitempty"`
	Probability int    `json:"probability,omitempty"`
	Condition   string `json:"condition,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// WeatherEvents draws the events of one cycle: rain 5% of the time, a
// temperature alert 3% of the time.
func (g *DataGenerator) WeatherEvents() []WeatherEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	var events []WeatherEvent
	if g.rnd.Float64() < 0.05 {
		events = append(events, WeatherEvent{
			Type:        "rain_forecast",
			Intensity:   g.pick("light", "moderate", "heavy"),
			DurationH:   2 + g.intn(7),
			Probability: 60 + g.intn(36),
		})
	}
	if g.rnd.Float64() < 0.03 {
		events = append(events, WeatherEvent{
			Type:      "temperature_alert",
			Condition: g.pick("heat_wave", "cold_snap"),
			Severity:  g.pick("moderate", "high"),
		})
	}
	return events
}

func (g *DataGenerator) intn(n int) int {
	i := int(g.rnd.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func (g *DataGenerator) pick(opts ...string) string {
	return opts[g.intn(len(opts))]
}
