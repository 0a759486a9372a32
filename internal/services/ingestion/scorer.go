package ingestion

import (
	"math"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

// Range is the expected operating band of a reading type.
type Range struct {
	Min, Max float64
}

var (
	expectedRanges = map[entities.ReadingType]Range{
		entities.SoilMoisture: {10, 60},
		entities.Temperature:  {15, 45},
		entities.Humidity:     {30, 90},
		entities.PH:           {5.5, 8.5},
	}
	defaultRange = Range{0, 100}
)

const (
	rangeWeight       = 0.7
	reliabilityWeight = 0.3
	reliabilityLow    = 0.8
	reliabilityHigh   = 0.95
	minConfidence     = 0.1
)

// ExpectedRange returns the operating band used to score t.
func ExpectedRange(t entities.ReadingType) Range {
	if r, ok := expectedRanges[t]; ok {
		return r
	}
	return defaultRange
}

// Scorer rates how much a reading can be trusted.
type Scorer struct {
	rnd Random
}

func NewScorer(rnd Random) *Scorer {
	if rnd == nil {
		rnd = DefaultRandom
	}
	return &Scorer{rnd: rnd}
}

// RangeConfidence is 1 inside the expected band and falls linearly with the
// distance to the nearer bound, reaching the 0.1 floor half a band-width out.
func (s *Scorer) RangeConfidence(t entities.ReadingType, v float64) float64 {
	r := ExpectedRange(t)
	var d float64
	switch {
	case v < r.Min:
		d = r.Min - v
	case v > r.Max:
		d = v - r.Max
	default:
		return 1
	}
	return math.Max(minConfidence, 1-d/(0.5*(r.Max-r.Min)))
}

// Score combines range confidence with a simulated instrument reliability in
// [0.8, 0.95]. The result is in [0.1, 1] with three decimals.
func (s *Scorer) Score(r messages.SensorReading) float64 {
	rc := s.RangeConfidence(r.Type, r.Value)
	reliability := uniform(s.rnd, reliabilityLow, reliabilityHigh)
	score := rangeWeight*rc + reliabilityWeight*reliability
	score = math.Min(1, math.Max(minConfidence, score))
	return round(score, 3)
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
