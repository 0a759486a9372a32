package ingestion

import "math/rand/v2"

// Random is the one source of randomness shared by scoring and forecasting.
// Float64 returns a value in [0, 1).
type Random interface {
	Float64() float64
}

// RandomFunc adapts a function to Random.
type RandomFunc func() float64

func (f RandomFunc) Float64() float64 { return f() }

// DefaultRandom draws from the process-wide math/rand/v2 source.
var DefaultRandom Random = RandomFunc(rand.Float64)

// uniform draws from [lo, hi).
func uniform(r Random, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}
