package worker

import (
	"math/rand"
	"sync"
)

// jitter produces a rate multiplier that drifts smoothly around 1.0 within
// ±amplitude. Each call advances a spring-damper toward a target that is
// occasionally re-drawn at random.
type jitter struct {
	amplitude float64
	rng       *rand.Rand
	mu        sync.Mutex

	current  float64
	target   float64
	velocity float64
}

func newJitter(amplitude float64, seed int64) *jitter {
	return &jitter{
		amplitude: amplitude,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (j *jitter) multiplier() float64 {
	if j == nil || j.amplitude <= 0 {
		return 1.0
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.rng.Float64() < 0.1 {
		j.target = (j.rng.Float64()*2 - 1) * j.amplitude
	}

	const (
		spring  = 0.1
		damping = 0.3
	)
	j.velocity = j.velocity*damping + spring*(j.target-j.current)
	j.current += j.velocity

	if j.current > j.amplitude {
		j.current = j.amplitude
		j.velocity = 0
	}
	if j.current < -j.amplitude {
		j.current = -j.amplitude
		j.velocity = 0
	}

	return 1.0 + j.current
}
