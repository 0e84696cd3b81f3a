package runner

import (
	"math/rand"
	"sync"

	"github.com/sesh/internal/config"
)

// Picker chooses scenario requests at random in proportion to their
// weights. It is safe for concurrent use.
type Picker struct {
	mu          sync.Mutex
	rng         *rand.Rand
	requests    []config.Request
	totalWeight int
}

// NewPicker builds a picker over requests. Non-positive weights count as 1.
func NewPicker(requests []config.Request, seed int64) *Picker {
	p := &Picker{rng: rand.New(rand.NewSource(seed))}
	for _, r := range requests {
		if r.Weight <= 0 {
			r.Weight = 1
		}
		p.totalWeight += r.Weight
		p.requests = append(p.requests, r)
	}
	return p
}

// Pick returns a request chosen by weight.
func (p *Picker) Pick() config.Request {
	if len(p.requests) == 0 {
		return config.Request{}
	}

	p.mu.Lock()
	n := p.rng.Intn(p.totalWeight)
	p.mu.Unlock()

	cumulative := 0
	for _, r := range p.requests {
		cumulative += r.Weight
		if n < cumulative {
			return r
		}
	}
	return p.requests[0]
}
