package scenario

import (
	"math/rand"
	"sync"
	"time"
)

// random is a rand.Rand shared by an engine's goroutines.
type random struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newRandom(r *rand.Rand) *random {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &random{r: r}
}

func (r *random) uniform(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.r.Float64()*(hi-lo)
}

func (r *random) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}

// between returns a duration uniformly drawn from p.
func (r *random) between(p Pacing) time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(r.uniform(0, float64(p.Max-p.Min)))
}

func pick[T any](r *random, items []T) T {
	return items[r.intn(len(items))]
}
