package simulation

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	MinVariance = 0.8
	MaxVariance = 1.2
)

// Variance yields the race-day factor applied to a single entry.
type Variance interface {
	Next() float64
}

type uniformVariance struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewUniformVariance returns a goroutine-safe source of factors uniformly
// distributed in [MinVariance, MaxVariance]. A seed of 0 uses the current time.
func NewUniformVariance(seed uint64) Variance {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &uniformVariance{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (u *uniformVariance) Next() float64 {
	u.mu.Lock()
	f := u.rnd.Float64()
	u.mu.Unlock()
	return MinVariance + (MaxVariance-MinVariance)*f
}

// FixedVariance always returns the same factor
type FixedVariance float64

func (f FixedVariance) Next() float64 {
	return float64(f)
}

type sequenceVariance struct {
	mu      sync.Mutex
	factors []float64
	idx     int
}

// SequenceVariance returns the given factors in order, starting over at the end.
func SequenceVariance(factors ...float64) Variance {
	if len(factors) == 0 {
		factors = []float64{1.0}
	}
	return &sequenceVariance{factors: factors}
}

func (s *sequenceVariance) Next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.factors[s.idx%len(s.factors)]
	s.idx++
	return f
}
