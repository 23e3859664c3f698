// Package rng provides the injectable random source used for scoring, mock
// data and document ids.
package rng

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the subset of *rand.Rand the application needs.
type Source interface {
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// locked serializes access to a *rand.Rand so one Source can be shared by
// concurrent pipeline runs.
type locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// New returns a deterministic Source seeded with seed.
func New(seed uint64) Source {
	return &locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Default returns a Source seeded from the wall clock.
func Default() Source {
	return New(uint64(time.Now().UnixNano()))
}

// Fixed is a Source that always returns the same fraction. IntN returns
// int(Frac*n); useful for pinning "random" output in tests.
type Fixed struct {
	Frac float64
}

// IntN returns int(Frac*n) clamped to [0, n).
func (f Fixed) IntN(n int) int {
	v := int(f.Frac * float64(n))
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Float64 returns Frac clamped to [0, 1).
func (f Fixed) Float64() float64 {
	if f.Frac >= 1 {
		return 0.9999999999
	}
	if f.Frac < 0 {
		return 0
	}
	return f.Frac
}
