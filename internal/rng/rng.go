// Package rng provides the random source capability used by every stochastic
// operator. A Source is not safe for concurrent use; each worker owns its own.
package rng

import "math/rand/v2"

type Source interface {
	Float64() float64
	IntN(n int) int
	NormFloat64() float64
	Bool() bool
	Shuffle(n int, swap func(i, j int))
}

type pcgSource struct {
	r *rand.Rand
}

// New returns a PCG backed source seeded with seed.
func New(seed uint64) Source {
	return Stream(seed, 0)
}

// Stream derives an independent, reproducible source for stream index of seed.
func Stream(seed uint64, stream int) Source {
	return &pcgSource{r: rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15^uint64(stream)))}
}

func (s *pcgSource) Float64() float64 { return s.r.Float64() }

func (s *pcgSource) IntN(n int) int { return s.r.IntN(n) }

func (s *pcgSource) NormFloat64() float64 { return s.r.NormFloat64() }

func (s *pcgSource) Bool() bool { return s.r.IntN(2) == 1 }

func (s *pcgSource) Shuffle(n int, swap func(i, j int)) { s.r.Shuffle(n, swap) }
