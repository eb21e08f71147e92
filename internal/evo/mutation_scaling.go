package evo

import (
	"math"
	"sync"
)

const richardFactor = 15.0

// MutationScaling maps run progress onto a mutation scale factor, usually in
// [0,1]. Implementations carrying state reset it in Reset.
type MutationScaling interface {
	Name() string
	ScaleFactor(generation, maxGeneration int, bestFitness, targetFitness float64, staleGenerations int) float64
	Reset()
}

// cloneableScaling is implemented by stateful scalings so each sub-population
// can own an independent instance.
type cloneableScaling interface {
	Clone() MutationScaling
}

type ConstantScaling struct{}

func (ConstantScaling) Name() string { return "constant" }

func (ConstantScaling) ScaleFactor(int, int, float64, float64, int) float64 { return 1 }

func (ConstantScaling) Reset() {}

// LinearGenerationScaling decays linearly from 1 to 0 over the run.
type LinearGenerationScaling struct{}

func (LinearGenerationScaling) Name() string { return "linear_generation" }

func (LinearGenerationScaling) ScaleFactor(generation, maxGeneration int, _, _ float64, _ int) float64 {
	if maxGeneration <= 0 {
		return 1
	}
	return clamp01(1 - float64(generation)/float64(maxGeneration))
}

func (LinearGenerationScaling) Reset() {}

// RichardScaling follows a flipped logistic curve over the generation budget:
// flat near 1 early, steep in the middle, flat near 0 at the end.
type RichardScaling struct{}

func (RichardScaling) Name() string { return "richard" }

func (RichardScaling) ScaleFactor(generation, maxGeneration int, _, _ float64, _ int) float64 {
	return richard(float64(generation), float64(maxGeneration))
}

func (RichardScaling) Reset() {}

func richard(x, limit float64) float64 {
	if limit <= 0 {
		return 1
	}
	exp := richardFactor - x/(limit/(2*richardFactor))
	return 1 - 1/(1+math.Exp(exp))
}

// EllipseScaling follows a quarter ellipse from 1 to 0.
type EllipseScaling struct{}

func (EllipseScaling) Name() string { return "ellipse" }

func (EllipseScaling) ScaleFactor(generation, maxGeneration int, _, _ float64, _ int) float64 {
	if maxGeneration <= 0 {
		return 1
	}
	g := math.Min(float64(generation), float64(maxGeneration))
	m := float64(maxGeneration)
	return math.Sqrt(m*m-g*g) / m
}

func (EllipseScaling) Reset() {}

// SinScaling oscillates between 0 and 1, Revolutions times over the run.
type SinScaling struct {
	Revolutions float64
}

func (SinScaling) Name() string { return "sin" }

func (s SinScaling) ScaleFactor(generation, maxGeneration int, _, _ float64, _ int) float64 {
	if maxGeneration <= 0 {
		return 1
	}
	rev := s.Revolutions
	if rev <= 0 {
		rev = 1
	}
	x := float64(generation) / float64(maxGeneration) * 2 * math.Pi * rev
	return math.Sin(x+math.Pi/2)/2 + 0.5
}

func (SinScaling) Reset() {}

// gapMemo remembers the first observed distance to the target fitness.
type gapMemo struct {
	mu       sync.Mutex
	firstGap float64
	set      bool
}

// remaining returns the fraction of the first gap still left.
func (m *gapMemo) remaining(best, target float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	gap := best - target
	if !m.set {
		m.firstGap = gap
		m.set = true
	}
	if m.firstGap <= 0 || math.IsNaN(gap) {
		return 0
	}
	return clamp01(gap / m.firstGap)
}

func (m *gapMemo) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.firstGap = 0
	m.set = false
}

// LinearFitnessScaling scales proportionally to the remaining share of the
// first observed fitness gap.
type LinearFitnessScaling struct {
	memo gapMemo
}

func NewLinearFitnessScaling() *LinearFitnessScaling {
	return &LinearFitnessScaling{}
}

func (*LinearFitnessScaling) Name() string { return "linear_fitness" }

func (s *LinearFitnessScaling) ScaleFactor(_, _ int, bestFitness, targetFitness float64, _ int) float64 {
	return s.memo.remaining(bestFitness, targetFitness)
}

func (s *LinearFitnessScaling) Reset() { s.memo.reset() }

func (*LinearFitnessScaling) Clone() MutationScaling { return NewLinearFitnessScaling() }

// RichardFitnessScaling applies the Richard curve to the percentage of the
// first observed fitness gap already closed.
type RichardFitnessScaling struct {
	memo gapMemo
}

func NewRichardFitnessScaling() *RichardFitnessScaling {
	return &RichardFitnessScaling{}
}

func (*RichardFitnessScaling) Name() string { return "richard_fitness" }

func (s *RichardFitnessScaling) ScaleFactor(_, _ int, bestFitness, targetFitness float64, _ int) float64 {
	closed := 100 - s.memo.remaining(bestFitness, targetFitness)*100
	return richard(closed, 100)
}

func (s *RichardFitnessScaling) Reset() { s.memo.reset() }

func (*RichardFitnessScaling) Clone() MutationScaling { return NewRichardFitnessScaling() }

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
