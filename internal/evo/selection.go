package evo

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"islandga/internal/rng"
)

// Selection draws count parents, with repetition, from a scaled population.
type Selection interface {
	Name() string
	Select(src rng.Source, scaled []ScaledFitness, count int) []Individual
}

// RouletteSelection performs independent draws proportional to scaled mass.
type RouletteSelection struct{}

func (RouletteSelection) Name() string {
	return "roulette"
}

func (RouletteSelection) Select(src rng.Source, scaled []ScaledFitness, count int) []Individual {
	if len(scaled) == 0 || count <= 0 {
		return nil
	}
	cumulative := cumulativeMass(scaledValues(scaled))
	out := make([]Individual, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, scaled[spin(src, cumulative)].Individual)
	}
	return out
}

// StochasticUniformSelection lays count equally spaced pointers over the
// cumulative mass, shifted by a single random offset.
type StochasticUniformSelection struct{}

func (StochasticUniformSelection) Name() string {
	return "stochastic_uniform"
}

func (StochasticUniformSelection) Select(src rng.Source, scaled []ScaledFitness, count int) []Individual {
	if len(scaled) == 0 || count <= 0 {
		return nil
	}
	cumulative := cumulativeMass(scaledValues(scaled))
	total := cumulative[len(cumulative)-1]
	if total <= 0 {
		return UniformSelection{}.Select(src, scaled, count)
	}
	step := total / float64(count)
	pointer := src.Float64() * step
	out := make([]Individual, 0, count)
	idx := 0
	for i := 0; i < count; i++ {
		for idx < len(cumulative)-1 && cumulative[idx] <= pointer {
			idx++
		}
		out = append(out, scaled[idx].Individual)
		pointer += step
	}
	return out
}

// RemainderSelection emits floor(scaled) copies of every individual and
// fills the remaining slots by roulette over the fractional parts.
type RemainderSelection struct{}

func (RemainderSelection) Name() string {
	return "remainder"
}

func (RemainderSelection) Select(src rng.Source, scaled []ScaledFitness, count int) []Individual {
	if len(scaled) == 0 || count <= 0 {
		return nil
	}
	out := make([]Individual, 0, count)
	fractions := make([]float64, len(scaled))
	for i, sf := range scaled {
		whole, frac := math.Modf(math.Max(sf.Scaled, 0))
		fractions[i] = frac
		for c := 0; c < int(whole) && len(out) < count; c++ {
			out = append(out, sf.Individual)
		}
	}
	if len(out) == count {
		return out
	}
	if floats.Sum(fractions) <= 0 {
		fractions = scaledValues(scaled)
	}
	cumulative := cumulativeMass(fractions)
	for len(out) < count {
		out = append(out, scaled[spin(src, cumulative)].Individual)
	}
	return out
}

// TournamentSelection keeps the fittest of Size distinct uniformly sampled
// individuals, first encountered winning ties.
type TournamentSelection struct {
	Size   int
	Logger *slog.Logger
}

func NewTournamentSelection(size int) (TournamentSelection, error) {
	if size < 2 {
		return TournamentSelection{}, invalidConfig("tournament size must be >= 2, got %d", size)
	}
	return TournamentSelection{Size: size}, nil
}

func (TournamentSelection) Name() string {
	return "tournament"
}

func (s TournamentSelection) Select(src rng.Source, scaled []ScaledFitness, count int) []Individual {
	n := len(scaled)
	if n == 0 || count <= 0 {
		return nil
	}
	size := s.Size
	if size < 2 {
		size = 2
	}
	if size > n {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("tournament size exceeds population, clamping", "size", size, "population", n)
		size = n
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	out := make([]Individual, 0, count)
	for i := 0; i < count; i++ {
		for j := 0; j < size; j++ {
			k := j + src.IntN(n-j)
			indices[j], indices[k] = indices[k], indices[j]
		}
		best := scaled[indices[0]].Individual
		for _, idx := range indices[1:size] {
			candidate := scaled[idx].Individual
			if compareFitness(candidate.Fitness(), best.Fitness()) < 0 {
				best = candidate
			}
		}
		out = append(out, best)
	}
	return out
}

// UniformSelection ignores scaled values and draws uniformly.
type UniformSelection struct{}

func (UniformSelection) Name() string {
	return "uniform"
}

func (UniformSelection) Select(src rng.Source, scaled []ScaledFitness, count int) []Individual {
	if len(scaled) == 0 || count <= 0 {
		return nil
	}
	out := make([]Individual, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, scaled[src.IntN(len(scaled))].Individual)
	}
	return out
}

func cumulativeMass(values []float64) []float64 {
	clamped := make([]float64, len(values))
	for i, v := range values {
		if v > 0 && !math.IsNaN(v) {
			clamped[i] = v
		}
	}
	return floats.CumSum(make([]float64, len(clamped)), clamped)
}

// spin returns the index whose cumulative interval contains a uniform draw.
func spin(src rng.Source, cumulative []float64) int {
	total := cumulative[len(cumulative)-1]
	if total <= 0 {
		return src.IntN(len(cumulative))
	}
	r := src.Float64() * total
	idx := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
	if idx >= len(cumulative) {
		idx = len(cumulative) - 1
	}
	return idx
}
