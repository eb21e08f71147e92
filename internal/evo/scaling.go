package evo

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const defaultTopFraction = 0.4

var ErrArithmetic = errors.New("fitness scaling arithmetic error")

// ScaledFitness pairs an individual with its selection weight.
type ScaledFitness struct {
	Individual Individual
	Scaled     float64
}

// FitnessScaling converts a best-first population into selection weights
// that sum to parentsNeeded.
type FitnessScaling interface {
	Name() string
	Scale(population []Individual, parentsNeeded int) ([]ScaledFitness, error)
}

// RankScaling weights by 1/sqrt(rank). Equal fitness shares a rank.
type RankScaling struct{}

func (RankScaling) Name() string {
	return "rank"
}

func (RankScaling) Scale(population []Individual, parentsNeeded int) ([]ScaledFitness, error) {
	raw := make([]float64, len(population))
	rank := 1
	for i := range population {
		if i > 0 && population[i].Fitness() != population[i-1].Fitness() {
			rank = i + 1
		}
		raw[i] = 1 / math.Sqrt(float64(rank))
	}
	return pairScaled(population, normalizeTo(raw, parentsNeeded)), nil
}

// ProportionalScaling weights by the reciprocal of fitness.
type ProportionalScaling struct{}

func (ProportionalScaling) Name() string {
	return "proportional"
}

func (ProportionalScaling) Scale(population []Individual, parentsNeeded int) ([]ScaledFitness, error) {
	raw := make([]float64, len(population))
	zeros := 0
	for _, ind := range population {
		if ind.Fitness() == 0 {
			zeros++
		}
	}
	if zeros > 0 {
		share := float64(parentsNeeded) / float64(zeros)
		for i, ind := range population {
			if ind.Fitness() == 0 {
				raw[i] = share
			}
		}
		return pairScaled(population, raw), nil
	}

	for i, ind := range population {
		f := ind.Fitness()
		if f < 0 {
			return nil, fmt.Errorf("%w: negative fitness %g", ErrArithmetic, f)
		}
		raw[i] = 1 / f
	}
	sum := floats.Sum(raw)
	if math.IsInf(sum, 0) || math.IsNaN(sum) || sum == 0 {
		return nil, fmt.Errorf("%w: reciprocal fitness sum is %g", ErrArithmetic, sum)
	}
	floats.Scale(float64(parentsNeeded)/sum, raw)
	return pairScaled(population, raw), nil
}

// TopScaling shares parentsNeeded equally between the best Fraction of the
// population. A zero Fraction selects the single best individual.
type TopScaling struct {
	Fraction float64
}

func NewTopScaling(fraction float64) (TopScaling, error) {
	if fraction < 0 || fraction > 1 || math.IsNaN(fraction) {
		return TopScaling{}, fmt.Errorf("%w: top scaling fraction must be in [0,1], got %g", ErrInvalidConfig, fraction)
	}
	return TopScaling{Fraction: fraction}, nil
}

func (TopScaling) Name() string {
	return "top"
}

func (s TopScaling) Scale(population []Individual, parentsNeeded int) ([]ScaledFitness, error) {
	n := len(population)
	if n == 0 {
		return nil, nil
	}
	count := int(math.Round(float64(n) * s.Fraction))
	count = max(1, min(count, n))
	raw := make([]float64, n)
	share := float64(parentsNeeded) / float64(count)
	for i := 0; i < count; i++ {
		raw[i] = share
	}
	return pairScaled(population, raw), nil
}

// AgeScaling re-weights Base by 1/sqrt(ageRank) where the youngest
// individuals hold rank 1.
type AgeScaling struct {
	Base FitnessScaling
}

func (AgeScaling) Name() string {
	return "age"
}

func (s AgeScaling) Scale(population []Individual, parentsNeeded int) ([]ScaledFitness, error) {
	base := s.Base
	if base == nil {
		base = RankScaling{}
	}
	scaled, err := base.Scale(population, parentsNeeded)
	if err != nil {
		return nil, err
	}
	raw := make([]float64, len(scaled))
	for i, sf := range scaled {
		birth := sf.Individual.Lineage().Birth
		newer := 0
		for _, other := range scaled {
			if other.Individual.Lineage().Birth > birth {
				newer++
			}
		}
		raw[i] = sf.Scaled / math.Sqrt(float64(newer+1))
	}
	return pairScaled(population, normalizeTo(raw, parentsNeeded)), nil
}

func normalizeTo(raw []float64, total int) []float64 {
	if len(raw) == 0 {
		return raw
	}
	sum := floats.Sum(raw)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		for i := range raw {
			raw[i] = float64(total) / float64(len(raw))
		}
		return raw
	}
	floats.Scale(float64(total)/sum, raw)
	return raw
}

func pairScaled(population []Individual, values []float64) []ScaledFitness {
	out := make([]ScaledFitness, len(population))
	for i, ind := range population {
		out[i] = ScaledFitness{Individual: ind, Scaled: values[i]}
	}
	return out
}

func scaledValues(scaled []ScaledFitness) []float64 {
	out := make([]float64, len(scaled))
	for i, sf := range scaled {
		out[i] = sf.Scaled
	}
	return out
}
