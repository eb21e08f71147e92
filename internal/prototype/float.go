package prototype

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"islandga/internal/evo"
	"islandga/internal/rng"
)

// Float64Config describes a real valued problem. Ranges bound the initial
// sampling and mutation step; optional Bounds are hard limits kept through
// mutation.
type Float64Config struct {
	Ranges  []Range
	Bounds  []Range
	Fitness func(values []float64) float64
}

type Float64Prototype struct {
	ranges  []Range
	bounds  []Range
	fitness func([]float64) float64
}

func NewFloat64Prototype(cfg Float64Config) (*Float64Prototype, error) {
	if cfg.Fitness == nil {
		return nil, errors.New("fitness function is required")
	}
	if err := validateRanges(cfg.Ranges, cfg.Bounds); err != nil {
		return nil, err
	}
	return &Float64Prototype{
		ranges:  slices.Clone(cfg.Ranges),
		bounds:  slices.Clone(cfg.Bounds),
		fitness: cfg.Fitness,
	}, nil
}

func (p *Float64Prototype) VariableCount() int { return len(p.ranges) }

func (p *Float64Prototype) Create(src rng.Source) evo.Individual {
	values := make([]float64, len(p.ranges))
	for i, r := range p.ranges {
		values[i] = r.Min + src.Float64()*r.Width()
	}
	return p.New(values)
}

// New wraps values, which the individual takes ownership of.
func (p *Float64Prototype) New(values []float64) *Float64Individual {
	return &Float64Individual{
		base: base{
			fitness:     evo.NewFitnessCell(func() float64 { return p.fitness(values) }),
			lineage:     evo.Lineage{Birth: evo.InitialBirth, Origin: evo.OriginInitialPopulation},
			fingerprint: float64Fingerprint(values),
		},
		proto:  p,
		values: values,
	}
}

func (p *Float64Prototype) inBounds(i int, v float64) bool {
	return p.bounds == nil || p.bounds[i].Contains(v)
}

type Float64Individual struct {
	base
	proto  *Float64Prototype
	values []float64
}

func (ind *Float64Individual) VariableCount() int { return len(ind.values) }

func (ind *Float64Individual) Float64At(i int) float64 { return ind.values[i] }

// Values returns a copy of the genes.
func (ind *Float64Individual) Values() []float64 { return slices.Clone(ind.values) }

func (ind *Float64Individual) WithLineage(lineage evo.Lineage) evo.Individual {
	out := *ind
	out.lineage = lineage
	return &out
}

// Mutate shifts each gene with the given probability by a gaussian step of
// scaleFactor times its initial range width, resampled to stay in bounds.
func (ind *Float64Individual) Mutate(src rng.Source, probability, scaleFactor float64) evo.Individual {
	values := slices.Clone(ind.values)
	changed := false
	for i, v := range values {
		if src.Float64() >= probability {
			continue
		}
		changed = true
		width := ind.proto.ranges[i].Width() * scaleFactor
		next := v + src.NormFloat64()*width
		for attempt := 0; !ind.proto.inBounds(i, next) && attempt < maxConstraintResamples; attempt++ {
			next = v + src.NormFloat64()*width
		}
		if !ind.proto.inBounds(i, next) {
			next = ind.proto.bounds[i].Clamp(next)
		}
		values[i] = next
	}
	if !changed {
		return ind
	}
	child := ind.proto.New(values)
	child.lineage = ind.lineage
	return child
}

func (ind *Float64Individual) CrossoverDiscrete(vector []int, parents []evo.Individual) (evo.Individual, error) {
	if err := checkParents(len(ind.values), len(vector), parents); err != nil {
		return nil, err
	}
	values := make([]float64, len(vector))
	for i, p := range vector {
		view, ok := parents[p].(evo.NumericView)
		if !ok {
			return nil, fmt.Errorf("%w: parent %d has no numeric genes", ErrParentMismatch, p)
		}
		values[i] = view.Float64At(i)
	}
	return ind.proto.New(values), nil
}

func (ind *Float64Individual) CrossoverFuzzy(weights [][]float64, parents []evo.Individual) (evo.Individual, error) {
	if err := checkWeights(len(ind.values), weights, parents); err != nil {
		return nil, err
	}
	values := make([]float64, len(ind.values))
	for p, parent := range parents {
		view, ok := parent.(evo.NumericView)
		if !ok {
			return nil, fmt.Errorf("%w: parent %d has no numeric genes", ErrParentMismatch, p)
		}
		for i := range values {
			values[i] += weights[p][i] * view.Float64At(i)
		}
	}
	return ind.proto.New(values), nil
}

func (ind *Float64Individual) GeneTokens() []string {
	out := make([]string, len(ind.values))
	for i, v := range ind.values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
