package prototype

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"islandga/internal/evo"
	"islandga/internal/rng"
)

// IntConfig describes an integer valued problem. Range semantics match
// Float64Config; sampled and blended values are rounded.
type IntConfig struct {
	Ranges  []Range
	Bounds  []Range
	Fitness func(values []int) float64
}

type IntPrototype struct {
	ranges  []Range
	bounds  []Range
	fitness func([]int) float64
}

func NewIntPrototype(cfg IntConfig) (*IntPrototype, error) {
	if cfg.Fitness == nil {
		return nil, errors.New("fitness function is required")
	}
	if err := validateRanges(cfg.Ranges, cfg.Bounds); err != nil {
		return nil, err
	}
	return &IntPrototype{
		ranges:  slices.Clone(cfg.Ranges),
		bounds:  slices.Clone(cfg.Bounds),
		fitness: cfg.Fitness,
	}, nil
}

func (p *IntPrototype) VariableCount() int { return len(p.ranges) }

func (p *IntPrototype) Create(src rng.Source) evo.Individual {
	values := make([]int, len(p.ranges))
	for i, r := range p.ranges {
		lo, hi := int(math.Ceil(r.Min)), int(math.Floor(r.Max))
		if hi < lo {
			values[i] = int(math.Round(r.Min))
			continue
		}
		values[i] = lo + src.IntN(hi-lo+1)
	}
	return p.New(values)
}

// New wraps values, which the individual takes ownership of.
func (p *IntPrototype) New(values []int) *IntIndividual {
	return &IntIndividual{
		base: base{
			fitness:     evo.NewFitnessCell(func() float64 { return p.fitness(values) }),
			lineage:     evo.Lineage{Birth: evo.InitialBirth, Origin: evo.OriginInitialPopulation},
			fingerprint: intFingerprint(values),
		},
		proto:  p,
		values: values,
	}
}

func (p *IntPrototype) inBounds(i, v int) bool {
	return p.bounds == nil || p.bounds[i].Contains(float64(v))
}

type IntIndividual struct {
	base
	proto  *IntPrototype
	values []int
}

func (ind *IntIndividual) VariableCount() int { return len(ind.values) }

func (ind *IntIndividual) IntAt(i int) int { return ind.values[i] }

func (ind *IntIndividual) Float64At(i int) float64 { return float64(ind.values[i]) }

func (ind *IntIndividual) Values() []int { return slices.Clone(ind.values) }

func (ind *IntIndividual) WithLineage(lineage evo.Lineage) evo.Individual {
	out := *ind
	out.lineage = lineage
	return &out
}

// Mutate moves each selected gene by a rounded gaussian step, at least one
// unit, resampled to stay in bounds.
func (ind *IntIndividual) Mutate(src rng.Source, probability, scaleFactor float64) evo.Individual {
	values := slices.Clone(ind.values)
	changed := false
	for i, v := range values {
		if src.Float64() >= probability {
			continue
		}
		width := ind.proto.ranges[i].Width() * scaleFactor
		step := func() int {
			d := int(math.Round(src.NormFloat64() * width))
			if d == 0 {
				d = 1
				if src.Bool() {
					d = -1
				}
			}
			return v + d
		}
		next := step()
		for attempt := 0; !ind.proto.inBounds(i, next) && attempt < maxConstraintResamples; attempt++ {
			next = step()
		}
		if !ind.proto.inBounds(i, next) {
			next = int(ind.proto.bounds[i].Clamp(float64(next)))
		}
		if next != v {
			changed = true
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

func (ind *IntIndividual) CrossoverDiscrete(vector []int, parents []evo.Individual) (evo.Individual, error) {
	if err := checkParents(len(ind.values), len(vector), parents); err != nil {
		return nil, err
	}
	values := make([]int, len(vector))
	for i, p := range vector {
		view, ok := parents[p].(evo.DiscreteView)
		if !ok {
			return nil, fmt.Errorf("%w: parent %d has no integer genes", ErrParentMismatch, p)
		}
		values[i] = view.IntAt(i)
	}
	return ind.proto.New(values), nil
}

func (ind *IntIndividual) CrossoverFuzzy(weights [][]float64, parents []evo.Individual) (evo.Individual, error) {
	if err := checkWeights(len(ind.values), weights, parents); err != nil {
		return nil, err
	}
	blend := make([]float64, len(ind.values))
	for p, parent := range parents {
		view, ok := parent.(evo.DiscreteView)
		if !ok {
			return nil, fmt.Errorf("%w: parent %d has no integer genes", ErrParentMismatch, p)
		}
		for i := range blend {
			blend[i] += weights[p][i] * float64(view.IntAt(i))
		}
	}
	values := make([]int, len(blend))
	for i, v := range blend {
		values[i] = int(math.Round(v))
	}
	return ind.proto.New(values), nil
}

func (ind *IntIndividual) GeneTokens() []string {
	out := make([]string, len(ind.values))
	for i, v := range ind.values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
