package prototype

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"islandga/internal/evo"
	"islandga/internal/rng"
)

type BoolConfig struct {
	Length  int
	Fitness func(values []bool) float64
}

type BoolPrototype struct {
	length  int
	fitness func([]bool) float64
}

func NewBoolPrototype(cfg BoolConfig) (*BoolPrototype, error) {
	if cfg.Fitness == nil {
		return nil, errors.New("fitness function is required")
	}
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("length must be > 0, got %d", cfg.Length)
	}
	return &BoolPrototype{length: cfg.Length, fitness: cfg.Fitness}, nil
}

func (p *BoolPrototype) VariableCount() int { return p.length }

func (p *BoolPrototype) Create(src rng.Source) evo.Individual {
	values := make([]bool, p.length)
	for i := range values {
		values[i] = src.Bool()
	}
	return p.New(values)
}

func (p *BoolPrototype) New(values []bool) *BoolIndividual {
	return &BoolIndividual{
		base: base{
			fitness:     evo.NewFitnessCell(func() float64 { return p.fitness(values) }),
			lineage:     evo.Lineage{Birth: evo.InitialBirth, Origin: evo.OriginInitialPopulation},
			fingerprint: boolFingerprint(values),
		},
		proto:  p,
		values: values,
	}
}

type BoolIndividual struct {
	base
	proto  *BoolPrototype
	values []bool
}

func (ind *BoolIndividual) VariableCount() int { return len(ind.values) }

func (ind *BoolIndividual) BoolAt(i int) bool { return ind.values[i] }

func (ind *BoolIndividual) Values() []bool { return slices.Clone(ind.values) }

func (ind *BoolIndividual) WithLineage(lineage evo.Lineage) evo.Individual {
	out := *ind
	out.lineage = lineage
	return &out
}

// Mutate flips each bit with the given probability. Bits carry no magnitude,
// so scaleFactor is ignored.
func (ind *BoolIndividual) Mutate(src rng.Source, probability, _ float64) evo.Individual {
	values := slices.Clone(ind.values)
	changed := false
	for i := range values {
		if src.Float64() < probability {
			values[i] = !values[i]
			changed = true
		}
	}
	if !changed {
		return ind
	}
	child := ind.proto.New(values)
	child.lineage = ind.lineage
	return child
}

func (ind *BoolIndividual) CrossoverDiscrete(vector []int, parents []evo.Individual) (evo.Individual, error) {
	if err := checkParents(len(ind.values), len(vector), parents); err != nil {
		return nil, err
	}
	values := make([]bool, len(vector))
	for i, p := range vector {
		view, ok := parents[p].(evo.BoolView)
		if !ok {
			return nil, fmt.Errorf("%w: parent %d has no boolean genes", ErrParentMismatch, p)
		}
		values[i] = view.BoolAt(i)
	}
	return ind.proto.New(values), nil
}

func (ind *BoolIndividual) CrossoverFuzzy([][]float64, []evo.Individual) (evo.Individual, error) {
	return nil, fmt.Errorf("%w: boolean genes cannot be blended", evo.ErrUnsupportedCrossover)
}

func (ind *BoolIndividual) GeneTokens() []string {
	out := make([]string, len(ind.values))
	for i, v := range ind.values {
		out[i] = strconv.FormatBool(v)
	}
	return out
}

func boolFingerprint(values []bool) string {
	buf := make([]byte, len(values))
	for i, v := range values {
		if v {
			buf[i] = 1
		}
	}
	return string(buf)
}
