package evo

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"islandga/internal/rng"
)

// vecIndividual is a real valued test individual with a pluggable fitness.
type vecIndividual struct {
	genes   []float64
	lineage Lineage
	fitness *FitnessCell
	eval    func([]float64) float64
}

func sphere(genes []float64) float64 {
	sum := 0.0
	for _, g := range genes {
		sum += g * g
	}
	return sum
}

func newVec(eval func([]float64) float64, genes ...float64) *vecIndividual {
	ind := &vecIndividual{genes: genes, eval: eval, lineage: Lineage{Birth: InitialBirth}}
	ind.fitness = NewFitnessCell(func() float64 { return eval(ind.genes) })
	return ind
}

// fixed returns an individual whose fitness is f and whose single gene is f.
func fixed(f float64) *vecIndividual {
	return newVec(func(g []float64) float64 { return g[0] }, f)
}

func fixedBorn(f float64, birth int) Individual {
	return fixed(f).WithLineage(Lineage{Birth: birth})
}

func fixedPopulation(values ...float64) []Individual {
	out := make([]Individual, len(values))
	for i, v := range values {
		out[i] = fixed(v)
	}
	return out
}

func (v *vecIndividual) VariableCount() int { return len(v.genes) }

func (v *vecIndividual) Fitness() float64 { return v.fitness.Value() }

func (v *vecIndividual) Lineage() Lineage { return v.lineage }

func (v *vecIndividual) Float64At(i int) float64 { return v.genes[i] }

func (v *vecIndividual) WithLineage(lineage Lineage) Individual {
	cp := *v
	cp.lineage = lineage
	return &cp
}

func (v *vecIndividual) derive(genes []float64) *vecIndividual {
	out := newVec(v.eval, genes...)
	out.lineage = v.lineage
	return out
}

func (v *vecIndividual) Mutate(src rng.Source, probability, scaleFactor float64) Individual {
	genes := make([]float64, len(v.genes))
	copy(genes, v.genes)
	for i := range genes {
		if src.Float64() < probability {
			genes[i] += src.NormFloat64() * math.Max(scaleFactor, 1e-6)
		}
	}
	return v.derive(genes)
}

func (v *vecIndividual) CrossoverDiscrete(vector []int, parents []Individual) (Individual, error) {
	genes := make([]float64, len(v.genes))
	for i := range genes {
		genes[i] = parents[vector[i]].(*vecIndividual).genes[i]
	}
	return v.derive(genes), nil
}

func (v *vecIndividual) CrossoverFuzzy(weights [][]float64, parents []Individual) (Individual, error) {
	genes := make([]float64, len(v.genes))
	for p, row := range weights {
		pg := parents[p].(*vecIndividual).genes
		for i, w := range row {
			genes[i] += w * pg[i]
		}
	}
	return v.derive(genes), nil
}

func (v *vecIndividual) Fingerprint() string {
	return strings.Join(v.GeneTokens(), ",")
}

func (v *vecIndividual) GeneTokens() []string {
	out := make([]string, len(v.genes))
	for i, g := range v.genes {
		out[i] = strconv.FormatFloat(g, 'g', -1, 64)
	}
	return out
}

// vecPrototype draws genes uniformly from [-limit, limit].
type vecPrototype struct {
	n     int
	limit float64
	eval  func([]float64) float64
}

func (p vecPrototype) VariableCount() int { return p.n }

func (p vecPrototype) Create(src rng.Source) Individual {
	genes := make([]float64, p.n)
	for i := range genes {
		genes[i] = (src.Float64()*2 - 1) * p.limit
	}
	return newVec(p.eval, genes...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sphereBuilder returns a builder for a small quiet sphere run that never
// stops on fitness.
func sphereBuilder(vars, population int, seed uint64) *Builder {
	return NewBuilder().
		Prototype(vecPrototype{n: vars, limit: 5, eval: sphere}).
		PopulationCount(population).
		TargetFitness(math.Inf(-1)).
		Seed(seed).
		Logger(discardLogger())
}

func genesOf(ind Individual) string {
	return fmt.Sprint(ind.(*vecIndividual).genes)
}
