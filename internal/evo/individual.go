package evo

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"strconv"
	"sync"

	"islandga/internal/rng"
)

// InitialBirth is the birth generation of every member of a seed population.
const InitialBirth = -1

var ErrUnsupportedCrossover = errors.New("crossover category not supported by individual")

type Origin int

const (
	OriginInitialPopulation Origin = iota
	OriginCrossover
	OriginMutation
	OriginForceCloneMutation
	OriginMigrationInitial
	OriginMigrationCrossover
	OriginMigrationMutation
)

func (o Origin) String() string {
	switch o {
	case OriginInitialPopulation:
		return "initial_population"
	case OriginCrossover:
		return "crossover"
	case OriginMutation:
		return "mutation"
	case OriginForceCloneMutation:
		return "force_clone_mutation"
	case OriginMigrationInitial:
		return "migration_initial"
	case OriginMigrationCrossover:
		return "migration_crossover"
	case OriginMigrationMutation:
		return "migration_mutation"
	default:
		return "unknown"
	}
}

// Lineage records when and how an individual was produced.
type Lineage struct {
	Birth  int
	Origin Origin
}

// Individual is an immutable candidate solution. Lower fitness is better.
//
// Fingerprint must encode every gene that contributes to fitness; two
// individuals with equal fingerprints are treated as clones.
type Individual interface {
	VariableCount() int
	Fitness() float64
	Lineage() Lineage
	WithLineage(lineage Lineage) Individual
	Mutate(src rng.Source, probability, scaleFactor float64) Individual
	CrossoverDiscrete(vector []int, parents []Individual) (Individual, error)
	CrossoverFuzzy(weights [][]float64, parents []Individual) (Individual, error)
	Fingerprint() string
	GeneTokens() []string
}

// NumericView exposes real valued genes.
type NumericView interface {
	Float64At(index int) float64
}

// DiscreteView exposes integer genes.
type DiscreteView interface {
	IntAt(index int) int
}

// BoolView exposes boolean genes.
type BoolView interface {
	BoolAt(index int) bool
}

// Prototype produces random members of an initial population.
type Prototype interface {
	VariableCount() int
	Create(src rng.Source) Individual
}

// FitnessCell memoizes a pure fitness function. It is shared between copies
// of an individual that only differ in lineage.
type FitnessCell struct {
	once  sync.Once
	calc  func() float64
	value float64
}

func NewFitnessCell(calc func() float64) *FitnessCell {
	return &FitnessCell{calc: calc}
}

func (c *FitnessCell) Value() float64 {
	c.once.Do(func() {
		c.value = c.calc()
		c.calc = nil
	})
	return c.value
}

// Tokens flattens an individual into birth, fitness and gene values.
func Tokens(ind Individual) []string {
	genes := ind.GeneTokens()
	out := make([]string, 0, len(genes)+2)
	out = append(out,
		strconv.Itoa(ind.Lineage().Birth),
		strconv.FormatFloat(ind.Fitness(), 'g', -1, 64),
	)
	return append(out, genes...)
}

// compareFitness orders ascending with NaN last.
func compareFitness(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return cmp.Compare(a, b)
}

// SortByFitness sorts population in place, best first. Equal fitness keeps
// the existing order.
func SortByFitness(population []Individual) {
	slices.SortStableFunc(population, func(a, b Individual) int {
		return compareFitness(a.Fitness(), b.Fitness())
	})
}

// IsSorted reports whether population is ordered best first.
func IsSorted(population []Individual) bool {
	return slices.IsSortedFunc(population, func(a, b Individual) int {
		return compareFitness(a.Fitness(), b.Fitness())
	})
}

func bestFitness(populations [][]Individual) float64 {
	best := math.Inf(1)
	for _, pop := range populations {
		if len(pop) > 0 && compareFitness(pop[0].Fitness(), best) < 0 {
			best = pop[0].Fitness()
		}
	}
	return best
}

func fitnessValues(population []Individual) []float64 {
	out := make([]float64, len(population))
	for i, ind := range population {
		out[i] = ind.Fitness()
	}
	return out
}
