package evo

import (
	"fmt"
	"math"
	"slices"

	"islandga/internal/rng"
)

const maxCloneResamples = 64

type CrossoverKind int

const (
	CrossoverKindDiscrete CrossoverKind = iota + 1
	CrossoverKindFuzzy
)

func (k CrossoverKind) String() string {
	switch k {
	case CrossoverKindDiscrete:
		return "discrete"
	case CrossoverKindFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// DiscreteCrossover yields one parent index per gene.
type DiscreteCrossover interface {
	Name() string
	ParentCount() int
	Vector(src rng.Source, parents []Individual) []int
}

// FuzzyCrossover yields a [parent][gene] weight matrix whose columns sum to 1.
type FuzzyCrossover interface {
	Name() string
	ParentCount() int
	Matrix(src rng.Source, parents []Individual) ([][]float64, error)
}

// CrossoverStrategy holds exactly one of a discrete or fuzzy crossover.
type CrossoverStrategy struct {
	kind     CrossoverKind
	discrete DiscreteCrossover
	fuzzy    FuzzyCrossover
}

func Discrete(c DiscreteCrossover) CrossoverStrategy {
	return CrossoverStrategy{kind: CrossoverKindDiscrete, discrete: c}
}

func Fuzzy(c FuzzyCrossover) CrossoverStrategy {
	return CrossoverStrategy{kind: CrossoverKindFuzzy, fuzzy: c}
}

func (s CrossoverStrategy) Kind() CrossoverKind {
	return s.kind
}

func (s CrossoverStrategy) Name() string {
	switch s.kind {
	case CrossoverKindDiscrete:
		return s.discrete.Name()
	case CrossoverKindFuzzy:
		return s.fuzzy.Name()
	default:
		return ""
	}
}

func (s CrossoverStrategy) ParentCount() int {
	switch s.kind {
	case CrossoverKindDiscrete:
		return s.discrete.ParentCount()
	case CrossoverKindFuzzy:
		return s.fuzzy.ParentCount()
	default:
		return 0
	}
}

func (s CrossoverStrategy) validate() error {
	switch {
	case s.kind == CrossoverKindDiscrete && s.discrete != nil:
	case s.kind == CrossoverKindFuzzy && s.fuzzy != nil:
	default:
		return invalidConfig("crossover strategy is required")
	}
	if s.ParentCount() < 2 {
		return invalidConfig("crossover %s requires at least 2 parents, got %d", s.Name(), s.ParentCount())
	}
	return nil
}

// Crossover combines parents into a child using the first parent's
// implementation of the strategy's category.
func Crossover(src rng.Source, strategy CrossoverStrategy, parents []Individual) (Individual, error) {
	if len(parents) == 0 {
		return nil, fmt.Errorf("crossover %s: no parents", strategy.Name())
	}
	switch strategy.kind {
	case CrossoverKindDiscrete:
		return parents[0].CrossoverDiscrete(strategy.discrete.Vector(src, parents), parents)
	case CrossoverKindFuzzy:
		weights, err := strategy.fuzzy.Matrix(src, parents)
		if err != nil {
			return nil, fmt.Errorf("crossover %s: %w", strategy.Name(), err)
		}
		return parents[0].CrossoverFuzzy(weights, parents)
	default:
		return nil, fmt.Errorf("crossover: unknown kind %d", strategy.kind)
	}
}

// ScatteredDiscreteCrossover assigns every gene to a uniformly random parent.
type ScatteredDiscreteCrossover struct {
	Parents     int
	CheckClones bool
}

func NewScatteredDiscrete(parents int, checkClones bool) (ScatteredDiscreteCrossover, error) {
	if parents < 2 {
		return ScatteredDiscreteCrossover{}, invalidConfig("scattered discrete crossover requires at least 2 parents, got %d", parents)
	}
	return ScatteredDiscreteCrossover{Parents: parents, CheckClones: checkClones}, nil
}

func (ScatteredDiscreteCrossover) Name() string { return "scattered_discrete" }

func (c ScatteredDiscreteCrossover) ParentCount() int { return c.Parents }

func (c ScatteredDiscreteCrossover) Vector(src rng.Source, parents []Individual) []int {
	n := parents[0].VariableCount()
	p := c.Parents
	sample := func() []int {
		vec := make([]int, n)
		for i := range vec {
			vec[i] = src.IntN(p)
		}
		return vec
	}
	vec := sample()
	if !c.CheckClones || !isDiscreteClone(vec) {
		return vec
	}
	if n >= 4 {
		for attempt := 0; attempt < maxCloneResamples; attempt++ {
			if vec = sample(); !isDiscreteClone(vec) {
				return vec
			}
		}
	}
	patchDiscrete(src, vec, p)
	return vec
}

// SinglePointDiscreteCrossover splits the genes into one contiguous run per
// parent, run lengths proportional to random shares.
type SinglePointDiscreteCrossover struct {
	Parents     int
	CheckClones bool
}

func NewSinglePointDiscrete(parents int, checkClones bool) (SinglePointDiscreteCrossover, error) {
	if parents < 2 {
		return SinglePointDiscreteCrossover{}, invalidConfig("single point discrete crossover requires at least 2 parents, got %d", parents)
	}
	return SinglePointDiscreteCrossover{Parents: parents, CheckClones: checkClones}, nil
}

func (SinglePointDiscreteCrossover) Name() string { return "single_point_discrete" }

func (c SinglePointDiscreteCrossover) ParentCount() int { return c.Parents }

func (c SinglePointDiscreteCrossover) Vector(src rng.Source, parents []Individual) []int {
	n := parents[0].VariableCount()
	vec := runsToVector(runLengths(src, n, c.Parents))
	if !c.CheckClones || !isDiscreteClone(vec) {
		return vec
	}
	if n >= 4 {
		for attempt := 0; attempt < maxCloneResamples; attempt++ {
			if vec = runsToVector(runLengths(src, n, c.Parents)); !isDiscreteClone(vec) {
				return vec
			}
		}
	}
	forceCut(src, vec, c.Parents)
	return vec
}

// ScatteredFuzzyCrossover draws independent uniform weights per parent and
// gene.
type ScatteredFuzzyCrossover struct {
	Parents     int
	CheckClones bool
}

func NewScatteredFuzzy(parents int, checkClones bool) (ScatteredFuzzyCrossover, error) {
	if parents < 2 {
		return ScatteredFuzzyCrossover{}, invalidConfig("scattered fuzzy crossover requires at least 2 parents, got %d", parents)
	}
	return ScatteredFuzzyCrossover{Parents: parents, CheckClones: checkClones}, nil
}

func (ScatteredFuzzyCrossover) Name() string { return "scattered_fuzzy" }

func (c ScatteredFuzzyCrossover) ParentCount() int { return c.Parents }

func (c ScatteredFuzzyCrossover) Matrix(src rng.Source, parents []Individual) ([][]float64, error) {
	n := parents[0].VariableCount()
	sample := func() [][]float64 {
		m := newMatrix(c.Parents, n)
		for p := range m {
			for g := range m[p] {
				m[p][g] = src.Float64()
			}
		}
		normalizeColumns(m)
		return m
	}
	m := sample()
	if !c.CheckClones || !isFuzzyClone(m) {
		return m, nil
	}
	if n >= 4 {
		for attempt := 0; attempt < maxCloneResamples; attempt++ {
			if m = sample(); !isFuzzyClone(m) {
				return m, nil
			}
		}
	}
	patchFuzzy(src, m)
	return m, nil
}

// SinglePointFuzzyCrossover is the run partition of SinglePointDiscrete
// expressed as a 0/1 weight matrix.
type SinglePointFuzzyCrossover struct {
	Parents     int
	CheckClones bool
}

func NewSinglePointFuzzy(parents int, checkClones bool) (SinglePointFuzzyCrossover, error) {
	if parents < 2 {
		return SinglePointFuzzyCrossover{}, invalidConfig("single point fuzzy crossover requires at least 2 parents, got %d", parents)
	}
	return SinglePointFuzzyCrossover{Parents: parents, CheckClones: checkClones}, nil
}

func (SinglePointFuzzyCrossover) Name() string { return "single_point_fuzzy" }

func (c SinglePointFuzzyCrossover) ParentCount() int { return c.Parents }

func (c SinglePointFuzzyCrossover) Matrix(src rng.Source, parents []Individual) ([][]float64, error) {
	vec := SinglePointDiscreteCrossover{Parents: c.Parents, CheckClones: c.CheckClones}.Vector(src, parents)
	return vectorToMatrix(vec, c.Parents), nil
}

// ScatteredFitnessFuzzyCrossover weights each parent by its share under
// Scaling with a single parent needed. Every gene column is identical.
type ScatteredFitnessFuzzyCrossover struct {
	Parents int
	Scaling FitnessScaling
}

func NewScatteredFitnessFuzzy(parents int, scaling FitnessScaling) (ScatteredFitnessFuzzyCrossover, error) {
	if parents < 2 {
		return ScatteredFitnessFuzzyCrossover{}, invalidConfig("scattered fitness fuzzy crossover requires at least 2 parents, got %d", parents)
	}
	return ScatteredFitnessFuzzyCrossover{Parents: parents, Scaling: scaling}, nil
}

func (ScatteredFitnessFuzzyCrossover) Name() string { return "scattered_fitness_fuzzy" }

func (c ScatteredFitnessFuzzyCrossover) ParentCount() int { return c.Parents }

func (c ScatteredFitnessFuzzyCrossover) Matrix(_ rng.Source, parents []Individual) ([][]float64, error) {
	scaling := c.Scaling
	if scaling == nil {
		scaling = RankScaling{}
	}
	order := make([]int, len(parents))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareFitness(parents[a].Fitness(), parents[b].Fitness())
	})
	sorted := make([]Individual, len(parents))
	for i, idx := range order {
		sorted[i] = parents[idx]
	}
	scaled, err := scaling.Scale(sorted, 1)
	if err != nil {
		return nil, err
	}
	weights := make([]float64, len(parents))
	for i, idx := range order {
		weights[idx] = scaled[i].Scaled
	}
	n := parents[0].VariableCount()
	m := newMatrix(len(parents), n)
	for p := range m {
		for g := range m[p] {
			m[p][g] = weights[p]
		}
	}
	normalizeColumns(m)
	return m, nil
}

// FuzzyToDiscrete resolves every column of a weight matrix to its heaviest
// parent.
func FuzzyToDiscrete(m [][]float64) []int {
	if len(m) == 0 {
		return nil
	}
	vec := make([]int, len(m[0]))
	for g := range vec {
		best := 0
		for p := 1; p < len(m); p++ {
			if m[p][g] > m[best][g] {
				best = p
			}
		}
		vec[g] = best
	}
	return vec
}

func isDiscreteClone(vec []int) bool {
	for _, v := range vec[min(1, len(vec)):] {
		if v != vec[0] {
			return false
		}
	}
	return true
}

func isFuzzyClone(m [][]float64) bool {
	return isDiscreteClone(FuzzyToDiscrete(m))
}

// otherParent picks a parent index next to current.
func otherParent(src rng.Source, current, parents int) int {
	switch {
	case current == 0:
		return 1 + src.IntN(parents-1)
	case current == parents-1:
		return src.IntN(parents - 1)
	case src.Bool():
		return current + 1
	default:
		return current - 1
	}
}

func patchDiscrete(src rng.Source, vec []int, parents int) {
	if len(vec) == 0 {
		return
	}
	g := src.IntN(len(vec))
	vec[g] = otherParent(src, vec[g], parents)
}

// forceCut reassigns a random suffix of a single-run vector to another parent.
func forceCut(src rng.Source, vec []int, parents int) {
	if len(vec) < 2 {
		patchDiscrete(src, vec, parents)
		return
	}
	cut := 1 + src.IntN(len(vec)-1)
	next := otherParent(src, vec[0], parents)
	for g := cut; g < len(vec); g++ {
		vec[g] = next
	}
}

func patchFuzzy(src rng.Source, m [][]float64) {
	vec := FuzzyToDiscrete(m)
	if len(vec) == 0 {
		return
	}
	g := src.IntN(len(vec))
	next := otherParent(src, vec[g], len(m))
	for p := range m {
		m[p][g] = 0
	}
	m[next][g] = 1
}

// runLengths splits n genes into one run per parent, proportional to random
// shares. Rounding shortfall goes to the last run.
func runLengths(src rng.Source, n, parents int) []int {
	shares := make([]float64, parents)
	sum := 0.0
	for i := range shares {
		shares[i] = src.Float64()
		sum += shares[i]
	}
	runs := make([]int, parents)
	total := 0
	for i, s := range shares {
		if sum > 0 {
			runs[i] = int(math.Round(float64(n) * s / sum))
		}
		total += runs[i]
	}
	runs[parents-1] += n - total
	for i := parents - 1; i > 0 && runs[i] < 0; i-- {
		runs[i-1] += runs[i]
		runs[i] = 0
	}
	return runs
}

func runsToVector(runs []int) []int {
	vec := make([]int, 0)
	for p, length := range runs {
		for i := 0; i < length; i++ {
			vec = append(vec, p)
		}
	}
	return vec
}

func vectorToMatrix(vec []int, parents int) [][]float64 {
	m := newMatrix(parents, len(vec))
	for g, p := range vec {
		m[p][g] = 1
	}
	return m
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func normalizeColumns(m [][]float64) {
	if len(m) == 0 {
		return
	}
	for g := range m[0] {
		sum := 0.0
		for p := range m {
			sum += m[p][g]
		}
		for p := range m {
			if sum > 0 {
				m[p][g] /= sum
			} else {
				m[p][g] = 1 / float64(len(m))
			}
		}
	}
}
