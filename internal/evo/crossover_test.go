package evo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandga/internal/rng"
)

func crossoverParents(parents, vars int) []Individual {
	out := make([]Individual, parents)
	for p := range out {
		genes := make([]float64, vars)
		for g := range genes {
			genes[g] = float64(p*100 + g)
		}
		out[p] = newVec(sphere, genes...)
	}
	return out
}

func assertColumnsSumToOne(t *testing.T, m [][]float64) {
	t.Helper()
	for g := range m[0] {
		sum := 0.0
		for p := range m {
			assert.GreaterOrEqual(t, m[p][g], 0.0)
			sum += m[p][g]
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "column %d", g)
	}
}

func TestDiscreteCrossoverShapes(t *testing.T) {
	src := rng.New(21)
	for _, parents := range []int{2, 3, 5} {
		for _, vars := range []int{1, 2, 7, 30} {
			ps := crossoverParents(parents, vars)
			for _, c := range []DiscreteCrossover{
				ScatteredDiscreteCrossover{Parents: parents, CheckClones: true},
				SinglePointDiscreteCrossover{Parents: parents, CheckClones: true},
				SinglePointDiscreteCrossover{Parents: parents},
			} {
				t.Run(fmt.Sprintf("%s/%d/%d", c.Name(), parents, vars), func(t *testing.T) {
					vec := c.Vector(src, ps)
					require.Len(t, vec, vars)
					for _, p := range vec {
						assert.GreaterOrEqual(t, p, 0)
						assert.Less(t, p, parents)
					}
				})
			}
		}
	}
}

func TestSinglePointVectorIsContiguous(t *testing.T) {
	src := rng.New(8)
	ps := crossoverParents(3, 20)
	for i := 0; i < 50; i++ {
		vec := SinglePointDiscreteCrossover{Parents: 3}.Vector(src, ps)
		for g := 1; g < len(vec); g++ {
			assert.GreaterOrEqual(t, vec[g], vec[g-1], "vector %v", vec)
		}
	}
}

func TestFuzzyCrossoverColumnsSumToOne(t *testing.T) {
	src := rng.New(13)
	for _, parents := range []int{2, 3, 4} {
		for _, vars := range []int{1, 3, 12} {
			ps := crossoverParents(parents, vars)
			for _, c := range []FuzzyCrossover{
				ScatteredFuzzyCrossover{Parents: parents, CheckClones: true},
				ScatteredFuzzyCrossover{Parents: parents},
				SinglePointFuzzyCrossover{Parents: parents, CheckClones: true},
				ScatteredFitnessFuzzyCrossover{Parents: parents},
				ScatteredFitnessFuzzyCrossover{Parents: parents, Scaling: TopScaling{Fraction: 0.5}},
			} {
				t.Run(fmt.Sprintf("%s/%d/%d", c.Name(), parents, vars), func(t *testing.T) {
					m, err := c.Matrix(src, ps)
					require.NoError(t, err)
					require.Len(t, m, parents)
					for _, row := range m {
						require.Len(t, row, vars)
					}
					assertColumnsSumToOne(t, m)
				})
			}
		}
	}
}

func TestCheckClonesAvoidsSingleParentChild(t *testing.T) {
	src := rng.New(99)
	for _, vars := range []int{2, 4, 9} {
		ps := crossoverParents(2, vars)
		for i := 0; i < 200; i++ {
			assert.False(t, isDiscreteClone(ScatteredDiscreteCrossover{Parents: 2, CheckClones: true}.Vector(src, ps)))
			assert.False(t, isDiscreteClone(SinglePointDiscreteCrossover{Parents: 2, CheckClones: true}.Vector(src, ps)))
			m, err := ScatteredFuzzyCrossover{Parents: 2, CheckClones: true}.Matrix(src, ps)
			require.NoError(t, err)
			assert.False(t, isFuzzyClone(m))
		}
	}
}

func TestFuzzyCloneMeansOneParentHeaviestEverywhere(t *testing.T) {
	assert.True(t, isFuzzyClone([][]float64{{0.6, 0.7}, {0.4, 0.3}}))
	assert.True(t, isFuzzyClone([][]float64{{0.2, 0.45}, {0.8, 0.55}}))
	assert.False(t, isFuzzyClone([][]float64{{0.6, 0.4}, {0.4, 0.6}}))
}

func TestScatteredFitnessFuzzyWeightsFitterParent(t *testing.T) {
	better := newVec(sphere, 1, 1)
	worse := newVec(sphere, 3, 3)
	m, err := ScatteredFitnessFuzzyCrossover{Parents: 2}.Matrix(rng.New(1), []Individual{worse, better})
	require.NoError(t, err)
	for g := 0; g < 2; g++ {
		assert.Greater(t, m[1][g], m[0][g])
		assert.Equal(t, m[0][0], m[0][g])
	}
}

func TestCrossoverDispatchesByKind(t *testing.T) {
	src := rng.New(4)
	ps := crossoverParents(2, 6)

	child, err := Crossover(src, Discrete(ScatteredDiscreteCrossover{Parents: 2, CheckClones: true}), ps)
	require.NoError(t, err)
	genes := child.(*vecIndividual).genes
	for g, v := range genes {
		assert.Contains(t, []float64{float64(g), float64(100 + g)}, v)
	}

	child, err = Crossover(src, Fuzzy(SinglePointFuzzyCrossover{Parents: 2, CheckClones: true}), ps)
	require.NoError(t, err)
	assert.Len(t, child.(*vecIndividual).genes, 6)

	_, err = Crossover(src, Discrete(ScatteredDiscreteCrossover{Parents: 2}), nil)
	assert.Error(t, err)
}

func TestCrossoverStrategyValidate(t *testing.T) {
	assert.ErrorIs(t, CrossoverStrategy{}.validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Discrete(ScatteredDiscreteCrossover{Parents: 1}).validate(), ErrInvalidConfig)
	assert.NoError(t, Fuzzy(ScatteredFuzzyCrossover{Parents: 3}).validate())

	s := Fuzzy(ScatteredFuzzyCrossover{Parents: 3})
	assert.Equal(t, CrossoverKindFuzzy, s.Kind())
	assert.Equal(t, "scattered_fuzzy", s.Name())
	assert.Equal(t, 3, s.ParentCount())
	assert.Equal(t, "fuzzy", s.Kind().String())
}

func TestCrossoverConstructorsRejectSingleParent(t *testing.T) {
	_, err := NewScatteredDiscrete(1, true)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSinglePointDiscrete(1, true)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewScatteredFuzzy(1, true)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewSinglePointFuzzy(1, true)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewScatteredFitnessFuzzy(1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFuzzyToDiscrete(t *testing.T) {
	m := [][]float64{
		{0.7, 0.1, 0.5},
		{0.3, 0.9, 0.5},
	}
	assert.Equal(t, []int{0, 1, 0}, FuzzyToDiscrete(m))
	assert.Nil(t, FuzzyToDiscrete(nil))
}

func TestRunLengthsCoverAllGenes(t *testing.T) {
	src := rng.New(6)
	for _, n := range []int{1, 2, 5, 17} {
		for _, parents := range []int{2, 3, 6} {
			runs := runLengths(src, n, parents)
			total := 0
			for _, r := range runs {
				assert.GreaterOrEqual(t, r, 0)
				total += r
			}
			assert.Equal(t, n, total)
		}
	}
}
