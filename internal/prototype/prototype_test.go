package prototype

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandga/internal/evo"
	"islandga/internal/rng"
)

func sumSquares(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v * v
	}
	return sum
}

func absSum(values []int) float64 {
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(float64(v))
	}
	return sum
}

func zeros(values []bool) float64 {
	n := 0.0
	for _, v := range values {
		if !v {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateRanges(t *testing.T) {
	cases := map[string]struct {
		ranges []Range
		bounds []Range
	}{
		"empty":           {},
		"inverted":        {ranges: []Range{{Min: 2, Max: 1}}},
		"nan":             {ranges: []Range{{Min: math.NaN(), Max: 1}}},
		"bounds count":    {ranges: []Range{{Max: 1}}, bounds: []Range{{Max: 1}, {Max: 1}}},
		"inverted bounds": {ranges: []Range{{Max: 1}}, bounds: []Range{{Min: 3, Max: 0}}},
		"outside bounds":  {ranges: []Range{{Min: -2, Max: 1}}, bounds: []Range{{Min: -1, Max: 1}}},
	}
	for name, tc := range cases {
		assert.Error(t, validateRanges(tc.ranges, tc.bounds), name)
	}
	assert.NoError(t, validateRanges([]Range{{Min: -1, Max: 1}}, []Range{{Min: -5, Max: 5}}))
	assert.NoError(t, validateRanges([]Range{{Min: 0, Max: 0}}, nil))
}

func TestFloat64PrototypeCreateWithinRanges(t *testing.T) {
	proto, err := NewFloat64Prototype(Float64Config{
		Ranges:  []Range{{Min: -1, Max: 1}, {Min: 10, Max: 20}},
		Fitness: sumSquares,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, proto.VariableCount())

	src := rng.New(1)
	for i := 0; i < 100; i++ {
		ind := proto.Create(src).(*Float64Individual)
		assert.True(t, Range{Min: -1, Max: 1}.Contains(ind.Float64At(0)))
		assert.True(t, Range{Min: 10, Max: 20}.Contains(ind.Float64At(1)))
		assert.Equal(t, evo.InitialBirth, ind.Lineage().Birth)
		assert.InDelta(t, sumSquares(ind.Values()), ind.Fitness(), 1e-12)
	}
}

func TestFloat64PrototypeRequiresFitness(t *testing.T) {
	_, err := NewFloat64Prototype(Float64Config{Ranges: []Range{{Max: 1}}})
	assert.Error(t, err)
}

func TestFloat64MutateRespectsBounds(t *testing.T) {
	proto, err := NewFloat64Prototype(Float64Config{
		Ranges:  []Range{{Min: 0, Max: 1}, {Min: 0, Max: 1}},
		Bounds:  []Range{{Min: 0, Max: 1}, {Min: 0, Max: 1}},
		Fitness: sumSquares,
	})
	require.NoError(t, err)

	src := rng.New(4)
	ind := evo.Individual(proto.New([]float64{0.99, 0.01}))
	for i := 0; i < 500; i++ {
		ind = ind.Mutate(src, 1, 5)
		f := ind.(*Float64Individual)
		assert.True(t, proto.bounds[0].Contains(f.Float64At(0)))
		assert.True(t, proto.bounds[1].Contains(f.Float64At(1)))
	}
}

func TestMutateZeroProbabilityReturnsSelf(t *testing.T) {
	src := rng.New(2)
	fp, err := NewFloat64Prototype(Float64Config{Ranges: []Range{{Max: 1}}, Fitness: sumSquares})
	require.NoError(t, err)
	f := fp.New([]float64{0.5})
	assert.Same(t, f, f.Mutate(src, 0, 1))

	bp, err := NewBoolPrototype(BoolConfig{Length: 3, Fitness: zeros})
	require.NoError(t, err)
	b := bp.New([]bool{true, false, true})
	assert.Same(t, b, b.Mutate(src, 0, 1))
}

func TestMutateKeepsLineageAndParent(t *testing.T) {
	proto, err := NewFloat64Prototype(Float64Config{Ranges: []Range{{Max: 1}, {Max: 1}}, Fitness: sumSquares})
	require.NoError(t, err)
	parent := proto.New([]float64{0.2, 0.4}).WithLineage(evo.Lineage{Birth: 3, Origin: evo.OriginCrossover})

	child := parent.Mutate(rng.New(5), 1, 0.5)
	assert.Equal(t, evo.Lineage{Birth: 3, Origin: evo.OriginCrossover}, child.Lineage())
	assert.NotEqual(t, parent.Fingerprint(), child.Fingerprint())
	assert.Equal(t, []float64{0.2, 0.4}, parent.(*Float64Individual).Values())
}

func TestWithLineageSharesFitness(t *testing.T) {
	calls := 0
	proto, err := NewFloat64Prototype(Float64Config{
		Ranges: []Range{{Max: 1}},
		Fitness: func(v []float64) float64 {
			calls++
			return v[0]
		},
	})
	require.NoError(t, err)
	ind := proto.New([]float64{0.3})
	relabeled := ind.WithLineage(evo.Lineage{Birth: 8, Origin: evo.OriginMigrationInitial})

	assert.Equal(t, 0.3, ind.Fitness())
	assert.Equal(t, 0.3, relabeled.Fitness())
	assert.Equal(t, 1, calls)
	assert.Equal(t, ind.Fingerprint(), relabeled.Fingerprint())
	assert.Equal(t, evo.InitialBirth, ind.Lineage().Birth)
}

func TestFloat64Crossover(t *testing.T) {
	proto, err := NewFloat64Prototype(Float64Config{Ranges: []Range{{Max: 1}, {Max: 1}, {Max: 1}}, Fitness: sumSquares})
	require.NoError(t, err)
	a := proto.New([]float64{0, 0, 0})
	b := proto.New([]float64{1, 2, 3})
	parents := []evo.Individual{a, b}

	child, err := a.CrossoverDiscrete([]int{1, 0, 1}, parents)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 3}, child.(*Float64Individual).Values())

	child, err = a.CrossoverFuzzy([][]float64{{0.5, 1, 0}, {0.5, 0, 1}}, parents)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 3}, child.(*Float64Individual).Values())

	_, err = a.CrossoverDiscrete([]int{1, 0}, parents)
	assert.ErrorIs(t, err, ErrParentMismatch)
	_, err = a.CrossoverFuzzy([][]float64{{1, 1, 1}}, parents)
	assert.ErrorIs(t, err, ErrParentMismatch)
}

func TestCrossoverRejectsForeignParents(t *testing.T) {
	fp, err := NewFloat64Prototype(Float64Config{Ranges: []Range{{Max: 1}}, Fitness: sumSquares})
	require.NoError(t, err)
	bp, err := NewBoolPrototype(BoolConfig{Length: 1, Fitness: zeros})
	require.NoError(t, err)
	f := fp.New([]float64{1})
	b := bp.New([]bool{true})

	_, err = f.CrossoverDiscrete([]int{1}, []evo.Individual{f, b})
	assert.ErrorIs(t, err, ErrParentMismatch)
	_, err = b.CrossoverDiscrete([]int{1}, []evo.Individual{b, f})
	assert.ErrorIs(t, err, ErrParentMismatch)
}

func TestIntPrototype(t *testing.T) {
	proto, err := NewIntPrototype(IntConfig{
		Ranges:  []Range{{Min: -3, Max: 3}, {Min: 0.5, Max: 0.7}},
		Bounds:  []Range{{Min: -3, Max: 3}, {Min: 0, Max: 1}},
		Fitness: absSum,
	})
	require.NoError(t, err)

	src := rng.New(12)
	for i := 0; i < 100; i++ {
		ind := proto.Create(src).(*IntIndividual)
		assert.GreaterOrEqual(t, ind.IntAt(0), -3)
		assert.LessOrEqual(t, ind.IntAt(0), 3)
		assert.Equal(t, 1, ind.IntAt(1))
	}

	ind := evo.Individual(proto.New([]int{3, 0}))
	for i := 0; i < 200; i++ {
		next := ind.Mutate(src, 1, 0.01).(*IntIndividual)
		assert.True(t, proto.bounds[0].Contains(float64(next.IntAt(0))))
		assert.True(t, proto.bounds[1].Contains(float64(next.IntAt(1))))
		ind = next
	}
}

func TestIntMutateAlwaysMovesSelectedGene(t *testing.T) {
	proto, err := NewIntPrototype(IntConfig{Ranges: []Range{{Min: -100, Max: 100}}, Fitness: absSum})
	require.NoError(t, err)
	ind := proto.New([]int{7})
	next := ind.Mutate(rng.New(3), 1, 0).(*IntIndividual)
	assert.Contains(t, []int{6, 8}, next.IntAt(0))
}

func TestIntCrossoverFuzzyRounds(t *testing.T) {
	proto, err := NewIntPrototype(IntConfig{Ranges: []Range{{Max: 10}, {Max: 10}}, Fitness: absSum})
	require.NoError(t, err)
	a, b := proto.New([]int{0, 10}), proto.New([]int{3, 0})

	child, err := a.CrossoverFuzzy([][]float64{{0.5, 0.26}, {0.5, 0.74}}, []evo.Individual{a, b})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, child.(*IntIndividual).Values())
	assert.Equal(t, []string{"2", "3"}, child.GeneTokens())
}

func TestBoolPrototype(t *testing.T) {
	_, err := NewBoolPrototype(BoolConfig{Length: 0, Fitness: zeros})
	assert.Error(t, err)

	proto, err := NewBoolPrototype(BoolConfig{Length: 4, Fitness: zeros})
	require.NoError(t, err)
	a := proto.New([]bool{true, true, false, false})
	b := proto.New([]bool{false, false, true, true})

	child, err := a.CrossoverDiscrete([]int{0, 1, 1, 0}, []evo.Individual{a, b})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, child.(*BoolIndividual).Values())
	assert.Equal(t, 2.0, child.Fitness())
	assert.Equal(t, []string{"true", "false", "true", "false"}, child.GeneTokens())

	_, err = a.CrossoverFuzzy(nil, nil)
	assert.ErrorIs(t, err, evo.ErrUnsupportedCrossover)

	flipped := a.Mutate(rng.New(1), 1, 0).(*BoolIndividual)
	assert.Equal(t, []bool{false, false, true, true}, flipped.Values())
	assert.Equal(t, b.Fingerprint(), flipped.Fingerprint())
}

func TestFingerprintsDistinguishValues(t *testing.T) {
	assert.NotEqual(t, float64Fingerprint([]float64{0}), float64Fingerprint([]float64{math.Copysign(0, -1)}))
	assert.Equal(t, float64Fingerprint([]float64{1.5, 2}), float64Fingerprint([]float64{1.5, 2}))
	assert.NotEqual(t, intFingerprint([]int{1, 2}), intFingerprint([]int{2, 1}))
	assert.NotEqual(t, boolFingerprint([]bool{true}), boolFingerprint([]bool{false}))
}

func TestEngineRunsWithPrototypes(t *testing.T) {
	ip, err := NewIntPrototype(IntConfig{Ranges: []Range{{Min: -20, Max: 20}, {Min: -20, Max: 20}}, Fitness: absSum})
	require.NoError(t, err)
	bp, err := NewBoolPrototype(BoolConfig{Length: 16, Fitness: zeros})
	require.NoError(t, err)

	for name, proto := range map[string]evo.Prototype{"int": ip, "bool": bp} {
		t.Run(name, func(t *testing.T) {
			engine, err := evo.NewBuilder().
				Prototype(proto).
				PopulationCount(30).
				TargetFitness(0).
				MaxGenerations(300).
				Seed(6).
				Logger(quietLogger()).
				Build()
			require.NoError(t, err)

			result, err := engine.Calculate(context.Background(), 10, 0, false)
			require.NoError(t, err)
			require.NoError(t, result.Err())
			snaps := result.Snapshots()
			assert.LessOrEqual(t, result.Fitness(), snaps[0].Summary.Min)
		})
	}
}
