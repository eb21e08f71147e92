package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitnessOf(pop []Individual) []float64 {
	return fitnessValues(pop)
}

func islandPopulations(n int) [][]Individual {
	pops := make([][]Individual, n)
	for i := range pops {
		base := float64(i * 10)
		pops[i] = fixedPopulation(base+1, base+2, base+3)
	}
	return pops
}

func TestMergeWorstNeverWorsensASlot(t *testing.T) {
	pop := fixedPopulation(1, 2, 3, 4, 5)
	migrants := fixedPopulation(0.5, 10)

	out := mergeWorst(pop, migrants, 2)
	assert.Equal(t, []float64{0.5, 1, 2, 3, 4}, fitnessOf(out))
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, fitnessOf(pop))
	for i := range out {
		assert.LessOrEqual(t, out[i].Fitness(), pop[i].Fitness())
	}
}

func TestMergeWorstKeepsResidentsWhenMigrantsAreWorse(t *testing.T) {
	pop := fixedPopulation(1, 2, 3)
	out := mergeWorst(pop, fixedPopulation(7, 8), 2)
	assert.Equal(t, []float64{1, 2, 3}, fitnessOf(out))
}

func TestMergeWorstEdgeCases(t *testing.T) {
	pop := fixedPopulation(1, 2)
	assert.Equal(t, []float64{1, 2}, fitnessOf(mergeWorst(pop, nil, 2)))
	assert.Equal(t, []float64{1, 2}, fitnessOf(mergeWorst(pop, fixedPopulation(0), 0)))
	assert.Equal(t, []float64{0, 0.5}, fitnessOf(mergeWorst(pop, fixedPopulation(0, 0.5, 0.7), 5)))
}

func TestMigrationProcesses(t *testing.T) {
	pops := islandPopulations(4)
	elite := ElitismMigration{N: 1}
	cases := []struct {
		process MigrationProcess
		target  int
		want    []float64
	}{
		{NetworkMigration{}, 0, []float64{11}},
		{NetworkMigration{}, 2, []float64{1}},
		{ForwardMigration{}, 0, nil},
		{ForwardMigration{}, 3, []float64{1}},
		{SingleForwardMigration{}, 0, nil},
		{SingleForwardMigration{}, 3, []float64{21}},
		{SingleForwardWrapMigration{}, 0, []float64{31}},
		{SingleForwardWrapMigration{}, 2, []float64{11}},
		{BidirectionalWrapMigration{}, 0, []float64{11}},
		{BidirectionalWrapMigration{}, 3, []float64{1}},
		{BidirectionalWrapMigration{}, 2, []float64{11}},
	}
	for _, tc := range cases {
		got := tc.process.Migrants(pops, tc.target, elite.Count(), elite)
		if tc.want == nil {
			assert.Empty(t, got, "%s target %d", tc.process.Name(), tc.target)
			continue
		}
		assert.Equal(t, tc.want, fitnessOf(got), "%s target %d", tc.process.Name(), tc.target)
	}
}

func TestRingProcessesWithTwoIslands(t *testing.T) {
	pops := islandPopulations(2)
	elite := ElitismMigration{N: 2}

	got := BidirectionalWrapMigration{}.Migrants(pops, 0, 2, elite)
	assert.Equal(t, []float64{11, 12}, fitnessOf(got))
	got = SingleForwardWrapMigration{}.Migrants(pops, 0, 2, elite)
	assert.Equal(t, []float64{11, 12}, fitnessOf(got))

	single := islandPopulations(1)
	assert.Empty(t, BidirectionalWrapMigration{}.Migrants(single, 0, 2, elite))
	assert.Empty(t, SingleForwardWrapMigration{}.Migrants(single, 0, 2, elite))
	assert.Empty(t, NetworkMigration{}.Migrants(single, 0, 2, elite))
}

func TestAncientsMigrationPrefersOldest(t *testing.T) {
	pop := []Individual{fixedBorn(1, 5), fixedBorn(2, 1), fixedBorn(3, 1), fixedBorn(4, 3)}
	got := AncientsMigration{N: 2}.Candidates(pop, 2)
	assert.Equal(t, []float64{2, 3}, fitnessOf(got))
	assert.Len(t, AncientsMigration{}.Candidates(pop, 10), 4)
}

func TestElitismMigrationCandidates(t *testing.T) {
	pop := fixedPopulation(1, 2, 3)
	assert.Equal(t, []float64{1, 2}, fitnessOf(ElitismMigration{}.Candidates(pop, 2)))
	assert.Empty(t, ElitismMigration{}.Candidates(pop, -1))
	assert.Len(t, ElitismMigration{}.Candidates(pop, 9), 3)
}

func TestMigrateUsesPreMigrationSnapshot(t *testing.T) {
	pops := [][]Individual{
		fixedPopulation(1, 2, 3),
		fixedPopulation(10, 20, 30),
	}
	out := migrate(pops, ElitismMigration{N: 1}, NetworkMigration{})
	require.Len(t, out, 2)
	assert.Equal(t, []float64{1, 2, 3}, fitnessOf(out[0]))
	assert.Equal(t, []float64{1, 10, 20}, fitnessOf(out[1]))
	assert.Equal(t, []float64{10, 20, 30}, fitnessOf(pops[1]))
	for _, pop := range out {
		assert.True(t, IsSorted(pop))
	}
}

func TestMigrateZeroCountIsNoop(t *testing.T) {
	pops := islandPopulations(3)
	out := migrate(pops, ElitismMigration{N: 0}, NetworkMigration{})
	for i := range pops {
		assert.Equal(t, fitnessOf(pops[i]), fitnessOf(out[i]))
	}
}
