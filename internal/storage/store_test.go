package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandga/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Problem:         "sphere",
		Dimensions:      2,
		Seed:            7,
		SubPopulations:  2,
		PopulationCount: 20,
		Reason:          "fitness",
		Generations:     12,
		BestFitness:     0.0005,
		BestTokens:      []string{"11", "0.0005", "0.01", "0.02"},
		CreatedAt:       created,
	}
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	_, ok, err := store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-a", base)))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-b", base.Add(time.Minute))))

	run, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sphere", run.Problem)
	assert.Equal(t, []string{"11", "0.0005", "0.01", "0.02"}, run.BestTokens)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)

	history := model.GenerationHistory{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Generations: []model.GenerationRecord{
			{Generation: -1, Summary: model.SummaryRecord{Count: 40, Min: 3}},
			{Generation: 0, Migrated: false, Summary: model.SummaryRecord{Count: 40, Min: 1.5}},
		},
	}
	require.NoError(t, store.SaveGenerationHistory(ctx, history))
	loaded, ok, err := store.GetGenerationHistory(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded.Generations, 2)
	assert.Equal(t, 1.5, loaded.Generations[1].Summary.Min)

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Generation:      11,
		Individuals: []model.IndividualRecord{
			{SubPopulation: 0, Birth: 11, Origin: "crossover", Fitness: 0.0005, Genes: []string{"0.01", "0.02"}},
		},
	}
	require.NoError(t, store.SavePopulationSnapshot(ctx, snapshot))
	loadedSnap, ok, err := store.GetPopulationSnapshot(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot.Individuals, loadedSnap.Individuals)

	require.NoError(t, store.DeleteRun(ctx, "run-a"))
	_, ok, err = store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetGenerationHistory(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetPopulationSnapshot(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
}
