package islandga

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandga/internal/evo"
	"islandga/internal/metrics"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory", ExportsDir: filepath.Join(t.TempDir(), "exports")})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func ptr[T any](v T) *T {
	return &v
}

func TestClientRunPersistsAndLists(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, RunRequest{
		Problem:        "sphere",
		Dimensions:     2,
		SubPopulations: 2,
		Population:     12,
		MaxGenerations: 15,
		Seed:           42,
		RecordEvery:    5,
		TargetFitness:  ptr(0.0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	assert.Equal(t, "generation", summary.Reason)
	assert.Equal(t, 14, summary.Generations)
	assert.NotEmpty(t, summary.BestByGeneration)
	assert.Len(t, summary.BestTokens, 4)

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, uint64(42), runs[0].Seed)

	history, err := client.Generations(ctx, LookupRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, history.RunID)
	assert.Equal(t, -1, history.Generations[0].Generation)

	last, err := client.Generations(ctx, LookupRequest{RunID: summary.RunID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, last.Generations, 1)
	assert.Equal(t, 14, last.Generations[0].Generation)

	population, err := client.Population(ctx, LookupRequest{RunID: summary.RunID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, population.Individuals, 3)
	assert.Equal(t, summary.BestFitness, population.Individuals[0].Fitness)
}

func TestClientRunIsReproducibleForSeed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	req := RunRequest{Problem: "rastrigin", Dimensions: 3, Population: 16, MaxGenerations: 25, Seed: 9, TargetFitness: ptr(0.0)}

	first, err := client.Run(ctx, req)
	require.NoError(t, err)
	second, err := client.Run(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.BestFitness, second.BestFitness)
	assert.Equal(t, first.BestTokens, second.BestTokens)
}

func TestClientRunWithStrategiesAndMigration(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector()
	client, err := New(Options{StoreKind: "memory", Metrics: collector})
	require.NoError(t, err)

	var finals int
	summary, err := client.Run(ctx, RunRequest{
		Problem:           "intquadratic",
		Dimensions:        3,
		SubPopulations:    3,
		Population:        10,
		MaxGenerations:    30,
		Seed:              3,
		Selection:         "tournament",
		TournamentSize:    3,
		Scaling:           "top",
		TopFraction:       0.5,
		Crossover:         "single_point_fuzzy",
		MutationScaling:   "linear_fitness",
		MigrationInterval: 5,
		MigrationStrategy: "ancients",
		MigrationProcess:  "single_forward_wrap",
		RecordEvery:       1,
		Listeners: []evo.Listener{&evo.ListenerFuncs{OnFinal: func(*evo.Result) {
			finals++
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, finals)

	history, err := client.Generations(ctx, LookupRequest{RunID: summary.RunID})
	require.NoError(t, err)
	migrated := false
	for _, g := range history.Generations {
		migrated = migrated || g.Migrated
	}
	assert.True(t, migrated || summary.Generations < 5)
}

func TestClientRunRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.Run(ctx, RunRequest{Problem: "unknown"})
	assert.Error(t, err)

	_, err = client.Run(ctx, RunRequest{Selection: "nope"})
	assert.ErrorIs(t, err, evo.ErrStrategyNotFound)

	_, err = client.Run(ctx, RunRequest{EliteFraction: ptr(0.7), CrossoverFraction: ptr(0.7)})
	assert.ErrorIs(t, err, evo.ErrInvalidConfig)

	_, err = client.Run(ctx, RunRequest{Problem: "onemax", Crossover: "scattered_fuzzy", MaxGenerations: 3})
	assert.ErrorIs(t, err, evo.ErrUnsupportedCrossover)
}

func TestClientLookupValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.Generations(ctx, LookupRequest{})
	assert.Error(t, err)
	_, err = client.Generations(ctx, LookupRequest{RunID: "x", Latest: true})
	assert.Error(t, err)
	_, err = client.Generations(ctx, LookupRequest{Latest: true})
	assert.EqualError(t, err, "no runs available")
	_, err = client.RunRecord(ctx, LookupRequest{RunID: "missing"})
	assert.Error(t, err)
	_, err = client.Population(ctx, LookupRequest{RunID: "x", Limit: -1})
	assert.Error(t, err)
}

func TestClientExportAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	summary, err := client.Run(ctx, RunRequest{Problem: "onemax", Dimensions: 16, MaxGenerations: 10, Seed: 1, TargetFitness: ptr(-1.0)})
	require.NoError(t, err)

	out := t.TempDir()
	exported, err := client.Export(ctx, ExportRequest{Latest: true, OutDir: out})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	_, err = os.Stat(filepath.Join(exported.Directory, "best_series.csv"))
	assert.NoError(t, err)

	require.NoError(t, client.Delete(ctx, summary.RunID))
	_, err = client.RunRecord(ctx, LookupRequest{RunID: summary.RunID})
	assert.Error(t, err)
}

func TestProblemsAndStrategies(t *testing.T) {
	names := make([]string, 0)
	for _, p := range Problems() {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "sphere")
	assert.Contains(t, names, "onemax")

	strategies := Strategies()
	assert.Contains(t, strategies["selection"], "tournament")
	assert.Contains(t, strategies["scaling"], "age")
	assert.Contains(t, strategies["migration_process"], "bidirectional_wrap")
}
