package metrics

import (
	"context"
	"math"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandga/internal/evo"
	"islandga/internal/problem"
)

func TestRunListenerPublishesSnapshots(t *testing.T) {
	proto, err := problem.Prototype("sphere", 2)
	require.NoError(t, err)
	engine, err := evo.NewBuilder().
		Prototype(proto).
		SubPopulations(2).
		PopulationCount(10).
		MaxGenerations(12).
		Migration(3, evo.ElitismMigration{N: 1}, evo.NetworkMigration{}).
		TargetFitness(math.Inf(-1)).
		Seed(5).
		Build()
	require.NoError(t, err)

	collector := NewCollector()
	listener := collector.Listener("run-1")
	require.True(t, engine.AddListener(listener))

	result, err := engine.Calculate(context.Background(), 1, 0, false)
	require.NoError(t, err)

	latest, ok := result.Latest()
	require.True(t, ok)
	assert.Equal(t, float64(latest.Generation), testutil.ToFloat64(collector.generation.WithLabelValues("run-1")))
	assert.Equal(t, latest.SubPopulations[1].Min, testutil.ToFloat64(collector.bestFitness.WithLabelValues("run-1", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.runs.WithLabelValues(result.Reason().String())))

	migrated := migratedGenerations(result)
	assert.Positive(t, migrated)
	assert.Equal(t, float64(migrated), testutil.ToFloat64(collector.migrations.WithLabelValues("run-1")))
}

func TestRunListenerCountsRepeatedFinalMigrationOnce(t *testing.T) {
	proto, err := problem.Prototype("sphere", 2)
	require.NoError(t, err)
	engine, err := evo.NewBuilder().
		Prototype(proto).
		SubPopulations(2).
		PopulationCount(10).
		MaxGenerations(50).
		Migration(3, evo.ElitismMigration{N: 1}, evo.NetworkMigration{}).
		TargetFitness(math.Inf(-1)).
		Seed(8).
		Build()
	require.NoError(t, err)

	collector := NewCollector()
	require.True(t, engine.AddListener(collector.Listener("run-2")))

	// Generation 3 migrates, is recorded, and is repeated by the final
	// snapshot when the step budget runs out.
	result, err := engine.Calculate(context.Background(), 1, 4, false)
	require.NoError(t, err)
	require.Equal(t, evo.StoppedStep, result.Reason())
	require.Equal(t, []int{-1, 0, 1, 2, 3}, result.Generations())

	snapshots := result.Snapshots()
	last := snapshots[len(snapshots)-1]
	require.Equal(t, 3, last.Generation)
	require.True(t, last.Migrated)
	require.True(t, snapshots[len(snapshots)-2].Migrated)

	assert.Equal(t, 1, migratedGenerations(result))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.migrations.WithLabelValues("run-2")))
}

func migratedGenerations(result *evo.Result) int {
	count := 0
	for _, gen := range result.Generations() {
		if s, ok := result.Snapshot(gen); ok && s.Migrated {
			count++
		}
	}
	return count
}

func TestCollectorHandlerServesMetrics(t *testing.T) {
	collector := NewCollector()
	collector.runs.WithLabelValues("fitness").Inc()

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `islandga_runs_total{reason="fitness"} 1`)
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.runs.WithLabelValues("generation").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runs.WithLabelValues("generation")))
}
