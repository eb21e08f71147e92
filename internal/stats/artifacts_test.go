package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandga/internal/model"
)

func TestWriteRunArtifacts(t *testing.T) {
	base := t.TempDir()
	artifacts := RunArtifacts{
		Run: model.RunRecord{ID: "run-1"},
		History: model.GenerationHistory{
			RunID: "run-1",
			Generations: []model.GenerationRecord{
				{Generation: -1, Summary: model.SummaryRecord{Min: 4, Mean: 9}},
				{Generation: 0, Summary: model.SummaryRecord{Min: 2.5, Mean: 6}},
			},
		},
	}

	dir, err := WriteRunArtifacts(base, artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), dir)
	for _, name := range []string{"run.json", "generations.json", "population.json", "best_series.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	series, ok, err := ReadBestSeries(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{4, 2.5}, series)
}

func TestWriteRunArtifactsRequiresID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	assert.Error(t, err)
}

func TestReadBestSeriesMissing(t *testing.T) {
	series, ok, err := ReadBestSeries(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, series)
}
