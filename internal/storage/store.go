package storage

import (
	"context"

	"islandga/internal/model"
)

// Store persists finished runs, their generation statistics and final
// populations.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SaveGenerationHistory(ctx context.Context, history model.GenerationHistory) error
	GetGenerationHistory(ctx context.Context, runID string) (model.GenerationHistory, bool, error)
	SavePopulationSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulationSnapshot(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
}
