package stats

import (
	"math"
	"strconv"
	"time"

	"islandga/internal/evo"
	"islandga/internal/model"
	"islandga/internal/storage"
)

// RunInfo is the configuration side of a run record, filled in by the caller.
type RunInfo struct {
	ID                string
	Problem           string
	Dimensions        int
	Seed              uint64
	SubPopulations    int
	PopulationCount   int
	MaxGenerations    int
	TargetFitness     float64
	Selection         string
	Scaling           string
	Crossover         string
	MutationScaling   string
	MigrationStrategy string
	MigrationProcess  string
	MigrationInterval int
	CreatedAt         time.Time
}

// BuildRunRecord merges run configuration with the outcome held in result.
func BuildRunRecord(info RunInfo, result *evo.Result) model.RunRecord {
	run := model.RunRecord{
		VersionedRecord:   storage.CurrentVersion(),
		ID:                info.ID,
		Problem:           info.Problem,
		Dimensions:        info.Dimensions,
		Seed:              info.Seed,
		SubPopulations:    info.SubPopulations,
		PopulationCount:   info.PopulationCount,
		MaxGenerations:    info.MaxGenerations,
		TargetFitness:     finite(info.TargetFitness),
		Selection:         info.Selection,
		Scaling:           info.Scaling,
		Crossover:         info.Crossover,
		MutationScaling:   info.MutationScaling,
		MigrationStrategy: info.MigrationStrategy,
		MigrationProcess:  info.MigrationProcess,
		MigrationInterval: info.MigrationInterval,
		CreatedAt:         info.CreatedAt.UTC(),
		BestFitness:       finite(math.Inf(1)),
	}
	if result == nil {
		return run
	}
	run.Reason = result.Reason().String()
	if err := result.Err(); err != nil {
		run.Error = err.Error()
	}
	run.ElapsedMillis = result.ExecutionTime().Milliseconds()
	if latest, ok := result.Latest(); ok {
		run.Generations = latest.Generation
	}
	if best := result.Best(); best != nil {
		run.BestFitness = finite(best.Fitness())
		run.BestTokens = evo.Tokens(best)
	}
	return run
}

// BuildGenerationHistory converts every recorded snapshot. A generation
// recorded twice keeps both entries, as the final snapshot may repeat the
// last recorded one.
func BuildGenerationHistory(runID string, result *evo.Result) model.GenerationHistory {
	history := model.GenerationHistory{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Generations:     []model.GenerationRecord{},
	}
	if result == nil {
		return history
	}
	for _, snapshot := range result.Snapshots() {
		record := model.GenerationRecord{
			Generation:     snapshot.Generation,
			Migrated:       snapshot.Migrated,
			ElapsedMillis:  snapshot.Elapsed.Milliseconds(),
			Summary:        summaryRecord(snapshot.Summary),
			SubPopulations: make([]model.SummaryRecord, 0, len(snapshot.SubPopulations)),
		}
		for _, sub := range snapshot.SubPopulations {
			record.SubPopulations = append(record.SubPopulations, summaryRecord(sub))
		}
		history.Generations = append(history.Generations, record)
	}
	return history
}

// BuildPopulationSnapshot flattens the latest snapshot, best first within
// each sub-population.
func BuildPopulationSnapshot(runID string, result *evo.Result) model.PopulationSnapshot {
	snapshot := model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Individuals:     []model.IndividualRecord{},
	}
	if result == nil {
		return snapshot
	}
	latest, ok := result.Latest()
	if !ok {
		return snapshot
	}
	snapshot.Generation = latest.Generation
	for i, pop := range latest.Populations {
		for _, ind := range pop {
			lineage := ind.Lineage()
			snapshot.Individuals = append(snapshot.Individuals, model.IndividualRecord{
				SubPopulation: i,
				Birth:         lineage.Birth,
				Origin:        lineage.Origin.String(),
				Fitness:       finite(ind.Fitness()),
				Genes:         ind.GeneTokens(),
			})
		}
	}
	return snapshot
}

// BestSeries extracts the best fitness of every recorded snapshot.
func BestSeries(history model.GenerationHistory) []float64 {
	series := make([]float64, 0, len(history.Generations))
	for _, g := range history.Generations {
		series = append(series, g.Summary.Min)
	}
	return series
}

func summaryRecord(s evo.Summary) model.SummaryRecord {
	return model.SummaryRecord{
		Count:  s.Count,
		Min:    finite(s.Min),
		Max:    finite(s.Max),
		Sum:    finite(s.Sum),
		Mean:   finite(s.Mean),
		StdDev: finite(s.StdDev),
	}
}

// finite maps values encoding/json rejects onto representable ones.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	default:
		return v
	}
}

func formatFitness(v float64) string {
	if v == math.MaxFloat64 {
		return "+Inf"
	}
	if v == -math.MaxFloat64 {
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
