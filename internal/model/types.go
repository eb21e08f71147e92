package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one finished calculation and the configuration that
// produced it.
type RunRecord struct {
	VersionedRecord
	ID                string    `json:"id"`
	Problem           string    `json:"problem"`
	Dimensions        int       `json:"dimensions"`
	Seed              uint64    `json:"seed"`
	SubPopulations    int       `json:"sub_populations"`
	PopulationCount   int       `json:"population_count"`
	MaxGenerations    int       `json:"max_generations"`
	TargetFitness     float64   `json:"target_fitness"`
	Selection         string    `json:"selection"`
	Scaling           string    `json:"scaling"`
	Crossover         string    `json:"crossover"`
	MutationScaling   string    `json:"mutation_scaling"`
	MigrationStrategy string    `json:"migration_strategy"`
	MigrationProcess  string    `json:"migration_process"`
	MigrationInterval int       `json:"migration_interval"`
	Reason            string    `json:"reason"`
	Error             string    `json:"error,omitempty"`
	Generations       int       `json:"generations"`
	BestFitness       float64   `json:"best_fitness"`
	BestTokens        []string  `json:"best_tokens"`
	ElapsedMillis     int64     `json:"elapsed_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

type SummaryRecord struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

type GenerationRecord struct {
	Generation     int             `json:"generation"`
	Migrated       bool            `json:"migrated"`
	ElapsedMillis  int64           `json:"elapsed_ms"`
	Summary        SummaryRecord   `json:"summary"`
	SubPopulations []SummaryRecord `json:"sub_populations"`
}

// GenerationHistory is the recorded per-generation statistics of a run.
type GenerationHistory struct {
	VersionedRecord
	RunID       string             `json:"run_id"`
	Generations []GenerationRecord `json:"generations"`
}

type IndividualRecord struct {
	SubPopulation int      `json:"sub_population"`
	Birth         int      `json:"birth"`
	Origin        string   `json:"origin"`
	Fitness       float64  `json:"fitness"`
	Genes         []string `json:"genes"`
}

// PopulationSnapshot is the final population of a run.
type PopulationSnapshot struct {
	VersionedRecord
	RunID       string             `json:"run_id"`
	Generation  int                `json:"generation"`
	Individuals []IndividualRecord `json:"individuals"`
}
