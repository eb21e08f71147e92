// Package islandga is the embeddable client for running and inspecting
// island-model genetic algorithm calculations over the built-in problems.
package islandga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"islandga/internal/evo"
	"islandga/internal/metrics"
	"islandga/internal/model"
	"islandga/internal/problem"
	"islandga/internal/stats"
	"islandga/internal/storage"
)

const (
	defaultExportsDir    = "exports"
	defaultProblem       = "sphere"
	defaultDimensions    = 2
	defaultMigrationSize = 2
	defaultRunsLimit     = 20
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	Logger     *slog.Logger
	// Metrics receives progress of every run when set.
	Metrics *metrics.Collector
}

type Client struct {
	store      storage.Store
	logger     *slog.Logger
	metrics    *metrics.Collector
	exportsDir string

	initMu      sync.Mutex
	initialized bool
}

// RunRequest describes one calculation. Zero values select defaults; the
// pointer fields distinguish an explicit zero from unset.
type RunRequest struct {
	Problem        string
	Dimensions     int
	SubPopulations int
	Population     int
	MaxGenerations int
	Seed           uint64

	EliteFraction       *float64
	CrossoverFraction   *float64
	MutationProbability *float64

	Selection        string
	TournamentSize   int
	Scaling          string
	ScalingBase      string
	TopFraction      float64
	Crossover        string
	CrossoverParents int
	AllowClones      bool
	MutationScaling  string
	SinRevolutions   float64

	MigrationInterval int
	MigrationStrategy string
	MigrationProcess  string
	MigrationCount    int

	TargetFitness         *float64
	MaxStaleGenerations   int
	MaxExecutionTime      time.Duration
	DisableForceClone     bool
	MutationAttemptCutoff int

	RecordEvery int
	MaxSteps    int
	Verbose     bool
	// WriteArtifacts exports the run under the exports directory.
	WriteArtifacts bool
	Listeners      []evo.Listener
}

type RunSummary struct {
	RunID            string
	Reason           string
	Error            string
	Generations      int
	BestFitness      float64
	BestTokens       []string
	Elapsed          time.Duration
	BestByGeneration []float64
	ArtifactsDir     string
}

type RunsRequest struct {
	Limit int
}

// LookupRequest selects a stored run by id or the most recent one.
type LookupRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ProblemItem struct {
	Name          string
	Description   string
	Genes         string
	MinDimensions int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = storage.DefaultPath(storeKind)
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		metrics:    opts.Metrics,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Run executes one calculation and persists its record, generation history
// and final population. A calculation stopped by a failure is still
// persisted and its error returned alongside the summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	req = withRunDefaults(req)

	cfg, err := buildConfig(req, c.logger)
	if err != nil {
		return RunSummary{}, err
	}
	engine, err := evo.NewEngine(cfg)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	log := c.logger.With("run_id", runID, "problem", req.Problem)
	if c.metrics != nil {
		engine.AddListener(c.metrics.Listener(runID))
	}
	for _, l := range req.Listeners {
		engine.AddListener(l)
	}

	log.Info("run started",
		"dimensions", req.Dimensions,
		"sub_populations", req.SubPopulations,
		"population", req.Population,
		"max_generations", engine.MaxGenerationCount(),
		"seed", req.Seed,
	)
	createdAt := time.Now().UTC()
	result, err := engine.Calculate(ctx, req.RecordEvery, req.MaxSteps, req.Verbose)
	if err != nil {
		return RunSummary{}, err
	}

	info := stats.RunInfo{
		ID:                runID,
		Problem:           req.Problem,
		Dimensions:        req.Dimensions,
		Seed:              req.Seed,
		SubPopulations:    req.SubPopulations,
		PopulationCount:   req.Population,
		MaxGenerations:    engine.MaxGenerationCount(),
		TargetFitness:     cfg.TargetFitness,
		Selection:         req.Selection,
		Scaling:           req.Scaling,
		Crossover:         req.Crossover,
		MutationScaling:   req.MutationScaling,
		MigrationStrategy: req.MigrationStrategy,
		MigrationProcess:  req.MigrationProcess,
		MigrationInterval: req.MigrationInterval,
		CreatedAt:         createdAt,
	}
	artifacts := stats.RunArtifacts{
		Run:        stats.BuildRunRecord(info, result),
		History:    stats.BuildGenerationHistory(runID, result),
		Population: stats.BuildPopulationSnapshot(runID, result),
	}
	if err := c.persist(ctx, artifacts); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:            runID,
		Reason:           artifacts.Run.Reason,
		Error:            artifacts.Run.Error,
		Generations:      artifacts.Run.Generations,
		BestFitness:      result.Fitness(),
		BestTokens:       artifacts.Run.BestTokens,
		Elapsed:          result.ExecutionTime(),
		BestByGeneration: stats.BestSeries(artifacts.History),
	}
	if req.WriteArtifacts {
		dir, err := stats.WriteRunArtifacts(c.exportsDir, artifacts)
		if err != nil {
			return summary, err
		}
		summary.ArtifactsDir = filepath.Clean(dir)
	}

	log.Info("run finished",
		"reason", summary.Reason,
		"generations", summary.Generations,
		"best_fitness", summary.BestFitness,
		"elapsed", summary.Elapsed,
	)
	if runErr := result.Err(); runErr != nil {
		return summary, fmt.Errorf("run %s: %w", runID, runErr)
	}
	return summary, nil
}

func (c *Client) persist(ctx context.Context, artifacts stats.RunArtifacts) error {
	if err := c.store.SaveRun(ctx, artifacts.Run); err != nil {
		return fmt.Errorf("save run %s: %w", artifacts.Run.ID, err)
	}
	if err := c.store.SaveGenerationHistory(ctx, artifacts.History); err != nil {
		return fmt.Errorf("save generation history %s: %w", artifacts.Run.ID, err)
	}
	if err := c.store.SavePopulationSnapshot(ctx, artifacts.Population); err != nil {
		return fmt.Errorf("save population %s: %w", artifacts.Run.ID, err)
	}
	return nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) RunRecord(ctx context.Context, req LookupRequest) (model.RunRecord, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

// Generations returns the recorded generation history. A positive limit
// keeps the last entries only.
func (c *Client) Generations(ctx context.Context, req LookupRequest) (model.GenerationHistory, error) {
	if req.Limit < 0 {
		return model.GenerationHistory{}, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.GenerationHistory{}, err
	}
	history, ok, err := c.store.GetGenerationHistory(ctx, runID)
	if err != nil {
		return model.GenerationHistory{}, err
	}
	if !ok {
		return model.GenerationHistory{}, fmt.Errorf("generation history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history.Generations) > req.Limit {
		history.Generations = history.Generations[len(history.Generations)-req.Limit:]
	}
	return history, nil
}

// Population returns the final population of a run, best first per
// sub-population. A positive limit keeps the fittest entries overall.
func (c *Client) Population(ctx context.Context, req LookupRequest) (model.PopulationSnapshot, error) {
	if req.Limit < 0 {
		return model.PopulationSnapshot{}, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	snapshot, ok, err := c.store.GetPopulationSnapshot(ctx, runID)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("population not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(snapshot.Individuals) > req.Limit {
		sort.SliceStable(snapshot.Individuals, func(i, j int) bool {
			return snapshot.Individuals[i].Fitness < snapshot.Individuals[j].Fitness
		})
		snapshot.Individuals = snapshot.Individuals[:req.Limit]
	}
	return snapshot, nil
}

func (c *Client) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("delete requires run id")
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.DeleteRun(ctx, runID)
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	run, err := c.RunRecord(ctx, LookupRequest{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return ExportSummary{}, err
	}
	history, err := c.Generations(ctx, LookupRequest{RunID: run.ID})
	if err != nil {
		return ExportSummary{}, err
	}
	population, err := c.Population(ctx, LookupRequest{RunID: run.ID})
	if err != nil {
		return ExportSummary{}, err
	}
	dir, err := stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{Run: run, History: history, Population: population})
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: run.ID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func Problems() []ProblemItem {
	names := problem.Names()
	out := make([]ProblemItem, 0, len(names))
	for _, name := range names {
		p, err := problem.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, ProblemItem{
			Name:          p.Name,
			Description:   p.Description,
			Genes:         p.Genes,
			MinDimensions: p.MinDimensions,
		})
	}
	return out
}

// Strategies lists registered strategy names per family.
func Strategies() map[string][]string {
	return map[string][]string{
		"selection":          evo.SelectionNames(),
		"scaling":            evo.ScalingNames(),
		"crossover":          evo.CrossoverNames(),
		"mutation_scaling":   evo.MutationScalingNames(),
		"migration_strategy": evo.MigrationStrategyNames(),
		"migration_process":  evo.MigrationProcessNames(),
	}
}
