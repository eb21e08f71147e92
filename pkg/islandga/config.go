package islandga

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"islandga/internal/evo"
	"islandga/internal/problem"
)

func withRunDefaults(req RunRequest) RunRequest {
	if req.Problem == "" {
		req.Problem = defaultProblem
	}
	if req.Dimensions <= 0 {
		req.Dimensions = defaultDimensions
	}
	if req.SubPopulations <= 0 {
		req.SubPopulations = 1
	}
	if req.Population <= 0 {
		req.Population = evo.DefaultSubPopulationConfig().PopulationCount
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}
	if req.Selection == "" {
		req.Selection = "stochastic_uniform"
	}
	if req.Scaling == "" {
		req.Scaling = "rank"
	}
	if req.Crossover == "" {
		req.Crossover = "scattered_discrete"
	}
	if req.MutationScaling == "" {
		req.MutationScaling = "richard"
	}
	if req.MigrationStrategy == "" {
		req.MigrationStrategy = "elitism"
	}
	if req.MigrationProcess == "" {
		req.MigrationProcess = "network"
	}
	if req.MigrationCount <= 0 {
		req.MigrationCount = defaultMigrationSize
	}
	if req.MigrationInterval <= 0 {
		req.MigrationInterval = math.MaxInt
	}
	return req
}

// buildConfig resolves strategy names through the registries. Stateful
// mutation scalings are built once per sub-population.
func buildConfig(req RunRequest, logger *slog.Logger) (evo.Config, error) {
	proto, err := problem.Prototype(req.Problem, req.Dimensions)
	if err != nil {
		return evo.Config{}, err
	}

	selection, err := evo.NewSelection(req.Selection, evo.StrategyParams{Size: req.TournamentSize})
	if err != nil {
		return evo.Config{}, err
	}
	if tournament, ok := selection.(evo.TournamentSelection); ok {
		tournament.Logger = logger
		selection = tournament
	}
	scaling, err := evo.NewScaling(req.Scaling, evo.StrategyParams{Fraction: req.TopFraction, Base: req.ScalingBase})
	if err != nil {
		return evo.Config{}, err
	}
	crossover, err := evo.NewCrossover(req.Crossover, evo.StrategyParams{
		Parents:     req.CrossoverParents,
		AllowClones: req.AllowClones,
		Base:        req.ScalingBase,
	})
	if err != nil {
		return evo.Config{}, err
	}
	strategy, err := evo.NewMigrationStrategy(req.MigrationStrategy, evo.StrategyParams{Size: req.MigrationCount})
	if err != nil {
		return evo.Config{}, err
	}
	process, err := evo.NewMigrationProcess(req.MigrationProcess, evo.StrategyParams{})
	if err != nil {
		return evo.Config{}, err
	}

	b := evo.NewBuilder().
		Prototype(proto).
		SubPopulations(req.SubPopulations).
		PopulationCount(req.Population).
		Selection(selection).
		Scaling(scaling).
		Crossover(crossover).
		MaxGenerations(req.MaxGenerations).
		MaxExecutionTime(req.MaxExecutionTime).
		MaxStaleGenerations(req.MaxStaleGenerations).
		Migration(req.MigrationInterval, strategy, process).
		Seed(req.Seed).
		Logger(logger)

	var scalingErr error
	b.EachSubPopulation(func(i int, sp *evo.SubPopulationConfig) {
		ms, err := evo.NewMutationScaling(req.MutationScaling, evo.StrategyParams{Revolutions: req.SinRevolutions})
		if err != nil && scalingErr == nil {
			scalingErr = err
		}
		sp.MutationScaling = ms
		if req.EliteFraction != nil {
			sp.EliteFraction = *req.EliteFraction
		}
		if req.CrossoverFraction != nil {
			sp.CrossoverFraction = *req.CrossoverFraction
		}
		if req.MutationProbability != nil {
			sp.MutationProbability = *req.MutationProbability
		}
	})
	if scalingErr != nil {
		return evo.Config{}, scalingErr
	}
	if req.TargetFitness != nil {
		b.TargetFitness(*req.TargetFitness)
	}
	cutoff := req.MutationAttemptCutoff
	if cutoff <= 0 {
		cutoff = evo.DefaultConfig().MutationAttemptCutoff
	}
	b.ForceCloneMutation(!req.DisableForceClone, cutoff)

	cfg := b.Config()
	if err := cfg.Validate(); err != nil {
		return evo.Config{}, fmt.Errorf("run config: %w", err)
	}
	return cfg, nil
}
