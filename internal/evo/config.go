package evo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	defaultPopulationCount       = 20
	defaultEliteFraction         = 0.05
	defaultCrossoverFraction     = 0.8
	defaultMutationProbability   = 0.1
	defaultMutationAttemptCutoff = 10
	defaultTargetFitness         = 1e-3
	defaultMigrationCount        = 2
	defaultGenerationsPerGene    = 200
	defaultSeed                  = 1

	countEpsilon = 1e-9
)

var ErrInvalidConfig = errors.New("invalid configuration")

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// SubPopulationConfig configures one independently evolving population.
type SubPopulationConfig struct {
	PopulationCount     int
	EliteFraction       float64
	CrossoverFraction   float64
	MutationProbability float64
	Scaling             FitnessScaling
	Selection           Selection
	Crossover           CrossoverStrategy
	MutationScaling     MutationScaling
}

func DefaultSubPopulationConfig() SubPopulationConfig {
	return SubPopulationConfig{
		PopulationCount:     defaultPopulationCount,
		EliteFraction:       defaultEliteFraction,
		CrossoverFraction:   defaultCrossoverFraction,
		MutationProbability: defaultMutationProbability,
		Scaling:             RankScaling{},
		Selection:           StochasticUniformSelection{},
		Crossover:           Discrete(ScatteredDiscreteCrossover{Parents: 2, CheckClones: true}),
		MutationScaling:     RichardScaling{},
	}
}

// Counts derives elite, crossover and mutation slot counts. They always sum
// to PopulationCount.
func (c SubPopulationConfig) Counts() (elite, crossover, mutation int) {
	elite = int(math.Ceil(float64(c.PopulationCount)*c.EliteFraction - countEpsilon))
	crossover = int(math.Floor(float64(c.PopulationCount)*c.CrossoverFraction + countEpsilon))
	if elite+crossover > c.PopulationCount {
		crossover = c.PopulationCount - elite
	}
	mutation = c.PopulationCount - elite - crossover
	return elite, crossover, mutation
}

// ParentsNeeded is the number of parents selected per generation.
func (c SubPopulationConfig) ParentsNeeded() int {
	_, crossover, mutation := c.Counts()
	return c.Crossover.ParentCount()*crossover + mutation
}

func (c SubPopulationConfig) validate(index int) error {
	prefix := fmt.Sprintf("sub-population %d", index)
	if c.PopulationCount <= 0 {
		return invalidConfig("%s: population count must be > 0, got %d", prefix, c.PopulationCount)
	}
	if !inUnitRange(c.EliteFraction) {
		return invalidConfig("%s: elite fraction must be in [0,1], got %g", prefix, c.EliteFraction)
	}
	if !inUnitRange(c.CrossoverFraction) {
		return invalidConfig("%s: crossover fraction must be in [0,1], got %g", prefix, c.CrossoverFraction)
	}
	if c.EliteFraction+c.CrossoverFraction > 1 {
		return invalidConfig("%s: elite fraction + crossover fraction must be <= 1, got %g", prefix, c.EliteFraction+c.CrossoverFraction)
	}
	if !inUnitRange(c.MutationProbability) {
		return invalidConfig("%s: mutation probability must be in [0,1], got %g", prefix, c.MutationProbability)
	}
	if c.Scaling == nil {
		return invalidConfig("%s: fitness scaling is required", prefix)
	}
	if c.Selection == nil {
		return invalidConfig("%s: selection is required", prefix)
	}
	if c.MutationScaling == nil {
		return invalidConfig("%s: mutation scaling is required", prefix)
	}
	if err := c.Crossover.validate(); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

// Config describes one run. Exactly one of Prototype and Seeds is set; Seeds
// holds one population per sub-population.
type Config struct {
	Prototype      Prototype
	Seeds          [][]Individual
	SubPopulations []SubPopulationConfig

	// MaxGenerationCount of zero defaults to 200 generations per variable.
	MaxGenerationCount  int
	MaxExecutionTime    time.Duration
	TargetFitness       float64
	MaxStaleGenerations int

	MigrationInterval int
	MigrationStrategy MigrationStrategy
	MigrationProcess  MigrationProcess

	ForceCloneMutation    bool
	MutationAttemptCutoff int

	Seed   uint64
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		SubPopulations:        []SubPopulationConfig{DefaultSubPopulationConfig()},
		TargetFitness:         defaultTargetFitness,
		MigrationInterval:     math.MaxInt,
		MigrationStrategy:     ElitismMigration{N: defaultMigrationCount},
		MigrationProcess:      NetworkMigration{},
		ForceCloneMutation:    true,
		MutationAttemptCutoff: defaultMutationAttemptCutoff,
		Seed:                  defaultSeed,
	}
}

func (c Config) variableCount() int {
	if c.Prototype != nil {
		return c.Prototype.VariableCount()
	}
	for _, pop := range c.Seeds {
		if len(pop) > 0 {
			return pop[0].VariableCount()
		}
	}
	return 0
}

func (c Config) withDefaults() Config {
	if c.MaxGenerationCount == 0 {
		c.MaxGenerationCount = defaultGenerationsPerGene * max(1, c.variableCount())
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate reports the first configuration error, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if (c.Prototype == nil) == (len(c.Seeds) == 0) {
		return invalidConfig("exactly one of prototype and seed populations is required")
	}
	if len(c.SubPopulations) == 0 {
		return invalidConfig("at least one sub-population is required")
	}
	for i, sp := range c.SubPopulations {
		if err := sp.validate(i); err != nil {
			return err
		}
	}
	if len(c.Seeds) > 0 {
		if len(c.Seeds) != len(c.SubPopulations) {
			return invalidConfig("seed populations (%d) must match sub-populations (%d)", len(c.Seeds), len(c.SubPopulations))
		}
		for i, pop := range c.Seeds {
			if len(pop) != c.SubPopulations[i].PopulationCount {
				return invalidConfig("seed population %d has %d individuals, want %d", i, len(pop), c.SubPopulations[i].PopulationCount)
			}
			for j, ind := range pop {
				if ind == nil {
					return invalidConfig("seed population %d: individual %d is nil", i, j)
				}
			}
		}
	}
	if c.MaxGenerationCount < 0 {
		return invalidConfig("max generation count must be >= 0, got %d", c.MaxGenerationCount)
	}
	if c.MaxExecutionTime < 0 {
		return invalidConfig("max execution time must be >= 0, got %s", c.MaxExecutionTime)
	}
	if math.IsNaN(c.TargetFitness) {
		return invalidConfig("target fitness must be a number")
	}
	if c.MaxStaleGenerations < 0 {
		return invalidConfig("max stale generations must be >= 0, got %d", c.MaxStaleGenerations)
	}
	if c.MigrationInterval <= 0 {
		return invalidConfig("migration interval must be > 0, got %d", c.MigrationInterval)
	}
	if c.MigrationStrategy == nil {
		return invalidConfig("migration strategy is required")
	}
	if c.MigrationStrategy.Count() < 0 {
		return invalidConfig("migration count must be >= 0, got %d", c.MigrationStrategy.Count())
	}
	if c.MigrationProcess == nil {
		return invalidConfig("migration process is required")
	}
	if c.ForceCloneMutation && c.MutationAttemptCutoff <= 0 {
		return invalidConfig("mutation attempt cutoff must be > 0, got %d", c.MutationAttemptCutoff)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// Builder assembles a Config starting from DefaultConfig.
type Builder struct {
	cfg Config
}

func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

func (b *Builder) Prototype(p Prototype) *Builder {
	b.cfg.Prototype = p
	return b
}

func (b *Builder) Seeds(populations ...[]Individual) *Builder {
	b.cfg.Seeds = populations
	return b
}

// SubPopulations replaces the sub-population list with n copies of the
// current first sub-population configuration.
func (b *Builder) SubPopulations(n int) *Builder {
	base := DefaultSubPopulationConfig()
	if len(b.cfg.SubPopulations) > 0 {
		base = b.cfg.SubPopulations[0]
	}
	b.cfg.SubPopulations = make([]SubPopulationConfig, max(n, 0))
	for i := range b.cfg.SubPopulations {
		b.cfg.SubPopulations[i] = base
	}
	return b
}

// EachSubPopulation applies fn to every sub-population configuration.
func (b *Builder) EachSubPopulation(fn func(i int, sp *SubPopulationConfig)) *Builder {
	for i := range b.cfg.SubPopulations {
		fn(i, &b.cfg.SubPopulations[i])
	}
	return b
}

func (b *Builder) PopulationCount(n int) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) { sp.PopulationCount = n })
}

func (b *Builder) Fractions(elite, crossover float64) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) {
		sp.EliteFraction = elite
		sp.CrossoverFraction = crossover
	})
}

func (b *Builder) MutationProbability(p float64) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) { sp.MutationProbability = p })
}

func (b *Builder) Scaling(s FitnessScaling) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) { sp.Scaling = s })
}

func (b *Builder) Selection(s Selection) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) { sp.Selection = s })
}

func (b *Builder) Crossover(s CrossoverStrategy) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) { sp.Crossover = s })
}

func (b *Builder) MutationScaling(s MutationScaling) *Builder {
	return b.EachSubPopulation(func(_ int, sp *SubPopulationConfig) { sp.MutationScaling = s })
}

func (b *Builder) MaxGenerations(n int) *Builder {
	b.cfg.MaxGenerationCount = n
	return b
}

func (b *Builder) MaxExecutionTime(d time.Duration) *Builder {
	b.cfg.MaxExecutionTime = d
	return b
}

func (b *Builder) TargetFitness(f float64) *Builder {
	b.cfg.TargetFitness = f
	return b
}

func (b *Builder) MaxStaleGenerations(n int) *Builder {
	b.cfg.MaxStaleGenerations = n
	return b
}

func (b *Builder) Migration(interval int, strategy MigrationStrategy, process MigrationProcess) *Builder {
	b.cfg.MigrationInterval = interval
	b.cfg.MigrationStrategy = strategy
	b.cfg.MigrationProcess = process
	return b
}

func (b *Builder) ForceCloneMutation(enabled bool, cutoff int) *Builder {
	b.cfg.ForceCloneMutation = enabled
	b.cfg.MutationAttemptCutoff = cutoff
	return b
}

func (b *Builder) Seed(seed uint64) *Builder {
	b.cfg.Seed = seed
	return b
}

func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.cfg.Logger = logger
	return b
}

// Config returns a copy of the configuration assembled so far.
func (b *Builder) Config() Config {
	return b.cfg
}

func (b *Builder) Build() (*Engine, error) {
	return NewEngine(b.cfg)
}
