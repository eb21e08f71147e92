package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"islandga/internal/rng"
)

const creationStreamOffset = 1 << 16

var ErrEngineRunning = errors.New("calculation already running")

// Engine evolves a set of sub-populations generation by generation. Each
// sub-population is reproduced on its own worker; migration and stop checks
// run on the calling goroutine between generations.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	steps  []*generationStep

	initial [][]Individual

	mu          sync.RWMutex
	populations [][]Individual
	generation  int
	state       State

	sources    []rng.Source
	stale      *staleWindow
	staleCount int
	bestSeen   float64

	listeners   listenerSet
	interrupted atomic.Bool
	running     atomic.Bool
}

// NewEngine validates cfg and creates the initial populations. Fitness of
// every initial individual is evaluated in parallel.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
		steps:  make([]*generationStep, len(cfg.SubPopulations)),
	}
	for i, sp := range cfg.SubPopulations {
		e.steps[i] = newGenerationStep(i, sp, cfg)
	}
	e.warnConfig()

	initial, err := createInitial(cfg)
	if err != nil {
		return nil, err
	}
	e.initial = initial
	e.restore()
	return e, nil
}

func createInitial(cfg Config) ([][]Individual, error) {
	populations := make([][]Individual, len(cfg.SubPopulations))
	for i, sp := range cfg.SubPopulations {
		if len(cfg.Seeds) > 0 {
			populations[i] = slices.Clone(cfg.Seeds[i])
			continue
		}
		src := rng.Stream(cfg.Seed, creationStreamOffset+i)
		pop := make([]Individual, sp.PopulationCount)
		for j := range pop {
			pop[j] = cfg.Prototype.Create(src).WithLineage(Lineage{Birth: InitialBirth, Origin: OriginInitialPopulation})
		}
		populations[i] = pop
	}

	p := pool.New().WithErrors().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, pop := range populations {
		for _, ind := range pop {
			p.Go(func() error {
				if r := panics.Try(func() { ind.Fitness() }); r != nil {
					return fmt.Errorf("evaluate initial population: %w", r.AsError())
				}
				return nil
			})
		}
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	for _, pop := range populations {
		SortByFitness(pop)
	}
	return populations, nil
}

func (e *Engine) warnConfig() {
	for _, step := range e.steps {
		log := step.logger
		if step.eliteCount == 0 {
			log.Warn("elite count is 0, best fitness may regress between generations")
		}
		if step.crossoverCount == 0 {
			log.Warn("crossover count is 0")
		}
		if step.mutationCount == 0 {
			log.Warn("mutation count is 0")
		}
		if step.config.MutationProbability == 0 {
			log.Warn("mutation probability is 0")
		}
	}
	if len(e.steps) > 1 && e.cfg.MigrationInterval > e.cfg.MaxGenerationCount {
		e.logger.Warn("migration interval exceeds max generation count, migration disabled",
			"interval", e.cfg.MigrationInterval,
			"max_generations", e.cfg.MaxGenerationCount,
		)
	}
}

// restore puts the engine back to its initial populations and seeds.
func (e *Engine) restore() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.populations = make([][]Individual, len(e.initial))
	for i, pop := range e.initial {
		e.populations[i] = slices.Clone(pop)
	}
	e.generation = 0
	e.state = StateInitialized
	e.sources = make([]rng.Source, len(e.steps))
	for i := range e.sources {
		e.sources[i] = rng.Stream(e.cfg.Seed, i)
	}
	e.stale = newStaleWindow(e.cfg.MaxStaleGenerations)
	e.staleCount = 0
	e.bestSeen = bestFitness(e.populations)
	for _, step := range e.steps {
		step.config.MutationScaling.Reset()
	}
}

// Reset restores the seed populations and random streams so that a
// following calculation replays the same generations.
func (e *Engine) Reset() error {
	if e.running.Load() {
		return ErrEngineRunning
	}
	e.restore()
	return nil
}

// Stop asks a running calculation to finish at the next generation boundary.
func (e *Engine) Stop() {
	e.interrupted.Store(true)
}

func (e *Engine) AddListener(l Listener) bool {
	return e.listeners.add(l)
}

func (e *Engine) RemoveListener(l Listener) bool {
	return e.listeners.remove(l)
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Generation is the number of generations completed since the last reset.
func (e *Engine) Generation() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Populations returns a copy of the current sub-populations.
func (e *Engine) Populations() [][]Individual {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([][]Individual, len(e.populations))
	for i, pop := range e.populations {
		out[i] = slices.Clone(pop)
	}
	return out
}

func (e *Engine) MaxGenerationCount() int {
	return e.cfg.MaxGenerationCount
}

// Calculate runs generations until a stop condition holds. recordEvery <= 0
// records only the final generation; maxSteps <= 0 leaves the number of
// generations in this call unbounded. Failures inside a generation stop the
// run with StoppedException and are reported through Result.Err.
func (e *Engine) Calculate(ctx context.Context, recordEvery, maxSteps int, verbose bool) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrEngineRunning
	}
	defer e.running.Store(false)
	e.interrupted.Store(false)

	e.mu.Lock()
	e.state = StateRunning
	populations := e.populations
	e.mu.Unlock()

	start := time.Now()
	result := &Result{}
	lastGeneration := e.generation - 1
	lastMigrated := false
	result.add(newSnapshot(lastGeneration, populations, 0, false))

	reason := StateRunning
	var runErr error
	maxGen := e.cfg.MaxGenerationCount
	for steps := 0; ; steps++ {
		gen := e.generation
		if gen >= maxGen {
			reason = StoppedGeneration
			break
		}
		if maxSteps > 0 && steps >= maxSteps {
			reason = StoppedStep
			break
		}
		if e.interrupted.Load() || ctx.Err() != nil {
			reason = StoppedInterrupt
			break
		}
		if e.cfg.MaxExecutionTime > 0 && time.Since(start) > e.cfg.MaxExecutionTime {
			reason = StoppedTime
			break
		}

		outputs, err := e.runSteps(e.stepInputs(populations, gen))
		if err != nil {
			reason = StoppedException
			runErr = fmt.Errorf("generation %d: %w", gen, err)
			e.logger.Error("generation failed", "generation", gen, "error", err)
			break
		}

		next := make([][]Individual, len(outputs))
		for i, out := range outputs {
			next[i] = out.population
			e.logger.Debug("generation step done", "subpopulation", i, "generation", gen, "previous_best", out.previousBest)
		}

		migrated := false
		if len(next) > 1 && gen != 0 && gen%e.cfg.MigrationInterval == 0 {
			next = migrate(next, e.cfg.MigrationStrategy, e.cfg.MigrationProcess)
			migrated = true
		}

		e.mu.Lock()
		e.populations = next
		e.generation = gen + 1
		e.mu.Unlock()
		populations = next
		lastGeneration = gen
		lastMigrated = migrated

		best := bestFitness(next)
		if compareFitness(best, e.bestSeen) < 0 {
			e.bestSeen = best
			e.staleCount = 0
		} else {
			e.staleCount++
		}

		if best <= e.cfg.TargetFitness {
			reason = StoppedFitness
			break
		}
		if gen == maxGen-1 {
			reason = StoppedGeneration
			break
		}
		if e.stale.push(best) {
			reason = StoppedStaleness
			break
		}

		if recordEvery > 0 && gen%recordEvery == 0 {
			snap := newSnapshot(gen, next, time.Since(start), migrated)
			result.add(snap)
			if verbose {
				e.logSnapshot(snap)
			}
			e.listeners.intermediate(result)
		}
	}

	final := newSnapshot(lastGeneration, populations, time.Since(start), lastMigrated)
	result.finish(final, reason, runErr)

	e.mu.Lock()
	e.state = reason
	e.mu.Unlock()

	if verbose {
		e.logSnapshot(final)
		e.logger.Info("calculation finished",
			"reason", reason.String(),
			"generations", e.generation,
			"best_fitness", result.Fitness(),
			"elapsed", result.ExecutionTime(),
		)
	}
	e.listeners.final(result)
	return result, nil
}

func (e *Engine) stepInputs(populations [][]Individual, gen int) []stepInput {
	inputs := make([]stepInput, len(populations))
	for i, pop := range populations {
		inputs[i] = stepInput{
			population:       pop,
			generation:       gen,
			maxGeneration:    e.cfg.MaxGenerationCount,
			targetFitness:    e.cfg.TargetFitness,
			staleGenerations: e.staleCount,
			src:              e.sources[i],
		}
	}
	return inputs
}

func (e *Engine) logSnapshot(s Snapshot) {
	attrs := []any{
		"generation", s.Generation,
		"best", s.Summary.Min,
		"mean", s.Summary.Mean,
		"worst", s.Summary.Max,
		"migrated", s.Migrated,
	}
	for i, sp := range s.SubPopulations {
		attrs = append(attrs, fmt.Sprintf("subpopulation_%d_best", i), sp.Min)
	}
	e.logger.Info("generation", attrs...)
}

// runSteps reproduces every sub-population on its own goroutine and waits
// for all of them. On failure no output is returned.
func (e *Engine) runSteps(inputs []stepInput) ([]stepOutput, error) {
	outputs := make([]stepOutput, len(inputs))
	p := pool.New().WithErrors().WithMaxGoroutines(len(inputs))
	for i, in := range inputs {
		p.Go(func() error {
			var err error
			if r := panics.Try(func() { outputs[i], err = e.steps[i].run(in) }); r != nil {
				return fmt.Errorf("sub-population %d: %w", i, r.AsError())
			}
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
