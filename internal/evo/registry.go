package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrStrategyNotFound = errors.New("strategy not found")
)

// StrategyParams carries the tunables a named strategy may read. Zero
// values select each strategy's default.
type StrategyParams struct {
	Parents     int
	AllowClones bool
	Size        int
	Fraction    float64
	Revolutions float64
	Base        string
}

type registry[T any] struct {
	family string
	mu     sync.RWMutex
	m      map[string]func(StrategyParams) (T, error)
}

func newRegistry[T any](family string, builtins map[string]func(StrategyParams) (T, error)) *registry[T] {
	return &registry[T]{family: family, m: builtins}
}

func (r *registry[T]) register(name string, factory func(StrategyParams) (T, error)) error {
	if name == "" {
		return fmt.Errorf("%s name is required", r.family)
	}
	if factory == nil {
		return fmt.Errorf("%s factory is required", r.family)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s %s", ErrStrategyExists, r.family, name)
	}
	r.m[name] = factory
	return nil
}

func (r *registry[T]) build(name string, params StrategyParams) (T, error) {
	r.mu.RLock()
	factory, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %s", ErrStrategyNotFound, r.family, name)
	}
	return factory(params)
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for name := range r.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func defaultParents(p StrategyParams) int {
	if p.Parents <= 0 {
		return 2
	}
	return p.Parents
}

var selections = newRegistry("selection", map[string]func(StrategyParams) (Selection, error){
	"roulette":           func(StrategyParams) (Selection, error) { return RouletteSelection{}, nil },
	"stochastic_uniform": func(StrategyParams) (Selection, error) { return StochasticUniformSelection{}, nil },
	"remainder":          func(StrategyParams) (Selection, error) { return RemainderSelection{}, nil },
	"uniform":            func(StrategyParams) (Selection, error) { return UniformSelection{}, nil },
	"tournament": func(p StrategyParams) (Selection, error) {
		size := p.Size
		if size == 0 {
			size = 2
		}
		return NewTournamentSelection(size)
	},
})

var scalings = newRegistry("scaling", map[string]func(StrategyParams) (FitnessScaling, error){
	"rank":         func(StrategyParams) (FitnessScaling, error) { return RankScaling{}, nil },
	"proportional": func(StrategyParams) (FitnessScaling, error) { return ProportionalScaling{}, nil },
	"top": func(p StrategyParams) (FitnessScaling, error) {
		fraction := p.Fraction
		if fraction == 0 {
			fraction = defaultTopFraction
		}
		return NewTopScaling(fraction)
	},
})

var crossovers = newRegistry("crossover", map[string]func(StrategyParams) (CrossoverStrategy, error){
	"scattered_discrete": func(p StrategyParams) (CrossoverStrategy, error) {
		c, err := NewScatteredDiscrete(defaultParents(p), !p.AllowClones)
		return Discrete(c), err
	},
	"single_point_discrete": func(p StrategyParams) (CrossoverStrategy, error) {
		c, err := NewSinglePointDiscrete(defaultParents(p), !p.AllowClones)
		return Discrete(c), err
	},
	"scattered_fuzzy": func(p StrategyParams) (CrossoverStrategy, error) {
		c, err := NewScatteredFuzzy(defaultParents(p), !p.AllowClones)
		return Fuzzy(c), err
	},
	"single_point_fuzzy": func(p StrategyParams) (CrossoverStrategy, error) {
		c, err := NewSinglePointFuzzy(defaultParents(p), !p.AllowClones)
		return Fuzzy(c), err
	},
	"scattered_fitness_fuzzy": func(p StrategyParams) (CrossoverStrategy, error) {
		var base FitnessScaling = RankScaling{}
		if p.Base != "" {
			var err error
			if base, err = NewScaling(p.Base, StrategyParams{}); err != nil {
				return CrossoverStrategy{}, err
			}
		}
		c, err := NewScatteredFitnessFuzzy(defaultParents(p), base)
		return Fuzzy(c), err
	},
})

var mutationScalings = newRegistry("mutation scaling", map[string]func(StrategyParams) (MutationScaling, error){
	"constant":          func(StrategyParams) (MutationScaling, error) { return ConstantScaling{}, nil },
	"linear_generation": func(StrategyParams) (MutationScaling, error) { return LinearGenerationScaling{}, nil },
	"richard":           func(StrategyParams) (MutationScaling, error) { return RichardScaling{}, nil },
	"ellipse":           func(StrategyParams) (MutationScaling, error) { return EllipseScaling{}, nil },
	"sin": func(p StrategyParams) (MutationScaling, error) {
		return SinScaling{Revolutions: p.Revolutions}, nil
	},
	"linear_fitness":  func(StrategyParams) (MutationScaling, error) { return NewLinearFitnessScaling(), nil },
	"richard_fitness": func(StrategyParams) (MutationScaling, error) { return NewRichardFitnessScaling(), nil },
})

var migrationStrategies = newRegistry("migration strategy", map[string]func(StrategyParams) (MigrationStrategy, error){
	"elitism": func(p StrategyParams) (MigrationStrategy, error) {
		if p.Size < 0 {
			return nil, invalidConfig("migration count must be >= 0, got %d", p.Size)
		}
		return ElitismMigration{N: p.Size}, nil
	},
	"ancients": func(p StrategyParams) (MigrationStrategy, error) {
		if p.Size < 0 {
			return nil, invalidConfig("migration count must be >= 0, got %d", p.Size)
		}
		return AncientsMigration{N: p.Size}, nil
	},
})

var migrationProcesses = newRegistry("migration process", map[string]func(StrategyParams) (MigrationProcess, error){
	"network":             func(StrategyParams) (MigrationProcess, error) { return NetworkMigration{}, nil },
	"forward":             func(StrategyParams) (MigrationProcess, error) { return ForwardMigration{}, nil },
	"single_forward":      func(StrategyParams) (MigrationProcess, error) { return SingleForwardMigration{}, nil },
	"single_forward_wrap": func(StrategyParams) (MigrationProcess, error) { return SingleForwardWrapMigration{}, nil },
	"bidirectional_wrap":  func(StrategyParams) (MigrationProcess, error) { return BidirectionalWrapMigration{}, nil },
})

func init() {
	// age resolves its base through the scaling registry itself.
	_ = scalings.register("age", func(p StrategyParams) (FitnessScaling, error) {
		if p.Base == "" || p.Base == "age" {
			return AgeScaling{Base: RankScaling{}}, nil
		}
		base, err := NewScaling(p.Base, StrategyParams{Fraction: p.Fraction})
		if err != nil {
			return nil, err
		}
		return AgeScaling{Base: base}, nil
	})
}

func RegisterSelection(name string, factory func(StrategyParams) (Selection, error)) error {
	return selections.register(name, factory)
}

func NewSelection(name string, params StrategyParams) (Selection, error) {
	return selections.build(name, params)
}

func SelectionNames() []string { return selections.names() }

func RegisterScaling(name string, factory func(StrategyParams) (FitnessScaling, error)) error {
	return scalings.register(name, factory)
}

func NewScaling(name string, params StrategyParams) (FitnessScaling, error) {
	return scalings.build(name, params)
}

func ScalingNames() []string { return scalings.names() }

func RegisterCrossover(name string, factory func(StrategyParams) (CrossoverStrategy, error)) error {
	return crossovers.register(name, factory)
}

func NewCrossover(name string, params StrategyParams) (CrossoverStrategy, error) {
	return crossovers.build(name, params)
}

func CrossoverNames() []string { return crossovers.names() }

func RegisterMutationScaling(name string, factory func(StrategyParams) (MutationScaling, error)) error {
	return mutationScalings.register(name, factory)
}

func NewMutationScaling(name string, params StrategyParams) (MutationScaling, error) {
	return mutationScalings.build(name, params)
}

func MutationScalingNames() []string { return mutationScalings.names() }

func RegisterMigrationStrategy(name string, factory func(StrategyParams) (MigrationStrategy, error)) error {
	return migrationStrategies.register(name, factory)
}

func NewMigrationStrategy(name string, params StrategyParams) (MigrationStrategy, error) {
	return migrationStrategies.build(name, params)
}

func MigrationStrategyNames() []string { return migrationStrategies.names() }

func RegisterMigrationProcess(name string, factory func(StrategyParams) (MigrationProcess, error)) error {
	return migrationProcesses.register(name, factory)
}

func NewMigrationProcess(name string, params StrategyParams) (MigrationProcess, error) {
	return migrationProcesses.build(name, params)
}

func MigrationProcessNames() []string { return migrationProcesses.names() }
