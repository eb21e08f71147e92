package evo

import "slices"

// MigrationStrategy picks export candidates from one best-first population.
type MigrationStrategy interface {
	Name() string
	Count() int
	Candidates(population []Individual, count int) []Individual
}

// MigrationProcess defines which sub-populations feed a target.
type MigrationProcess interface {
	Name() string
	Migrants(populations [][]Individual, target, count int, strategy MigrationStrategy) []Individual
}

// ElitismMigration exports the best N individuals.
type ElitismMigration struct {
	N int
}

func (ElitismMigration) Name() string { return "elitism" }

func (m ElitismMigration) Count() int { return m.N }

func (ElitismMigration) Candidates(population []Individual, count int) []Individual {
	count = min(max(count, 0), len(population))
	return slices.Clone(population[:count])
}

// AncientsMigration exports the N individuals with the oldest birth
// generation, fitter first among equal births.
type AncientsMigration struct {
	N int
}

func (AncientsMigration) Name() string { return "ancients" }

func (m AncientsMigration) Count() int { return m.N }

func (AncientsMigration) Candidates(population []Individual, count int) []Individual {
	count = min(max(count, 0), len(population))
	ordered := slices.Clone(population)
	slices.SortStableFunc(ordered, func(a, b Individual) int {
		return a.Lineage().Birth - b.Lineage().Birth
	})
	return ordered[:count]
}

// NetworkMigration pools candidates from every other sub-population and
// applies the strategy again to the pool.
type NetworkMigration struct{}

func (NetworkMigration) Name() string { return "network" }

func (NetworkMigration) Migrants(populations [][]Individual, target, count int, strategy MigrationStrategy) []Individual {
	sources := make([]int, 0, len(populations)-1)
	for i := range populations {
		if i != target {
			sources = append(sources, i)
		}
	}
	return poolMigrants(populations, sources, count, strategy)
}

// ForwardMigration feeds a target from every lower indexed sub-population.
type ForwardMigration struct{}

func (ForwardMigration) Name() string { return "forward" }

func (ForwardMigration) Migrants(populations [][]Individual, target, count int, strategy MigrationStrategy) []Individual {
	sources := make([]int, 0, target)
	for i := 0; i < target; i++ {
		sources = append(sources, i)
	}
	return poolMigrants(populations, sources, count, strategy)
}

// SingleForwardMigration feeds a target from its predecessor only. The first
// sub-population receives nothing.
type SingleForwardMigration struct{}

func (SingleForwardMigration) Name() string { return "single_forward" }

func (SingleForwardMigration) Migrants(populations [][]Individual, target, count int, strategy MigrationStrategy) []Individual {
	if target == 0 {
		return nil
	}
	return strategy.Candidates(populations[target-1], count)
}

// SingleForwardWrapMigration is SingleForwardMigration on a ring.
type SingleForwardWrapMigration struct{}

func (SingleForwardWrapMigration) Name() string { return "single_forward_wrap" }

func (SingleForwardWrapMigration) Migrants(populations [][]Individual, target, count int, strategy MigrationStrategy) []Individual {
	n := len(populations)
	if n < 2 {
		return nil
	}
	return strategy.Candidates(populations[(target-1+n)%n], count)
}

// BidirectionalWrapMigration feeds a target from both ring neighbours.
type BidirectionalWrapMigration struct{}

func (BidirectionalWrapMigration) Name() string { return "bidirectional_wrap" }

func (BidirectionalWrapMigration) Migrants(populations [][]Individual, target, count int, strategy MigrationStrategy) []Individual {
	n := len(populations)
	if n < 2 {
		return nil
	}
	left, right := (target-1+n)%n, (target+1)%n
	sources := []int{left}
	if right != left {
		sources = append(sources, right)
	}
	return poolMigrants(populations, sources, count, strategy)
}

func poolMigrants(populations [][]Individual, sources []int, count int, strategy MigrationStrategy) []Individual {
	if len(sources) == 0 {
		return nil
	}
	pool := make([]Individual, 0, len(sources)*count)
	for _, idx := range sources {
		pool = append(pool, strategy.Candidates(populations[idx], count)...)
	}
	SortByFitness(pool)
	return strategy.Candidates(pool, count)
}

// migrate computes migrants for every target from the same pre-migration
// snapshot, then merges them into each target's worst slots. The returned
// populations are new slices; the input is not modified.
func migrate(populations [][]Individual, strategy MigrationStrategy, process MigrationProcess) [][]Individual {
	count := strategy.Count()
	incoming := make([][]Individual, len(populations))
	for target := range populations {
		incoming[target] = process.Migrants(populations, target, count, strategy)
	}
	out := make([][]Individual, len(populations))
	for target, pop := range populations {
		out[target] = mergeWorst(pop, incoming[target], count)
	}
	return out
}

// mergeWorst replaces the worst k slots of a best-first population with the
// best k of those residents and the migrants, so no retained slot gets worse.
func mergeWorst(population, migrants []Individual, k int) []Individual {
	out := slices.Clone(population)
	k = min(k, len(out))
	if k <= 0 || len(migrants) == 0 {
		return out
	}
	tail := len(out) - k
	candidates := make([]Individual, 0, k+len(migrants))
	candidates = append(candidates, out[tail:]...)
	candidates = append(candidates, migrants...)
	SortByFitness(candidates)
	copy(out[tail:], candidates[:k])
	SortByFitness(out)
	return out
}
