package evo

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"islandga/internal/rng"
)

const (
	hashedParentThreshold = 14
	minCloneScale         = 1e-10
)

// generationStep reproduces one sub-population. It owns no mutable state
// shared with other sub-populations.
type generationStep struct {
	index  int
	config SubPopulationConfig

	eliteCount     int
	crossoverCount int
	mutationCount  int
	parentsNeeded  int

	forceCloneMutation    bool
	mutationAttemptCutoff int

	logger *slog.Logger
}

func newGenerationStep(index int, sp SubPopulationConfig, cfg Config) *generationStep {
	if c, ok := sp.MutationScaling.(cloneableScaling); ok {
		sp.MutationScaling = c.Clone()
	}
	elite, crossover, mutation := sp.Counts()
	return &generationStep{
		index:                 index,
		config:                sp,
		eliteCount:            elite,
		crossoverCount:        crossover,
		mutationCount:         mutation,
		parentsNeeded:         sp.ParentsNeeded(),
		forceCloneMutation:    cfg.ForceCloneMutation,
		mutationAttemptCutoff: cfg.MutationAttemptCutoff,
		logger:                cfg.Logger.With("subpopulation", index),
	}
}

type stepInput struct {
	population       []Individual
	generation       int
	maxGeneration    int
	targetFitness    float64
	staleGenerations int
	src              rng.Source
}

type stepOutput struct {
	population   []Individual
	previousBest float64
}

func (g *generationStep) run(in stepInput) (stepOutput, error) {
	population := in.population
	src := in.src
	previousBest := population[0].Fitness()

	scaled, err := g.config.Scaling.Scale(population, g.parentsNeeded)
	if err != nil {
		return stepOutput{}, fmt.Errorf("scale sub-population %d: %w", g.index, err)
	}
	parents := g.config.Selection.Select(src, scaled, g.parentsNeeded)
	if len(parents) != g.parentsNeeded {
		return stepOutput{}, fmt.Errorf("selection %s returned %d parents, want %d", g.config.Selection.Name(), len(parents), g.parentsNeeded)
	}
	src.Shuffle(len(parents), func(i, j int) {
		parents[i], parents[j] = parents[j], parents[i]
	})

	next := make([]Individual, 0, len(population))
	next = append(next, population[:g.eliteCount]...)

	scale := g.config.MutationScaling.ScaleFactor(in.generation, in.maxGeneration, previousBest, in.targetFitness, in.staleGenerations)
	for i := 0; i < g.mutationCount; i++ {
		var parent Individual
		parent, parents = popTail(parents)
		child := parent.Mutate(src, g.config.MutationProbability, scale)
		next = append(next, child.WithLineage(Lineage{Birth: in.generation, Origin: OriginMutation}))
	}

	parentCount := g.config.Crossover.ParentCount()
	hashed := parentCount >= hashedParentThreshold
	for i := 0; i < g.crossoverCount; i++ {
		var participants []Individual
		var repeated bool
		participants, parents, repeated = takeDistinctParents(parents, parentCount, hashed)
		if repeated {
			g.logger.Warn("not enough distinct crossover parents, reusing a parent", "generation", in.generation)
		}
		child, err := Crossover(src, g.config.Crossover, participants)
		if err != nil {
			return stepOutput{}, fmt.Errorf("sub-population %d: %w", g.index, err)
		}
		next = append(next, child.WithLineage(Lineage{Birth: in.generation, Origin: OriginCrossover}))
	}

	if g.forceCloneMutation {
		g.removeClones(src, next, in.generation, scale)
	}
	SortByFitness(next)
	return stepOutput{population: next, previousBest: previousBest}, nil
}

// removeClones re-mutates duplicates, admitting the oldest individuals first.
func (g *generationStep) removeClones(src rng.Source, next []Individual, generation int, scale float64) {
	order := make([]int, len(next))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return next[a].Lineage().Birth - next[b].Lineage().Birth
	})
	if scale < minCloneScale || math.IsNaN(scale) {
		scale = minCloneScale
	}

	seen := make(map[string]struct{}, len(next))
	for _, idx := range order {
		ind := next[idx]
		for attempt := 1; ; attempt++ {
			if _, dup := seen[ind.Fingerprint()]; !dup {
				break
			}
			if attempt > g.mutationAttemptCutoff {
				g.logger.Warn("clone mutation cutoff reached, keeping duplicate",
					"generation", generation,
					"attempts", g.mutationAttemptCutoff,
				)
				break
			}
			probability := g.config.MutationProbability
			if g.mutationAttemptCutoff > 1 {
				probability *= float64(attempt) / float64(g.mutationAttemptCutoff-1)
			}
			ind = ind.Mutate(src, math.Min(probability, 1), scale).
				WithLineage(Lineage{Birth: generation, Origin: OriginForceCloneMutation})
		}
		seen[ind.Fingerprint()] = struct{}{}
		next[idx] = ind
	}
}

func popTail(pool []Individual) (Individual, []Individual) {
	last := len(pool) - 1
	return pool[last], pool[:last]
}

// takeDistinctParents pops k participants from the tail of pool, skipping
// individuals equal to an already chosen one. When no distinct candidate is
// left the tail is reused and repeated is true. hashed switches the
// membership check from a linear scan to a set lookup; both return the same
// participants.
func takeDistinctParents(pool []Individual, k int, hashed bool) (participants, rest []Individual, repeated bool) {
	participants = make([]Individual, 0, k)
	var first Individual
	first, pool = popTail(pool)
	participants = append(participants, first)

	var chosen map[string]struct{}
	if hashed {
		chosen = map[string]struct{}{first.Fingerprint(): {}}
	}
	contains := func(ind Individual) bool {
		fp := ind.Fingerprint()
		if hashed {
			_, ok := chosen[fp]
			return ok
		}
		for _, p := range participants {
			if p.Fingerprint() == fp {
				return true
			}
		}
		return false
	}

	for len(participants) < k {
		if len(pool) == 0 {
			participants = append(participants, participants[len(participants)-1])
			repeated = true
			continue
		}
		found := -1
		for i := len(pool) - 1; i >= 0; i-- {
			if !contains(pool[i]) {
				found = i
				break
			}
		}
		var pick Individual
		if found < 0 {
			pick, pool = popTail(pool)
			repeated = true
		} else {
			pick = pool[found]
			pool = slices.Delete(pool, found, found+1)
		}
		participants = append(participants, pick)
		if hashed {
			chosen[pick.Fingerprint()] = struct{}{}
		}
	}
	return participants, pool, repeated
}
