package evo

import (
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// State is the orchestrator lifecycle state. The Stopped* values double as
// the termination reason of a calculation.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StoppedFitness
	StoppedGeneration
	StoppedTime
	StoppedStaleness
	StoppedInterrupt
	StoppedStep
	StoppedException
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StoppedFitness:
		return "fitness"
	case StoppedGeneration:
		return "generation"
	case StoppedTime:
		return "runtime"
	case StoppedStaleness:
		return "staleness"
	case StoppedInterrupt:
		return "interrupted"
	case StoppedStep:
		return "generation_step"
	case StoppedException:
		return "exception"
	default:
		return "unknown"
	}
}

// Summary holds descriptive statistics over fitness values.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		Count:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Sum:    floats.Sum(values),
		Mean:   mean,
		StdDev: std,
	}
}

// Snapshot is an immutable view of every sub-population at one generation.
type Snapshot struct {
	Generation     int
	Populations    [][]Individual
	Summary        Summary
	SubPopulations []Summary
	Elapsed        time.Duration
	Migrated       bool
}

func newSnapshot(generation int, populations [][]Individual, elapsed time.Duration, migrated bool) Snapshot {
	copied := make([][]Individual, len(populations))
	perPop := make([]Summary, len(populations))
	all := make([]float64, 0)
	for i, pop := range populations {
		copied[i] = slices.Clone(pop)
		values := fitnessValues(pop)
		perPop[i] = Summarize(values)
		all = append(all, values...)
	}
	return Snapshot{
		Generation:     generation,
		Populations:    copied,
		Summary:        Summarize(all),
		SubPopulations: perPop,
		Elapsed:        elapsed,
		Migrated:       migrated,
	}
}

// Best returns the fittest individual across sub-populations.
func (s Snapshot) Best() Individual {
	var best Individual
	for _, pop := range s.Populations {
		if len(pop) == 0 {
			continue
		}
		if best == nil || compareFitness(pop[0].Fitness(), best.Fitness()) < 0 {
			best = pop[0]
		}
	}
	return best
}

// Result is the append-only history of one calculation. It is written by
// the orchestrator and safe to read concurrently.
type Result struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	reason    State
	err       error
	elapsed   time.Duration
	done      bool
}

func (r *Result) add(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.snapshots); n > 0 && s.Elapsed < r.snapshots[n-1].Elapsed {
		s.Elapsed = r.snapshots[n-1].Elapsed
	}
	r.snapshots = append(r.snapshots, s)
	r.elapsed = s.Elapsed
}

func (r *Result) finish(s Snapshot, reason State, err error) {
	r.add(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reason = reason
	r.err = err
	r.done = true
}

func (r *Result) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.snapshots)
}

func (r *Result) Latest() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.snapshots) == 0 {
		return Snapshot{}, false
	}
	return r.snapshots[len(r.snapshots)-1], true
}

// Snapshot returns the most recent snapshot recorded for generation.
func (r *Result) Snapshot(generation int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.snapshots) - 1; i >= 0; i-- {
		if r.snapshots[i].Generation == generation {
			return r.snapshots[i], true
		}
	}
	return Snapshot{}, false
}

// Generations lists recorded generations in insertion order without
// duplicates.
func (r *Result) Generations() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		if n := len(out); n == 0 || out[n-1] != s.Generation {
			out = append(out, s.Generation)
		}
	}
	return out
}

func (r *Result) Best() Individual {
	latest, ok := r.Latest()
	if !ok {
		return nil
	}
	return latest.Best()
}

// Fitness is the best fitness of the latest snapshot.
func (r *Result) Fitness() float64 {
	best := r.Best()
	if best == nil {
		return math.Inf(1)
	}
	return best.Fitness()
}

func (r *Result) Summary() Summary {
	latest, ok := r.Latest()
	if !ok {
		return Summarize(nil)
	}
	return latest.Summary
}

func (r *Result) Reason() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reason
}

// Err is the failure that stopped a calculation with StoppedException.
func (r *Result) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Result) ExecutionTime() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elapsed
}

// Done reports whether the final snapshot has been appended.
func (r *Result) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}
