// Package problem holds the built-in benchmark problems exposed by name.
package problem

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"islandga/internal/evo"
	"islandga/internal/prototype"
)

var ErrProblemNotFound = errors.New("problem not found")

// Problem builds a prototype for a requested dimension count.
type Problem struct {
	Name          string
	Description   string
	Genes         string
	Optimum       float64
	MinDimensions int
	Build         func(dimensions int) (evo.Prototype, error)
}

var problems = map[string]Problem{
	"sphere": {
		Name:          "sphere",
		Description:   "sum of squares",
		Genes:         "float64",
		MinDimensions: 1,
		Build: func(dims int) (evo.Prototype, error) {
			return prototype.NewFloat64Prototype(prototype.Float64Config{
				Ranges:  uniformRanges(dims, -5.12, 5.12),
				Fitness: Sphere,
			})
		},
	},
	"rosenbrock": {
		Name:          "rosenbrock",
		Description:   "banana valley, optimum at (1,...,1)",
		Genes:         "float64",
		MinDimensions: 2,
		Build: func(dims int) (evo.Prototype, error) {
			return prototype.NewFloat64Prototype(prototype.Float64Config{
				Ranges:  uniformRanges(dims, -2.048, 2.048),
				Fitness: Rosenbrock,
			})
		},
	},
	"rastrigin": {
		Name:          "rastrigin",
		Description:   "highly multimodal, optimum at the origin",
		Genes:         "float64",
		MinDimensions: 1,
		Build: func(dims int) (evo.Prototype, error) {
			return prototype.NewFloat64Prototype(prototype.Float64Config{
				Ranges:  uniformRanges(dims, -5.12, 5.12),
				Bounds:  uniformRanges(dims, -5.12, 5.12),
				Fitness: Rastrigin,
			})
		},
	},
	"intquadratic": {
		Name:          "intquadratic",
		Description:   "integer distance to 7 on every gene",
		Genes:         "int",
		MinDimensions: 1,
		Build: func(dims int) (evo.Prototype, error) {
			return prototype.NewIntPrototype(prototype.IntConfig{
				Ranges:  uniformRanges(dims, -50, 50),
				Fitness: IntQuadratic,
			})
		},
	},
	"onemax": {
		Name:          "onemax",
		Description:   "count of unset bits",
		Genes:         "bool",
		MinDimensions: 1,
		Build: func(dims int) (evo.Prototype, error) {
			return prototype.NewBoolPrototype(prototype.BoolConfig{Length: dims, Fitness: OneMax})
		},
	},
}

func Lookup(name string) (Problem, error) {
	p, ok := problems[name]
	if !ok {
		return Problem{}, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return p, nil
}

// Prototype resolves name and builds its prototype for dims variables.
func Prototype(name string, dims int) (evo.Prototype, error) {
	p, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if dims < p.MinDimensions {
		return nil, fmt.Errorf("problem %s requires at least %d dimensions, got %d", name, p.MinDimensions, dims)
	}
	return p.Build(dims)
}

func Names() []string {
	out := make([]string, 0, len(problems))
	for name := range problems {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func Sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func Rosenbrock(x []float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

func IntQuadratic(x []int) float64 {
	sum := 0.0
	for _, v := range x {
		d := float64(v - 7)
		sum += d * d
	}
	return sum
}

func OneMax(bits []bool) float64 {
	unset := 0
	for _, b := range bits {
		if !b {
			unset++
		}
	}
	return float64(unset)
}

func uniformRanges(n int, lo, hi float64) []prototype.Range {
	out := make([]prototype.Range, n)
	for i := range out {
		out[i] = prototype.Range{Min: lo, Max: hi}
	}
	return out
}
