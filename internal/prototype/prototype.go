// Package prototype provides vector valued individuals and the prototypes
// that seed them.
package prototype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"islandga/internal/evo"
)

const maxConstraintResamples = 32

var ErrParentMismatch = errors.New("crossover parents are incompatible")

// Range is an inclusive interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Width() float64 { return r.Max - r.Min }

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) Clamp(v float64) float64 { return math.Min(math.Max(v, r.Min), r.Max) }

func validateRanges(ranges, bounds []Range) error {
	if len(ranges) == 0 {
		return errors.New("at least one variable range is required")
	}
	for i, r := range ranges {
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return fmt.Errorf("variable %d: invalid range [%g, %g]", i, r.Min, r.Max)
		}
	}
	if bounds == nil {
		return nil
	}
	if len(bounds) != len(ranges) {
		return fmt.Errorf("bounds count %d does not match variable count %d", len(bounds), len(ranges))
	}
	for i, b := range bounds {
		if b.Min > b.Max {
			return fmt.Errorf("variable %d: invalid bounds [%g, %g]", i, b.Min, b.Max)
		}
		if !b.Contains(ranges[i].Min) || !b.Contains(ranges[i].Max) {
			return fmt.Errorf("variable %d: initial range [%g, %g] exceeds bounds [%g, %g]", i, ranges[i].Min, ranges[i].Max, b.Min, b.Max)
		}
	}
	return nil
}

// base carries the state every vector individual shares.
type base struct {
	fitness     *evo.FitnessCell
	lineage     evo.Lineage
	fingerprint string
}

func (b base) Fitness() float64 { return b.fitness.Value() }

func (b base) Lineage() evo.Lineage { return b.lineage }

func (b base) Fingerprint() string { return b.fingerprint }

func checkParents(n int, vectorLen int, parents []evo.Individual) error {
	if vectorLen != n {
		return fmt.Errorf("%w: assignment covers %d genes, want %d", ErrParentMismatch, vectorLen, n)
	}
	for i, p := range parents {
		if p.VariableCount() != n {
			return fmt.Errorf("%w: parent %d has %d genes, want %d", ErrParentMismatch, i, p.VariableCount(), n)
		}
	}
	return nil
}

func checkWeights(n int, weights [][]float64, parents []evo.Individual) error {
	if len(weights) != len(parents) {
		return fmt.Errorf("%w: %d weight rows for %d parents", ErrParentMismatch, len(weights), len(parents))
	}
	for _, row := range weights {
		if err := checkParents(n, len(row), parents); err != nil {
			return err
		}
	}
	return nil
}

func float64Fingerprint(values []float64) string {
	buf := make([]byte, 0, 8*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return string(buf)
}

func intFingerprint(values []int) string {
	buf := make([]byte, 0, 8*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	}
	return string(buf)
}
