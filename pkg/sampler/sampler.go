// Package sampler implements an on-line weighted categorical
// distribution with per-index update, used by k-means++ seeding to
// pick the next centroid with probability proportional to squared
// distance from the nearest already-chosen centroid.
package sampler

import (
	"math/rand/v2"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// WeightedIndex draws an index in [0, n) with probability
// proportional to a per-index non-negative weight.
type WeightedIndex struct {
	weights     []float64
	totalWeight float64
}

// New builds a WeightedIndex over the given weights. Fails with
// InvalidArgs if weights is empty, contains a negative value, or the
// total weight is zero.
func New(weights []float64) (*WeightedIndex, error) {
	if len(weights) == 0 {
		return nil, vdberr.InvalidArgsf("weighted sampler requires at least one weight")
	}
	var total float64
	for i, w := range weights {
		if w < 0 {
			return nil, vdberr.InvalidArgsf("weight at index %d is negative: %v", i, w)
		}
		total += w
	}
	if total == 0 {
		return nil, vdberr.InvalidArgsf("total weight must be positive, got 0")
	}
	cp := make([]float64, len(weights))
	copy(cp, weights)
	return &WeightedIndex{weights: cp, totalWeight: total}, nil
}

// Len returns the number of indices.
func (w *WeightedIndex) Len() int { return len(w.weights) }

// Weight returns the current weight of index i.
func (w *WeightedIndex) Weight(i int) float64 { return w.weights[i] }

// TotalWeight returns the current sum of all weights.
func (w *WeightedIndex) TotalWeight() float64 { return w.totalWeight }

// Sample draws a uniform value from [0, TotalWeight) using rng and
// returns the selected index via SampleAt.
func (w *WeightedIndex) Sample(rng *rand.Rand) int {
	return w.SampleAt(rng.Float64() * w.totalWeight)
}

// SampleAt returns the index at which the cumulative weight crosses
// u, a value supposed to have been drawn uniformly from
// [0, TotalWeight). Exposed separately from Sample so callers (and
// tests) can supply a deterministic draw instead of going through an
// RNG. Skips zero-weight indices; falls back to the last non-zero
// index if the walk terminates without crossing (defensive against
// floating point rounding at the boundary).
func (w *WeightedIndex) SampleAt(u float64) int {
	var cum float64
	lastNonZero := -1
	for i, wt := range w.weights {
		if wt == 0 {
			continue
		}
		lastNonZero = i
		cum += wt
		if cum > u {
			return i
		}
	}
	return lastNonZero
}

// Update applies a batch of (index, newWeight) changes transactionally:
// every change is validated (non-negative, index in range) and the
// resulting total weight must be positive, all before any mutation is
// applied. On any violation, returns InvalidArgs and leaves the
// sampler's state completely unchanged.
func (w *WeightedIndex) Update(changes map[int]float64) error {
	newTotal := w.totalWeight
	for idx, nw := range changes {
		if idx < 0 || idx >= len(w.weights) {
			return vdberr.InvalidArgsf("update index %d out of range [0, %d)", idx, len(w.weights))
		}
		if nw < 0 {
			return vdberr.InvalidArgsf("update weight at index %d is negative: %v", idx, nw)
		}
		newTotal += nw - w.weights[idx]
	}
	if newTotal <= 0 {
		return vdberr.InvalidArgsf("update would make total weight non-positive: %v", newTotal)
	}
	for idx, nw := range changes {
		w.weights[idx] = nw
	}
	w.totalWeight = newTotal
	return nil
}
