// Package kmeans implements k-means clustering with k-means++
// seeding, used both by the coarse partitioner (trained over the full
// corpus) and by the product quantizer (trained independently per
// subspace).
package kmeans

import (
	"math/rand/v2"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/linalg"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/sampler"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vectorset"
)

// epsilon is the convergence threshold for 32-bit floats: the loop
// terminates once max-centroid-shift / max-new-centroid-norm falls
// below it.
const epsilon = 1e-6

// maxRounds caps Lloyd iteration; training always terminates, either
// by the gradient test or at this cap.
const maxRounds = 100

// Codebook pairs a set of trained centroids with the assignment of
// every training vector to the nearest one.
type Codebook struct {
	Centroids *vectorset.BlockVectorSet
	Indices   []int
}

// EventKind identifies a point in the training lifecycle an optional
// observer can be notified of.
type EventKind int

const (
	StartingInit EventKind = iota
	FinishedInit
	StartingUpdate
	FinishedUpdate
	StartingReassignment
	FinishedReassignment
)

// Event is passed to an optional event sink during training. Round is
// meaningful only for Update/Reassignment events; Gradient only for
// FinishedUpdate.
type Event struct {
	Kind     EventKind
	Round    int
	Gradient float32
}

// Train clusters vs into k centroids. rng supplies the randomness for
// k-means++ seeding; the caller owns its seeding, since the random
// number source is an external collaborator, not a concern of this
// package. onEvent may be nil.
//
// Fails with InvalidArgs if vs has fewer than k vectors.
func Train(vs vectorset.VectorSet, k int, rng *rand.Rand, onEvent func(Event)) (*Codebook, error) {
	n := vs.Len()
	if k < 1 {
		return nil, vdberr.InvalidArgsf("k must be >= 1, got %d", k)
	}
	if n < k {
		return nil, vdberr.InvalidArgsf("k-means requires N >= k, got N=%d k=%d", n, k)
	}
	emit := onEvent
	if emit == nil {
		emit = func(Event) {}
	}

	vecSize := vs.VectorSize()

	emit(Event{Kind: StartingInit})
	centroids, assignments := initializeCentroids(vs, k, rng)
	emit(Event{Kind: FinishedInit})

	for round := 0; round < maxRounds; round++ {
		emit(Event{Kind: StartingUpdate, Round: round})
		newCentroids, maxShift, maxNorm := updateCentroids(vs, centroids, assignments, k, vecSize)
		var gradient float32
		if maxNorm != 0 {
			gradient = maxShift / maxNorm
		}
		centroids = newCentroids
		emit(Event{Kind: FinishedUpdate, Round: round, Gradient: gradient})

		if gradient < epsilon {
			break
		}

		emit(Event{Kind: StartingReassignment, Round: round})
		assignments = reassign(vs, centroids, vecSize)
		emit(Event{Kind: FinishedReassignment, Round: round})
	}

	flat := make([]float32, 0, k*vecSize)
	for _, c := range centroids {
		flat = append(flat, c...)
	}
	centroidSet, err := vectorset.NewBlockVectorSet(flat, vecSize)
	if err != nil {
		return nil, err
	}
	return &Codebook{Centroids: centroidSet, Indices: assignments}, nil
}

// initializeCentroids performs k-means++ seeding. Returns the initial
// centroids (as owned slices, since they will be mutated by
// updateCentroids) and the initial nearest-centroid assignment for
// every training vector.
func initializeCentroids(vs vectorset.VectorSet, k int, rng *rand.Rand) ([][]float32, []int) {
	n := vs.Len()

	if n == k {
		centroids := make([][]float32, k)
		assignments := make([]int, n)
		for i := 0; i < n; i++ {
			centroids[i] = append([]float32(nil), vs.Get(i)...)
			assignments[i] = i
		}
		return centroids, assignments
	}

	if k == 1 {
		choice := rng.IntN(n)
		centroids := [][]float32{append([]float32(nil), vs.Get(choice)...)}
		assignments := make([]int, n)
		return centroids, assignments
	}

	centroids := make([][]float32, 0, k)
	assignments := make([]int, n)
	weights := make([]float64, n)
	chosen := make(map[int]bool, k)

	first := rng.IntN(n)
	centroids = append(centroids, append([]float32(nil), vs.Get(first)...))
	chosen[first] = true
	for i := 0; i < n; i++ {
		if i == first {
			weights[i] = 0
			continue
		}
		d := linalg.SquaredDistance(vs.Get(i), centroids[0])
		weights[i] = float64(d)
	}

	for len(centroids) < k {
		ws, err := sampler.New(weights)
		if err != nil {
			// All remaining weights collapsed to zero (every
			// vector coincides with a chosen centroid): fall back
			// to the first unchosen index, since any remaining
			// vector is an equally valid next centroid.
			for i := 0; i < n; i++ {
				if !chosen[i] {
					first = i
					break
				}
			}
			assignments[first] = len(centroids)
			centroids = append(centroids, append([]float32(nil), vs.Get(first)...))
			chosen[first] = true
			continue
		}
		next := ws.Sample(rng)
		newIdx := len(centroids)
		centroids = append(centroids, append([]float32(nil), vs.Get(next)...))
		chosen[next] = true
		assignments[next] = newIdx
		weights[next] = 0

		for i := 0; i < n; i++ {
			if chosen[i] {
				continue
			}
			d := float64(linalg.SquaredDistance(vs.Get(i), centroids[newIdx]))
			if d < weights[i] {
				weights[i] = d
				assignments[i] = newIdx
			}
		}
	}

	return centroids, assignments
}

// updateCentroids recomputes each centroid as the mean of its
// assigned vectors. Returns the new centroids plus the maximum
// per-centroid shift norm and maximum new-centroid norm, used to
// compute the convergence gradient.
func updateCentroids(vs vectorset.VectorSet, centroids [][]float32, assignments []int, k, vecSize int) (newCentroids [][]float32, maxShift, maxNorm float32) {
	sums := make([][]float32, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float32, vecSize)
	}
	for i, a := range assignments {
		linalg.AddIn(sums[a], vs.Get(i))
		counts[a]++
	}
	newCentroids = make([][]float32, k)
	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			// k-means++ seeding guarantees every cluster has at
			// least one member; this would indicate a bug in
			// seeding or reassignment, not a data condition a
			// caller can recover from.
			panic("kmeans: empty cluster after k-means++ initialization")
		}
		mean := sums[i]
		linalg.ScaleIn(mean, 1/float32(counts[i]))
		newCentroids[i] = mean

		shift := linalg.Norm2(linalg.Subtract(mean, centroids[i]))
		if shift > maxShift {
			maxShift = shift
		}
		norm := linalg.Norm2(mean)
		if norm > maxNorm {
			maxNorm = norm
		}
	}
	return newCentroids, maxShift, maxNorm
}

// reassign recomputes, for every input vector, its nearest centroid
// by squared distance.
func reassign(vs vectorset.VectorSet, centroids [][]float32, vecSize int) []int {
	n := vs.Len()
	assignments := make([]int, n)
	for i := 0; i < n; i++ {
		v := vs.Get(i)
		best := 0
		bestDist := linalg.SquaredDistance(v, centroids[0])
		for c := 1; c < len(centroids); c++ {
			d := linalg.SquaredDistance(v, centroids[c])
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		assignments[i] = best
	}
	return assignments
}
