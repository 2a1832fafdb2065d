// Package ivfpq implements the two build-time stages that turn a raw
// corpus into an indexable inverted-file-with-product-quantization
// structure: the coarse partitioner (E), which assigns every vector
// to one of P centroids and replaces it with its residual, and the
// product quantizer (F), which trains D independent subspace
// codebooks over the residual corpus and encodes each residual as a
// D-tuple of codes.
package ivfpq

import (
	"math"
	"math/rand/v2"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/kmeans"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/linalg"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vectorset"
)

// Partitions is the result of coarse partitioning: a P-centroid
// codebook over the full corpus, plus the residual vector set (the
// original corpus buffer, mutated in place so no second N*M buffer
// is allocated).
type Partitions struct {
	Codebook *kmeans.Codebook
	Residues *vectorset.BlockVectorSet
}

// Partition trains a k-means codebook of p centroids over corpus,
// then subtracts the assigned centroid from each vector in place.
// corpus is consumed: after this call its contents are residuals, not
// the original vectors.
func Partition(corpus *vectorset.BlockVectorSet, p int, rng *rand.Rand, onEvent func(kmeans.Event)) (*Partitions, error) {
	cb, err := kmeans.Train(corpus, p, rng, onEvent)
	if err != nil {
		return nil, err
	}
	for i := 0; i < corpus.Len(); i++ {
		v := corpus.GetMut(i)
		c := cb.Centroids.Get(cb.Indices[i])
		linalg.SubtractIn(v, c)
	}
	return &Partitions{Codebook: cb, Residues: corpus}, nil
}

// ProductQuantizer divides a residual vector space of size M into D
// equal subspaces and holds one independently-trained C-centroid
// codebook per subspace.
type ProductQuantizer struct {
	Codebooks    []*kmeans.Codebook
	NumSubspaces int
	SubspaceSize int
}

// Train builds a ProductQuantizer over residues, dividing each
// residual into d subspaces and training a c-centroid codebook per
// subspace.
func Train(residues *vectorset.BlockVectorSet, d, c int, rng *rand.Rand, onEvent func(kmeans.Event)) (*ProductQuantizer, error) {
	subs, err := residues.Divide(d)
	if err != nil {
		return nil, err
	}
	codebooks := make([]*kmeans.Codebook, d)
	for i, sub := range subs {
		cb, err := kmeans.Train(sub, c, rng, onEvent)
		if err != nil {
			return nil, err
		}
		codebooks[i] = cb
	}
	return &ProductQuantizer{
		Codebooks:    codebooks,
		NumSubspaces: d,
		SubspaceSize: residues.VectorSize() / d,
	}, nil
}

// EncodedTrainingSet returns, for every one of the n training
// vectors, the D-tuple of nearest-centroid indices per subspace. This
// reuses each subspace codebook's Indices directly: training a
// codebook over a subspace already computes, for every training
// vector, its nearest centroid in that subspace — which is exactly
// the code this vector would encode to.
func (pq *ProductQuantizer) EncodedTrainingSet(n int) [][]uint32 {
	out := make([][]uint32, n)
	for i := range out {
		out[i] = make([]uint32, pq.NumSubspaces)
	}
	for j, cb := range pq.Codebooks {
		for i, a := range cb.Indices {
			out[i][j] = uint32(a)
		}
	}
	return out
}

// Encode computes the D-tuple of codes for an arbitrary residual
// vector of size NumSubspaces*SubspaceSize. Fails with InvalidArgs on
// a size mismatch.
func (pq *ProductQuantizer) Encode(residual []float32) ([]uint32, error) {
	want := pq.NumSubspaces * pq.SubspaceSize
	if len(residual) != want {
		return nil, vdberr.InvalidArgsf("residual has size %d, want %d", len(residual), want)
	}
	codes := make([]uint32, pq.NumSubspaces)
	for j, cb := range pq.Codebooks {
		sub := residual[j*pq.SubspaceSize : (j+1)*pq.SubspaceSize]
		best := 0
		bestDist := float32(math.Inf(1))
		for c := 0; c < cb.Centroids.Len(); c++ {
			d := linalg.SquaredDistance(sub, cb.Centroids.Get(c))
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		codes[j] = uint32(best)
	}
	return codes, nil
}

// DistanceTable builds the D x C asymmetric distance table for a
// localized query vector vp (the query minus a chosen partition
// centroid): table[j][c] is the squared distance between vp's j-th
// subspace slice and subspace j's centroid c.
func (pq *ProductQuantizer) DistanceTable(vp []float32) ([][]float32, error) {
	want := pq.NumSubspaces * pq.SubspaceSize
	if len(vp) != want {
		return nil, vdberr.InvalidArgsf("localized query has size %d, want %d", len(vp), want)
	}
	table := make([][]float32, pq.NumSubspaces)
	for j, cb := range pq.Codebooks {
		sub := vp[j*pq.SubspaceSize : (j+1)*pq.SubspaceSize]
		row := make([]float32, cb.Centroids.Len())
		for c := range row {
			row[c] = linalg.SquaredDistance(sub, cb.Centroids.Get(c))
		}
		table[j] = row
	}
	return table, nil
}

// AsymmetricDistance sums table[j][codes[j]] over every subspace j,
// giving the approximate squared distance between the query this
// table was built for and the database vector these codes encode.
func AsymmetricDistance(table [][]float32, codes []uint32) float32 {
	var sum float32
	for j, c := range codes {
		sum += table[j][c]
	}
	return sum
}
