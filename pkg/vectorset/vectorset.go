// Package vectorset provides contiguous-block storage of fixed-size
// vectors with O(1) random access, and non-copying logical subvector
// views used to train independent product-quantization codebooks
// without duplicating the residual corpus.
package vectorset

import "github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"

// VectorSet is the narrow capability every consumer (k-means,
// partitioner, product quantizer, query engines) depends on: get a
// vector by index, know the vector size, know the length. Both the
// owned contiguous block and the offset-based subview implement it,
// so engine code never needs to know which one it was handed.
type VectorSet interface {
	Len() int
	VectorSize() int
	Get(i int) []float32
}

// BlockVectorSet is an immutable, randomly-addressable sequence of N
// vectors of identical size M, backed by a single contiguous buffer
// of length N*M. The i-th vector is the half-open slice
// [i*M, (i+1)*M).
type BlockVectorSet struct {
	data       []float32
	vectorSize int
}

// NewBlockVectorSet builds a BlockVectorSet from a contiguous buffer.
// Fails with InvalidArgs unless vectorSize > 0 and the buffer length
// is zero or a multiple of vectorSize.
func NewBlockVectorSet(data []float32, vectorSize int) (*BlockVectorSet, error) {
	if vectorSize <= 0 {
		return nil, vdberr.InvalidArgsf("vector size must be positive, got %d", vectorSize)
	}
	if len(data)%vectorSize != 0 {
		return nil, vdberr.InvalidArgsf(
			"buffer length %d is not a multiple of vector size %d", len(data), vectorSize)
	}
	return &BlockVectorSet{data: data, vectorSize: vectorSize}, nil
}

// Len returns the number of vectors, N.
func (b *BlockVectorSet) Len() int {
	if b.vectorSize == 0 {
		return 0
	}
	return len(b.data) / b.vectorSize
}

// VectorSize returns M.
func (b *BlockVectorSet) VectorSize() int { return b.vectorSize }

// Get returns the i-th vector as a slice view into the backing
// buffer. Panics if i is out of range.
func (b *BlockVectorSet) Get(i int) []float32 {
	start := i * b.vectorSize
	return b.data[start : start+b.vectorSize]
}

// GetMut returns a mutable view of the i-th vector. Build-path only:
// used by the partitioner to subtract centroids in place.
func (b *BlockVectorSet) GetMut(i int) []float32 {
	return b.Get(i)
}

// Data returns the full backing buffer, for serialization.
func (b *BlockVectorSet) Data() []float32 { return b.data }

// Divide returns d SubVectorSet views of width M/d at sequential
// offsets 0, M/d, 2*M/d, .... Fails with InvalidArgs if M is not a
// multiple of d. The views alias the parent's backing buffer; no
// vector data is copied.
func (b *BlockVectorSet) Divide(d int) ([]*SubVectorSet, error) {
	if d <= 0 {
		return nil, vdberr.InvalidArgsf("division count must be positive, got %d", d)
	}
	if b.vectorSize%d != 0 {
		return nil, vdberr.InvalidArgsf(
			"vector size %d is not divisible by %d", b.vectorSize, d)
	}
	subSize := b.vectorSize / d
	out := make([]*SubVectorSet, d)
	for i := 0; i < d; i++ {
		out[i] = &SubVectorSet{
			parent:     b,
			offset:     i * subSize,
			vectorSize: subSize,
		}
	}
	return out, nil
}

// SubVectorSet is a logical, non-copying view of a BlockVectorSet
// producing length-M' slices at a fixed offset into each parent
// vector. Invariant: offset+vectorSize <= parent.vectorSize.
type SubVectorSet struct {
	parent     *BlockVectorSet
	offset     int
	vectorSize int
}

// Len returns the number of vectors, identical to the parent's.
func (s *SubVectorSet) Len() int { return s.parent.Len() }

// VectorSize returns M'.
func (s *SubVectorSet) VectorSize() int { return s.vectorSize }

// Get returns the i-th subvector: a slice of length M' into the
// parent's i-th vector starting at the view's offset. No allocation
// or copy occurs.
func (s *SubVectorSet) Get(i int) []float32 {
	full := s.parent.Get(i)
	return full[s.offset : s.offset+s.vectorSize]
}
