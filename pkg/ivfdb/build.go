// Package ivfdb assembles the lower-level packages — linalg,
// vectorset, sampler, kmeans, ivfpq, attrs, wire, store — into the
// end-to-end build path (a corpus of raw vectors in, a persisted
// content-addressed database out) and the synchronous query engine
// that reads one back. The asynchronous engine lives in the asyncquery
// subpackage and shares this package's on-disk schema and Database
// read-side loaders.
package ivfdb

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfpq"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/kmeans"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vectorset"
)

// BuildConfig controls the two training stages run during Build.
type BuildConfig struct {
	// NumPartitions is P, the number of coarse-quantizer centroids.
	NumPartitions int
	// NumDivisions is D, the number of product-quantization
	// subspaces. VectorSize must be divisible by it.
	NumDivisions int
	// NumCodes is C, the number of centroids trained per subspace.
	NumCodes int
}

// Builder accumulates a corpus of fixed-size vectors and their
// optional per-vector attributes before training. Every added vector
// is assigned a persistent UUID at insertion time, returned to the
// caller so it can attach attributes or correlate query results later.
type Builder struct {
	vectorSize int
	flat       []float32
	ids        []uuid.UUID
	attrs      *attrs.Builder
}

// NewBuilder creates an empty Builder for vectors of the given size.
func NewBuilder(vectorSize int) (*Builder, error) {
	if vectorSize <= 0 {
		return nil, vdberr.InvalidArgsf("vector size must be positive, got %d", vectorSize)
	}
	return &Builder{
		vectorSize: vectorSize,
		attrs:      attrs.NewBuilder(),
	}, nil
}

// AddVector appends v to the corpus, assigning it a fresh UUID.
// Fails with InvalidArgs if len(v) does not match the builder's vector
// size.
func (b *Builder) AddVector(v []float32) (uuid.UUID, error) {
	if len(v) != b.vectorSize {
		return uuid.UUID{}, vdberr.InvalidArgsf("vector has size %d, want %d", len(v), b.vectorSize)
	}
	id := uuid.New()
	b.flat = append(b.flat, v...)
	b.ids = append(b.ids, id)
	return id, nil
}

// SetAttribute attaches name=value to the vector at the given
// zero-based insertion index (the number of vectors added before it,
// i.e. len(ids) at the time of insertion).
func (b *Builder) SetAttribute(index int, name string, value attrs.Value) error {
	if index < 0 || index >= len(b.ids) {
		return vdberr.InvalidArgsf("vector index %d out of range [0, %d)", index, len(b.ids))
	}
	b.attrs.SetAttributeAt(index, name, value)
	return nil
}

// Len returns the number of vectors added so far.
func (b *Builder) Len() int { return len(b.ids) }

// Artifacts is the in-memory result of Build: every structure needed
// either to answer queries directly (an in-memory database) or to
// persist to a content-addressed FileSystem.
type Artifacts struct {
	VectorSize    int
	NumPartitions int
	NumDivisions  int
	NumCodes      int

	PartitionCentroids *vectorset.BlockVectorSet
	Codebooks          []*kmeans.Codebook

	PartitionVectorIDs      [][]uuid.UUID
	PartitionEncodedVectors [][][]uint32

	AttributeNames            *attrs.NameTable
	PartitionAttributeEntries [][]attrs.LogEntry
}

// Build trains the coarse partitioner and product quantizer over the
// accumulated corpus and groups every vector's id, code, and
// attributes by its assigned partition.
func (b *Builder) Build(cfg BuildConfig, rng *rand.Rand) (*Artifacts, error) {
	if cfg.NumPartitions < 1 || cfg.NumDivisions < 1 || cfg.NumCodes < 1 {
		return nil, vdberr.InvalidArgsf("build config must have NumPartitions, NumDivisions, NumCodes >= 1, got %+v", cfg)
	}
	if b.vectorSize%cfg.NumDivisions != 0 {
		return nil, vdberr.InvalidArgsf("vector size %d is not divisible by NumDivisions %d", b.vectorSize, cfg.NumDivisions)
	}
	corpus, err := vectorset.NewBlockVectorSet(append([]float32(nil), b.flat...), b.vectorSize)
	if err != nil {
		return nil, err
	}

	parts, err := ivfpq.Partition(corpus, cfg.NumPartitions, rng, nil)
	if err != nil {
		return nil, err
	}
	pq, err := ivfpq.Train(parts.Residues, cfg.NumDivisions, cfg.NumCodes, rng, nil)
	if err != nil {
		return nil, err
	}
	codes := pq.EncodedTrainingSet(corpus.Len())

	partitionIDs := make([][]uuid.UUID, cfg.NumPartitions)
	partitionCodes := make([][][]uint32, cfg.NumPartitions)
	for i, p := range parts.Codebook.Indices {
		partitionIDs[p] = append(partitionIDs[p], b.ids[i])
		partitionCodes[p] = append(partitionCodes[p], codes[i])
	}

	names := attrs.NewNameTable(b.attrs.NameSet())
	entries := b.attrs.GroupByPartition(cfg.NumPartitions, parts.Codebook.Indices, b.ids)

	return &Artifacts{
		VectorSize:                b.vectorSize,
		NumPartitions:             cfg.NumPartitions,
		NumDivisions:              cfg.NumDivisions,
		NumCodes:                  cfg.NumCodes,
		PartitionCentroids:        parts.Codebook.Centroids,
		Codebooks:                 pq.Codebooks,
		PartitionVectorIDs:        partitionIDs,
		PartitionEncodedVectors:   partitionCodes,
		AttributeNames:            names,
		PartitionAttributeEntries: entries,
	}, nil
}
