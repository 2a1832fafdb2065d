package ivfdb

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vectorset"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/wire"
)

// partition is a decoded on-disk partition shard, held in memory once
// loaded.
type partition struct {
	centroid       []float32
	numDivisions   int
	vectorIDs      []uuid.UUID
	encodedVectors [][]uint32
}

// Database is a handle to a persisted, read-only artifact set. It is
// safe for concurrent use: every lazily-loaded cache (partition
// centroids, codebooks, individual partitions) is guarded by a
// sync.Once so concurrent callers on a cold cache each trigger the
// load exactly once. Attribute logs are replayed under attrMu, once
// per partition, as recorded by attrLogLoaded.
type Database struct {
	fs           store.FileSystem
	manifestHash string

	vectorSize    int
	numPartitions int
	numDivisions  int
	numCodes      int

	partitionIDs         []string
	partitionCentroidsID string
	codebookIDs          []string
	attributesLogIDs     []string
	attributeNames       *attrs.NameTable

	centroidsOnce sync.Once
	centroids     *vectorset.BlockVectorSet
	centroidsErr  error

	codebooksOnce sync.Once
	codebooks     []*vectorset.BlockVectorSet
	codebooksErr  error

	partitionOnces []sync.Once
	partitions     []*partition
	partitionErrs  []error

	attrMu         sync.Mutex
	attrLogLoaded  []bool
	attrLogErrs    []error
	attributeTable attrs.Table
}

// VectorSize, NumPartitions, NumDivisions, NumCodes expose the
// manifest's fixed build parameters.
func (db *Database) VectorSize() int    { return db.vectorSize }
func (db *Database) NumPartitions() int { return db.numPartitions }
func (db *Database) NumDivisions() int  { return db.numDivisions }
func (db *Database) NumCodes() int      { return db.numCodes }

// ManifestHash returns the content hash this handle was opened with.
func (db *Database) ManifestHash() string { return db.manifestHash }

// Open reads the manifest at manifestHash from fs and returns a handle
// ready to be queried. Nothing beyond the manifest is read eagerly.
func Open(fs store.FileSystem, manifestHash string) (*Database, error) {
	in, err := fs.OpenHashedFile(manifestHash+".binpb", false)
	if err != nil {
		return nil, err
	}
	data, err := readAndVerify(in)
	if err != nil {
		return nil, err
	}
	manifest, err := wire.UnmarshalDatabase(data)
	if err != nil {
		return nil, err
	}
	if manifest.VectorSize == 0 || manifest.NumPartitions == 0 || manifest.NumDivisions == 0 || manifest.NumCodes == 0 {
		return nil, vdberr.InvalidDataf("manifest has a zero-valued dimension: %+v", manifest)
	}
	if manifest.VectorSize%manifest.NumDivisions != 0 {
		return nil, vdberr.InvalidDataf("manifest vector_size %d not divisible by num_divisions %d", manifest.VectorSize, manifest.NumDivisions)
	}
	if len(manifest.PartitionIDs) != int(manifest.NumPartitions) {
		return nil, vdberr.InvalidDataf("manifest lists %d partition ids, want %d", len(manifest.PartitionIDs), manifest.NumPartitions)
	}
	if len(manifest.CodebookIDs) != int(manifest.NumDivisions) {
		return nil, vdberr.InvalidDataf("manifest lists %d codebook ids, want %d", len(manifest.CodebookIDs), manifest.NumDivisions)
	}
	if len(manifest.AttributesLogIDs) != int(manifest.NumPartitions) {
		return nil, vdberr.InvalidDataf("manifest lists %d attribute log ids, want %d", len(manifest.AttributesLogIDs), manifest.NumPartitions)
	}

	p := int(manifest.NumPartitions)
	return &Database{
		fs:                   fs,
		manifestHash:         manifestHash,
		vectorSize:           int(manifest.VectorSize),
		numPartitions:        p,
		numDivisions:         int(manifest.NumDivisions),
		numCodes:             int(manifest.NumCodes),
		partitionIDs:         manifest.PartitionIDs,
		partitionCentroidsID: manifest.PartitionCentroidsID,
		codebookIDs:          manifest.CodebookIDs,
		attributesLogIDs:     manifest.AttributesLogIDs,
		attributeNames:       attrs.NameTableFromSlice(manifest.AttributeNames),
		partitionOnces:       make([]sync.Once, p),
		partitions:           make([]*partition, p),
		partitionErrs:        make([]error, p),
		attrLogLoaded:        make([]bool, p),
		attrLogErrs:          make([]error, p),
		attributeTable:       make(attrs.Table),
	}, nil
}

func (db *Database) loadCentroids() (*vectorset.BlockVectorSet, error) {
	db.centroidsOnce.Do(func() {
		in, err := db.fs.OpenHashedFile("partitions/"+db.partitionCentroidsID+".binpb", false)
		if err != nil {
			db.centroidsErr = err
			return
		}
		data, err := readAndVerify(in)
		if err != nil {
			db.centroidsErr = err
			return
		}
		msg, err := wire.UnmarshalVectorSet(data)
		if err != nil {
			db.centroidsErr = err
			return
		}
		vs, err := vectorset.NewBlockVectorSet(msg.Data, db.vectorSize)
		if err != nil {
			db.centroidsErr = err
			return
		}
		if vs.Len() != db.numPartitions {
			db.centroidsErr = vdberr.InvalidDataf("partition centroid set has %d vectors, want %d", vs.Len(), db.numPartitions)
			return
		}
		db.centroids = vs
	})
	return db.centroids, db.centroidsErr
}

func (db *Database) loadCodebooks() ([]*vectorset.BlockVectorSet, error) {
	db.codebooksOnce.Do(func() {
		subspaceSize := db.vectorSize / db.numDivisions
		cbs := make([]*vectorset.BlockVectorSet, db.numDivisions)
		for j, id := range db.codebookIDs {
			in, err := db.fs.OpenHashedFile("codebooks/"+id+".binpb", false)
			if err != nil {
				db.codebooksErr = err
				return
			}
			data, err := readAndVerify(in)
			if err != nil {
				db.codebooksErr = err
				return
			}
			msg, err := wire.UnmarshalVectorSet(data)
			if err != nil {
				db.codebooksErr = err
				return
			}
			vs, err := vectorset.NewBlockVectorSet(msg.Data, subspaceSize)
			if err != nil {
				db.codebooksErr = err
				return
			}
			if vs.Len() != db.numCodes {
				db.codebooksErr = vdberr.InvalidDataf("codebook %d has %d centroids, want %d", j, vs.Len(), db.numCodes)
				return
			}
			cbs[j] = vs
		}
		db.codebooks = cbs
	})
	return db.codebooks, db.codebooksErr
}

func (db *Database) loadPartition(idx int) (*partition, error) {
	db.partitionOnces[idx].Do(func() {
		in, err := db.fs.OpenHashedFile("partitions/"+db.partitionIDs[idx]+".binpb", true)
		if err != nil {
			db.partitionErrs[idx] = err
			return
		}
		data, err := readAndVerify(in)
		if err != nil {
			db.partitionErrs[idx] = err
			return
		}
		msg, err := wire.UnmarshalPartition(data)
		if err != nil {
			db.partitionErrs[idx] = err
			return
		}
		if int(msg.VectorSize) != db.vectorSize || int(msg.NumDivisions) != db.numDivisions {
			db.partitionErrs[idx] = vdberr.InvalidDataf(
				"partition %d has vector_size=%d num_divisions=%d, want %d/%d",
				idx, msg.VectorSize, msg.NumDivisions, db.vectorSize, db.numDivisions)
			return
		}
		if msg.EncodedVectors == nil {
			db.partitionErrs[idx] = vdberr.InvalidDataf("partition %d has no encoded vectors", idx)
			return
		}
		n := len(msg.VectorIDs)
		if len(msg.EncodedVectors.Data) != n*db.numDivisions {
			db.partitionErrs[idx] = vdberr.InvalidDataf(
				"partition %d has %d vector ids but %d encoded values (want %d per vector)",
				idx, n, len(msg.EncodedVectors.Data), db.numDivisions)
			return
		}
		ids := make([]uuid.UUID, n)
		for i, raw := range msg.VectorIDs {
			id, err := uuid.FromBytes(raw)
			if err != nil {
				db.partitionErrs[idx] = vdberr.InvalidDataf("partition %d vector %d: malformed UUID: %v", idx, i, err)
				return
			}
			ids[i] = id
		}
		codes := make([][]uint32, n)
		for i := 0; i < n; i++ {
			codes[i] = msg.EncodedVectors.Data[i*db.numDivisions : (i+1)*db.numDivisions]
		}
		db.partitions[idx] = &partition{
			centroid:       msg.Centroid,
			numDivisions:   db.numDivisions,
			vectorIDs:      ids,
			encodedVectors: codes,
		}
	})
	return db.partitions[idx], db.partitionErrs[idx]
}

// sortIndicesByDistance orders 0..n-1 ascending by dist. Stable sort
// keeps equal distances in index order.
func sortIndicesByDistance(dist []float32) []int {
	idx := make([]int, len(dist))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return dist[idx[a]] < dist[idx[b]]
	})
	return idx
}
