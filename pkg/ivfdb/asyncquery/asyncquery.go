// Package asyncquery implements the asynchronous query engine:
// component K of the design, sharing its contract (and the on-disk
// schema) with the synchronous engine in pkg/ivfdb, but scheduling
// every file load as a concurrently-issued, pollable future rather
// than a blocking call. A Database here is a single-threaded
// cooperative scheduler's view of one persisted artifact set:
// partition centroids, codebooks, individual partitions, and
// attribute logs are each memoized behind a pkg/store/asyncstore.Cell
// so that concurrent queries on a cold cache trigger exactly one load
// per artifact no matter how many queries ask for it at once.
package asyncquery

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store/asyncstore"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vectorset"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/wire"
)

// partitionData is a decoded on-disk partition shard.
type partitionData struct {
	centroid       []float32
	vectorIDs      []uuid.UUID
	encodedVectors [][]uint32
}

// Database is a handle to a persisted artifact set, read through an
// asyncstore.FileSystem. Every cache it memoizes is a
// sync.Mutex-guarded, start-once cell, so it is safe to issue
// concurrent queries against a single handle from the moment it is
// opened.
type Database struct {
	fs           asyncstore.FileSystem
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

	centroids asyncstore.Cell[*vectorset.BlockVectorSet]
	codebooks []asyncstore.Cell[*vectorset.BlockVectorSet]
	partition []asyncstore.Cell[*partitionData]

	// attrMu serializes attribute-log replay: the attribute
	// table is shared across every partition, so replay of one
	// partition's log is serialized against replay of any other,
	// rather than each having its own once-cell.
	attrMu         sync.Mutex
	attrLogLoaded  []bool
	attrLogErrs    []error
	attributeTable attrs.Table
}

func (db *Database) VectorSize() int    { return db.vectorSize }
func (db *Database) NumPartitions() int { return db.numPartitions }
func (db *Database) NumDivisions() int  { return db.numDivisions }
func (db *Database) NumCodes() int      { return db.numCodes }

// Open reads the manifest at manifestHash and returns a handle ready
// to be queried. The manifest read is itself asynchronous but Open
// waits for it: nothing can be scheduled before the partition and
// codebook counts it carries are known.
func Open(ctx context.Context, fs asyncstore.FileSystem, manifestHash string) (*Database, error) {
	f := fs.OpenHashedFile(manifestHash+".binpb", false)
	data, err := f.Wait(ctx)
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
		codebooks:            make([]asyncstore.Cell[*vectorset.BlockVectorSet], manifest.NumDivisions),
		partition:            make([]asyncstore.Cell[*partitionData], p),
		attrLogLoaded:        make([]bool, p),
		attrLogErrs:          make([]error, p),
		attributeTable:       make(attrs.Table),
	}, nil
}

func (db *Database) startCentroids() {
	db.centroids.Start(func() (*vectorset.BlockVectorSet, error) {
		f := db.fs.OpenHashedFile("partitions/"+db.partitionCentroidsID+".binpb", false)
		data, err := f.Wait(context.Background())
		if err != nil {
			return nil, err
		}
		msg, err := wire.UnmarshalVectorSet(data)
		if err != nil {
			return nil, err
		}
		vs, err := vectorset.NewBlockVectorSet(msg.Data, db.vectorSize)
		if err != nil {
			return nil, err
		}
		if vs.Len() != db.numPartitions {
			return nil, vdberr.InvalidDataf("partition centroid set has %d vectors, want %d", vs.Len(), db.numPartitions)
		}
		return vs, nil
	})
}

func (db *Database) startCodebook(j int) {
	subspaceSize := db.vectorSize / db.numDivisions
	db.codebooks[j].Start(func() (*vectorset.BlockVectorSet, error) {
		f := db.fs.OpenHashedFile("codebooks/"+db.codebookIDs[j]+".binpb", false)
		data, err := f.Wait(context.Background())
		if err != nil {
			return nil, err
		}
		msg, err := wire.UnmarshalVectorSet(data)
		if err != nil {
			return nil, err
		}
		vs, err := vectorset.NewBlockVectorSet(msg.Data, subspaceSize)
		if err != nil {
			return nil, err
		}
		if vs.Len() != db.numCodes {
			return nil, vdberr.InvalidDataf("codebook %d has %d centroids, want %d", j, vs.Len(), db.numCodes)
		}
		return vs, nil
	})
}

func (db *Database) startPartition(idx int) {
	db.partition[idx].Start(func() (*partitionData, error) {
		f := db.fs.OpenHashedFile("partitions/"+db.partitionIDs[idx]+".binpb", true)
		data, err := f.Wait(context.Background())
		if err != nil {
			return nil, err
		}
		msg, err := wire.UnmarshalPartition(data)
		if err != nil {
			return nil, err
		}
		if int(msg.VectorSize) != db.vectorSize || int(msg.NumDivisions) != db.numDivisions {
			return nil, vdberr.InvalidDataf(
				"partition %d has vector_size=%d num_divisions=%d, want %d/%d",
				idx, msg.VectorSize, msg.NumDivisions, db.vectorSize, db.numDivisions)
		}
		if msg.EncodedVectors == nil {
			return nil, vdberr.InvalidDataf("partition %d has no encoded vectors", idx)
		}
		n := len(msg.VectorIDs)
		if len(msg.EncodedVectors.Data) != n*db.numDivisions {
			return nil, vdberr.InvalidDataf(
				"partition %d has %d vector ids but %d encoded values (want %d per vector)",
				idx, n, len(msg.EncodedVectors.Data), db.numDivisions)
		}
		ids := make([]uuid.UUID, n)
		for i, raw := range msg.VectorIDs {
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return nil, vdberr.InvalidDataf("partition %d vector %d: malformed UUID: %v", idx, i, err)
			}
			ids[i] = id
		}
		codes := make([][]uint32, n)
		for i := 0; i < n; i++ {
			codes[i] = msg.EncodedVectors.Data[i*db.numDivisions : (i+1)*db.numDivisions]
		}
		return &partitionData{centroid: msg.Centroid, vectorIDs: ids, encodedVectors: codes}, nil
	})
}
