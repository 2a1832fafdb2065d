package ivfdb

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/linalg"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/nbest"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// QueryResult identifies one approximate nearest neighbor: the
// vector's persistent id, the squared distance to the query vector
// estimated via the asymmetric distance table, and enough internal
// bookkeeping (which database, which partition, which position within
// it) for GetAttribute to retrieve attributes without re-scanning.
type QueryResult struct {
	databaseHash    string
	partitionIndex  int
	positionInPart  int
	VectorID        uuid.UUID
	SquaredDistance float32
}

// Query returns the k nearest approximate neighbors of v, examining
// the nprobe partitions whose centroid is closest to v. Results are
// ordered by ascending squared distance.
//
// Preconditions: len(v) must equal the database's vector size, and
// 1 <= nprobe <= NumPartitions; both violations are InvalidArgs. k
// must be >= 1.
func (db *Database) Query(v []float32, k, nprobe int) ([]QueryResult, error) {
	if len(v) != db.vectorSize {
		return nil, vdberr.InvalidArgsf("query vector has size %d, want %d", len(v), db.vectorSize)
	}
	if k < 1 {
		return nil, vdberr.InvalidArgsf("k must be >= 1, got %d", k)
	}
	if nprobe < 1 || nprobe > db.numPartitions {
		return nil, vdberr.InvalidArgsf("nprobe must be in [1, %d], got %d", db.numPartitions, nprobe)
	}

	centroids, err := db.loadCentroids()
	if err != nil {
		return nil, err
	}
	codebooks, err := db.loadCodebooks()
	if err != nil {
		return nil, err
	}

	dists := make([]float32, db.numPartitions)
	for p := 0; p < db.numPartitions; p++ {
		dists[p] = linalg.SquaredDistance(v, centroids.Get(p))
	}
	order := sortIndicesByDistance(dists)
	selected := order[:nprobe]
	if len(selected) == 0 {
		return nil, vdberr.InvalidContextf("nprobe selection is empty for a valid query; this should be unreachable")
	}

	best := nbest.New(k, func(r QueryResult) float32 { return r.SquaredDistance })

	for _, p := range selected {
		centroid := centroids.Get(p)
		vp := make([]float32, len(v))
		copy(vp, v)
		linalg.SubtractIn(vp, centroid)

		table := make([][]float32, db.numDivisions)
		subspaceSize := db.vectorSize / db.numDivisions
		for j := 0; j < db.numDivisions; j++ {
			sub := vp[j*subspaceSize : (j+1)*subspaceSize]
			cb := codebooks[j]
			row := make([]float32, cb.Len())
			for c := 0; c < cb.Len(); c++ {
				row[c] = linalg.SquaredDistance(sub, cb.Get(c))
			}
			table[j] = row
		}

		part, err := db.loadPartition(p)
		if err != nil {
			return nil, err
		}
		for i, codes := range part.encodedVectors {
			var dist float32
			for j, c := range codes {
				dist += table[j][c]
			}
			if math.IsNaN(float64(dist)) {
				return nil, vdberr.InvalidDataf("query produced a NaN distance against partition %d vector %d", p, i)
			}
			best.Push(QueryResult{
				databaseHash:    db.manifestHash,
				partitionIndex:  p,
				positionInPart:  i,
				VectorID:        part.vectorIDs[i],
				SquaredDistance: dist,
			})
		}
	}

	results := best.Items()
	sort.Slice(results, func(a, b int) bool { return results[a].SquaredDistance < results[b].SquaredDistance })
	return results, nil
}

// ResultRef is a serializable reference to a QueryResult: enough to
// re-resolve the owning partition without holding on to the full
// Database-private QueryResult value, for collaborators (such as an
// RPC front end) that hand results across a process boundary and need
// to ask for attributes later.
type ResultRef struct {
	PartitionIndex int
	VectorID       uuid.UUID
}

// Ref returns a serializable reference to r.
func (r QueryResult) Ref() ResultRef {
	return ResultRef{PartitionIndex: r.partitionIndex, VectorID: r.VectorID}
}

// GetAttributeByRef behaves like GetAttribute but takes a ResultRef
// instead of a QueryResult, for callers that only retained the
// reference (e.g. across an RPC boundary).
func (db *Database) GetAttributeByRef(ref ResultRef, name string) (value attrs.Value, exists bool, err error) {
	return db.GetAttribute(QueryResult{
		databaseHash:   db.manifestHash,
		partitionIndex: ref.PartitionIndex,
		VectorID:       ref.VectorID,
	}, name)
}

// GetAttribute returns the value bound to name for the vector
// identified by result. exists is false if no attribute named name
// was ever set for that vector. err is an InvalidArgs error if the
// result does not belong to this handle (wrong manifest hash) or names
// a partition index out of range.
func (db *Database) GetAttribute(result QueryResult, name string) (value attrs.Value, exists bool, err error) {
	if result.databaseHash != db.manifestHash {
		return attrs.Value{}, false, vdberr.InvalidArgsf("query result does not belong to this database handle")
	}
	if result.partitionIndex < 0 || result.partitionIndex >= db.numPartitions {
		return attrs.Value{}, false, vdberr.InvalidArgsf("result partition index %d out of range [0, %d)", result.partitionIndex, db.numPartitions)
	}
	if err := db.loadAttributeLog(result.partitionIndex); err != nil {
		return attrs.Value{}, false, err
	}
	v, present, has := db.attributeTable.Get(result.VectorID, name)
	if !present {
		return attrs.Value{}, false, vdberr.InvalidContextf(
			"vector %s has no attribute table entry after loading its partition's log; this should be unreachable",
			result.VectorID)
	}
	return v, has, nil
}

func (db *Database) loadAttributeLog(partitionIndex int) error {
	db.attrMu.Lock()
	defer db.attrMu.Unlock()
	if db.attrLogLoaded[partitionIndex] {
		return db.attrLogErrs[partitionIndex]
	}

	part, err := db.loadPartition(partitionIndex)
	if err != nil {
		db.attrLogErrs[partitionIndex] = err
		db.attrLogLoaded[partitionIndex] = true
		return err
	}

	if err := db.replayAttributeLog(partitionIndex, part); err != nil {
		db.attrLogErrs[partitionIndex] = err
		db.attrLogLoaded[partitionIndex] = true
		return err
	}

	for _, id := range part.vectorIDs {
		db.attributeTable.EnsurePresent(id)
	}
	db.attrLogLoaded[partitionIndex] = true
	return nil
}
