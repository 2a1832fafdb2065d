package asyncquery

import (
	"context"
	"math"
	"reflect"
	"sort"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/linalg"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/nbest"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// EventKind identifies a state transition an optional observer can be
// notified of. Observers never see partial or transient state and
// never influence the result; see pkg/ivfdb for the analogous
// synchronous-engine design note.
type EventKind int

const (
	StartingLoadingPartitionCentroids EventKind = iota
	FinishedLoadingPartitionCentroids
	StartingLoadingCodebooks
	FinishedLoadingCodebooks
	StartingPartitionSelection
	FinishedPartitionSelection
	StartingLoadingPartition
	FinishedLoadingPartition
	StartingPartitionQueryExecution
	FinishedPartitionQueryExecution
	StartingKNNSelection
	FinishedKNNSelection
)

// Event carries the optional partition index for the per-partition
// transitions (StartingLoadingPartition, FinishedLoadingPartition,
// Starting/FinishedPartitionQueryExecution); it is -1 otherwise.
type Event struct {
	Kind      EventKind
	Partition int
}

// QueryResult mirrors pkg/ivfdb.QueryResult: a vector id, its
// estimated squared distance, and enough bookkeeping for GetAttribute
// to cross-check the handle and locate the owning partition without
// re-scanning.
type QueryResult struct {
	databaseHash    string
	partitionIndex  int
	VectorID        uuid.UUID
	SquaredDistance float32
}

// partitionState tracks one selected partition's progress through
// NeedPartition -> HavePartition-NeedExecute -> Done.
type partitionState struct {
	index   int
	done    bool
	contrib []QueryResult
}

// QueryFuture is the cooperative state machine answering one query.
// Its Poll method advances as much work as is ready without blocking,
// guaranteeing forward progress: it loops internally until a call
// makes no further progress before returning to the caller. Run drives
// Poll to completion, waiting only when nothing is currently ready.
type QueryFuture struct {
	db      *Database
	v       []float32
	k       int
	nprobe  int
	onEvent func(Event)

	centroidsReady bool
	codebookReady  []bool
	codebooksReady bool

	selected      []int
	selectedSet   []*partitionState
	selectionDone bool

	best *nbest.NBestByKey[QueryResult, float32]

	results []QueryResult
	err     error
	done    bool
}

// Query validates arguments and starts the concurrent loads for
// partition centroids and every codebook, returning a QueryFuture
// whose Poll/Run methods drive the rest of the state machine. onEvent
// may be nil.
func (db *Database) Query(v []float32, k, nprobe int, onEvent func(Event)) (*QueryFuture, error) {
	if len(v) != db.vectorSize {
		return nil, vdberr.InvalidArgsf("query vector has size %d, want %d", len(v), db.vectorSize)
	}
	if k < 1 {
		return nil, vdberr.InvalidArgsf("k must be >= 1, got %d", k)
	}
	if nprobe < 1 || nprobe > db.numPartitions {
		return nil, vdberr.InvalidArgsf("nprobe must be in [1, %d], got %d", db.numPartitions, nprobe)
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	q := &QueryFuture{
		db:            db,
		v:             v,
		k:             k,
		nprobe:        nprobe,
		onEvent:       onEvent,
		codebookReady: make([]bool, db.numDivisions),
		best:          nbest.New(k, func(r QueryResult) float32 { return r.SquaredDistance }),
	}

	onEvent(Event{Kind: StartingLoadingPartitionCentroids, Partition: -1})
	db.startCentroids()
	onEvent(Event{Kind: StartingLoadingCodebooks, Partition: -1})
	for j := 0; j < db.numDivisions; j++ {
		db.startCodebook(j)
	}
	return q, nil
}

// Poll advances the state machine as far as possible without
// blocking and reports whether the query has completed.
func (q *QueryFuture) Poll() (done bool, err error) {
	if q.done {
		return true, q.err
	}
	for {
		progressed := false

		if !q.centroidsReady {
			if _, ready, e := q.db.centroids.Poll(); ready {
				q.centroidsReady = true
				progressed = true
				if e != nil && q.err == nil {
					q.err = e
				}
				q.onEvent(Event{Kind: FinishedLoadingPartitionCentroids, Partition: -1})
			}
		}

		if !q.codebooksReady {
			allReady := true
			for j := range q.codebookReady {
				if q.codebookReady[j] {
					continue
				}
				if _, ready, e := q.db.codebooks[j].Poll(); ready {
					q.codebookReady[j] = true
					progressed = true
					if e != nil && q.err == nil {
						q.err = e
					}
				} else {
					allReady = false
				}
			}
			if allReady {
				q.codebooksReady = true
				progressed = true
				q.onEvent(Event{Kind: FinishedLoadingCodebooks, Partition: -1})
			}
		}

		if q.centroidsReady && q.codebooksReady && !q.selectionDone {
			if q.err == nil {
				if err := q.selectPartitions(); err != nil {
					q.err = err
				}
			}
			q.selectionDone = true
			progressed = true
		}

		if q.selectionDone && q.err == nil {
			if q.advancePartitions() {
				progressed = true
			}
		}

		if q.selectionDone && !q.done && (q.err != nil || q.allPartitionsDone()) {
			q.finalize()
			progressed = true
		}

		if !progressed {
			break
		}
		if q.done {
			break
		}
	}
	return q.done, q.err
}

// selectPartitions computes the localized query distance to every
// partition centroid and keeps the nprobe closest, tie-broken by
// index, then starts a concurrent load for each selected partition's
// shard.
func (q *QueryFuture) selectPartitions() error {
	q.onEvent(Event{Kind: StartingPartitionSelection, Partition: -1})
	centroids, _, _ := q.db.centroids.Poll()
	dists := make([]float32, q.db.numPartitions)
	for p := 0; p < q.db.numPartitions; p++ {
		d := linalg.SquaredDistance(q.v, centroids.Get(p))
		if math.IsNaN(float64(d)) {
			return vdberr.InvalidDataf("partition %d centroid produced a NaN distance against the query", p)
		}
		dists[p] = d
	}
	order := make([]int, len(dists))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })
	selected := order[:q.nprobe]
	if len(selected) == 0 {
		return vdberr.InvalidContextf("nprobe selection is empty for a valid query; this should be unreachable")
	}
	q.selected = selected
	q.selectedSet = make([]*partitionState, len(selected))
	for i, p := range selected {
		q.selectedSet[i] = &partitionState{index: p}
		q.onEvent(Event{Kind: StartingLoadingPartition, Partition: p})
		q.db.startPartition(p)
	}
	q.onEvent(Event{Kind: FinishedPartitionSelection, Partition: -1})
	return nil
}

// advancePartitions polls every selected partition not yet done and
// executes the per-partition LUT distance computation for any that
// just became ready. Reports whether any progress was made.
func (q *QueryFuture) advancePartitions() bool {
	progressed := false
	for _, ps := range q.selectedSet {
		if ps.done {
			continue
		}
		part, ready, err := q.db.partition[ps.index].Poll()
		if !ready {
			continue
		}
		progressed = true
		q.onEvent(Event{Kind: FinishedLoadingPartition, Partition: ps.index})
		if err != nil {
			if q.err == nil {
				q.err = err
			}
			ps.done = true
			continue
		}
		q.onEvent(Event{Kind: StartingPartitionQueryExecution, Partition: ps.index})
		if e := q.executePartition(ps, part); e != nil && q.err == nil {
			q.err = e
		}
		q.onEvent(Event{Kind: FinishedPartitionQueryExecution, Partition: ps.index})
		ps.done = true
	}
	return progressed
}

func (q *QueryFuture) executePartition(ps *partitionState, part *partitionData) error {
	centroids, _, _ := q.db.centroids.Poll()
	centroid := centroids.Get(ps.index)
	vp := make([]float32, len(q.v))
	copy(vp, q.v)
	linalg.SubtractIn(vp, centroid)

	subspaceSize := q.db.vectorSize / q.db.numDivisions
	table := make([][]float32, q.db.numDivisions)
	for j := 0; j < q.db.numDivisions; j++ {
		sub := vp[j*subspaceSize : (j+1)*subspaceSize]
		cb, _, _ := q.db.codebooks[j].Poll()
		row := make([]float32, cb.Len())
		for c := 0; c < cb.Len(); c++ {
			row[c] = linalg.SquaredDistance(sub, cb.Get(c))
		}
		table[j] = row
	}

	for i, codes := range part.encodedVectors {
		var dist float32
		for j, c := range codes {
			dist += table[j][c]
		}
		if math.IsNaN(float64(dist)) {
			return vdberr.InvalidDataf("query produced a NaN distance against partition %d vector %d", ps.index, i)
		}
		q.best.Push(QueryResult{
			databaseHash:    q.db.manifestHash,
			partitionIndex:  ps.index,
			VectorID:        part.vectorIDs[i],
			SquaredDistance: dist,
		})
	}
	return nil
}

func (q *QueryFuture) allPartitionsDone() bool {
	for _, ps := range q.selectedSet {
		if !ps.done {
			return false
		}
	}
	return true
}

func (q *QueryFuture) finalize() {
	if q.err == nil {
		q.onEvent(Event{Kind: StartingKNNSelection, Partition: -1})
		results := q.best.Items()
		sort.Slice(results, func(a, b int) bool { return results[a].SquaredDistance < results[b].SquaredDistance })
		q.results = results
		q.onEvent(Event{Kind: FinishedKNNSelection, Partition: -1})
	}
	q.done = true
}

// pendingChannels collects the Done() channels of every future this
// query is currently still waiting on, for Run to block on without
// busy-spinning.
func (q *QueryFuture) pendingChannels() []<-chan struct{} {
	var chans []<-chan struct{}
	if !q.centroidsReady {
		if d := q.db.centroids.Done(); d != nil {
			chans = append(chans, d)
		}
	}
	if !q.codebooksReady {
		for j, ready := range q.codebookReady {
			if !ready {
				if d := q.db.codebooks[j].Done(); d != nil {
					chans = append(chans, d)
				}
			}
		}
	}
	for _, ps := range q.selectedSet {
		if !ps.done {
			if d := q.db.partition[ps.index].Done(); d != nil {
				chans = append(chans, d)
			}
		}
	}
	return chans
}

// Run polls the query to completion, blocking only when no future
// currently has progress to offer, and cancelling early if ctx is
// done. It is the ordinary entry point for callers that just want the
// final result set without driving the state machine by hand.
func (q *QueryFuture) Run(ctx context.Context) ([]QueryResult, error) {
	for {
		done, err := q.Poll()
		if done {
			return q.results, err
		}
		pending := q.pendingChannels()
		if len(pending) == 0 {
			// Nothing left to wait on but not done: unreachable for a
			// well-formed query, but avoid spinning forever.
			return q.results, vdberr.InvalidContextf("query future stalled with no pending loads and no result")
		}
		cases := make([]reflect.SelectCase, 0, len(pending)+1)
		for _, d := range pending {
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(d)})
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
		chosen, _, _ := reflect.Select(cases)
		if chosen == len(cases)-1 {
			return nil, ctx.Err()
		}
	}
}
