package asyncquery

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/ivfdb"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store/asyncstore"
)

// countingFileSystem wraps a store.FileSystem and counts how many
// times each path is opened, so tests can assert that a cold-cache
// query issues each file exactly once no matter how many queries ask
// for it concurrently.
type countingFileSystem struct {
	inner store.FileSystem
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFileSystem(inner store.FileSystem) *countingFileSystem {
	return &countingFileSystem{inner: inner, opens: make(map[string]int)}
}

func (c *countingFileSystem) CreateHashedFile(compressed bool) (store.HashedFileOut, error) {
	return c.inner.CreateHashedFile(compressed)
}

func (c *countingFileSystem) CreateHashedFileIn(dir string, compressed bool) (store.HashedFileOut, error) {
	return c.inner.CreateHashedFileIn(dir, compressed)
}

func (c *countingFileSystem) OpenHashedFile(path string, compressed bool) (store.HashedFileIn, error) {
	c.mu.Lock()
	c.opens[path]++
	c.mu.Unlock()
	return c.inner.OpenHashedFile(path, compressed)
}

func (c *countingFileSystem) countOf(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[path]
}

func buildTestDatabase(t *testing.T, n, m int) (string, *countingFileSystem, [][]float32) {
	t.Helper()
	r := rand.New(rand.NewPCG(11, 11))
	b, err := ivfdb.NewBuilder(m)
	if err != nil {
		t.Fatal(err)
	}
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, m)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		vectors[i] = v
		if _, err := b.AddVector(v); err != nil {
			t.Fatal(err)
		}
		if err := b.SetAttribute(i, "label", attrs.Uint64Value(uint64(i))); err != nil {
			t.Fatal(err)
		}
	}
	artifacts, err := b.Build(ivfdb.BuildConfig{NumPartitions: 4, NumDivisions: 2, NumCodes: 8}, r)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	sfs := store.NewLocalFileSystem(dir)
	manifestHash, err := artifacts.Persist(sfs)
	if err != nil {
		t.Fatal(err)
	}
	cfs := newCountingFileSystem(sfs)
	return manifestHash, cfs, vectors
}

func TestAsyncQueryMatchesSync(t *testing.T) {
	m, n := 8, 80
	manifestHash, cfs, vectors := buildTestDatabase(t, n, m)

	syncDB, err := ivfdb.Open(cfs, manifestHash)
	if err != nil {
		t.Fatal(err)
	}

	asyncDB, err := Open(context.Background(), asyncstore.Wrap(cfs), manifestHash)
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range vectors[:10] {
		syncResults, err := syncDB.Query(v, 3, syncDB.NumPartitions())
		if err != nil {
			t.Fatalf("sync query %d: %v", i, err)
		}
		fut, err := asyncDB.Query(v, 3, asyncDB.NumPartitions(), nil)
		if err != nil {
			t.Fatalf("async query %d: %v", i, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		asyncResults, err := fut.Run(ctx)
		cancel()
		if err != nil {
			t.Fatalf("async query %d: %v", i, err)
		}
		if len(syncResults) != len(asyncResults) {
			t.Fatalf("query %d: sync returned %d results, async returned %d", i, len(syncResults), len(asyncResults))
		}
		for j := range syncResults {
			if syncResults[j].VectorID != asyncResults[j].VectorID {
				t.Fatalf("query %d result %d: vector id mismatch sync=%s async=%s", i, j, syncResults[j].VectorID, asyncResults[j].VectorID)
			}
			if syncResults[j].SquaredDistance != asyncResults[j].SquaredDistance {
				t.Fatalf("query %d result %d: distance mismatch sync=%v async=%v", i, j, syncResults[j].SquaredDistance, asyncResults[j].SquaredDistance)
			}
		}
	}
}

func TestAsyncQueryRejectsBadArguments(t *testing.T) {
	m := 8
	manifestHash, cfs, vectors := buildTestDatabase(t, 40, m)
	db, err := Open(context.Background(), asyncstore.Wrap(cfs), manifestHash)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.Query(make([]float32, m+1), 1, 1, nil); err == nil {
		t.Fatal("expected InvalidArgs for mismatched vector size")
	}
	if _, err := db.Query(vectors[0], 1, db.NumPartitions()+1, nil); err == nil {
		t.Fatal("expected InvalidArgs for nprobe exceeding partition count")
	}
	if _, err := db.Query(vectors[0], 0, 1, nil); err == nil {
		t.Fatal("expected InvalidArgs for k = 0")
	}
}

func TestAsyncConcurrentQueriesShareColdCacheLoads(t *testing.T) {
	m := 8
	manifestHash, cfs, vectors := buildTestDatabase(t, 60, m)
	db, err := Open(context.Background(), asyncstore.Wrap(cfs), manifestHash)
	if err != nil {
		t.Fatal(err)
	}

	const concurrency = 5
	var wg sync.WaitGroup
	results := make([][]QueryResult, concurrency)
	errs := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fut, err := db.Query(vectors[0], 2, db.NumPartitions(), nil)
			if err != nil {
				errs[i] = err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results[i], errs[i] = fut.Run(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
	}
	for i := 1; i < concurrency; i++ {
		if len(results[i]) != len(results[0]) {
			t.Fatalf("query %d returned %d results, want %d", i, len(results[i]), len(results[0]))
		}
		for j := range results[0] {
			if results[i][j].VectorID != results[0][j].VectorID {
				t.Fatalf("query %d result %d diverged from query 0", i, j)
			}
		}
	}

	// Every selected partition and every codebook/centroid file
	// should have been opened exactly once across all five
	// concurrent cold-cache queries.
	if got := cfs.countOf("partitions/" + db.partitionCentroidsID + ".binpb"); got != 1 {
		t.Fatalf("partition centroids opened %d times, want 1", got)
	}
	for _, id := range db.codebookIDs {
		if got := cfs.countOf("codebooks/" + id + ".binpb"); got != 1 {
			t.Fatalf("codebook %s opened %d times, want 1", id, got)
		}
	}
	for _, id := range db.partitionIDs {
		if got := cfs.countOf("partitions/" + id + ".binpb"); got != 1 {
			t.Fatalf("partition %s opened %d times, want 1", id, got)
		}
	}
}

func TestAsyncGetAttributeAfterLoad(t *testing.T) {
	m := 8
	manifestHash, cfs, vectors := buildTestDatabase(t, 30, m)
	db, err := Open(context.Background(), asyncstore.Wrap(cfs), manifestHash)
	if err != nil {
		t.Fatal(err)
	}

	fut, err := db.Query(vectors[0], 1, db.NumPartitions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := fut.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	if _, _, err := db.GetAttribute(ctx, results[0], "missing"); err != nil {
		t.Fatalf("GetAttribute for absent key should not error: %v", err)
	}
	if _, exists, err := db.GetAttribute(ctx, results[0], "missing"); err != nil || exists {
		t.Fatalf("expected exists=false for absent key, got exists=%v err=%v", exists, err)
	}
}

func TestAsyncGetAttributeCrossHandleRejected(t *testing.T) {
	m := 4
	hash1, cfs1, v1 := buildTestDatabase(t, 20, m)
	hash2, cfs2, _ := buildTestDatabase(t, 20, m)
	db1, err := Open(context.Background(), asyncstore.Wrap(cfs1), hash1)
	if err != nil {
		t.Fatal(err)
	}
	db2, err := Open(context.Background(), asyncstore.Wrap(cfs2), hash2)
	if err != nil {
		t.Fatal(err)
	}

	fut, err := db1.Query(v1[0], 1, db1.NumPartitions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := fut.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := db2.GetAttribute(ctx, results[0], "label"); err == nil {
		t.Fatal("expected InvalidArgs for a result from a different database handle")
	}
}

func TestAsyncQueryEmitsMonotonicEvents(t *testing.T) {
	m := 8
	manifestHash, cfs, vectors := buildTestDatabase(t, 30, m)
	db, err := Open(context.Background(), asyncstore.Wrap(cfs), manifestHash)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var kinds []EventKind
	fut, err := db.Query(vectors[0], 1, db.NumPartitions(), func(e Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := fut.Run(ctx); err != nil {
		t.Fatal(err)
	}

	mustBefore := func(a, b EventKind) {
		ai, bi := -1, -1
		for idx, k := range kinds {
			if k == a && ai == -1 {
				ai = idx
			}
			if k == b && bi == -1 {
				bi = idx
			}
		}
		if ai == -1 || bi == -1 || ai > bi {
			t.Fatalf("expected event %v before %v, got order %v", a, b, kinds)
		}
	}
	mustBefore(StartingLoadingPartitionCentroids, FinishedLoadingPartitionCentroids)
	mustBefore(StartingLoadingCodebooks, FinishedLoadingCodebooks)
	mustBefore(FinishedLoadingCodebooks, StartingPartitionSelection)
	mustBefore(StartingPartitionSelection, FinishedPartitionSelection)
	mustBefore(FinishedPartitionSelection, StartingKNNSelection)
	mustBefore(StartingKNNSelection, FinishedKNNSelection)
}
