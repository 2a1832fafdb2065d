package asyncstore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
)

func writeFile(t *testing.T, fs store.FileSystem, payload []byte, compressed bool) string {
	t.Helper()
	out, err := fs.CreateHashedFile(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Write(payload); err != nil {
		t.Fatal(err)
	}
	hash, err := out.Persist("binpb")
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func TestReadFutureDeliversVerifiedPayload(t *testing.T) {
	dir := t.TempDir()
	sync := store.NewLocalFileSystem(dir)
	payload := []byte("asynchronous content-addressed payload")
	hash := writeFile(t, sync, payload, false)

	afs := NewLocalFileSystem(dir)
	f := afs.OpenHashedFile(hash+".binpb", false)

	data, err := f.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Fatalf("got %q, want %q", data, payload)
	}
}

func TestReadFuturePollIsNonBlocking(t *testing.T) {
	dir := t.TempDir()
	sync := store.NewLocalFileSystem(dir)
	hash := writeFile(t, sync, []byte("x"), false)

	afs := NewLocalFileSystem(dir)
	f := afs.OpenHashedFile(hash+".binpb", false)

	// Poll immediately; whether or not the goroutine has already
	// finished, Poll must never block the caller.
	_, _, _ = f.Poll()

	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read future never completed")
	}
	data, ready, err := f.Poll()
	if !ready {
		t.Fatal("expected ready after Done() fired")
	}
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x" {
		t.Fatalf("got %q", data)
	}
}

func TestCellLoadsExactlyOnce(t *testing.T) {
	var loads int64
	var c Cell[int]
	start := func() {
		c.Start(func() (int, error) {
			atomic.AddInt64(&loads, 1)
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		})
	}

	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			start()
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	val, err := c.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if val != 42 {
		t.Fatalf("got %d, want 42", val)
	}
	if atomic.LoadInt64(&loads) != 1 {
		t.Fatalf("load ran %d times, want exactly 1", loads)
	}
}

func TestCellPollBeforeStart(t *testing.T) {
	var c Cell[string]
	if _, ready, _ := c.Poll(); ready {
		t.Fatal("expected not ready before Start")
	}
}
