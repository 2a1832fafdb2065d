// Package asyncstore is the asynchronous half of the content-addressed
// storage contract: the same hash-verified file format as pkg/store,
// but every read is issued in the background and handed back as a
// pollable future instead of a blocking call. This is the collaborator
// the asynchronous query engine (pkg/ivfdb/asyncquery) suspends on.
//
// There is no event loop here: "asynchronous" is modeled the idiomatic
// Go way, with a goroutine per in-flight read and a channel signaling
// completion, rather than a manually-driven poll function. Callers
// that want cooperative, single-threaded scheduling (the asyncquery
// package) build it on top by polling several futures without
// blocking and only waiting when none of them have progress to offer.
package asyncstore

import (
	"context"
	"io"
	"sync"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// FileSystem abstracts an asynchronous content-addressed file store.
// OpenHashedFile issues the read immediately, in the background, and
// returns a future for its verified payload.
type FileSystem interface {
	OpenHashedFile(path string, compressed bool) *ReadFuture
}

// ReadFuture is a one-shot asynchronous read: a background goroutine
// reads the named file fully and verifies its hash, then delivers the
// payload or the failure through done.
type ReadFuture struct {
	done chan struct{}
	data []byte
	err  error
}

func newReadFuture() *ReadFuture {
	return &ReadFuture{done: make(chan struct{})}
}

func (f *ReadFuture) deliver(data []byte, err error) {
	f.data, f.err = data, err
	close(f.done)
}

// Poll reports whether the read has completed without blocking.
func (f *ReadFuture) Poll() (result []byte, ready bool, err error) {
	select {
	case <-f.done:
		return f.data, true, f.err
	default:
		return nil, false, nil
	}
}

// Done returns a channel closed when the read completes, so a caller
// juggling several futures can wait on whichever finishes first
// instead of busy-polling.
func (f *ReadFuture) Done() <-chan struct{} { return f.done }

// Wait blocks until the read completes or ctx is cancelled.
func (f *ReadFuture) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LocalFileSystem realizes FileSystem by driving a synchronous
// store.FileSystem from a goroutine per read.
type LocalFileSystem struct {
	inner store.FileSystem
}

// NewLocalFileSystem creates an asynchronous view over a local disk
// content-addressed store rooted at basePath.
func NewLocalFileSystem(basePath string) *LocalFileSystem {
	return &LocalFileSystem{inner: store.NewLocalFileSystem(basePath)}
}

// Wrap adapts any synchronous store.FileSystem into an asynchronous
// one. Used by tests to wrap a counting proxy around a real store.
func Wrap(fs store.FileSystem) *LocalFileSystem { return &LocalFileSystem{inner: fs} }

func (fs *LocalFileSystem) OpenHashedFile(path string, compressed bool) *ReadFuture {
	f := newReadFuture()
	go func() {
		in, err := fs.inner.OpenHashedFile(path, compressed)
		if err != nil {
			f.deliver(nil, err)
			return
		}
		data, err := io.ReadAll(in)
		if err != nil {
			f.deliver(nil, vdberr.WrapIO(err, "reading hashed file %s", path))
			return
		}
		if err := in.Verify(); err != nil {
			f.deliver(nil, err)
			return
		}
		f.deliver(data, nil)
	}()
	return f
}

// Cell is a generic OnceCell-style asynchronous cache: Start issues
// load at most once no matter how many goroutines call it
// concurrently; everyone observes the same in-flight or completed
// result. This backs every lazily-materialized, memoized artifact on
// the read side of the async engine (partition centroids, codebooks,
// individual partitions).
type Cell[T any] struct {
	mu    sync.Mutex
	ready chan struct{}
	val   T
	err   error
}

// Start begins load in the background the first time it is called;
// subsequent calls (including concurrent ones) are no-ops that share
// the same result.
func (c *Cell[T]) Start(load func() (T, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready != nil {
		return
	}
	ready := make(chan struct{})
	c.ready = ready
	go func() {
		val, err := load()
		c.mu.Lock()
		c.val, c.err = val, err
		c.mu.Unlock()
		close(ready)
	}()
}

// Poll reports whether the cell has a value yet without blocking.
// Start must have been called first; an un-started cell never
// reports ready.
func (c *Cell[T]) Poll() (T, bool, error) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if ready == nil {
		var zero T
		return zero, false, nil
	}
	select {
	case <-ready:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.val, true, c.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Done returns the cell's readiness channel, or nil if Start has not
// been called yet.
func (c *Cell[T]) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Wait blocks until the cell has a value or ctx is cancelled. Start
// must have been called first.
func (c *Cell[T]) Wait(ctx context.Context) (T, error) {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	select {
	case <-ready:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
