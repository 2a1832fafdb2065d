// Package nbest implements a streaming top-k-by-key container used
// to merge per-partition query results into a single global top-k
// without ever materializing the full candidate list.
package nbest

// NBestByKey keeps the n smallest items pushed to it, ordered by a
// supplied key function. Implementation is straight insertion, which
// is fast for the small n (tens) typical of a k-nearest-neighbors
// result set.
type NBestByKey[T any, K interface{ ~float32 | ~float64 | ~int }] struct {
	n          int
	key        func(T) K
	candidates []T
}

// New creates an NBestByKey of capacity n using key to order items.
func New[T any, K interface{ ~float32 | ~float64 | ~int }](n int, key func(T) K) *NBestByKey[T, K] {
	return &NBestByKey[T, K]{
		n:          n,
		key:        key,
		candidates: make([]T, 0, n),
	}
}

// Push offers a new candidate. If fewer than n items are resident,
// candidate is appended and Push returns (zero, false). Otherwise, it
// repeatedly swaps candidate into the first resident slot whose key
// is larger, until no such slot remains, and returns the final
// displaced value.
func (b *NBestByKey[T, K]) Push(candidate T) (displaced T, ok bool) {
	if len(b.candidates) < b.n {
		b.candidates = append(b.candidates, candidate)
		return displaced, false
	}
	ck := b.key(candidate)
	for {
		swapIdx := -1
		for i, item := range b.candidates {
			if ck < b.key(item) {
				swapIdx = i
				break
			}
		}
		if swapIdx < 0 {
			return candidate, true
		}
		b.candidates[swapIdx], candidate = candidate, b.candidates[swapIdx]
		ck = b.key(candidate)
	}
}

// Items returns the current resident items, in no particular order.
func (b *NBestByKey[T, K]) Items() []T { return b.candidates }

// Len returns the number of resident items.
func (b *NBestByKey[T, K]) Len() int { return len(b.candidates) }
