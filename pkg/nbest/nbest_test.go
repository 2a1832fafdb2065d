package nbest

import "testing"

func identity(x int) int { return x }

func TestPushUnderCapacityNeverDisplaces(t *testing.T) {
	b := New(3, identity)
	for _, v := range []int{5, 1, 9} {
		if _, ok := b.Push(v); ok {
			t.Fatalf("unexpected displacement while under capacity")
		}
	}
	if b.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", b.Len())
	}
}

func TestKeepsNSmallest(t *testing.T) {
	b := New(3, identity)
	input := []int{5, 1, 9, 2, 8, 0, 7, 3}
	for _, v := range input {
		b.Push(v)
	}
	items := append([]int(nil), b.Items()...)
	sum := 0
	for _, v := range items {
		sum += v
	}
	// the 3 smallest of input are 0, 1, 2
	if sum != 3 {
		t.Fatalf("items=%v, want the three smallest (0,1,2)", items)
	}
}

func TestDisplacedValueReturned(t *testing.T) {
	b := New(2, identity)
	b.Push(5)
	b.Push(3)
	displaced, ok := b.Push(10)
	if !ok || displaced != 10 {
		t.Fatalf("pushing a larger value than both residents should displace itself, got %v %v", displaced, ok)
	}
	displaced, ok = b.Push(1)
	if !ok || displaced != 5 {
		t.Fatalf("pushing 1 should displace the largest resident (5), got %v %v", displaced, ok)
	}
}
