package attrs

import (
	"testing"

	"github.com/google/uuid"
)

func TestGetMissingKeyIsNotError(t *testing.T) {
	tbl := make(Table)
	id := uuid.New()
	tbl.EnsurePresent(id)
	_, exists, ok := tbl.Get(id, "missing")
	if !exists {
		t.Fatal("expected vector to be present in table")
	}
	if ok {
		t.Fatal("expected ok=false for a key that was never set")
	}
}

func TestGetUnknownVectorNotPresent(t *testing.T) {
	tbl := make(Table)
	_, exists, _ := tbl.Get(uuid.New(), "anything")
	if exists {
		t.Fatal("expected exists=false for a vector never inserted")
	}
}

// After replaying a partition's attributes log, every vector UUID in
// that partition must have an entry, even if unmentioned by the log.
func TestLoadUpsertsEmptiesForEveryPartitionVector(t *testing.T) {
	tbl := make(Table)
	v0, v1, v2 := uuid.New(), uuid.New(), uuid.New()

	tbl.Upsert(v0, "label", StringValue("cat"))

	for _, id := range []uuid.UUID{v0, v1, v2} {
		tbl.EnsurePresent(id)
	}

	if val, _, ok := tbl.Get(v0, "label"); !ok || val.Str != "cat" {
		t.Fatalf("v0 label = %v, %v", val, ok)
	}
	if _, exists, ok := tbl.Get(v1, "label"); !exists || ok {
		t.Fatalf("v1 should exist with no label: exists=%v ok=%v", exists, ok)
	}
	if _, exists, _ := tbl.Get(v2, "label"); !exists {
		t.Fatal("v2 should be present with empty attributes")
	}
}

func TestLastWriteWinsInFileOrder(t *testing.T) {
	tbl := make(Table)
	id := uuid.New()
	tbl.Upsert(id, "status", StringValue("first"))
	tbl.Upsert(id, "status", StringValue("second"))
	val, _, ok := tbl.Get(id, "status")
	if !ok || val.Str != "second" {
		t.Fatalf("expected last write to win, got %v", val)
	}
}

func TestGroupByPartitionOrdersByNameAndAssignsPartition(t *testing.T) {
	b := NewBuilder()
	b.SetAttributeAt(0, "label", StringValue("cat"))
	b.SetAttributeAt(0, "id", Uint64Value(42))
	b.SetAttributeAt(1, "label", StringValue("dog"))

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	partitionOf := []int{0, 1}

	groups := b.GroupByPartition(2, partitionOf, ids)
	if len(groups[0]) != 2 {
		t.Fatalf("partition 0: got %d entries, want 2", len(groups[0]))
	}
	if groups[0][0].Name != "id" || groups[0][1].Name != "label" {
		t.Fatalf("expected sorted names, got %v, %v", groups[0][0].Name, groups[0][1].Name)
	}
	if len(groups[1]) != 1 || groups[1][0].VectorID != ids[1] {
		t.Fatalf("partition 1 grouping wrong: %v", groups[1])
	}
}

func TestNameTableRoundTrip(t *testing.T) {
	nt := NewNameTable(map[string]struct{}{"b": {}, "a": {}, "c": {}})
	if got := nt.Names(); got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected sorted names, got %v", got)
	}
	if nt.IndexOf("b") != 1 {
		t.Fatalf("IndexOf(b) = %d, want 1", nt.IndexOf("b"))
	}
	name, err := nt.NameAt(2)
	if err != nil || name != "c" {
		t.Fatalf("NameAt(2) = %v, %v", name, err)
	}
	if _, err := nt.NameAt(99); err == nil {
		t.Fatal("expected InvalidData for out-of-range index")
	}
}
