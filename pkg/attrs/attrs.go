// Package attrs implements the per-vector attribute table: a typed
// scalar key/value store attached to vectors at build time, persisted
// as one attributes log per partition, and replayed with
// last-write-wins semantics when a query result's attributes are
// requested.
package attrs

import (
	"sort"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	// KindString is a string-valued attribute.
	KindString ValueKind = iota
	// KindUint64 is a 64-bit unsigned integer-valued attribute.
	KindUint64
)

// Value is a tagged scalar attribute value. A future variant added to
// this type must remain backward-compatible in the wire format (new
// oneof field numbers only, never reusing 10/11).
type Value struct {
	Kind ValueKind
	Str  string
	U64  uint64
}

// StringValue builds a string-valued attribute.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// Uint64Value builds a uint64-valued attribute.
func Uint64Value(u uint64) Value { return Value{Kind: KindUint64, U64: u} }

// Attributes is the set of name/value bindings for a single vector.
// Keys are unique; insertion order is not observable.
type Attributes map[string]Value

// Table maps vector UUID to its Attributes. Lookups for a vector with
// no attributes set still succeed once the table has been populated
// for that vector's partition: every vector gets an entry, possibly
// empty, when its partition's log is replayed.
type Table map[uuid.UUID]Attributes

// Upsert applies name=value to the vector's entry, creating the entry
// if absent. Used both by the builder and by attributes-log replay.
func (t Table) Upsert(id uuid.UUID, name string, value Value) {
	entry, ok := t[id]
	if !ok {
		entry = make(Attributes)
		t[id] = entry
	}
	entry[name] = value
}

// EnsurePresent guarantees id has an entry in the table, inserting an
// empty Attributes set if absent. Used after attributes-log replay so
// every vector in a loaded partition has an entry, even an empty one.
func (t Table) EnsurePresent(id uuid.UUID) {
	if _, ok := t[id]; !ok {
		t[id] = make(Attributes)
	}
}

// Get returns the value bound to name for vector id. ok is false if
// the vector has no such key; exists is false if the vector has no
// entry in the table at all (meaning its partition has not been
// loaded, or the vector does not belong to this database).
func (t Table) Get(id uuid.UUID, name string) (value Value, exists, ok bool) {
	entry, present := t[id]
	if !present {
		return Value{}, false, false
	}
	v, has := entry[name]
	return v, true, has
}

// NameTable is the database-wide sorted table of attribute names,
// used to write compact integer indices into attribute log entries
// instead of repeating strings.
type NameTable struct {
	names []string
	index map[string]uint32
}

// NewNameTable builds a NameTable from the full set of distinct
// attribute names used across a corpus, sorted for determinism.
func NewNameTable(names map[string]struct{}) *NameTable {
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	idx := make(map[string]uint32, len(sorted))
	for i, n := range sorted {
		idx[n] = uint32(i)
	}
	return &NameTable{names: sorted, index: idx}
}

// NameTableFromSlice reconstructs a NameTable from an already-ordered
// name list, exactly as it was persisted in a database manifest. Unlike
// NewNameTable, it does not sort: the on-disk order is authoritative,
// since the name indices in the attributes logs refer to this order.
func NameTableFromSlice(names []string) *NameTable {
	idx := make(map[string]uint32, len(names))
	for i, n := range names {
		idx[n] = uint32(i)
	}
	return &NameTable{names: names, index: idx}
}

// Names returns the ordered attribute name table, as persisted in the
// database manifest.
func (nt *NameTable) Names() []string { return nt.names }

// IndexOf returns the integer index for name. Panics if name was not
// part of the set NewNameTable was built from, since that would be a
// builder bug, not a data condition.
func (nt *NameTable) IndexOf(name string) uint32 {
	idx, ok := nt.index[name]
	if !ok {
		panic("attrs: name not present in name table: " + name)
	}
	return idx
}

// NameAt returns the name for a given index, failing with InvalidData
// if the index is out of range — this is how a corrupt or
// inconsistent on-disk attributes log is detected.
func (nt *NameTable) NameAt(index uint32) (string, error) {
	if int(index) >= len(nt.names) {
		return "", vdberr.InvalidDataf("attribute name index %d out of range [0, %d)", index, len(nt.names))
	}
	return nt.names[index], nil
}

// Builder accumulates attribute bindings during corpus ingestion,
// keyed by the vector's position in the input corpus (before
// partition assignment is known).
type Builder struct {
	byIndex map[int]Attributes
}

// NewBuilder creates an empty attribute Builder.
func NewBuilder() *Builder {
	return &Builder{byIndex: make(map[int]Attributes)}
}

// SetAttributeAt attaches value to the i-th input vector under name,
// overwriting any existing binding for the same key.
func (b *Builder) SetAttributeAt(i int, name string, value Value) {
	entry, ok := b.byIndex[i]
	if !ok {
		entry = make(Attributes)
		b.byIndex[i] = entry
	}
	entry[name] = value
}

// AttributesAt returns the attributes set for the i-th input vector,
// or nil if none were set.
func (b *Builder) AttributesAt(i int) Attributes {
	return b.byIndex[i]
}

// NameSet returns the distinct attribute names used across every
// vector the builder has seen, for constructing a NameTable.
func (b *Builder) NameSet() map[string]struct{} {
	names := make(map[string]struct{})
	for _, attrs := range b.byIndex {
		for name := range attrs {
			names[name] = struct{}{}
		}
	}
	return names
}

// LogEntry is one (vector, name, value) binding as it will be written
// to a partition's attributes log.
type LogEntry struct {
	VectorID uuid.UUID
	Name     string
	Value    Value
}

// GroupByPartition splits the builder's bindings into one ordered
// slice of LogEntry per partition, using partitionOf[i] (the
// partition the i-th input vector was assigned to by the coarse
// quantizer) and vectorIDs[i] (that vector's persistent UUID).
func (b *Builder) GroupByPartition(numPartitions int, partitionOf []int, vectorIDs []uuid.UUID) [][]LogEntry {
	out := make([][]LogEntry, numPartitions)
	for i := range partitionOf {
		attrsAt := b.byIndex[i]
		if len(attrsAt) == 0 {
			continue
		}
		p := partitionOf[i]
		names := make([]string, 0, len(attrsAt))
		for name := range attrsAt {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out[p] = append(out[p], LogEntry{
				VectorID: vectorIDs[i],
				Name:     name,
				Value:    attrsAt[name],
			})
		}
	}
	return out
}
