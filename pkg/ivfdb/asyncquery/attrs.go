package asyncquery

import (
	"context"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/wire"
)

// GetAttribute returns the value bound to name for result's vector,
// loading the owning partition's attributes log first if necessary.
// Loading blocks the calling goroutine but does not hold up any other
// in-flight QueryFuture's Poll/Run loop.
func (db *Database) GetAttribute(ctx context.Context, result QueryResult, name string) (value attrs.Value, exists bool, err error) {
	if result.databaseHash != db.manifestHash {
		return attrs.Value{}, false, vdberr.InvalidArgsf("query result does not belong to this database handle")
	}
	if result.partitionIndex < 0 || result.partitionIndex >= db.numPartitions {
		return attrs.Value{}, false, vdberr.InvalidArgsf("result partition index %d out of range [0, %d)", result.partitionIndex, db.numPartitions)
	}
	if err := db.loadAttributeLog(ctx, result.partitionIndex); err != nil {
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

func (db *Database) loadAttributeLog(ctx context.Context, partitionIndex int) error {
	db.attrMu.Lock()
	defer db.attrMu.Unlock()
	if db.attrLogLoaded[partitionIndex] {
		return db.attrLogErrs[partitionIndex]
	}

	db.startPartition(partitionIndex)
	part, err := db.partition[partitionIndex].Wait(ctx)
	if err != nil {
		db.attrLogErrs[partitionIndex] = err
		db.attrLogLoaded[partitionIndex] = true
		return err
	}

	if err := db.replayAttributeLog(ctx, partitionIndex); err != nil {
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

// replayAttributeLog loads partition p's attributes log and applies
// it onto db.attributeTable in file order (last write wins on
// repeated keys). Caller holds db.attrMu.
func (db *Database) replayAttributeLog(ctx context.Context, p int) error {
	f := db.fs.OpenHashedFile("attributes/"+db.attributesLogIDs[p]+".binpb", true)
	data, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	log, err := wire.UnmarshalAttributesLog(data)
	if err != nil {
		return err
	}
	if log.PartitionID != db.partitionIDs[p] {
		return vdberr.InvalidDataf(
			"attributes log for partition %d carries partition_id %q, want %q",
			p, log.PartitionID, db.partitionIDs[p])
	}

	for _, e := range log.Entries {
		id, err := uuid.FromBytes(e.VectorID)
		if err != nil {
			return vdberr.InvalidDataf("attributes log partition %d: malformed vector id: %v", p, err)
		}
		name, err := db.attributeNames.NameAt(e.NameIndex)
		if err != nil {
			return err
		}
		var value attrs.Value
		switch {
		case e.HasString:
			value = attrs.StringValue(e.StringValue)
		case e.HasUint64:
			value = attrs.Uint64Value(e.Uint64Value)
		default:
			return vdberr.InvalidDataf("attributes log partition %d: entry for %s/%s has neither value set", p, id, name)
		}
		db.attributeTable.Upsert(id, name, value)
	}
	return nil
}
