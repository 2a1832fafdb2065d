package ivfdb

import (
	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/wire"
)

// replayAttributeLog loads and applies partition p's attributes log
// onto db.attributeTable in file order (last-write-wins on repeated
// keys). Caller holds db.attrMu.
func (db *Database) replayAttributeLog(p int, part *partition) error {
	in, err := db.fs.OpenHashedFile("attributes/"+db.attributesLogIDs[p]+".binpb", true)
	if err != nil {
		return err
	}
	data, err := readAndVerify(in)
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
