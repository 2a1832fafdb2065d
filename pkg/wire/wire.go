// Package wire encodes and decodes the database's on-disk protobuf
// messages directly against the wire format, via
// google.golang.org/protobuf/encoding/protowire. There is no .proto
// file and no generated stub code: the protoc toolchain is out of
// scope for this module, but the bytes produced and consumed here are
// indistinguishable on the wire from what protoc-generated code would
// produce for the schema documented alongside each message below.
package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// Database is the top-level manifest: schema
//
//	1 vector_size u32
//	2 num_partitions u32
//	3 num_divisions u32
//	4 num_codes u32
//	5 partition_ids []string
//	6 partition_centroids_id string
//	7 codebook_ids []string
//	8 attributes_log_ids []string
//	9 attribute_names []string
type Database struct {
	VectorSize           uint32
	NumPartitions        uint32
	NumDivisions         uint32
	NumCodes             uint32
	PartitionIDs         []string
	PartitionCentroidsID string
	CodebookIDs          []string
	AttributesLogIDs     []string
	AttributeNames       []string
}

// Marshal encodes d to protobuf wire bytes.
func (d *Database) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, d.VectorSize)
	b = appendUint32(b, 2, d.NumPartitions)
	b = appendUint32(b, 3, d.NumDivisions)
	b = appendUint32(b, 4, d.NumCodes)
	for _, s := range d.PartitionIDs {
		b = appendString(b, 5, s)
	}
	b = appendString(b, 6, d.PartitionCentroidsID)
	for _, s := range d.CodebookIDs {
		b = appendString(b, 7, s)
	}
	for _, s := range d.AttributesLogIDs {
		b = appendString(b, 8, s)
	}
	for _, s := range d.AttributeNames {
		b = appendString(b, 9, s)
	}
	return b
}

// UnmarshalDatabase decodes a Database manifest from protobuf wire
// bytes. Fails with Protobuf on a malformed field.
func UnmarshalDatabase(b []byte) (*Database, error) {
	d := &Database{}
	return d, walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			d.VectorSize = u
		case 2:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			d.NumPartitions = u
		case 3:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			d.NumDivisions = u
		case 4:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			d.NumCodes = u
		case 5:
			d.PartitionIDs = append(d.PartitionIDs, string(v))
		case 6:
			d.PartitionCentroidsID = string(v)
		case 7:
			d.CodebookIDs = append(d.CodebookIDs, string(v))
		case 8:
			d.AttributesLogIDs = append(d.AttributesLogIDs, string(v))
		case 9:
			d.AttributeNames = append(d.AttributeNames, string(v))
		}
		return nil
	})
}

// VectorSet is a flat buffer of N vectors of size vector_size, used
// for partition centroids and codebooks: schema
//
//	1 vector_size u32
//	2 data packed []f32
type VectorSet struct {
	VectorSize uint32
	Data       []float32
}

func (v *VectorSet) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, v.VectorSize)
	var packed []byte
	for _, f := range v.Data {
		packed = protowire.AppendFixed32(packed, math.Float32bits(f))
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b
}

func UnmarshalVectorSet(b []byte) (*VectorSet, error) {
	vs := &VectorSet{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			vs.VectorSize = u
		case 2:
			floats, err := consumePackedFixed32(v)
			if err != nil {
				return err
			}
			vs.Data = floats
		}
		return nil
	})
	return vs, err
}

// EncodedVectorSet holds per-partition product-quantization codes:
// schema
//
//	1 vector_size u32 (= number of subspaces, D)
//	2 data packed []u32
type EncodedVectorSet struct {
	VectorSize uint32
	Data       []uint32
}

func (e *EncodedVectorSet) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, e.VectorSize)
	var packed []byte
	for _, u := range e.Data {
		packed = protowire.AppendVarint(packed, uint64(u))
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b
}

func UnmarshalEncodedVectorSet(b []byte) (*EncodedVectorSet, error) {
	e := &EncodedVectorSet{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			e.VectorSize = u
		case 2:
			ints, err := consumePackedVarint(v)
			if err != nil {
				return err
			}
			e.Data = make([]uint32, len(ints))
			for i, x := range ints {
				e.Data[i] = uint32(x)
			}
		}
		return nil
	})
	return e, err
}

// Partition is one on-disk shard: schema
//
//	1 vector_size u32
//	2 num_divisions u32
//	3 centroid packed []f32
//	4 vector_ids repeated bytes (16-byte UUID each)
//	5 encoded_vectors embedded EncodedVectorSet
type Partition struct {
	VectorSize     uint32
	NumDivisions   uint32
	Centroid       []float32
	VectorIDs      [][]byte
	EncodedVectors *EncodedVectorSet
}

func (p *Partition) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, p.VectorSize)
	b = appendUint32(b, 2, p.NumDivisions)
	var packed []byte
	for _, f := range p.Centroid {
		packed = protowire.AppendFixed32(packed, math.Float32bits(f))
	}
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	for _, id := range p.VectorIDs {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, id)
	}
	if p.EncodedVectors != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, p.EncodedVectors.Marshal())
	}
	return b
}

func UnmarshalPartition(b []byte) (*Partition, error) {
	p := &Partition{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			p.VectorSize = u
		case 2:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			p.NumDivisions = u
		case 3:
			floats, err := consumePackedFixed32(v)
			if err != nil {
				return err
			}
			p.Centroid = floats
		case 4:
			cp := append([]byte(nil), v...)
			p.VectorIDs = append(p.VectorIDs, cp)
		case 5:
			ev, err := UnmarshalEncodedVectorSet(v)
			if err != nil {
				return err
			}
			p.EncodedVectors = ev
		}
		return nil
	})
	return p, err
}

// SetAttribute is one attribute-log entry: schema
//
//	1 vector_id bytes (16-byte UUID)
//	2 name_index u32
//	10 string_value string (oneof)
//	11 uint64_value u64 (oneof)
type SetAttribute struct {
	VectorID    []byte
	NameIndex   uint32
	HasString   bool
	StringValue string
	HasUint64   bool
	Uint64Value uint64
}

func (s *SetAttribute) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, s.VectorID)
	b = appendUint32(b, 2, s.NameIndex)
	if s.HasString {
		b = appendString(b, 10, s.StringValue)
	}
	if s.HasUint64 {
		b = protowire.AppendTag(b, 11, protowire.VarintType)
		b = protowire.AppendVarint(b, s.Uint64Value)
	}
	return b
}

func UnmarshalSetAttribute(b []byte) (*SetAttribute, error) {
	s := &SetAttribute{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			s.VectorID = append([]byte(nil), v...)
		case 2:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			s.NameIndex = u
		case 10:
			s.HasString = true
			s.StringValue = string(v)
		case 11:
			u, err := consumeUint64(typ, v)
			if err != nil {
				return err
			}
			s.HasUint64 = true
			s.Uint64Value = u
		}
		return nil
	})
	return s, err
}

// AttributesLog is one partition's attribute bindings: schema
//
//	1 partition_id string
//	2 entries repeated embedded SetAttribute
type AttributesLog struct {
	PartitionID string
	Entries     []*SetAttribute
}

func (a *AttributesLog) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, a.PartitionID)
	for _, e := range a.Entries {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Marshal())
	}
	return b
}

func UnmarshalAttributesLog(b []byte) (*AttributesLog, error) {
	a := &AttributesLog{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			a.PartitionID = string(v)
		case 2:
			e, err := UnmarshalSetAttribute(v)
			if err != nil {
				return err
			}
			a.Entries = append(a.Entries, e)
		}
		return nil
	})
	return a, err
}

// --- shared helpers ---

func appendUint32(b []byte, num protowire.Number, u uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(u))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, []byte(s))
}

func consumeUint32(typ protowire.Type, v []byte) (uint32, error) {
	u, err := consumeUint64(typ, v)
	return uint32(u), err
}

func consumeUint64(typ protowire.Type, v []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, vdberr.WrapProtobuf(nil, "expected varint field, got wire type %v", typ)
	}
	u, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0, vdberr.WrapProtobuf(nil, "malformed varint")
	}
	return u, nil
}

func consumePackedFixed32(v []byte) ([]float32, error) {
	if len(v)%4 != 0 {
		return nil, vdberr.WrapProtobuf(nil, "packed fixed32 field length %d not a multiple of 4", len(v))
	}
	out := make([]float32, 0, len(v)/4)
	for len(v) > 0 {
		bits, n := protowire.ConsumeFixed32(v)
		if n < 0 {
			return nil, vdberr.WrapProtobuf(nil, "malformed fixed32 in packed field")
		}
		out = append(out, math.Float32frombits(bits))
		v = v[n:]
	}
	return out, nil
}

func consumePackedVarint(v []byte) ([]uint64, error) {
	var out []uint64
	for len(v) > 0 {
		u, n := protowire.ConsumeVarint(v)
		if n < 0 {
			return nil, vdberr.WrapProtobuf(nil, "malformed varint in packed field")
		}
		out = append(out, u)
		v = v[n:]
	}
	return out, nil
}

// walkFields iterates every top-level field in b, invoking fn with the
// field number, wire type, and raw value bytes: the payload for
// bytes-typed fields, the undecoded varint/fixed bytes for scalar
// fields (consumeUint32/64 re-parse those).
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return vdberr.WrapProtobuf(nil, "malformed tag")
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return vdberr.WrapProtobuf(nil, "malformed varint field %d", num)
			}
			if err := fn(num, typ, b[:n]); err != nil {
				return err
			}
			b = b[n:]
		case protowire.Fixed32Type:
			if len(b) < 4 {
				return vdberr.WrapProtobuf(nil, "truncated fixed32 field %d", num)
			}
			if err := fn(num, typ, b[:4]); err != nil {
				return err
			}
			b = b[4:]
		case protowire.Fixed64Type:
			if len(b) < 8 {
				return vdberr.WrapProtobuf(nil, "truncated fixed64 field %d", num)
			}
			if err := fn(num, typ, b[:8]); err != nil {
				return err
			}
			b = b[8:]
		case protowire.BytesType:
			payload, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return vdberr.WrapProtobuf(nil, "malformed bytes field %d", num)
			}
			if err := fn(num, typ, payload); err != nil {
				return err
			}
			b = b[n:]
		default:
			return vdberr.WrapProtobuf(nil, "unsupported wire type %v for field %d", typ, num)
		}
	}
	return nil
}
