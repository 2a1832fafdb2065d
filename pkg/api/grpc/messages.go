package grpc

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

// This file hand-encodes the RPC request/response messages directly
// against the protobuf wire format, the same way pkg/wire encodes the
// on-disk schema: there is no .proto file and no generated stub code,
// since the protoc toolchain is out of scope for this module. The
// bytes are indistinguishable on the wire from what protoc-generated
// code would produce for the schema documented above each message.

// QueryRequest: schema
//
//	1 manifest_hash string
//	2 vector []float32 (packed fixed32)
//	3 k u32
//	4 nprobe u32
type QueryRequest struct {
	ManifestHash string
	Vector       []float32
	K            uint32
	NProbe       uint32
}

// MarshalBinary encodes r to protobuf wire bytes.
func (r *QueryRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, r.ManifestHash)
	b = appendPackedFixed32(b, 2, r.Vector)
	b = appendUint32(b, 3, r.K)
	b = appendUint32(b, 4, r.NProbe)
	return b, nil
}

// UnmarshalBinary decodes r from protobuf wire bytes.
func (r *QueryRequest) UnmarshalBinary(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			s, err := consumeString(typ, v)
			if err != nil {
				return err
			}
			r.ManifestHash = s
		case 2:
			f, err := consumePackedFixed32(v)
			if err != nil {
				return err
			}
			r.Vector = f
		case 3:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.K = u
		case 4:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.NProbe = u
		}
		return nil
	})
}

// QueryMatch: schema
//
//	1 vector_id bytes (16-byte UUID)
//	2 squared_distance float32 (fixed32)
//	3 partition_index u32
type QueryMatch struct {
	VectorID        []byte
	SquaredDistance float32
	PartitionIndex  uint32
}

// QueryResponse: schema
//
//	1 matches []QueryMatch (length-delimited, repeated)
type QueryResponse struct {
	Matches []QueryMatch
}

// MarshalBinary encodes r to protobuf wire bytes.
func (r *QueryResponse) MarshalBinary() ([]byte, error) {
	var b []byte
	for _, m := range r.Matches {
		var mb []byte
		mb = appendBytes(mb, 1, m.VectorID)
		mb = appendFloat32(mb, 2, m.SquaredDistance)
		mb = appendUint32(mb, 3, m.PartitionIndex)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, mb)
	}
	return b, nil
}

// UnmarshalBinary decodes r from protobuf wire bytes.
func (r *QueryResponse) UnmarshalBinary(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 {
			return nil
		}
		if typ != protowire.BytesType {
			return vdberr.WrapProtobuf(nil, "query response match field has wrong wire type")
		}
		m := QueryMatch{}
		if err := walkFields(v, func(n protowire.Number, t protowire.Type, vv []byte) error {
			switch n {
			case 1:
				b, err := consumeBytes(t, vv)
				if err != nil {
					return err
				}
				m.VectorID = b
			case 2:
				f, err := consumeFloat32(t, vv)
				if err != nil {
					return err
				}
				m.SquaredDistance = f
			case 3:
				u, err := consumeUint32(t, vv)
				if err != nil {
					return err
				}
				m.PartitionIndex = u
			}
			return nil
		}); err != nil {
			return err
		}
		r.Matches = append(r.Matches, m)
		return nil
	})
}

// GetAttributeRequest: schema
//
//	1 manifest_hash string
//	2 partition_index u32
//	3 vector_id bytes (16-byte UUID)
//	4 name string
type GetAttributeRequest struct {
	ManifestHash   string
	PartitionIndex uint32
	VectorID       []byte
	Name           string
}

// MarshalBinary encodes r to protobuf wire bytes.
func (r *GetAttributeRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, r.ManifestHash)
	b = appendUint32(b, 2, r.PartitionIndex)
	b = appendBytes(b, 3, r.VectorID)
	b = appendString(b, 4, r.Name)
	return b, nil
}

// UnmarshalBinary decodes r from protobuf wire bytes.
func (r *GetAttributeRequest) UnmarshalBinary(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			s, err := consumeString(typ, v)
			if err != nil {
				return err
			}
			r.ManifestHash = s
		case 2:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.PartitionIndex = u
		case 3:
			b, err := consumeBytes(typ, v)
			if err != nil {
				return err
			}
			r.VectorID = b
		case 4:
			s, err := consumeString(typ, v)
			if err != nil {
				return err
			}
			r.Name = s
		}
		return nil
	})
}

// BuildAttribute: schema
//
//	1 vector_index u32
//	2 name string
//	3 string_value string (oneof)
//	4 uint64_value u64 (oneof)
type BuildAttribute struct {
	VectorIndex uint32
	Name        string
	IsString    bool
	StringValue string
	Uint64Value uint64
}

// BuildRequest: schema
//
//	1 vector_size u32
//	2 num_partitions u32 (0 selects the server's default index config)
//	3 num_divisions u32 (0 selects the server's default index config)
//	4 num_codes u32 (0 selects the server's default index config)
//	5 vectors []float32 (packed fixed32, vectors concatenated end to end)
//	6 attributes []BuildAttribute (embedded, repeated)
type BuildRequest struct {
	VectorSize    uint32
	NumPartitions uint32
	NumDivisions  uint32
	NumCodes      uint32
	Vectors       []float32
	Attributes    []BuildAttribute
}

// MarshalBinary encodes r to protobuf wire bytes.
func (r *BuildRequest) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, r.VectorSize)
	b = appendUint32(b, 2, r.NumPartitions)
	b = appendUint32(b, 3, r.NumDivisions)
	b = appendUint32(b, 4, r.NumCodes)
	b = appendPackedFixed32(b, 5, r.Vectors)
	for _, a := range r.Attributes {
		var ab []byte
		ab = appendUint32(ab, 1, a.VectorIndex)
		ab = appendString(ab, 2, a.Name)
		if a.IsString {
			ab = protowire.AppendTag(ab, 3, protowire.BytesType)
			ab = protowire.AppendString(ab, a.StringValue)
		} else {
			ab = protowire.AppendTag(ab, 4, protowire.VarintType)
			ab = protowire.AppendVarint(ab, a.Uint64Value)
		}
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, ab)
	}
	return b, nil
}

// UnmarshalBinary decodes r from protobuf wire bytes.
func (r *BuildRequest) UnmarshalBinary(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.VectorSize = u
		case 2:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.NumPartitions = u
		case 3:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.NumDivisions = u
		case 4:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.NumCodes = u
		case 5:
			f, err := consumePackedFixed32(v)
			if err != nil {
				return err
			}
			r.Vectors = f
		case 6:
			if typ != protowire.BytesType {
				return vdberr.WrapProtobuf(nil, "build request attribute field has wrong wire type")
			}
			a := BuildAttribute{}
			if err := walkFields(v, func(n protowire.Number, t protowire.Type, vv []byte) error {
				switch n {
				case 1:
					u, err := consumeUint32(t, vv)
					if err != nil {
						return err
					}
					a.VectorIndex = u
				case 2:
					s, err := consumeString(t, vv)
					if err != nil {
						return err
					}
					a.Name = s
				case 3:
					s, err := consumeString(t, vv)
					if err != nil {
						return err
					}
					a.IsString = true
					a.StringValue = s
				case 4:
					u, err := consumeUint64(t, vv)
					if err != nil {
						return err
					}
					a.Uint64Value = u
				}
				return nil
			}); err != nil {
				return err
			}
			r.Attributes = append(r.Attributes, a)
		}
		return nil
	})
}

// BuildResponse: schema
//
//	1 manifest_hash string
//	2 vector_count u32
//	3 num_partitions u32
type BuildResponse struct {
	ManifestHash  string
	VectorCount   uint32
	NumPartitions uint32
}

// MarshalBinary encodes r to protobuf wire bytes.
func (r *BuildResponse) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, r.ManifestHash)
	b = appendUint32(b, 2, r.VectorCount)
	b = appendUint32(b, 3, r.NumPartitions)
	return b, nil
}

// UnmarshalBinary decodes r from protobuf wire bytes.
func (r *BuildResponse) UnmarshalBinary(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			s, err := consumeString(typ, v)
			if err != nil {
				return err
			}
			r.ManifestHash = s
		case 2:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.VectorCount = u
		case 3:
			u, err := consumeUint32(typ, v)
			if err != nil {
				return err
			}
			r.NumPartitions = u
		}
		return nil
	})
}

// GetAttributeResponse: schema
//
//	1 exists bool (varint)
//	2 is_string bool (varint)
//	3 string_value string
//	4 uint64_value u64
type GetAttributeResponse struct {
	Exists      bool
	IsString    bool
	StringValue string
	Uint64Value uint64
}

// MarshalBinary encodes r to protobuf wire bytes.
func (r *GetAttributeResponse) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendBool(b, 1, r.Exists)
	b = appendBool(b, 2, r.IsString)
	b = appendString(b, 3, r.StringValue)
	b = appendUint64(b, 4, r.Uint64Value)
	return b, nil
}

// UnmarshalBinary decodes r from protobuf wire bytes.
func (r *GetAttributeResponse) UnmarshalBinary(data []byte) error {
	return walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case 1:
			b, err := consumeBool(typ, v)
			if err != nil {
				return err
			}
			r.Exists = b
		case 2:
			b, err := consumeBool(typ, v)
			if err != nil {
				return err
			}
			r.IsString = b
		case 3:
			s, err := consumeString(typ, v)
			if err != nil {
				return err
			}
			r.StringValue = s
		case 4:
			u, err := consumeUint64(typ, v)
			if err != nil {
				return err
			}
			r.Uint64Value = u
		}
		return nil
	})
}
