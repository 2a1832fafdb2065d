package grpc

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

func appendUint32(b []byte, num protowire.Number, u uint32) []byte {
	if u == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(u))
}

func appendUint64(b []byte, num protowire.Number, u uint64) []byte {
	if u == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, u)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFloat32(b []byte, num protowire.Number, f float32) []byte {
	if f == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(f))
}

func appendPackedFixed32(b []byte, num protowire.Number, fs []float32) []byte {
	if len(fs) == 0 {
		return b
	}
	var packed []byte
	for _, f := range fs {
		packed = protowire.AppendFixed32(packed, math.Float32bits(f))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func consumeUint32(typ protowire.Type, v []byte) (uint32, error) {
	u, err := consumeUint64(typ, v)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

func consumeUint64(typ protowire.Type, v []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, vdberr.WrapProtobuf(nil, "expected varint wire type")
	}
	u, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0, vdberr.WrapProtobuf(nil, "malformed varint field")
	}
	return u, nil
}

func consumeBool(typ protowire.Type, v []byte) (bool, error) {
	u, err := consumeUint64(typ, v)
	if err != nil {
		return false, err
	}
	return u != 0, nil
}

func consumeString(typ protowire.Type, v []byte) (string, error) {
	if typ != protowire.BytesType {
		return "", vdberr.WrapProtobuf(nil, "expected length-delimited wire type for string field")
	}
	return string(v), nil
}

func consumeBytes(typ protowire.Type, v []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, vdberr.WrapProtobuf(nil, "expected length-delimited wire type for bytes field")
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func consumeFloat32(typ protowire.Type, v []byte) (float32, error) {
	if typ != protowire.Fixed32Type {
		return 0, vdberr.WrapProtobuf(nil, "expected fixed32 wire type for float field")
	}
	u, n := protowire.ConsumeFixed32(v)
	if n < 0 {
		return 0, vdberr.WrapProtobuf(nil, "malformed fixed32 field")
	}
	return math.Float32frombits(u), nil
}

func consumePackedFixed32(v []byte) ([]float32, error) {
	var out []float32
	for len(v) > 0 {
		u, n := protowire.ConsumeFixed32(v)
		if n < 0 {
			return nil, vdberr.WrapProtobuf(nil, "malformed packed fixed32 field")
		}
		out = append(out, math.Float32frombits(u))
		v = v[n:]
	}
	return out, nil
}

func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return vdberr.WrapProtobuf(nil, "malformed field tag")
		}
		b = b[n:]

		var val []byte
		var consumed int
		switch typ {
		case protowire.VarintType:
			_, consumed = protowire.ConsumeVarint(b)
			if consumed >= 0 {
				val = b[:consumed]
			}
		case protowire.Fixed32Type:
			consumed = 4
			if len(b) < 4 {
				consumed = -1
			} else {
				val = b[:4]
			}
		case protowire.Fixed64Type:
			consumed = 8
			if len(b) < 8 {
				consumed = -1
			} else {
				val = b[:8]
			}
		case protowire.BytesType:
			var bs []byte
			bs, consumed = protowire.ConsumeBytes(b)
			if consumed >= 0 {
				val = bs
			}
		default:
			return vdberr.WrapProtobuf(nil, "unsupported wire type in field")
		}
		if consumed < 0 {
			return vdberr.WrapProtobuf(nil, "malformed field value")
		}
		if err := fn(num, typ, val); err != nil {
			return err
		}
		b = b[consumed:]
	}
	return nil
}
