package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// binaryMessage is implemented by every request/response type in
// messages.go. Registering a codec keyed on this interface (instead
// of protobuf's proto.Message/protoreflect) lets the service run
// without generated stub code or a .proto file, the same tradeoff
// pkg/wire makes for the on-disk format.
type binaryMessage interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// wireCodec implements google.golang.org/grpc/encoding.Codec,
// registered under the name "proto" (grpc-go's default content
// subtype) so the hand-rolled messages are carried without any extra
// per-call configuration.
type wireCodec struct{}

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(binaryMessage)
	if !ok {
		return nil, fmt.Errorf("grpc: value of type %T does not implement binaryMessage", v)
	}
	return m.MarshalBinary()
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(binaryMessage)
	if !ok {
		return fmt.Errorf("grpc: value of type %T does not implement binaryMessage", v)
	}
	return m.UnmarshalBinary(data)
}

func (wireCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(wireCodec{})
}
