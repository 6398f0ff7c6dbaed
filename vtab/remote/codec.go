package remote

// gRPC's default codec requires every message to implement proto.Message;
// the request/reply types in tableservice.go are plain Go structs (mixing
// scalars with structpb payloads), so this registers a gob codec under the
// content-subtype "gob" and every call site forces it via
// grpc.CallContentSubtype/grpc.ForceCodec. gob is the teacher-adjacent
// choice here: package encoding/gob is what Go programs reach for to
// (de)serialize plain structs without a schema compiler, the same role
// database/sql's driver.Value conversions play for sqlbridge.

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/structpb"
)

const codecName = "gob"

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
	// structpb.Value.Kind is a oneof interface; gob needs every concrete
	// wrapper type registered before it can encode/decode through it.
	gob.Register(&structpb.Value_NullValue{})
	gob.Register(&structpb.Value_NumberValue{})
	gob.Register(&structpb.Value_StringValue{})
	gob.Register(&structpb.Value_BoolValue{})
	gob.Register(&structpb.Value_StructValue{})
	gob.Register(&structpb.Value_ListValue{})
}
