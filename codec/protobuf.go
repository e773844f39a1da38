package codec

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// StructPB carries V as a google.protobuf.Struct. V is bridged through its
// JSON form, so any type with JSON tags works without generated messages.
// V must marshal to a JSON object.
type StructPB[V any] struct{}

func (StructPB[V]) Encode(v V) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (StructPB[V]) Decode(b []byte) (V, error) {
	var v V
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b, s); err != nil {
		return v, err
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}

func (StructPB[V]) ContentType() string { return "application/x-protobuf" }
