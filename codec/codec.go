// Package codec converts values to and from bytes for the HTTP transport and
// the shared tier. Each codec carries the media type it produces so transport
// can negotiate Content-Type and Accept headers.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
	ContentType() string
}

// Format names accepted by For.
const (
	FormatJSON     = "json"
	FormatCBOR     = "cbor"
	FormatMsgpack  = "msgpack"
	FormatProtobuf = "protobuf"
)

// For returns the codec registered under name. An empty name selects JSON.
func For[V any](name string) (Codec[V], error) {
	switch name {
	case "", FormatJSON:
		return JSON[V]{}, nil
	case FormatCBOR:
		c, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		return c, nil
	case FormatMsgpack:
		return Msgpack[V]{}, nil
	case FormatProtobuf:
		return StructPB[V]{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", name)
	}
}
