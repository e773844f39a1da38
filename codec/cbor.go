package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// Decode limits for CBOR bodies. Responses come from the network, so nesting
// and collection sizes are bounded well above what a JSON:API document needs.
const (
	cborMaxNesting  = 16
	cborMaxElements = 1 << 16
)

// CBOR serializes values with fxamacker/cbor. Struct fields without a cbor
// tag fall back to their json tag, so jsonapi types need no extra tags.
// The zero value is NOT ready to use; construct with NewCBOR.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR constructs a CBOR codec. With deterministic set, maps are encoded
// in RFC 8949 core deterministic order so equal resources encode to equal
// bytes; otherwise map order is unspecified. Duplicate map keys are rejected
// on decode either way.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  cborMaxNesting,
		MaxArrayElements: cborMaxElements,
		MaxMapPairs:      cborMaxElements,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

func (CBOR[V]) ContentType() string { return "application/cbor" }
