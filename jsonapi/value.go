package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotScalar is returned when an attribute payload is an object, array or bool.
var ErrNotScalar = errors.New("jsonapi: attribute is not a scalar")

// Kind tags the scalar held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged attribute scalar. The zero value is null.
//
// On every wire format a date is carried as its "YYYY-MM-DD" string; decoding
// yields KindString and a Schema turns it back into KindDate at ingestion.
type Value struct {
	kind Kind
	s    string
	n    float64
	d    time.Time
}

func String(s string) Value  { return Value{kind: KindString, s: s} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Date(t time.Time) Value { return Value{kind: KindDate, d: t} }
func Null() Value            { return Value{} }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Str() (string, bool)     { return v.s, v.kind == KindString }
func (v Value) Num() (float64, bool)    { return v.n, v.kind == KindNumber }
func (v Value) Time() (time.Time, bool) { return v.d, v.kind == KindDate }

// Equal reports whether both values carry the same kind and scalar.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n
	case KindDate:
		return v.d.Equal(o.d)
	}
	return true
}

// Interface returns the wire scalar: string, float64 or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindDate:
		return FormatDate(v.d)
	default:
		return nil
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return fmt.Sprint(v.Interface())
}

func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.Interface()) }

func (v *Value) UnmarshalJSON(b []byte) error {
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	return v.set(x)
}

func (v Value) MarshalCBOR() ([]byte, error) { return cbor.Marshal(v.Interface()) }

func (v *Value) UnmarshalCBOR(b []byte) error {
	var x any
	if err := cbor.Unmarshal(b, &x); err != nil {
		return err
	}
	return v.set(x)
}

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error { return enc.Encode(v.Interface()) }

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	x, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	return v.set(x)
}

func (v *Value) set(x any) error {
	switch t := x.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(t)
	case float64:
		*v = Number(t)
	case float32:
		*v = Number(float64(t))
	case int:
		*v = Number(float64(t))
	case int8:
		*v = Number(float64(t))
	case int16:
		*v = Number(float64(t))
	case int32:
		*v = Number(float64(t))
	case int64:
		*v = Number(float64(t))
	case uint8:
		*v = Number(float64(t))
	case uint16:
		*v = Number(float64(t))
	case uint32:
		*v = Number(float64(t))
	case uint64:
		*v = Number(float64(t))
	default:
		return fmt.Errorf("%w: %T", ErrNotScalar, x)
	}
	return nil
}
