package codec

import "encoding/json"

// MediaTypeJSONAPI is the JSON:API media type.
const MediaTypeJSONAPI = "application/vnd.api+json"

// JSON is the default wire codec. The zero value is ready to use.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
func (JSON[V]) ContentType() string { return MediaTypeJSONAPI }
