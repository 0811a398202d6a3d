// Package codec provides the payload codec used to serialise component and
// relation values into the store.
//
// The mapping layer only needs bytes in, bytes out; which wire format those
// bytes use is the application's choice. [JSON] is the default and works for
// any struct; [Proto] requires values to implement proto.Message and matches
// deployments that share component definitions across languages.
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Codec turns component values into bytes and back.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Marshal serialises v.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserialises data into v, which must be a non-nil pointer.
	Unmarshal(data []byte, v any) error
}

// JSON is a [Codec] backed by encoding/json.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Proto is a [Codec] backed by google.golang.org/protobuf. Values passed to
// it must implement proto.Message.
var Proto Codec = protoCodec{}

type protoCodec struct{}

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: %T does not implement proto.Message", v)
	}
	return proto.Marshal(m)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: %T does not implement proto.Message", v)
	}
	return proto.Unmarshal(data, m)
}
