package codec_test

import (
	"testing"

	"github.com/MrWong99/kventity/codec"
)

type sample struct {
	Name string `json:"name"`
	Age  int32  `json:"age"`
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := sample{Name: "Alice", Age: 25}
	data, err := codec.JSON.Marshal(&in)
	if err != nil {
		t.Fatalf("Marshal: unexpected error: %v", err)
	}

	var out sample
	if err := codec.JSON.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("round trip changed the value: %+v != %+v", out, in)
	}
}

func TestProtoRejectsNonMessages(t *testing.T) {
	t.Parallel()

	if _, err := codec.Proto.Marshal(&sample{}); err == nil {
		t.Fatal("Marshal: expected an error for a non-proto value")
	}
	if err := codec.Proto.Unmarshal(nil, &sample{}); err == nil {
		t.Fatal("Unmarshal: expected an error for a non-proto value")
	}
}
