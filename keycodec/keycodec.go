// Package keycodec encodes indexed component field values as
// order-preserving strings.
//
// The secondary index stores encoded values as key segments, so the
// lexicographic order of two encodings must match the semantic order of the
// values they encode. All numeric encodings are fixed-width decimal so that
// shorter values cannot sort before longer ones; signed integers are biased
// so that the minimum value maps to zero; floats are mapped through their
// IEEE-754 bit patterns.
//
// The mapping layer never decodes these strings; it treats them as opaque
// ordered text.
package keycodec

import (
	"fmt"
	"math"
)

// String encodes a string field value. The encoding is the identity: raw
// text already sorts lexicographically. The value must not contain '/',
// which is reserved as the key separator; neither this function nor the
// bindings generated by cmd/kventity-gen check for it.
func String(v string) string {
	return v
}

// Uint8 encodes v as 3 zero-padded decimal digits.
func Uint8(v uint8) string {
	return fmt.Sprintf("%03d", v)
}

// Uint16 encodes v as 5 zero-padded decimal digits.
func Uint16(v uint16) string {
	return fmt.Sprintf("%05d", v)
}

// Uint32 encodes v as 10 zero-padded decimal digits.
func Uint32(v uint32) string {
	return fmt.Sprintf("%010d", v)
}

// Uint64 encodes v as 20 zero-padded decimal digits.
func Uint64(v uint64) string {
	return fmt.Sprintf("%020d", v)
}

// Uint encodes v at uint64 width.
func Uint(v uint) string {
	return Uint64(uint64(v))
}

// Int8 encodes v by shifting the signed range onto [0, 255] and padding to
// the uint8 width.
func Int8(v int8) string {
	return fmt.Sprintf("%03d", uint16(int16(v)+128))
}

// Int16 encodes v by shifting the signed range onto [0, 65535] and padding
// to the uint16 width.
func Int16(v int16) string {
	return fmt.Sprintf("%05d", uint32(int32(v)+32768))
}

// Int32 encodes v by shifting the signed range onto the uint32 range and
// padding to the uint32 width.
func Int32(v int32) string {
	return fmt.Sprintf("%010d", uint64(int64(v)+math.MaxInt32+1))
}

// Int64 encodes v by shifting the signed range onto the uint64 range and
// padding to the uint64 width. The shift is the sign-bit flip: it adds
// 2^63 without leaving 64 bits.
func Int64(v int64) string {
	return fmt.Sprintf("%020d", uint64(v)^(1<<63))
}

// Int encodes v at int64 width.
func Int(v int) string {
	return Int64(int64(v))
}

// Float32 encodes v through its IEEE-754 bits: positives (and +0) get the
// sign bit flipped, negatives get all bits flipped. The resulting unsigned
// integer orders exactly as the float does, and is padded to the uint32
// width. NaN sorts above +Inf with this scheme.
func Float32(v float32) string {
	bits := math.Float32bits(v)
	if bits&(1<<31) != 0 {
		bits = ^bits
	} else {
		bits ^= 1 << 31
	}
	return fmt.Sprintf("%010d", bits)
}

// Float64 is [Float32] at double width, padded to 20 digits.
func Float64(v float64) string {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits ^= 1 << 63
	}
	return fmt.Sprintf("%020d", bits)
}
