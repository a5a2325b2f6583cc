// Package wire provides a canonical binary encoding built on protobuf's
// wire varint/zigzag primitives.
//
// The const evaluator's memoisation cache key (consteval.CacheKey.String)
// writes each of its fields with EncodeBytes, so two keys are equal only
// when every field is equal byte for byte. The integer helpers have no
// caller elsewhere in this module.
package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeInt appends the zigzag-varint encoding of v to buf, matching the
// wire representation protobuf uses for sint64 fields.
func EncodeInt(buf []byte, v int64) []byte {
	return protowire.AppendVarint(buf, protowire.EncodeZigZag(v))
}

// DecodeInt reads back a value written by EncodeInt.
func DecodeInt(buf []byte) (v int64, n int) {
	u, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, n
	}
	return protowire.DecodeZigZag(u), n
}

// EncodeUint appends the unsigned-varint encoding of v to buf.
func EncodeUint(buf []byte, v uint64) []byte {
	return protowire.AppendVarint(buf, v)
}

// DecodeUint reads back a value written by EncodeUint.
func DecodeUint(buf []byte) (v uint64, n int) {
	return protowire.ConsumeVarint(buf)
}

// EncodeBytes appends a length-prefixed byte string; consteval.CacheKey
// uses it for each field of the memoisation key.
func EncodeBytes(buf []byte, s []byte) []byte {
	return protowire.AppendBytes(buf, s)
}

// DecodeBytes reads back a value written by EncodeBytes.
func DecodeBytes(buf []byte) (s []byte, n int) {
	return protowire.ConsumeBytes(buf)
}
