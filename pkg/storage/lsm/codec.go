// Package lsm is the physical key/value storage layer: an LSM-tree backend
// (github.com/syndtr/goleveldb) storing (K,V) pairs with signed weights,
// keyed so that range scans over V for a fixed K are contiguous and
// correctly ordered even when V is negative (spec.md §4.3.2).
package lsm

import (
	"encoding/binary"
	"fmt"
)

// KeyCodec encodes a (K,V) pair into an order-preserving byte key: for a
// fixed K, Prefix(k) is a byte-exact prefix of every EncodeKey(k, v), and the
// suffix bytes sort in the same order as V itself across its entire domain
// (positive, zero and negative alike). This resolves the naive
// string-concatenation pitfall called out in spec.md §4.3.2, where negative
// V values sort after positive ones lexicographically instead of before.
type KeyCodec[K comparable, V comparable] interface {
	Prefix(k K) []byte
	EncodeKey(k K, v V) []byte
	DecodeKey(raw []byte) (K, V, error)
}

// signBit flips the sign bit of a two's-complement int64's big-endian
// encoding, which is the standard order-preserving-integer-key trick: after
// the flip, unsigned byte-wise comparison of the encoded form matches signed
// numeric comparison of the original value across its full range.
const signBit = uint64(1) << 63

func encodeInt64Component(x int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(x)^signBit)

	return buf
}

func decodeInt64Component(raw []byte) (int64, error) {
	if len(raw) < 8 {
		return 0, fmt.Errorf("lsm: short int64 component: %d bytes", len(raw))
	}

	u := binary.BigEndian.Uint64(raw[:8]) ^ signBit

	return int64(u), nil
}

// encodeStringComponent length-prefixes s with a 4-byte big-endian count so
// it can be followed by another component in the same key without the two
// components' byte ranges bleeding into each other.
func encodeStringComponent(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(s)))
	copy(buf[4:], s)

	return buf
}

func decodeStringComponent(raw []byte) (string, int, error) {
	if len(raw) < 4 {
		return "", 0, fmt.Errorf("lsm: short string component length prefix")
	}

	n := int(binary.BigEndian.Uint32(raw[:4]))
	if len(raw) < 4+n {
		return "", 0, fmt.Errorf("lsm: truncated string component: want %d bytes, have %d", n, len(raw)-4)
	}

	return string(raw[4 : 4+n]), 4 + n, nil
}

// Int64Int64Codec is the default codec for K=int64, V=int64.
type Int64Int64Codec struct{}

func (Int64Int64Codec) Prefix(k int64) []byte { return encodeInt64Component(k) }

func (Int64Int64Codec) EncodeKey(k, v int64) []byte {
	return append(encodeInt64Component(k), encodeInt64Component(v)...)
}

func (Int64Int64Codec) DecodeKey(raw []byte) (int64, int64, error) {
	if len(raw) != 16 {
		return 0, 0, fmt.Errorf("lsm: Int64Int64Codec expects 16-byte keys, got %d", len(raw))
	}

	k, err := decodeInt64Component(raw[:8])
	if err != nil {
		return 0, 0, err
	}

	v, err := decodeInt64Component(raw[8:])
	if err != nil {
		return 0, 0, err
	}

	return k, v, nil
}

// StringInt64Codec is the default codec for K=string, V=int64.
type StringInt64Codec struct{}

func (StringInt64Codec) Prefix(k string) []byte { return encodeStringComponent(k) }

func (StringInt64Codec) EncodeKey(k string, v int64) []byte {
	return append(encodeStringComponent(k), encodeInt64Component(v)...)
}

func (StringInt64Codec) DecodeKey(raw []byte) (string, int64, error) {
	k, n, err := decodeStringComponent(raw)
	if err != nil {
		return "", 0, err
	}

	v, err := decodeInt64Component(raw[n:])
	if err != nil {
		return "", 0, err
	}

	return k, v, nil
}

// Int64StringCodec is the default codec for K=int64, V=string.
type Int64StringCodec struct{}

func (Int64StringCodec) Prefix(k int64) []byte { return encodeInt64Component(k) }

func (Int64StringCodec) EncodeKey(k int64, v string) []byte {
	return append(encodeInt64Component(k), []byte(v)...)
}

func (Int64StringCodec) DecodeKey(raw []byte) (int64, string, error) {
	if len(raw) < 8 {
		return 0, "", fmt.Errorf("lsm: Int64StringCodec expects at least 8-byte keys, got %d", len(raw))
	}

	k, err := decodeInt64Component(raw[:8])
	if err != nil {
		return 0, "", err
	}

	return k, string(raw[8:]), nil
}

// StringStringCodec is the default codec for K=string, V=string.
type StringStringCodec struct{}

func (StringStringCodec) Prefix(k string) []byte { return encodeStringComponent(k) }

func (StringStringCodec) EncodeKey(k, v string) []byte {
	return append(encodeStringComponent(k), []byte(v)...)
}

func (StringStringCodec) DecodeKey(raw []byte) (string, string, error) {
	k, n, err := decodeStringComponent(raw)
	if err != nil {
		return "", "", err
	}

	return k, string(raw[n:]), nil
}
