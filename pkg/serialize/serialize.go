// Package serialize provides a pluggable encode/decode capability for values
// that cross a storage boundary (batch payloads written to the LSM backend,
// spill blocks in the hybrid tier). Adapted from the teacher's
// pkg/persist/codec.go Codec interface, generalized from file-oriented
// Encode(io.Writer)/Decode(io.Reader) to byte-slice-oriented
// Serialize/Deserialize since storage/lsm hands us `[]byte` values, not
// files, and added EstimateSize so callers can size-budget before encoding.
package serialize

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Serializer converts values of type T to and from bytes. EstimateSize must
// agree with len(Serialize(v)) for any v — callers use it to budget writes
// without paying the encode cost twice.
type Serializer[T any] interface {
	Serialize(v T) ([]byte, error)
	Deserialize(data []byte) (T, error)
	EstimateSize(v T) int
}

// GobSerializer implements Serializer using encoding/gob, matching the
// teacher's GobCodec choice for binary state.
type GobSerializer[T any] struct{}

// NewGobSerializer creates a gob-backed serializer for T.
func NewGobSerializer[T any]() *GobSerializer[T] {
	return &GobSerializer[T]{}
}

// Serialize gob-encodes v.
func (s *GobSerializer[T]) Serialize(v T) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("serialize: gob encode: %w", err)
	}

	return buf.Bytes(), nil
}

// Deserialize gob-decodes data into a T.
func (s *GobSerializer[T]) Deserialize(data []byte) (T, error) {
	var v T

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, fmt.Errorf("serialize: gob decode: %w", err)
	}

	return v, nil
}

// EstimateSize encodes v to measure its size. Gob has no cheaper estimator,
// so this pays the same cost as Serialize; callers that call this on a hot
// path should cache the result alongside the encoded bytes rather than
// calling it a second time before Serialize.
func (s *GobSerializer[T]) EstimateSize(v T) int {
	data, err := s.Serialize(v)
	if err != nil {
		return 0
	}

	return len(data)
}
