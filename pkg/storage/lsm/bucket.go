package lsm

import "fmt"

// BucketKey composes a time-bucket tag with an inner domain key K. It is the
// outer key type storage/temporal uses to time-partition entries within the
// same physical keyspace a plain Backend[K,V] would otherwise address by K
// alone, so that "every entry in buckets <= t" is a single contiguous byte
// range regardless of how many distinct K values it spans.
type BucketKey[K comparable] struct {
	Bucket int64
	Key    K
}

// BucketKeyCodec encodes BucketKey[K] by prefixing an order-preserving
// 8-byte bucket component before an inner codec's own (K,V) encoding. Because
// the bucket component is fixed-width and sign-ordered the same way
// int64 components are elsewhere in this package, a byte range bounded only
// by the bucket component covers every inner K and V within it.
type BucketKeyCodec[K comparable, V comparable] struct {
	Inner KeyCodec[K, V]
}

// Prefix implements KeyCodec.
func (c BucketKeyCodec[K, V]) Prefix(bk BucketKey[K]) []byte {
	return append(encodeInt64Component(bk.Bucket), c.Inner.Prefix(bk.Key)...)
}

// EncodeKey implements KeyCodec.
func (c BucketKeyCodec[K, V]) EncodeKey(bk BucketKey[K], v V) []byte {
	return append(encodeInt64Component(bk.Bucket), c.Inner.EncodeKey(bk.Key, v)...)
}

// DecodeKey implements KeyCodec.
func (c BucketKeyCodec[K, V]) DecodeKey(raw []byte) (BucketKey[K], V, error) {
	var (
		zeroKey BucketKey[K]
		zeroVal V
	)

	if len(raw) < 8 {
		return zeroKey, zeroVal, fmt.Errorf("lsm: short bucket key: %d bytes", len(raw))
	}

	bucket, err := decodeInt64Component(raw[:8])
	if err != nil {
		return zeroKey, zeroVal, err
	}

	k, v, err := c.Inner.DecodeKey(raw[8:])
	if err != nil {
		return zeroKey, zeroVal, err
	}

	return BucketKey[K]{Bucket: bucket, Key: k}, v, nil
}

// BucketBoundary returns the order-preserving encoding of a bare bucket tag.
// Used as a Start/Limit bound for a raw range scan that must cover every
// inner K and V within (or before/after, depending on use) that bucket.
func BucketBoundary(bucket int64) []byte {
	return encodeInt64Component(bucket)
}
