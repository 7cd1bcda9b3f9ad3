package lsm

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/nelknet/dbspgo/pkg/zset"
)

// encodeWeight renders a signed weight as 8 raw bytes (not order-preserving
// encoded: weights are never range-scanned, only looked up or summed).
func encodeWeight(w zset.Weight) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(w))

	return buf
}

func decodeWeight(raw []byte) (zset.Weight, error) {
	if len(raw) != 8 {
		return 0, fmt.Errorf("lsm: weight must be 8 bytes, got %d", len(raw))
	}

	return zset.Weight(binary.BigEndian.Uint64(raw)), nil
}

// compressValue LZ4-block-compresses raw, prefixing the result with a
// 1-byte flag (0 = stored raw because LZ4 did not shrink it, 1 = LZ4
// block follows) and a 4-byte big-endian original length, so
// decompressValue can size its output buffer without guessing.
func compressValue(raw []byte) []byte {
	bound := lz4.CompressBlockBound(len(raw))
	dst := make([]byte, bound)

	var c lz4.Compressor

	n, err := c.CompressBlock(raw, dst)
	if err != nil || n == 0 || n >= len(raw) {
		// Incompressible, or the compressor declined (it returns n==0 when
		// the destination would not be smaller than the source): store raw.
		out := make([]byte, 5+len(raw))
		out[0] = 0
		binary.BigEndian.PutUint32(out[1:5], uint32(len(raw)))
		copy(out[5:], raw)

		return out
	}

	out := make([]byte, 5+n)
	out[0] = 1
	binary.BigEndian.PutUint32(out[1:5], uint32(len(raw)))
	copy(out[5:], dst[:n])

	return out
}

func decompressValue(encoded []byte) ([]byte, error) {
	if len(encoded) < 5 {
		return nil, fmt.Errorf("lsm: truncated compressed value: %d bytes", len(encoded))
	}

	flag := encoded[0]
	origLen := binary.BigEndian.Uint32(encoded[1:5])
	body := encoded[5:]

	if flag == 0 {
		if uint32(len(body)) != origLen {
			return nil, fmt.Errorf("lsm: raw value length mismatch: want %d, have %d", origLen, len(body))
		}

		return body, nil
	}

	dst := make([]byte, origLen)

	n, err := lz4.UncompressBlock(body, dst)
	if err != nil {
		return nil, fmt.Errorf("lsm: lz4 decompress: %w", err)
	}

	return dst[:n], nil
}
