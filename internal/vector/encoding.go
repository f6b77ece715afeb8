package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding encodes vec as a little-endian sequence of IEEE 754 float32 values with no
// length prefix; the length is derived from the blob size on decode.
func EncodeEmbedding(vec []float32) []byte {
	const size = 4
	out := make([]byte, len(vec)*size)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*size:], math.Float32bits(v))
	}
	return out
}

// DecodeEmbedding decodes a blob produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	const size = 4
	if len(b)%size != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size:]))
	}
	return out, nil
}
