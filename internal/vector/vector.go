// Package vector holds the embedding wire format and the vector math the
// retriever relies on.
//
// The wire format is a flat sequence of little-endian IEEE-754 float32
// values, dimension×4 bytes, with no header or length prefix. Readers must
// already know the dimension; Decode validates it.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch indicates two vectors have different dimensions.
var ErrLengthMismatch = errors.New("vector length mismatch")

// Encode converts a vector to its byte representation.
func Encode(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode converts bytes back to a vector of exactly dim elements.
func Decode(data []byte, dim int) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("decode vector: invalid dimension %d", dim)
	}
	if len(data) != dim*4 {
		return nil, fmt.Errorf("decode vector: %d bytes for dimension %d: %w", len(data), dim, ErrLengthMismatch)
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// Dot returns the dot product of two equal-length vectors.
// For unit vectors this is the cosine similarity.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// NormalizeL2 returns a new vector scaled to unit L2 norm.
// A zero vector is returned as a zero-valued copy.
func NormalizeL2(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	inv := 1.0 / n
	for i := range v {
		out[i] = float32(float64(v[i]) * inv)
	}
	return out
}
