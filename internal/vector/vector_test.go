package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Layout(t *testing.T) {
	buf := Encode([]float32{1, -2.5, 0})
	require.Len(t, buf, 12)

	// 1.0f little-endian
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, buf[0:4])
	assert.Nil(t, Encode(nil))
}

func TestDecode_RoundTrip(t *testing.T) {
	in := []float32{0.25, -0.5, 3.75, float32(math.Pi)}

	out, err := Decode(Encode(in), len(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecode_ValidatesDimension(t *testing.T) {
	buf := Encode([]float32{1, 2, 3})

	_, err := Decode(buf, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	_, err = Decode(buf, 0)
	assert.Error(t, err)

	_, err = Decode(buf[:11], 3)
	assert.Error(t, err)
}

func TestDot(t *testing.T) {
	d, err := Dot([]float32{1, 2, 3}, []float32{4, 5, 6})
	require.NoError(t, err)
	assert.InDelta(t, 32.0, d, 1e-9)

	_, err = Dot([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)

	zero := NormalizeL2([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
