package weight

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	typ, err := ParseType("f32")
	require.NoError(t, err)
	require.Equal(t, TypeF32, typ)

	typ, err = ParseType("u8")
	require.NoError(t, err)
	require.Equal(t, TypeU8, typ)

	_, err = ParseType("bogus")
	require.Error(t, err)
}

func TestF16RoundTrip(t *testing.T) {
	for _, w := range []float32{0, 1, -1, 0.5, 3.14159, -100.25, 65504} {
		got := DecodeF16(EncodeF16(w))
		require.InDelta(t, float64(w), float64(got), 0.05)
	}
}

func TestQuantizationBound(t *testing.T) {
	weights := []float32{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0}
	q := ComputeQuantParams(weights)
	require.Equal(t, float32(0), q.Min)

	for _, w := range weights {
		decoded := q.Dequantize(q.Quantize(w))
		require.LessOrEqual(t, absF32(decoded-w), q.Step/2+1e-6)
	}
}

func TestQuantizationDegenerate(t *testing.T) {
	q := ComputeQuantParams([]float32{0.5, 0.5, 0.5})
	require.Equal(t, float32(0), q.Step)
	require.Equal(t, uint8(0), q.Quantize(0.5))
	require.Equal(t, float32(0.5), q.Dequantize(0))
}

func absF32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
