// Package weight implements the element-type abstraction over the physical
// encoding of posting-list weights: f32 (identity), f16 (IEEE half, ported
// from internal/f16), and u8 (per-segment affine quantization).
//
// The element Type is pinned once, at index creation time, and never mixed
// within a single index: the orchestrator rejects opens whose segments disagree on
// element type.
package weight

import (
	"fmt"
	"math"

	"github.com/hupe1980/sparsedex/internal/f16"
)

// Type identifies the physical weight encoding of an index.
type Type uint8

const (
	TypeF32 Type = iota
	TypeF16
	TypeU8
)

func (t Type) String() string {
	switch t {
	case TypeF32:
		return "f32"
	case TypeF16:
		return "f16"
	case TypeU8:
		return "u8"
	default:
		return "unknown"
	}
}

// ParseType parses the flat config surface's element_type string.
func ParseType(s string) (Type, error) {
	switch s {
	case "f32":
		return TypeF32, nil
	case "f16":
		return TypeF16, nil
	case "u8":
		return TypeU8, nil
	default:
		return 0, fmt.Errorf("weight: unknown element_type %q", s)
	}
}

// BytesPerWeight is the on-disk size of one encoded weight for the type.
func (t Type) BytesPerWeight() int {
	switch t {
	case TypeF32:
		return 4
	case TypeF16:
		return 2
	case TypeU8:
		return 1
	default:
		return 0
	}
}

// QuantParams holds the per-segment affine quantization parameters for the
// u8 codec. Authoritative in the segment header; never shared across
// segments (spec: "quantization parameters never leak across segments").
type QuantParams struct {
	Min  float32
	Step float32 // (max-min)/255, zero means a degenerate all-equal segment.
}

// Quantize maps a float32 weight into [0,255] under these parameters.
func (q QuantParams) Quantize(w float32) uint8 {
	if q.Step == 0 {
		return 0
	}
	v := (w - q.Min) / q.Step
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(math.Round(float64(v)))
}

// Dequantize maps a quantized byte back to float32.
func (q QuantParams) Dequantize(b uint8) float32 {
	return q.Min + q.Step*float32(b)
}

// ComputeQuantParams derives (min, step) from the full set of weights in a
// segment, as required at seal time (spec §4.1).
func ComputeQuantParams(weights []float32) QuantParams {
	if len(weights) == 0 {
		return QuantParams{}
	}
	min, max := weights[0], weights[0]
	for _, w := range weights[1:] {
		if w < min {
			min = w
		}
		if w > max {
			max = w
		}
	}
	return QuantParams{Min: min, Step: (max - min) / 255}
}

// EncodeF16 converts a float32 weight to its binary16 bit pattern.
func EncodeF16(w float32) uint16 { return uint16(f16.FromFloat32(w)) }

// DecodeF16 converts a binary16 bit pattern back to float32.
func DecodeF16(b uint16) float32 { return f16.ToFloat32(f16.Bits(b)) }
