package quant

import (
	"errors"
	"fmt"
)

// Params describes an affine quantization: real = scale * (q - zero). A
// single scale applies to the whole tensor; a scale per channel along
// Axis applies per channel. Zeros may be empty (all zero), a single
// shared zero point, or one per scale.
type Params struct {
	Axis   int
	Scales []float32
	Zeros  []int32
}

// Validate checks the parameters against a tensor shape.
func (p Params) Validate(shape []int32) error {
	if len(p.Scales) == 0 {
		return errors.New("quant: no scales")
	}
	if len(p.Zeros) > 1 && len(p.Zeros) != len(p.Scales) {
		return fmt.Errorf("quant: %d zero points for %d scales", len(p.Zeros), len(p.Scales))
	}
	if len(p.Scales) == 1 {
		return nil
	}
	if p.Axis < 0 || p.Axis >= len(shape) {
		return fmt.Errorf("quant: axis %d out of range for %d dims", p.Axis, len(shape))
	}
	if want := int(shape[p.Axis]); len(p.Scales) != want {
		return fmt.Errorf("quant: %d scales for axis extent %d", len(p.Scales), want)
	}
	return nil
}

// At returns the scale and zero point for the element at a flat
// row-major index.
func (p Params) At(shape []int32, flat int) (float32, int32) {
	i := 0
	if len(p.Scales) > 1 {
		i = p.channel(shape, flat)
	}
	var zero int32
	switch {
	case len(p.Zeros) == 1:
		zero = p.Zeros[0]
	case i < len(p.Zeros):
		zero = p.Zeros[i]
	}
	return p.Scales[i], zero
}

// channel is the coordinate along the quantization axis for a flat
// row-major index.
func (p Params) channel(shape []int32, flat int) int {
	stride := 1
	for i := p.Axis + 1; i < len(shape); i++ {
		stride *= int(shape[i])
	}
	return (flat / stride) % int(shape[p.Axis])
}

// Volume returns the element count of a shape.
func Volume(shape []int32) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// DequantizeInt8 dequantizes src into dst. Both must hold exactly the
// shape's volume.
func DequantizeInt8(dst []float32, src []int8, p Params, shape []int32) error {
	if err := p.Validate(shape); err != nil {
		return err
	}
	if n := Volume(shape); len(src) != n || len(dst) != n {
		return fmt.Errorf("quant: src %d dst %d, want %d elements", len(src), len(dst), n)
	}
	for i, q := range src {
		s, z := p.At(shape, i)
		dst[i] = s * float32(int32(q)-z)
	}
	return nil
}

// DequantizeUint8 dequantizes src into dst. Both must hold exactly the
// shape's volume.
func DequantizeUint8(dst []float32, src []uint8, p Params, shape []int32) error {
	if err := p.Validate(shape); err != nil {
		return err
	}
	if n := Volume(shape); len(src) != n || len(dst) != n {
		return fmt.Errorf("quant: src %d dst %d, want %d elements", len(src), len(dst), n)
	}
	for i, q := range src {
		s, z := p.At(shape, i)
		dst[i] = s * float32(int32(q)-z)
	}
	return nil
}
