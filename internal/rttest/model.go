// Package rttest provides an in-process stub of the DeepViewRT ABI for
// tests. Install binds every nnabi function variable to a Runtime that
// serves fixture models, so binding behavior can be exercised without
// the native library or target hardware.
package rttest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Fixture model container. The encoding is little-endian with length
// prefixes throughout; layer data payloads are 8-byte aligned within the
// buffer so mapped views of any element type are aligned.

var (
	ErrBadMagic     = errors.New("rttest: bad model magic")
	ErrVersion      = errors.New("rttest: unsupported model version")
	ErrCorruptModel = errors.New("rttest: corrupt model")
)

const (
	modelMagic   = "DVTM"
	modelVersion = 1

	dataAlign = 8
)

// Layer is one graph node of a fixture model. Data is the layer's tensor
// storage; Zeros, Scales and Axis carry its quantization parameters.
type Layer struct {
	Name   string
	Op     string
	TypeID int32
	Shape  []int32
	Axis   int32
	Zeros  []int32
	Scales []float32
	Data   []byte
}

// Model is a fixture model. Inputs and Outputs hold layer indices.
type Model struct {
	Name    string
	Labels  []string
	Inputs  []uint32
	Outputs []uint32
	Layers  []Layer
}

// Encode serializes the model.
func (m *Model) Encode() ([]byte, error) {
	var b []byte
	b = append(b, modelMagic...)
	b = binary.LittleEndian.AppendUint16(b, modelVersion)

	var err error
	if b, err = appendString(b, m.Name); err != nil {
		return nil, err
	}
	if len(m.Labels) > 0xffff {
		return nil, fmt.Errorf("rttest: %d labels will not encode", len(m.Labels))
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(m.Labels)))
	for _, l := range m.Labels {
		if b, err = appendString(b, l); err != nil {
			return nil, err
		}
	}
	b = appendIndexList(b, m.Inputs)
	b = appendIndexList(b, m.Outputs)

	if len(m.Layers) > 0xffff {
		return nil, fmt.Errorf("rttest: %d layers will not encode", len(m.Layers))
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(m.Layers)))
	for i := range m.Layers {
		if b, err = appendLayer(b, &m.Layers[i]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func appendLayer(b []byte, l *Layer) ([]byte, error) {
	var err error
	if b, err = appendString(b, l.Name); err != nil {
		return nil, err
	}
	if b, err = appendString(b, l.Op); err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(l.TypeID))
	if len(l.Shape) == 0 || len(l.Shape) > 4 {
		return nil, fmt.Errorf("rttest: layer %q has %d dims, want 1 to 4", l.Name, len(l.Shape))
	}
	b = append(b, byte(len(l.Shape)))
	for _, d := range l.Shape {
		b = binary.LittleEndian.AppendUint32(b, uint32(d))
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(l.Axis))
	if len(l.Zeros) > 0xffff || len(l.Scales) > 0xffff {
		return nil, fmt.Errorf("rttest: layer %q quant params will not encode", l.Name)
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(l.Zeros)))
	for _, z := range l.Zeros {
		b = binary.LittleEndian.AppendUint32(b, uint32(z))
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(l.Scales)))
	for _, s := range l.Scales {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(s))
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(l.Data)))
	for len(b)%dataAlign != 0 {
		b = append(b, 0)
	}
	b = append(b, l.Data...)
	return b, nil
}

func appendString(b []byte, s string) ([]byte, error) {
	if len(s) > 0xffff {
		return nil, fmt.Errorf("rttest: string of %d bytes will not encode", len(s))
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...), nil
}

func appendIndexList(b []byte, v []uint32) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(v)))
	for _, i := range v {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}

// ParseModel decodes a fixture model. Layer data is not copied: the
// returned model references data for as long as it lives, mirroring the
// runtime's zero-copy model loading.
func ParseModel(data []byte) (*Model, error) {
	d := &decoder{buf: data}
	if string(d.take(4)) != modelMagic {
		if d.err != nil {
			return nil, d.err
		}
		return nil, ErrBadMagic
	}
	if v := d.u16(); d.err == nil && v != modelVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}

	m := &Model{Name: d.str()}
	for i, n := 0, int(d.u16()); i < n && d.err == nil; i++ {
		m.Labels = append(m.Labels, d.str())
	}
	m.Inputs = d.indexList()
	m.Outputs = d.indexList()

	nLayers := int(d.u16())
	for i := 0; i < nLayers && d.err == nil; i++ {
		m.Layers = append(m.Layers, d.layer())
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.off != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptModel, len(d.buf)-d.off)
	}
	for _, lists := range [][]uint32{m.Inputs, m.Outputs} {
		for _, i := range lists {
			if int(i) >= len(m.Layers) {
				return nil, fmt.Errorf("%w: io index %d of %d layers", ErrCorruptModel, i, len(m.Layers))
			}
		}
	}
	return m, nil
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.err = fmt.Errorf("%w: truncated at offset %d", ErrCorruptModel, d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) str() string {
	return string(d.take(int(d.u16())))
}

func (d *decoder) indexList() []uint32 {
	n := int(d.u16())
	out := make([]uint32, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.u32())
	}
	if d.err != nil {
		return nil
	}
	return out
}

func (d *decoder) layer() Layer {
	l := Layer{Name: d.str(), Op: d.str(), TypeID: int32(d.u32())}
	nd := int(d.byte())
	if d.err == nil && (nd == 0 || nd > 4) {
		d.err = fmt.Errorf("%w: layer %q has %d dims", ErrCorruptModel, l.Name, nd)
		return l
	}
	for i := 0; i < nd && d.err == nil; i++ {
		l.Shape = append(l.Shape, int32(d.u32()))
	}
	l.Axis = int32(d.u32())
	for i, n := 0, int(d.u16()); i < n && d.err == nil; i++ {
		l.Zeros = append(l.Zeros, int32(d.u32()))
	}
	for i, n := 0, int(d.u16()); i < n && d.err == nil; i++ {
		l.Scales = append(l.Scales, math.Float32frombits(d.u32()))
	}
	size := int(d.u32())
	for d.err == nil && d.off%dataAlign != 0 {
		d.take(1)
	}
	l.Data = d.take(size)
	return l
}

func (d *decoder) byte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}
