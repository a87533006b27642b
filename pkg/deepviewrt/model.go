package deepviewrt

import (
	"fmt"
	"unsafe"

	"github.com/deepviewml/deepview-go/internal/nnabi"
)

// Model is a read-only view of the model loaded into a Context. It
// borrows a handle owned by the context and is invalidated when the model
// is unloaded or the context closed; it is never released through this
// wrapper.
type Model struct {
	h nnabi.Model
}

func (m *Model) ref() nnabi.Model {
	if m.h == 0 {
		panic("deepviewrt: use of invalidated Model")
	}
	return m.h
}

func (m *Model) invalidate() {
	m.h = 0
}

// Name returns the model's name.
func (m *Model) Name() (string, error) {
	return m.str(nnabi.ModelName(m.ref()), "model has no name")
}

// LabelCount returns the number of classification labels carried by the
// model. Models without labels report an error.
func (m *Model) LabelCount() (int, error) {
	n := nnabi.ModelLabelCount(m.ref())
	if n <= 0 {
		return 0, wrapperErr("model has no labels")
	}
	return int(n), nil
}

// Label returns the classification label at index.
func (m *Model) Label(index int) (string, error) {
	return m.str(nnabi.ModelLabel(m.ref(), int32(index)), fmt.Sprintf("label %d out of range", index))
}

// Inputs returns the layer indices of the model's inputs.
func (m *Model) Inputs() ([]int, error) {
	return m.indexList(nnabi.ModelInputs, "model inputs unavailable")
}

// Outputs returns the layer indices of the model's outputs.
func (m *Model) Outputs() ([]int, error) {
	return m.indexList(nnabi.ModelOutputs, "model outputs unavailable")
}

// LayerCount returns the number of layers in the model's graph.
func (m *Model) LayerCount() (int, error) {
	n := nnabi.ModelLayerCount(m.ref())
	if n <= 0 {
		return 0, wrapperErr("model reports no layers")
	}
	return int(n), nil
}

// LayerName returns the name of the layer at index.
func (m *Model) LayerName(index int) (string, error) {
	return m.str(nnabi.ModelLayerName(m.ref(), int32(index)), fmt.Sprintf("layer %d out of range", index))
}

// LayerType returns the operation kind of the layer at index, such as
// "conv" or "input".
func (m *Model) LayerType(index int) (string, error) {
	return m.str(nnabi.ModelLayerType(m.ref(), int32(index)), fmt.Sprintf("layer %d out of range", index))
}

// LayerDatatype returns the element type name of the layer at index.
func (m *Model) LayerDatatype(index int) (string, error) {
	return m.str(nnabi.ModelLayerDatatype(m.ref(), int32(index)), fmt.Sprintf("layer %d out of range", index))
}

// LayerDatatypeID returns the element type of the layer at index, mapped
// into TensorType. Unrecognized tags fail rather than alias.
func (m *Model) LayerDatatypeID(index int) (TensorType, error) {
	return TensorTypeFromID(nnabi.ModelLayerDatatypeID(m.ref(), int32(index)))
}

// LayerZeros returns the quantization zero points of the layer at index.
func (m *Model) LayerZeros(index int) ([]int32, error) {
	var n uintptr
	p := nnabi.ModelLayerZeros(m.ref(), int32(index), &n)
	if p == nil || n == 0 {
		return nil, wrapperErrf("layer %d has no zero points", index)
	}
	return append([]int32(nil), unsafe.Slice(p, n)...), nil
}

// LayerScales returns the quantization scales of the layer at index.
func (m *Model) LayerScales(index int) ([]float32, error) {
	var n uintptr
	p := nnabi.ModelLayerScales(m.ref(), int32(index), &n)
	if p == nil || n == 0 {
		return nil, wrapperErrf("layer %d has no scales", index)
	}
	return append([]float32(nil), unsafe.Slice(p, n)...), nil
}

// LayerAxis returns the quantization axis of the layer at index. The
// index is bounds-checked against LayerCount first, so a returned axis of
// zero is a valid axis, not an out-of-range sentinel.
func (m *Model) LayerAxis(index int) (int, error) {
	n, err := m.LayerCount()
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= n {
		return 0, wrapperErrf("layer %d out of range", index)
	}
	return int(nnabi.ModelLayerAxis(m.ref(), int32(index))), nil
}

// LayerShape returns the shape of the layer at index.
func (m *Model) LayerShape(index int) ([]int32, error) {
	var dims int32
	p := nnabi.ModelLayerShape(m.ref(), int32(index), &dims)
	if p == nil || dims <= 0 {
		return nil, wrapperErrf("layer %d shape unavailable", index)
	}
	return append([]int32(nil), unsafe.Slice(p, dims)...), nil
}

// LayerLookup returns the index of the layer with the given name, or
// ErrLayerNotFound.
func (m *Model) LayerLookup(name string) (int, error) {
	i := nnabi.ModelLayerLookup(m.ref(), name)
	if i < 0 {
		return 0, fmt.Errorf("%q: %w", name, ErrLayerNotFound)
	}
	return int(i), nil
}

func (m *Model) str(p *byte, missing string) (string, error) {
	if p == nil {
		return "", wrapperErr(missing)
	}
	s, err := nnabi.GoString(p)
	if err != nil {
		return "", wrapperErrf("%v", err)
	}
	return s, nil
}

func (m *Model) indexList(f func(nnabi.Model, *uintptr) *uint32, missing string) ([]int, error) {
	var n uintptr
	p := f(m.ref(), &n)
	if p == nil || n == 0 {
		return nil, wrapperErr(missing)
	}
	raw := unsafe.Slice(p, n)
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out, nil
}
