package deepviewrt

import (
	"errors"
	"unsafe"

	"github.com/deepviewml/deepview-go/internal/nnabi"
)

const (
	// allocMaxDims bounds Alloc; the runtime allocates up to 3-D tensors.
	allocMaxDims = 3
	// shapeSlots is the width of the runtime's shape arrays.
	shapeSlots = 4
)

// Tensor wraps a runtime tensor. Tensors created with NewTensor own their
// handle and must be released with Close; tensors obtained from a Context
// borrow handles owned by it and are invalidated when its model is
// unloaded.
type Tensor struct {
	h      nnabi.Tensor
	owned  bool
	engine *Engine
	scales []float32
	mapped bool
}

// NewTensor creates an empty tensor bound to e, or to no engine when e is
// nil. The tensor has no storage until Alloc.
func NewTensor(e *Engine) (*Tensor, error) {
	if err := ensureRuntime(); err != nil {
		return nil, err
	}
	var eh nnabi.Engine
	if e != nil {
		eh = e.ref()
	}
	h := nnabi.TensorInit(nil, eh)
	if h == 0 {
		return nil, &SystemError{Op: "tensor init", Err: errors.New("runtime returned no handle")}
	}
	return &Tensor{h: h, owned: true}, nil
}

func (t *Tensor) ref() nnabi.Tensor {
	if t.h == 0 {
		panic("deepviewrt: use of released Tensor")
	}
	return t.h
}

func (t *Tensor) invalidate() {
	t.h = 0
}

// Alloc allocates storage for a tensor of the given type and shape. Up to
// three dimensions are supported.
func (t *Tensor) Alloc(tt TensorType, shape ...int32) error {
	if len(shape) == 0 || len(shape) > allocMaxDims {
		return wrapperErrf("alloc wants 1 to %d dimensions, got %d", allocMaxDims, len(shape))
	}
	var dims [allocMaxDims]int32
	copy(dims[:], shape)
	if code := nnabi.TensorAlloc(t.ref(), int32(tt), int32(len(shape)), &dims[0]); code != 0 {
		return errFromCode(code)
	}
	return nil
}

// Dequantize writes a dequantized copy of the tensor into dst, which must
// be allocated with a matching shape and a floating point type.
func (t *Tensor) Dequantize(dst *Tensor) error {
	if code := nnabi.TensorDequant(t.ref(), dst.ref()); code != 0 {
		return errFromCode(code)
	}
	return nil
}

// Type returns the tensor's element type. An unrecognized runtime tag
// fails rather than alias another type.
func (t *Tensor) Type() (TensorType, error) {
	return TensorTypeFromID(nnabi.TensorType(t.ref()))
}

// SetType changes the tensor's element type without touching storage.
func (t *Tensor) SetType(tt TensorType) error {
	if _, err := TensorTypeFromID(int32(tt)); err != nil {
		return err
	}
	if code := nnabi.TensorSetType(t.ref(), int32(tt)); code != 0 {
		return errFromCode(code)
	}
	return nil
}

// Engine returns the engine the tensor is bound to. The handle is
// resolved once; later calls return the same borrowed wrapper.
func (t *Tensor) Engine() (*Engine, error) {
	if t.engine != nil {
		return t.engine, nil
	}
	e, err := wrapEngine(nnabi.TensorEngine(t.ref()))
	if err != nil {
		return nil, err
	}
	t.engine = e
	return e, nil
}

// Shape returns the tensor's shape. The runtime always reports four
// entries; unused trailing dimensions are 1.
func (t *Tensor) Shape() ([]int32, error) {
	p := nnabi.TensorShape(t.ref())
	if p == nil {
		return nil, wrapperErr("tensor shape unavailable")
	}
	return append([]int32(nil), unsafe.Slice(p, shapeSlots)...), nil
}

// Dims returns the number of populated dimensions.
func (t *Tensor) Dims() int32 {
	return nnabi.TensorDims(t.ref())
}

// Volume returns the product of the tensor's dimensions.
func (t *Tensor) Volume() int32 {
	return nnabi.TensorVolume(t.ref())
}

// Size returns the number of elements in the tensor's storage. Mapped
// views contain exactly Size elements.
func (t *Tensor) Size() int32 {
	return nnabi.TensorSize(t.ref())
}

// Axis returns the tensor's quantization axis.
func (t *Tensor) Axis() int32 {
	return nnabi.TensorAxis(t.ref())
}

// Zeros returns the tensor's quantization zero points.
func (t *Tensor) Zeros() ([]int32, error) {
	var n uintptr
	p := nnabi.TensorZeros(t.ref(), &n)
	if p == nil || n == 0 {
		return nil, wrapperErr("tensor has no zero points")
	}
	return append([]int32(nil), unsafe.Slice(p, n)...), nil
}

// SetScales sets the tensor's quantization scales: one scale for the
// whole tensor, or one per channel along the quantization axis. Anything
// else is rejected before the runtime or the local cache see it.
func (t *Tensor) SetScales(scales []float32) error {
	if len(scales) == 0 {
		return wrapperErr("empty scales")
	}
	if len(scales) != 1 {
		shape, err := t.Shape()
		if err != nil {
			return err
		}
		axis := t.Axis()
		if axis < 0 || int(axis) >= len(shape) {
			return wrapperErrf("quantization axis %d out of range", axis)
		}
		if want := int(shape[axis]); len(scales) != want {
			return wrapperErrf("scales length %d, want 1 or %d (extent of axis %d)", len(scales), want, axis)
		}
	}
	if code := nnabi.TensorSetScales(t.ref(), int32(len(scales)), &scales[0]); code != 0 {
		return errFromCode(code)
	}
	t.scales = append([]float32(nil), scales...)
	return nil
}

// Scales returns the tensor's quantization scales: the ones set through
// SetScales, or the runtime's own when none were set locally. Returns nil
// if the tensor has none.
func (t *Tensor) Scales() []float32 {
	if t.scales != nil {
		return append([]float32(nil), t.scales...)
	}
	var n uintptr
	p := nnabi.TensorScales(t.ref(), &n)
	if p == nil || n == 0 {
		return nil
	}
	return append([]float32(nil), unsafe.Slice(p, n)...)
}

// Close releases the native handle if this Tensor owns it. Close is
// idempotent; closing a borrowed Tensor does nothing.
func (t *Tensor) Close() error {
	if t.h == 0 {
		return nil
	}
	if t.owned {
		nnabi.TensorRelease(t.h)
		t.h = 0
	}
	return nil
}
