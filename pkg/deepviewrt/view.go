package deepviewrt

import (
	"bytes"
	"unicode/utf8"
	"unsafe"

	"github.com/x448/float16"

	"github.com/deepviewml/deepview-go/internal/nnabi"
)

// MappedData is the element data of a mapped tensor, as exactly one of
// the thirteen concrete variants below. The variant always matches the
// tensor's reported type, so data can never be read through the wrong
// element type. Slice variants alias runtime memory and are only valid
// until the owning TensorView is closed.
type MappedData interface {
	isMappedData()
}

type (
	RawData     []byte
	StringData  string
	Int8Data    []int8
	Uint8Data   []uint8
	Int16Data   []int16
	Uint16Data  []uint16
	Int32Data   []int32
	Uint32Data  []uint32
	Int64Data   []int64
	Uint64Data  []uint64
	Float16Data []float16.Float16
	Float32Data []float32
	Float64Data []float64
)

func (RawData) isMappedData()     {}
func (StringData) isMappedData()  {}
func (Int8Data) isMappedData()    {}
func (Uint8Data) isMappedData()   {}
func (Int16Data) isMappedData()   {}
func (Uint16Data) isMappedData()  {}
func (Int32Data) isMappedData()   {}
func (Uint32Data) isMappedData()  {}
func (Int64Data) isMappedData()   {}
func (Uint64Data) isMappedData()  {}
func (Float16Data) isMappedData() {}
func (Float32Data) isMappedData() {}
func (Float64Data) isMappedData() {}

// TensorView is a mapped view of a tensor's storage. A tensor has at most
// one live view; Close unmaps exactly once and makes the tensor mappable
// again. Views must be closed before the tensor is released or its model
// unloaded.
type TensorView struct {
	t    *Tensor
	tt   TensorType
	data MappedData
	done bool
}

// MapRead maps the tensor's storage and returns a read-only view. The
// caller must not write through the returned slices.
func (t *Tensor) MapRead() (*TensorView, error) {
	return t.mapView(false)
}

// MapReadWrite maps the tensor's storage for reading and writing, for
// staging input data.
func (t *Tensor) MapReadWrite() (*TensorView, error) {
	return t.mapView(true)
}

func (t *Tensor) mapView(writable bool) (*TensorView, error) {
	if t.mapped {
		return nil, wrapperErr("tensor already mapped")
	}
	tt, err := t.Type()
	if err != nil {
		return nil, err
	}
	n := int(t.Size())
	if n < 0 {
		return nil, wrapperErrf("tensor reports negative size %d", n)
	}

	var p unsafe.Pointer
	if writable {
		p = nnabi.TensorMapRW(t.ref())
	} else {
		p = nnabi.TensorMapRO(t.ref())
	}
	if p == nil {
		return nil, errFromCode(nnabi.Error(CodeTensorNoData))
	}

	data, err := viewData(tt, p, n)
	if err != nil {
		nnabi.TensorUnmap(t.ref())
		return nil, err
	}
	t.mapped = true
	return &TensorView{t: t, tt: tt, data: data}, nil
}

// viewData is the single dispatch point from a type tag to a MappedData
// variant. tt has already been validated by Tensor.Type.
func viewData(tt TensorType, p unsafe.Pointer, n int) (MappedData, error) {
	switch tt {
	case TypeRaw:
		return RawData(unsafe.Slice((*byte)(p), n)), nil
	case TypeString:
		return decodeStringData(unsafe.Slice((*byte)(p), n))
	case TypeI8:
		return Int8Data(unsafe.Slice((*int8)(p), n)), nil
	case TypeU8:
		return Uint8Data(unsafe.Slice((*uint8)(p), n)), nil
	case TypeI16:
		return Int16Data(unsafe.Slice((*int16)(p), n)), nil
	case TypeU16:
		return Uint16Data(unsafe.Slice((*uint16)(p), n)), nil
	case TypeI32:
		return Int32Data(unsafe.Slice((*int32)(p), n)), nil
	case TypeU32:
		return Uint32Data(unsafe.Slice((*uint32)(p), n)), nil
	case TypeI64:
		return Int64Data(unsafe.Slice((*int64)(p), n)), nil
	case TypeU64:
		return Uint64Data(unsafe.Slice((*uint64)(p), n)), nil
	case TypeF16:
		return Float16Data(unsafe.Slice((*float16.Float16)(p), n)), nil
	case TypeF32:
		return Float32Data(unsafe.Slice((*float32)(p), n)), nil
	case TypeF64:
		return Float64Data(unsafe.Slice((*float64)(p), n)), nil
	}
	return nil, wrapperErrf("unhandled tensor type %v", tt)
}

// decodeStringData decodes a string tensor: the buffer's NUL-terminated
// prefix, which must be UTF-8.
func decodeStringData(buf []byte) (MappedData, error) {
	end := bytes.IndexByte(buf, 0)
	if end < 0 {
		end = len(buf)
	}
	s := string(buf[:end])
	if !utf8.ValidString(s) {
		return nil, wrapperErr("string tensor is not valid utf-8")
	}
	return StringData(s), nil
}

// Data returns the mapped elements.
func (v *TensorView) Data() MappedData {
	if v.done {
		panic("deepviewrt: use of closed TensorView")
	}
	return v.data
}

// Type returns the element type the view was mapped as.
func (v *TensorView) Type() TensorType {
	return v.tt
}

// Close unmaps the view. Only the first call unmaps; later calls are
// no-ops. Closing a view whose tensor was already invalidated returns
// ErrClosed.
func (v *TensorView) Close() error {
	if v.done {
		return nil
	}
	v.done = true
	v.data = nil
	if v.t.h == 0 {
		return ErrClosed
	}
	nnabi.TensorUnmap(v.t.h)
	v.t.mapped = false
	return nil
}
