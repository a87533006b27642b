// Package nnabi declares the DeepViewRT C ABI surface used by the bindings.
//
// Every nn_* entry point is exposed as a package-level function variable.
// Load binds them to a DeepViewRT shared library at runtime; tests bind them
// to an in-process stub instead. Handles are opaque native pointers carried
// as uintptr values and must never be dereferenced on the Go side.
package nnabi

import "unsafe"

// Engine, Context, Model and Tensor are opaque native handles. A zero value
// is the null handle.
type (
	Engine  uintptr
	Context uintptr
	Model   uintptr
	Tensor  uintptr
)

// Error is a raw NNError status code returned by the runtime. Zero is
// success. The binding layer maps nonzero codes to Go errors.
type Error int32

var (
	// StrError returns the runtime's description for an error code, or nil
	// when the runtime has none.
	StrError func(code Error) *byte

	EngineInit    func(memory unsafe.Pointer) Engine
	EngineLoad    func(engine Engine, plugin string) Error
	EngineRelease func(engine Engine)
	EngineName    func(engine Engine) *byte
	EngineVersion func(engine Engine) *byte

	ContextInit        func(engine Engine, memorySize uintptr, memory unsafe.Pointer, cacheSize uintptr, cache unsafe.Pointer) Context
	ContextRelease     func(ctx Context)
	ContextEngine      func(ctx Context) Engine
	ContextModel       func(ctx Context) Model
	ContextModelLoad   func(ctx Context, size uintptr, data *byte) Error
	ContextModelUnload func(ctx Context) Error
	ContextTensor      func(ctx Context, name string) Tensor
	ContextTensorIndex func(ctx Context, index int32) Tensor
	ContextRun         func(ctx Context) Error

	ModelName            func(model Model) *byte
	ModelLabelCount      func(model Model) int32
	ModelLabel           func(model Model, index int32) *byte
	ModelInputs          func(model Model, count *uintptr) *uint32
	ModelOutputs         func(model Model, count *uintptr) *uint32
	ModelLayerCount      func(model Model) int32
	ModelLayerName       func(model Model, index int32) *byte
	ModelLayerType       func(model Model, index int32) *byte
	ModelLayerDatatype   func(model Model, index int32) *byte
	ModelLayerDatatypeID func(model Model, index int32) int32
	ModelLayerZeros      func(model Model, index int32, count *uintptr) *int32
	ModelLayerScales     func(model Model, index int32, count *uintptr) *float32
	ModelLayerAxis       func(model Model, index int32) int32
	ModelLayerShape      func(model Model, index int32, dims *int32) *int32
	ModelLayerLookup     func(model Model, name string) int32

	TensorInit      func(memory unsafe.Pointer, engine Engine) Tensor
	TensorRelease   func(tensor Tensor)
	TensorEngine    func(tensor Tensor) Engine
	TensorAlloc     func(tensor Tensor, ttype int32, dims int32, shape *int32) Error
	TensorType      func(tensor Tensor) int32
	TensorSetType   func(tensor Tensor, ttype int32) Error
	TensorShape     func(tensor Tensor) *int32
	TensorDims      func(tensor Tensor) int32
	TensorVolume    func(tensor Tensor) int32
	TensorSize      func(tensor Tensor) int32
	TensorAxis      func(tensor Tensor) int32
	TensorZeros     func(tensor Tensor, count *uintptr) *int32
	TensorSetScales func(tensor Tensor, count int32, scales *float32) Error
	TensorScales    func(tensor Tensor, count *uintptr) *float32
	TensorDequant   func(tensor Tensor, dest Tensor) Error
	TensorMapRO     func(tensor Tensor) unsafe.Pointer
	TensorMapRW     func(tensor Tensor) unsafe.Pointer
	TensorUnmap     func(tensor Tensor)
)
