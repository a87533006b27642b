package deepviewrt

import (
	"errors"
	"fmt"

	"github.com/deepviewml/deepview-go/internal/nnabi"
)

var (
	// ErrNoModel is returned by Context.Model when no model is loaded.
	ErrNoModel = errors.New("deepviewrt: no model loaded")
	// ErrLayerNotFound is returned by Model.LayerLookup for unknown names.
	ErrLayerNotFound = errors.New("deepviewrt: layer not found")
	// ErrClosed is returned by operations that can recover from running
	// against an already released handle.
	ErrClosed = errors.New("deepviewrt: handle released")
)

// ErrorCode is a status code reported by the runtime.
type ErrorCode int32

const (
	CodeSuccess ErrorCode = iota
	CodeInternal
	CodeInvalidHandle
	CodeOutOfMemory
	CodeOutOfResources
	CodeNotImplemented
	CodeInvalidParameter
	CodeTypeMismatch
	CodeShapeMismatch
	CodeInvalidShape
	CodeInvalidOrder
	CodeInvalidAxis
	CodeMissingResource
	CodeInvalidEngine
	CodeTensorNoData
	CodeKernelMissing
	CodeTensorTypeUnsupported
	CodeTooManyInputs
	CodeSystemError
	CodeInvalidLayer
	CodeModelInvalid
	CodeModelMissing
	CodeStringTooLarge
	CodeInvalidQuant
	CodeModelGraphFailed
	CodeGraphVerifyFailed
	CodeUnknown
)

var codeNames = [...]string{
	CodeSuccess:               "success",
	CodeInternal:              "internal error",
	CodeInvalidHandle:         "invalid handle",
	CodeOutOfMemory:           "out of memory",
	CodeOutOfResources:        "out of resources",
	CodeNotImplemented:        "not implemented",
	CodeInvalidParameter:      "invalid parameter",
	CodeTypeMismatch:          "type mismatch",
	CodeShapeMismatch:         "shape mismatch",
	CodeInvalidShape:          "invalid shape",
	CodeInvalidOrder:          "invalid order",
	CodeInvalidAxis:           "invalid axis",
	CodeMissingResource:       "missing resource",
	CodeInvalidEngine:         "invalid engine",
	CodeTensorNoData:          "tensor has no data",
	CodeKernelMissing:         "kernel missing",
	CodeTensorTypeUnsupported: "tensor type unsupported",
	CodeTooManyInputs:         "too many inputs",
	CodeSystemError:           "system error",
	CodeInvalidLayer:          "invalid layer",
	CodeModelInvalid:          "model invalid",
	CodeModelMissing:          "model missing",
	CodeStringTooLarge:        "string too large",
	CodeInvalidQuant:          "invalid quantization",
	CodeModelGraphFailed:      "model graph failed",
	CodeGraphVerifyFailed:     "graph verification failed",
	CodeUnknown:               "unknown error",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("error code %d", int32(c))
}

// NativeError is a failure reported by the runtime, carrying its status
// code and the runtime's own description of it.
type NativeError struct {
	Code ErrorCode
	Desc string
}

func (e *NativeError) Error() string {
	return "deepviewrt: " + e.Desc
}

// NullError is a runtime failure for which the runtime offers no
// decodable description.
type NullError struct {
	Code ErrorCode
}

func (e *NullError) Error() string {
	if e.Code == CodeSuccess {
		return "deepviewrt: runtime returned null"
	}
	return fmt.Sprintf("deepviewrt: native error %d: no description available", int32(e.Code))
}

// WrapperError is a violation of the binding's own contract: an
// out-of-range index, a double map, invalid arguments, a busy tensor
// cache. The runtime was either not consulted or returned a sentinel
// with no status code.
type WrapperError struct {
	Msg string
}

func (e *WrapperError) Error() string {
	return "deepviewrt: " + e.Msg
}

// SystemError is an operating system level failure: loading the runtime
// library, mapping a model file, a refused allocation.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("deepviewrt: %s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// errFromCode maps a native status to an error. Success maps to nil. A
// missing or undecodable runtime description degrades to NullError.
func errFromCode(code nnabi.Error) error {
	if code == 0 {
		return nil
	}
	c := ErrorCode(code)
	p := nnabi.StrError(code)
	if p == nil {
		return &NullError{Code: c}
	}
	desc, err := nnabi.GoString(p)
	if err != nil {
		return &NullError{Code: c}
	}
	return &NativeError{Code: c, Desc: desc}
}

func wrapperErr(msg string) error {
	return &WrapperError{Msg: msg}
}

func wrapperErrf(format string, args ...any) error {
	return &WrapperError{Msg: fmt.Sprintf(format, args...)}
}
