// Package deepviewrt provides Go bindings for the DeepViewRT inference
// runtime. It wraps the runtime's opaque handles in types that own or
// borrow them explicitly, release owned handles exactly once, and expose
// tensor storage through typed, bounds-checked views.
//
// The runtime library is bound dynamically on first use, or explicitly
// with LoadRuntime. None of the types are safe for concurrent use: a
// Context and everything borrowed from it belong to one goroutine at a
// time, and callers that share them must serialize access themselves.
package deepviewrt

import "github.com/deepviewml/deepview-go/internal/nnabi"

// LoadRuntime binds the DeepViewRT shared library at path. An empty path
// consults $DEEPVIEWRT_LIBRARY and then the platform default name.
// Callers that never invoke it get the same defaults on first use.
func LoadRuntime(path string) error {
	if err := nnabi.Load(path); err != nil {
		return &SystemError{Op: "load runtime", Err: err}
	}
	return nil
}

// RuntimeLibrary reports what the bindings are bound to, or "" before the
// first load.
func RuntimeLibrary() string {
	return nnabi.Library()
}

func ensureRuntime() error {
	if nnabi.Loaded() {
		return nil
	}
	return LoadRuntime("")
}
