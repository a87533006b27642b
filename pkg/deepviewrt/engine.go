package deepviewrt

import "github.com/deepviewml/deepview-go/internal/nnabi"

// Engine is a compute engine: the runtime's default CPU engine or a
// plugin loaded from a shared library. Engines created with NewEngine own
// their native handle and must be released with Close. Engines obtained
// from Context.Engine or Tensor.Engine borrow a handle owned elsewhere;
// closing them is a no-op.
type Engine struct {
	h     nnabi.Engine
	owned bool
}

// NewEngine initializes an engine and loads the plugin at path. If the
// plugin fails to load, the freshly allocated handle is released before
// the error is returned.
func NewEngine(plugin string) (*Engine, error) {
	if err := ensureRuntime(); err != nil {
		return nil, err
	}
	h := nnabi.EngineInit(nil)
	if h == 0 {
		return nil, wrapperErr("could not initialize engine")
	}
	if code := nnabi.EngineLoad(h, plugin); code != 0 {
		nnabi.EngineRelease(h)
		return nil, errFromCode(code)
	}
	return &Engine{h: h, owned: true}, nil
}

func wrapEngine(h nnabi.Engine) (*Engine, error) {
	if h == 0 {
		return nil, &NullError{}
	}
	return &Engine{h: h}, nil
}

func (e *Engine) ref() nnabi.Engine {
	if e.h == 0 {
		panic("deepviewrt: use of released Engine")
	}
	return e.h
}

// Name returns the engine's reported name, or "" when the runtime does
// not provide one.
func (e *Engine) Name() (string, error) {
	p := nnabi.EngineName(e.ref())
	if p == nil {
		return "", nil
	}
	s, err := nnabi.GoString(p)
	if err != nil {
		return "", wrapperErrf("engine name: %v", err)
	}
	return s, nil
}

// Version returns the engine's reported version, or "" when the runtime
// does not provide one.
func (e *Engine) Version() (string, error) {
	p := nnabi.EngineVersion(e.ref())
	if p == nil {
		return "", nil
	}
	s, err := nnabi.GoString(p)
	if err != nil {
		return "", wrapperErrf("engine version: %v", err)
	}
	return s, nil
}

// Close releases the native handle if this Engine owns it. Close is
// idempotent; closing a borrowed Engine does nothing.
func (e *Engine) Close() error {
	if e.h == 0 {
		return nil
	}
	if e.owned {
		nnabi.EngineRelease(e.h)
		e.h = 0
	}
	return nil
}
