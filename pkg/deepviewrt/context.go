package deepviewrt

import (
	"os"
	"sync"

	"github.com/deepviewml/deepview-go/internal/nnabi"
)

// Context is an execution context: it holds a loaded model, the memory
// the runtime evaluates it in, and the per-layer tensors. A Context and
// every Model or Tensor borrowed from it belong to one goroutine at a
// time.
type Context struct {
	h     nnabi.Context
	owned bool

	engine *Engine
	model  *Model

	// modelData keeps the loaded model buffer alive for the runtime,
	// which reads it in place until it is unloaded.
	modelData   []byte
	modelMapped bool

	cacheMu sync.Mutex
	tensors map[int32]*Tensor
}

// NewContext creates a context bound to e, or to the runtime's default
// engine when e is nil. memorySize and cacheSize are byte budgets for the
// runtime's internal arenas; zero lets the runtime size them dynamically.
func NewContext(e *Engine, memorySize, cacheSize int) (*Context, error) {
	if err := ensureRuntime(); err != nil {
		return nil, err
	}
	if memorySize < 0 || cacheSize < 0 {
		return nil, wrapperErr("negative context memory size")
	}
	var eh nnabi.Engine
	if e != nil {
		eh = e.ref()
	}
	h := nnabi.ContextInit(eh, uintptr(memorySize), nil, uintptr(cacheSize), nil)
	if h == 0 {
		return nil, wrapperErr("could not initialize context")
	}
	return &Context{h: h, owned: true, tensors: make(map[int32]*Tensor)}, nil
}

func (c *Context) ref() nnabi.Context {
	if c.h == 0 {
		panic("deepviewrt: use of released Context")
	}
	return c.h
}

// Engine returns the engine the context is bound to. The native handle is
// resolved once; later calls return the same borrowed wrapper.
func (c *Context) Engine() (*Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	e, err := wrapEngine(nnabi.ContextEngine(c.ref()))
	if err != nil {
		return nil, err
	}
	c.engine = e
	return e, nil
}

// Model returns the loaded model, or ErrNoModel when none is loaded. The
// wrapper is resolved once and stays valid until the model is unloaded.
func (c *Context) Model() (*Model, error) {
	if c.model != nil {
		return c.model, nil
	}
	h := nnabi.ContextModel(c.ref())
	if h == 0 {
		return nil, ErrNoModel
	}
	c.model = &Model{h: h}
	return c.model, nil
}

// LoadModel loads a model from data. The Context keeps a reference to
// data until UnloadModel; the caller must not modify it while loaded. Any
// previously loaded model is unloaded first. On failure the context is
// left with no model.
func (c *Context) LoadModel(data []byte) error {
	return c.loadModel(data, false)
}

func (c *Context) loadModel(data []byte, mapped bool) error {
	if len(data) == 0 {
		return wrapperErr("empty model data")
	}
	if err := c.UnloadModel(); err != nil {
		return err
	}
	if code := nnabi.ContextModelLoad(c.ref(), uintptr(len(data)), &data[0]); code != 0 {
		return errFromCode(code)
	}
	c.modelData = data
	c.modelMapped = mapped
	return nil
}

// UnloadModel unloads the current model and invalidates every Model and
// cached Tensor previously returned by this context. The model buffer is
// released only after the runtime has let go of it. Unloading a context
// with no model is a no-op.
func (c *Context) UnloadModel() error {
	if err := c.dropTensorCache(); err != nil {
		return err
	}
	if c.model != nil {
		c.model.invalidate()
		c.model = nil
	}
	if code := nnabi.ContextModelUnload(c.ref()); code != 0 {
		return errFromCode(code)
	}
	data, mapped := c.modelData, c.modelMapped
	c.modelData, c.modelMapped = nil, false
	if mapped {
		if err := munmapModel(data); err != nil {
			return &SystemError{Op: "unmap model", Err: err}
		}
	}
	return nil
}

// Tensor looks up a tensor by layer name. The lookup is uncached and the
// returned wrapper borrows a handle owned by the context.
func (c *Context) Tensor(name string) (*Tensor, error) {
	h := nnabi.ContextTensor(c.ref(), name)
	if h == 0 {
		return nil, wrapperErrf("tensor %q not found", name)
	}
	return &Tensor{h: h}, nil
}

// TensorIndex returns the tensor for the layer at index. Wrappers are
// cached per index: repeated calls return the same *Tensor until the
// model is unloaded. A concurrent or re-entrant call fails instead of
// blocking or corrupting the cache.
func (c *Context) TensorIndex(index int) (*Tensor, error) {
	if !c.cacheMu.TryLock() {
		return nil, wrapperErr("tensor cache busy")
	}
	defer c.cacheMu.Unlock()

	i := int32(index)
	if t, ok := c.tensors[i]; ok {
		return t, nil
	}
	h := nnabi.ContextTensorIndex(c.ref(), i)
	if h == 0 {
		return nil, wrapperErrf("tensor index %d out of range", index)
	}
	t := &Tensor{h: h}
	c.tensors[i] = t
	return t, nil
}

// Run evaluates the loaded model synchronously.
func (c *Context) Run() error {
	if code := nnabi.ContextRun(c.ref()); code != 0 {
		return errFromCode(code)
	}
	return nil
}

// Close unloads any model loaded through this wrapper, releases the
// native handle if owned, and is idempotent.
func (c *Context) Close() error {
	if c.h == 0 {
		return nil
	}
	if c.modelData != nil {
		if err := c.UnloadModel(); err != nil {
			return err
		}
	} else if err := c.dropTensorCache(); err != nil {
		return err
	}
	if c.model != nil {
		c.model.invalidate()
		c.model = nil
	}
	if c.owned {
		nnabi.ContextRelease(c.h)
	}
	c.h = 0
	c.engine = nil
	return nil
}

func (c *Context) loadModelFileCopy(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &SystemError{Op: "read model", Err: err}
	}
	return c.loadModel(data, false)
}

func (c *Context) dropTensorCache() error {
	if !c.cacheMu.TryLock() {
		return wrapperErr("tensor cache busy")
	}
	defer c.cacheMu.Unlock()
	for _, t := range c.tensors {
		t.invalidate()
	}
	clear(c.tensors)
	return nil
}
