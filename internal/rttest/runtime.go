package rttest

import (
	"unsafe"

	"github.com/deepviewml/deepview-go/internal/nnabi"
	"github.com/deepviewml/deepview-go/pkg/quant"
)

// Raw runtime status codes, mirroring the native enum.
const (
	codeOK               nnabi.Error = 0
	codeInvalidHandle    nnabi.Error = 2
	codeInvalidParameter nnabi.Error = 6
	codeTypeMismatch     nnabi.Error = 7
	codeShapeMismatch    nnabi.Error = 8
	codeInvalidShape     nnabi.Error = 9
	codeInvalidEngine    nnabi.Error = 13
	codeTensorNoData     nnabi.Error = 14
	codeTypeUnsupported  nnabi.Error = 16
	codeModelMissing     nnabi.Error = 21
	codeModelInvalid     nnabi.Error = 20
	codeInvalidQuant     nnabi.Error = 23
)

var codeDescs = map[nnabi.Error]string{
	0: "success", 1: "internal error", 2: "invalid handle",
	3: "out of memory", 4: "out of resources", 5: "not implemented",
	6: "invalid parameter", 7: "type mismatch", 8: "shape mismatch",
	9: "invalid shape", 10: "invalid order", 11: "invalid axis",
	12: "missing resource", 13: "invalid engine", 14: "tensor has no data",
	15: "kernel missing", 16: "tensor type unsupported", 17: "too many inputs",
	18: "system error", 19: "invalid layer", 20: "model invalid",
	21: "model missing", 22: "string too large", 23: "invalid quantization",
	24: "model graph failed", 25: "graph verification failed", 26: "unknown error",
}

// Plugin describes a registered engine plugin. An empty Name makes the
// engine report no name, for exercising that branch of the binding.
type Plugin struct {
	Name    string
	Version string
}

// Runtime is an in-process implementation of the ABI. It is not safe for
// concurrent use, like the runtime it stands in for; tests that share one
// must serialize access.
type Runtime struct {
	next uintptr

	engines  map[nnabi.Engine]*stubEngine
	contexts map[nnabi.Context]*stubContext
	models   map[nnabi.Model]*stubContext
	tensors  map[nnabi.Tensor]*stubTensor

	plugins map[string]Plugin
	strs    map[nnabi.Error][]byte
	noDesc  map[nnabi.Error]bool

	// Failure knobs. FailEngineInit and FailContextInit fail every init
	// while set; FailTensorInit fails one init and clears itself.
	FailEngineInit  bool
	FailContextInit bool
	FailTensorInit  bool

	// TypeOverride substitutes the reported type tag of a tensor, for
	// exercising unknown-tag handling.
	TypeOverride map[nnabi.Tensor]int32

	// Call bookkeeping.
	EngineReleases  int
	ContextReleases int
	TensorReleases  int
	EngineResolves  int
	Runs            int
}

type stubEngine struct {
	name    []byte
	version []byte
	loaded  bool
}

type stubContext struct {
	engine nnabi.Engine
	model  nnabi.Model
	fix    *Model

	layers  []nnabi.Tensor
	names   map[string]int32
	inputs  []uint32
	outputs []uint32

	cname   []byte
	clabels [][]byte
	lnames  [][]byte
	lops    [][]byte
	ldtypes [][]byte
	lshapes [][]int32
}

type stubTensor struct {
	engine nnabi.Engine
	typ    int32
	shape  [4]int32
	dims   int32
	volume int32
	axis   int32
	zeros  []int32
	scales []float32
	data   []byte
	mapped bool
}

// New creates an empty stub runtime. Register plugins before loading
// engines against it.
func New() *Runtime {
	return &Runtime{
		next:         0x1000,
		engines:      make(map[nnabi.Engine]*stubEngine),
		contexts:     make(map[nnabi.Context]*stubContext),
		models:       make(map[nnabi.Model]*stubContext),
		tensors:      make(map[nnabi.Tensor]*stubTensor),
		plugins:      make(map[string]Plugin),
		strs:         make(map[nnabi.Error][]byte),
		noDesc:       make(map[nnabi.Error]bool),
		TypeOverride: make(map[nnabi.Tensor]int32),
	}
}

// RegisterPlugin makes an engine plugin loadable under the given path.
func (r *Runtime) RegisterPlugin(path string, p Plugin) {
	r.plugins[path] = p
}

// SetNoDescription makes StrError return null for code, so the binding's
// no-description path can be exercised.
func (r *Runtime) SetNoDescription(code int32) {
	r.noDesc[nnabi.Error(code)] = true
}

func (r *Runtime) handle() uintptr {
	r.next += 8
	return r.next
}

func cstr(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// alignedBytes allocates n bytes aligned for any element width.
func alignedBytes(n int) []byte {
	if n == 0 {
		return nil
	}
	w := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), n)
}

func typeWidth(t int32) int {
	switch t {
	case 0, 1, 2, 3:
		return 1
	case 4, 5, 10:
		return 2
	case 6, 7, 11:
		return 4
	case 8, 9, 12:
		return 8
	}
	return 0
}

var typeNames = map[int32]string{
	0: "raw", 1: "string", 2: "int8", 3: "uint8", 4: "int16", 5: "uint16",
	6: "int32", 7: "uint32", 8: "int64", 9: "uint64", 10: "float16",
	11: "float32", 12: "float64",
}

func (t *stubTensor) setShape(shape []int32) {
	t.shape = [4]int32{1, 1, 1, 1}
	copy(t.shape[:], shape)
	t.dims = int32(len(shape))
	vol := int32(1)
	for _, d := range shape {
		vol *= d
	}
	t.volume = vol
}

// size reports the element count of the tensor's storage.
func (t *stubTensor) size() int32 {
	if t.data == nil {
		return t.volume
	}
	w := typeWidth(t.typ)
	if w == 0 {
		return 0
	}
	return int32(len(t.data) / w)
}

func (r *Runtime) strError(code nnabi.Error) *byte {
	if r.noDesc[code] {
		return nil
	}
	b, ok := r.strs[code]
	if !ok {
		desc, ok := codeDescs[code]
		if !ok {
			desc = "unknown error"
		}
		b = cstr(desc)
		r.strs[code] = b
	}
	return &b[0]
}

func (r *Runtime) engineInit(memory unsafe.Pointer) nnabi.Engine {
	if r.FailEngineInit {
		return 0
	}
	h := nnabi.Engine(r.handle())
	r.engines[h] = &stubEngine{}
	return h
}

func (r *Runtime) engineLoad(e nnabi.Engine, plugin string) nnabi.Error {
	se := r.engines[e]
	if se == nil {
		return codeInvalidHandle
	}
	p, ok := r.plugins[plugin]
	if !ok {
		return codeInvalidEngine
	}
	if p.Name != "" {
		se.name = cstr(p.Name)
	}
	if p.Version != "" {
		se.version = cstr(p.Version)
	}
	se.loaded = true
	return codeOK
}

func (r *Runtime) engineRelease(e nnabi.Engine) {
	if _, ok := r.engines[e]; ok {
		delete(r.engines, e)
		r.EngineReleases++
	}
}

func (r *Runtime) engineName(e nnabi.Engine) *byte {
	se := r.engines[e]
	if se == nil || se.name == nil {
		return nil
	}
	return &se.name[0]
}

func (r *Runtime) engineVersion(e nnabi.Engine) *byte {
	se := r.engines[e]
	if se == nil || se.version == nil {
		return nil
	}
	return &se.version[0]
}

func (r *Runtime) contextInit(e nnabi.Engine, memorySize uintptr, memory unsafe.Pointer, cacheSize uintptr, cache unsafe.Pointer) nnabi.Context {
	if r.FailContextInit {
		return 0
	}
	if e != 0 && r.engines[e] == nil {
		return 0
	}
	h := nnabi.Context(r.handle())
	r.contexts[h] = &stubContext{engine: e}
	return h
}

func (r *Runtime) contextRelease(c nnabi.Context) {
	sc := r.contexts[c]
	if sc == nil {
		return
	}
	r.dropModel(sc)
	delete(r.contexts, c)
	r.ContextReleases++
}

func (r *Runtime) contextEngine(c nnabi.Context) nnabi.Engine {
	r.EngineResolves++
	sc := r.contexts[c]
	if sc == nil {
		return 0
	}
	return sc.engine
}

func (r *Runtime) contextModel(c nnabi.Context) nnabi.Model {
	sc := r.contexts[c]
	if sc == nil {
		return 0
	}
	return sc.model
}

func (r *Runtime) contextModelLoad(c nnabi.Context, size uintptr, data *byte) nnabi.Error {
	sc := r.contexts[c]
	if sc == nil {
		return codeInvalidHandle
	}
	if data == nil || size == 0 {
		return codeInvalidParameter
	}
	fix, err := ParseModel(unsafe.Slice(data, size))
	if err != nil {
		return codeModelInvalid
	}
	r.dropModel(sc)

	sc.fix = fix
	if fix.Name != "" {
		sc.cname = cstr(fix.Name)
	}
	sc.inputs = fix.Inputs
	sc.outputs = fix.Outputs
	sc.names = make(map[string]int32, len(fix.Layers))
	for _, l := range fix.Labels {
		sc.clabels = append(sc.clabels, cstr(l))
	}
	for i := range fix.Layers {
		l := &fix.Layers[i]
		st := &stubTensor{
			engine: sc.engine,
			typ:    l.TypeID,
			axis:   l.Axis,
			zeros:  l.Zeros,
			scales: l.Scales,
			data:   l.Data,
		}
		st.setShape(l.Shape)
		th := nnabi.Tensor(r.handle())
		r.tensors[th] = st
		sc.layers = append(sc.layers, th)
		sc.names[l.Name] = int32(i)
		sc.lnames = append(sc.lnames, cstr(l.Name))
		sc.lops = append(sc.lops, cstr(l.Op))
		sc.ldtypes = append(sc.ldtypes, cstr(typeNames[l.TypeID]))
		sc.lshapes = append(sc.lshapes, append([]int32(nil), l.Shape...))
	}
	mh := nnabi.Model(r.handle())
	r.models[mh] = sc
	sc.model = mh
	return codeOK
}

func (r *Runtime) contextModelUnload(c nnabi.Context) nnabi.Error {
	sc := r.contexts[c]
	if sc == nil {
		return codeInvalidHandle
	}
	r.dropModel(sc)
	return codeOK
}

func (r *Runtime) dropModel(sc *stubContext) {
	if sc.model == 0 {
		return
	}
	delete(r.models, sc.model)
	for _, th := range sc.layers {
		delete(r.tensors, th)
	}
	*sc = stubContext{engine: sc.engine}
}

func (r *Runtime) contextTensor(c nnabi.Context, name string) nnabi.Tensor {
	sc := r.contexts[c]
	if sc == nil || sc.model == 0 {
		return 0
	}
	i, ok := sc.names[name]
	if !ok {
		return 0
	}
	return sc.layers[i]
}

func (r *Runtime) contextTensorIndex(c nnabi.Context, index int32) nnabi.Tensor {
	sc := r.contexts[c]
	if sc == nil || index < 0 || int(index) >= len(sc.layers) {
		return 0
	}
	return sc.layers[index]
}

// contextRun copies input layer storage to output layer storage pairwise,
// an identity graph. It is enough to observe staged inputs coming back
// out; it is not an inference engine.
func (r *Runtime) contextRun(c nnabi.Context) nnabi.Error {
	sc := r.contexts[c]
	if sc == nil {
		return codeInvalidHandle
	}
	if sc.model == 0 {
		return codeModelMissing
	}
	for k, oi := range sc.outputs {
		if len(sc.inputs) == 0 {
			break
		}
		ii := sc.inputs[min(k, len(sc.inputs)-1)]
		src := r.tensors[sc.layers[ii]]
		dst := r.tensors[sc.layers[oi]]
		copy(dst.data, src.data)
	}
	r.Runs++
	return codeOK
}

func (r *Runtime) modelName(m nnabi.Model) *byte {
	sc := r.models[m]
	if sc == nil || sc.cname == nil {
		return nil
	}
	return &sc.cname[0]
}

func (r *Runtime) modelLabelCount(m nnabi.Model) int32 {
	sc := r.models[m]
	if sc == nil {
		return 0
	}
	return int32(len(sc.clabels))
}

func (r *Runtime) modelLabel(m nnabi.Model, index int32) *byte {
	sc := r.models[m]
	if sc == nil || index < 0 || int(index) >= len(sc.clabels) {
		return nil
	}
	return &sc.clabels[index][0]
}

func (r *Runtime) modelInputs(m nnabi.Model, count *uintptr) *uint32 {
	return r.indexList(m, count, func(sc *stubContext) []uint32 { return sc.inputs })
}

func (r *Runtime) modelOutputs(m nnabi.Model, count *uintptr) *uint32 {
	return r.indexList(m, count, func(sc *stubContext) []uint32 { return sc.outputs })
}

func (r *Runtime) indexList(m nnabi.Model, count *uintptr, pick func(*stubContext) []uint32) *uint32 {
	sc := r.models[m]
	if sc == nil {
		return nil
	}
	v := pick(sc)
	if len(v) == 0 {
		return nil
	}
	*count = uintptr(len(v))
	return &v[0]
}

func (r *Runtime) modelLayerCount(m nnabi.Model) int32 {
	sc := r.models[m]
	if sc == nil {
		return 0
	}
	return int32(len(sc.layers))
}

func (r *Runtime) modelLayerName(m nnabi.Model, index int32) *byte {
	return r.layerStr(m, index, func(sc *stubContext) [][]byte { return sc.lnames })
}

func (r *Runtime) modelLayerType(m nnabi.Model, index int32) *byte {
	return r.layerStr(m, index, func(sc *stubContext) [][]byte { return sc.lops })
}

func (r *Runtime) modelLayerDatatype(m nnabi.Model, index int32) *byte {
	return r.layerStr(m, index, func(sc *stubContext) [][]byte { return sc.ldtypes })
}

func (r *Runtime) layerStr(m nnabi.Model, index int32, pick func(*stubContext) [][]byte) *byte {
	sc := r.models[m]
	if sc == nil {
		return nil
	}
	v := pick(sc)
	if index < 0 || int(index) >= len(v) {
		return nil
	}
	return &v[index][0]
}

func (r *Runtime) modelLayerDatatypeID(m nnabi.Model, index int32) int32 {
	sc := r.models[m]
	if sc == nil || index < 0 || int(index) >= len(sc.layers) {
		return -1
	}
	return r.tensors[sc.layers[index]].typ
}

func (r *Runtime) modelLayerZeros(m nnabi.Model, index int32, count *uintptr) *int32 {
	st := r.layerTensor(m, index)
	if st == nil || len(st.zeros) == 0 {
		return nil
	}
	*count = uintptr(len(st.zeros))
	return &st.zeros[0]
}

func (r *Runtime) modelLayerScales(m nnabi.Model, index int32, count *uintptr) *float32 {
	st := r.layerTensor(m, index)
	if st == nil || len(st.scales) == 0 {
		return nil
	}
	*count = uintptr(len(st.scales))
	return &st.scales[0]
}

func (r *Runtime) modelLayerAxis(m nnabi.Model, index int32) int32 {
	st := r.layerTensor(m, index)
	if st == nil {
		return 0
	}
	return st.axis
}

func (r *Runtime) modelLayerShape(m nnabi.Model, index int32, dims *int32) *int32 {
	sc := r.models[m]
	if sc == nil || index < 0 || int(index) >= len(sc.lshapes) {
		return nil
	}
	s := sc.lshapes[index]
	*dims = int32(len(s))
	return &s[0]
}

func (r *Runtime) modelLayerLookup(m nnabi.Model, name string) int32 {
	sc := r.models[m]
	if sc == nil {
		return -1
	}
	i, ok := sc.names[name]
	if !ok {
		return -1
	}
	return i
}

func (r *Runtime) layerTensor(m nnabi.Model, index int32) *stubTensor {
	sc := r.models[m]
	if sc == nil || index < 0 || int(index) >= len(sc.layers) {
		return nil
	}
	return r.tensors[sc.layers[index]]
}

func (r *Runtime) tensorInit(memory unsafe.Pointer, e nnabi.Engine) nnabi.Tensor {
	if r.FailTensorInit {
		r.FailTensorInit = false
		return 0
	}
	h := nnabi.Tensor(r.handle())
	r.tensors[h] = &stubTensor{engine: e}
	return h
}

func (r *Runtime) tensorRelease(t nnabi.Tensor) {
	if _, ok := r.tensors[t]; ok {
		delete(r.tensors, t)
		r.TensorReleases++
	}
}

func (r *Runtime) tensorEngine(t nnabi.Tensor) nnabi.Engine {
	st := r.tensors[t]
	if st == nil {
		return 0
	}
	return st.engine
}

func (r *Runtime) tensorAlloc(t nnabi.Tensor, ttype int32, dims int32, shape *int32) nnabi.Error {
	st := r.tensors[t]
	if st == nil {
		return codeInvalidHandle
	}
	if typeWidth(ttype) == 0 {
		return codeTypeUnsupported
	}
	if dims < 1 || dims > 3 || shape == nil {
		return codeInvalidShape
	}
	s := unsafe.Slice(shape, dims)
	for _, d := range s {
		if d <= 0 {
			return codeInvalidShape
		}
	}
	st.typ = ttype
	st.setShape(s)
	st.data = alignedBytes(int(st.volume) * typeWidth(ttype))
	return codeOK
}

func (r *Runtime) tensorType(t nnabi.Tensor) int32 {
	if ov, ok := r.TypeOverride[t]; ok {
		return ov
	}
	st := r.tensors[t]
	if st == nil {
		return 0
	}
	return st.typ
}

func (r *Runtime) tensorSetType(t nnabi.Tensor, ttype int32) nnabi.Error {
	st := r.tensors[t]
	if st == nil {
		return codeInvalidHandle
	}
	if typeWidth(ttype) == 0 {
		return codeTypeUnsupported
	}
	st.typ = ttype
	return codeOK
}

func (r *Runtime) tensorShape(t nnabi.Tensor) *int32 {
	st := r.tensors[t]
	if st == nil {
		return nil
	}
	return &st.shape[0]
}

func (r *Runtime) tensorDims(t nnabi.Tensor) int32 {
	st := r.tensors[t]
	if st == nil {
		return 0
	}
	return st.dims
}

func (r *Runtime) tensorVolume(t nnabi.Tensor) int32 {
	st := r.tensors[t]
	if st == nil {
		return 0
	}
	return st.volume
}

func (r *Runtime) tensorSize(t nnabi.Tensor) int32 {
	st := r.tensors[t]
	if st == nil {
		return 0
	}
	return st.size()
}

func (r *Runtime) tensorAxis(t nnabi.Tensor) int32 {
	st := r.tensors[t]
	if st == nil {
		return 0
	}
	return st.axis
}

func (r *Runtime) tensorZeros(t nnabi.Tensor, count *uintptr) *int32 {
	st := r.tensors[t]
	if st == nil || len(st.zeros) == 0 {
		return nil
	}
	*count = uintptr(len(st.zeros))
	return &st.zeros[0]
}

func (r *Runtime) tensorSetScales(t nnabi.Tensor, count int32, scales *float32) nnabi.Error {
	st := r.tensors[t]
	if st == nil {
		return codeInvalidHandle
	}
	if count <= 0 || scales == nil {
		return codeInvalidQuant
	}
	want := int32(1)
	if st.axis >= 0 && st.axis < int32(len(st.shape)) {
		want = st.shape[st.axis]
	}
	if count != 1 && count != want {
		return codeInvalidQuant
	}
	st.scales = append([]float32(nil), unsafe.Slice(scales, count)...)
	return codeOK
}

func (r *Runtime) tensorScales(t nnabi.Tensor, count *uintptr) *float32 {
	st := r.tensors[t]
	if st == nil || len(st.scales) == 0 {
		return nil
	}
	*count = uintptr(len(st.scales))
	return &st.scales[0]
}

func (r *Runtime) tensorDequant(t, dest nnabi.Tensor) nnabi.Error {
	src := r.tensors[t]
	dst := r.tensors[dest]
	if src == nil || dst == nil {
		return codeInvalidHandle
	}
	if src.typ != 2 && src.typ != 3 {
		return codeTypeMismatch
	}
	if dst.typ != 11 {
		return codeTypeMismatch
	}
	if dst.volume != src.volume {
		return codeShapeMismatch
	}
	if len(src.data) == 0 || len(dst.data) == 0 {
		return codeTensorNoData
	}
	if len(src.scales) == 0 {
		return codeInvalidQuant
	}
	p := quant.Params{Axis: int(src.axis), Scales: src.scales, Zeros: src.zeros}
	shape := src.shape[:src.dims]
	out := unsafe.Slice((*float32)(unsafe.Pointer(&dst.data[0])), dst.volume)
	var err error
	if src.typ == 2 {
		in := unsafe.Slice((*int8)(unsafe.Pointer(&src.data[0])), src.volume)
		err = quant.DequantizeInt8(out, in, p, shape)
	} else {
		err = quant.DequantizeUint8(out, src.data[:src.volume], p, shape)
	}
	if err != nil {
		return codeInvalidQuant
	}
	return codeOK
}

func (r *Runtime) tensorMapRO(t nnabi.Tensor) unsafe.Pointer {
	return r.tensorMap(t)
}

func (r *Runtime) tensorMapRW(t nnabi.Tensor) unsafe.Pointer {
	return r.tensorMap(t)
}

func (r *Runtime) tensorMap(t nnabi.Tensor) unsafe.Pointer {
	st := r.tensors[t]
	if st == nil || len(st.data) == 0 || st.mapped {
		return nil
	}
	st.mapped = true
	return unsafe.Pointer(&st.data[0])
}

func (r *Runtime) tensorUnmap(t nnabi.Tensor) {
	st := r.tensors[t]
	if st == nil {
		return
	}
	st.mapped = false
}

// MappedCount reports how many tensors are currently mapped. It lets
// tests verify unmap-on-error paths.
func (r *Runtime) MappedCount() int {
	n := 0
	for _, st := range r.tensors {
		if st.mapped {
			n++
		}
	}
	return n
}

// Install binds every ABI function variable to this runtime and marks the
// ABI loaded. The returned func restores the previous bindings.
func (r *Runtime) Install() func() {
	prev := abiSnapshot{
		bound:   nnabi.Loaded(),
		library: nnabi.Library(),

		strError: nnabi.StrError,

		engineInit:    nnabi.EngineInit,
		engineLoad:    nnabi.EngineLoad,
		engineRelease: nnabi.EngineRelease,
		engineName:    nnabi.EngineName,
		engineVersion: nnabi.EngineVersion,

		contextInit:        nnabi.ContextInit,
		contextRelease:     nnabi.ContextRelease,
		contextEngine:      nnabi.ContextEngine,
		contextModel:       nnabi.ContextModel,
		contextModelLoad:   nnabi.ContextModelLoad,
		contextModelUnload: nnabi.ContextModelUnload,
		contextTensor:      nnabi.ContextTensor,
		contextTensorIndex: nnabi.ContextTensorIndex,
		contextRun:         nnabi.ContextRun,

		modelName:            nnabi.ModelName,
		modelLabelCount:      nnabi.ModelLabelCount,
		modelLabel:           nnabi.ModelLabel,
		modelInputs:          nnabi.ModelInputs,
		modelOutputs:         nnabi.ModelOutputs,
		modelLayerCount:      nnabi.ModelLayerCount,
		modelLayerName:       nnabi.ModelLayerName,
		modelLayerType:       nnabi.ModelLayerType,
		modelLayerDatatype:   nnabi.ModelLayerDatatype,
		modelLayerDatatypeID: nnabi.ModelLayerDatatypeID,
		modelLayerZeros:      nnabi.ModelLayerZeros,
		modelLayerScales:     nnabi.ModelLayerScales,
		modelLayerAxis:       nnabi.ModelLayerAxis,
		modelLayerShape:      nnabi.ModelLayerShape,
		modelLayerLookup:     nnabi.ModelLayerLookup,

		tensorInit:      nnabi.TensorInit,
		tensorRelease:   nnabi.TensorRelease,
		tensorEngine:    nnabi.TensorEngine,
		tensorAlloc:     nnabi.TensorAlloc,
		tensorType:      nnabi.TensorType,
		tensorSetType:   nnabi.TensorSetType,
		tensorShape:     nnabi.TensorShape,
		tensorDims:      nnabi.TensorDims,
		tensorVolume:    nnabi.TensorVolume,
		tensorSize:      nnabi.TensorSize,
		tensorAxis:      nnabi.TensorAxis,
		tensorZeros:     nnabi.TensorZeros,
		tensorSetScales: nnabi.TensorSetScales,
		tensorScales:    nnabi.TensorScales,
		tensorDequant:   nnabi.TensorDequant,
		tensorMapRO:     nnabi.TensorMapRO,
		tensorMapRW:     nnabi.TensorMapRW,
		tensorUnmap:     nnabi.TensorUnmap,
	}

	nnabi.StrError = r.strError

	nnabi.EngineInit = r.engineInit
	nnabi.EngineLoad = r.engineLoad
	nnabi.EngineRelease = r.engineRelease
	nnabi.EngineName = r.engineName
	nnabi.EngineVersion = r.engineVersion

	nnabi.ContextInit = r.contextInit
	nnabi.ContextRelease = r.contextRelease
	nnabi.ContextEngine = r.contextEngine
	nnabi.ContextModel = r.contextModel
	nnabi.ContextModelLoad = r.contextModelLoad
	nnabi.ContextModelUnload = r.contextModelUnload
	nnabi.ContextTensor = r.contextTensor
	nnabi.ContextTensorIndex = r.contextTensorIndex
	nnabi.ContextRun = r.contextRun

	nnabi.ModelName = r.modelName
	nnabi.ModelLabelCount = r.modelLabelCount
	nnabi.ModelLabel = r.modelLabel
	nnabi.ModelInputs = r.modelInputs
	nnabi.ModelOutputs = r.modelOutputs
	nnabi.ModelLayerCount = r.modelLayerCount
	nnabi.ModelLayerName = r.modelLayerName
	nnabi.ModelLayerType = r.modelLayerType
	nnabi.ModelLayerDatatype = r.modelLayerDatatype
	nnabi.ModelLayerDatatypeID = r.modelLayerDatatypeID
	nnabi.ModelLayerZeros = r.modelLayerZeros
	nnabi.ModelLayerScales = r.modelLayerScales
	nnabi.ModelLayerAxis = r.modelLayerAxis
	nnabi.ModelLayerShape = r.modelLayerShape
	nnabi.ModelLayerLookup = r.modelLayerLookup

	nnabi.TensorInit = r.tensorInit
	nnabi.TensorRelease = r.tensorRelease
	nnabi.TensorEngine = r.tensorEngine
	nnabi.TensorAlloc = r.tensorAlloc
	nnabi.TensorType = r.tensorType
	nnabi.TensorSetType = r.tensorSetType
	nnabi.TensorShape = r.tensorShape
	nnabi.TensorDims = r.tensorDims
	nnabi.TensorVolume = r.tensorVolume
	nnabi.TensorSize = r.tensorSize
	nnabi.TensorAxis = r.tensorAxis
	nnabi.TensorZeros = r.tensorZeros
	nnabi.TensorSetScales = r.tensorSetScales
	nnabi.TensorScales = r.tensorScales
	nnabi.TensorDequant = r.tensorDequant
	nnabi.TensorMapRO = r.tensorMapRO
	nnabi.TensorMapRW = r.tensorMapRW
	nnabi.TensorUnmap = r.tensorUnmap

	nnabi.MarkLoaded("rttest")
	return prev.restore
}

type abiSnapshot struct {
	bound   bool
	library string

	strError func(nnabi.Error) *byte

	engineInit    func(unsafe.Pointer) nnabi.Engine
	engineLoad    func(nnabi.Engine, string) nnabi.Error
	engineRelease func(nnabi.Engine)
	engineName    func(nnabi.Engine) *byte
	engineVersion func(nnabi.Engine) *byte

	contextInit        func(nnabi.Engine, uintptr, unsafe.Pointer, uintptr, unsafe.Pointer) nnabi.Context
	contextRelease     func(nnabi.Context)
	contextEngine      func(nnabi.Context) nnabi.Engine
	contextModel       func(nnabi.Context) nnabi.Model
	contextModelLoad   func(nnabi.Context, uintptr, *byte) nnabi.Error
	contextModelUnload func(nnabi.Context) nnabi.Error
	contextTensor      func(nnabi.Context, string) nnabi.Tensor
	contextTensorIndex func(nnabi.Context, int32) nnabi.Tensor
	contextRun         func(nnabi.Context) nnabi.Error

	modelName            func(nnabi.Model) *byte
	modelLabelCount      func(nnabi.Model) int32
	modelLabel           func(nnabi.Model, int32) *byte
	modelInputs          func(nnabi.Model, *uintptr) *uint32
	modelOutputs         func(nnabi.Model, *uintptr) *uint32
	modelLayerCount      func(nnabi.Model) int32
	modelLayerName       func(nnabi.Model, int32) *byte
	modelLayerType       func(nnabi.Model, int32) *byte
	modelLayerDatatype   func(nnabi.Model, int32) *byte
	modelLayerDatatypeID func(nnabi.Model, int32) int32
	modelLayerZeros      func(nnabi.Model, int32, *uintptr) *int32
	modelLayerScales     func(nnabi.Model, int32, *uintptr) *float32
	modelLayerAxis       func(nnabi.Model, int32) int32
	modelLayerShape      func(nnabi.Model, int32, *int32) *int32
	modelLayerLookup     func(nnabi.Model, string) int32

	tensorInit      func(unsafe.Pointer, nnabi.Engine) nnabi.Tensor
	tensorRelease   func(nnabi.Tensor)
	tensorEngine    func(nnabi.Tensor) nnabi.Engine
	tensorAlloc     func(nnabi.Tensor, int32, int32, *int32) nnabi.Error
	tensorType      func(nnabi.Tensor) int32
	tensorSetType   func(nnabi.Tensor, int32) nnabi.Error
	tensorShape     func(nnabi.Tensor) *int32
	tensorDims      func(nnabi.Tensor) int32
	tensorVolume    func(nnabi.Tensor) int32
	tensorSize      func(nnabi.Tensor) int32
	tensorAxis      func(nnabi.Tensor) int32
	tensorZeros     func(nnabi.Tensor, *uintptr) *int32
	tensorSetScales func(nnabi.Tensor, int32, *float32) nnabi.Error
	tensorScales    func(nnabi.Tensor, *uintptr) *float32
	tensorDequant   func(nnabi.Tensor, nnabi.Tensor) nnabi.Error
	tensorMapRO     func(nnabi.Tensor) unsafe.Pointer
	tensorMapRW     func(nnabi.Tensor) unsafe.Pointer
	tensorUnmap     func(nnabi.Tensor)
}

func (s *abiSnapshot) restore() {
	nnabi.StrError = s.strError

	nnabi.EngineInit = s.engineInit
	nnabi.EngineLoad = s.engineLoad
	nnabi.EngineRelease = s.engineRelease
	nnabi.EngineName = s.engineName
	nnabi.EngineVersion = s.engineVersion

	nnabi.ContextInit = s.contextInit
	nnabi.ContextRelease = s.contextRelease
	nnabi.ContextEngine = s.contextEngine
	nnabi.ContextModel = s.contextModel
	nnabi.ContextModelLoad = s.contextModelLoad
	nnabi.ContextModelUnload = s.contextModelUnload
	nnabi.ContextTensor = s.contextTensor
	nnabi.ContextTensorIndex = s.contextTensorIndex
	nnabi.ContextRun = s.contextRun

	nnabi.ModelName = s.modelName
	nnabi.ModelLabelCount = s.modelLabelCount
	nnabi.ModelLabel = s.modelLabel
	nnabi.ModelInputs = s.modelInputs
	nnabi.ModelOutputs = s.modelOutputs
	nnabi.ModelLayerCount = s.modelLayerCount
	nnabi.ModelLayerName = s.modelLayerName
	nnabi.ModelLayerType = s.modelLayerType
	nnabi.ModelLayerDatatype = s.modelLayerDatatype
	nnabi.ModelLayerDatatypeID = s.modelLayerDatatypeID
	nnabi.ModelLayerZeros = s.modelLayerZeros
	nnabi.ModelLayerScales = s.modelLayerScales
	nnabi.ModelLayerAxis = s.modelLayerAxis
	nnabi.ModelLayerShape = s.modelLayerShape
	nnabi.ModelLayerLookup = s.modelLayerLookup

	nnabi.TensorInit = s.tensorInit
	nnabi.TensorRelease = s.tensorRelease
	nnabi.TensorEngine = s.tensorEngine
	nnabi.TensorAlloc = s.tensorAlloc
	nnabi.TensorType = s.tensorType
	nnabi.TensorSetType = s.tensorSetType
	nnabi.TensorShape = s.tensorShape
	nnabi.TensorDims = s.tensorDims
	nnabi.TensorVolume = s.tensorVolume
	nnabi.TensorSize = s.tensorSize
	nnabi.TensorAxis = s.tensorAxis
	nnabi.TensorZeros = s.tensorZeros
	nnabi.TensorSetScales = s.tensorSetScales
	nnabi.TensorScales = s.tensorScales
	nnabi.TensorDequant = s.tensorDequant
	nnabi.TensorMapRO = s.tensorMapRO
	nnabi.TensorMapRW = s.tensorMapRW
	nnabi.TensorUnmap = s.tensorUnmap

	if s.bound {
		nnabi.MarkLoaded(s.library)
	} else {
		nnabi.MarkUnloaded()
	}
}
