package api

import (
	"slices"

	"github.com/x448/float16"

	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engine  string `json:"engine,omitempty"`
	Model   string `json:"model,omitempty"`
}

type ModelInfo struct {
	Name       string   `json:"name"`
	LayerCount int      `json:"layer_count"`
	Labels     []string `json:"labels,omitempty"`
	Inputs     []int    `json:"inputs"`
	Outputs    []int    `json:"outputs"`
}

type LayerInfo struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Datatype string    `json:"datatype"`
	Shape    []int32   `json:"shape"`
	Axis     *int      `json:"axis,omitempty"`
	Scales   []float32 `json:"scales,omitempty"`
	Zeros    []int32   `json:"zeros,omitempty"`
}

type TensorPayload struct {
	Name     string  `json:"name"`
	Datatype string  `json:"datatype"`
	Shape    []int32 `json:"shape"`
	Size     int     `json:"size"`
	Data     any     `json:"data"`
}

type LayersResponse struct {
	Layers []LayerInfo `json:"layers"`
}

type RunRequest struct {
	Inputs map[string][]float64 `json:"inputs"`
}

type RunResponse struct {
	Outputs   []TensorPayload `json:"outputs"`
	ElapsedMS float64         `json:"elapsed_ms"`
}

type LoadModelRequest struct {
	Path string `json:"path"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func modelInfo(m *deepviewrt.Model) (ModelInfo, error) {
	name, err := m.Name()
	if err != nil {
		return ModelInfo{}, err
	}
	layers, err := m.LayerCount()
	if err != nil {
		return ModelInfo{}, err
	}
	inputs, err := m.Inputs()
	if err != nil {
		return ModelInfo{}, err
	}
	outputs, err := m.Outputs()
	if err != nil {
		return ModelInfo{}, err
	}
	info := ModelInfo{
		Name:       name,
		LayerCount: layers,
		Inputs:     inputs,
		Outputs:    outputs,
	}
	// Models without labels report an error, not an empty list.
	if n, err := m.LabelCount(); err == nil {
		info.Labels = make([]string, 0, n)
		for i := 0; i < n; i++ {
			label, err := m.Label(i)
			if err != nil {
				return ModelInfo{}, err
			}
			info.Labels = append(info.Labels, label)
		}
	}
	return info, nil
}

func layerInfo(m *deepviewrt.Model, index int) (LayerInfo, error) {
	name, err := m.LayerName(index)
	if err != nil {
		return LayerInfo{}, err
	}
	op, err := m.LayerType(index)
	if err != nil {
		return LayerInfo{}, err
	}
	datatype, err := m.LayerDatatype(index)
	if err != nil {
		return LayerInfo{}, err
	}
	shape, err := m.LayerShape(index)
	if err != nil {
		return LayerInfo{}, err
	}
	li := LayerInfo{
		Index:    index,
		Name:     name,
		Type:     op,
		Datatype: datatype,
		Shape:    shape,
	}
	// Quantization parameters exist only on quantized layers.
	if scales, err := m.LayerScales(index); err == nil {
		li.Scales = scales
		if zeros, err := m.LayerZeros(index); err == nil {
			li.Zeros = zeros
		}
		if axis, err := m.LayerAxis(index); err == nil {
			li.Axis = &axis
		}
	}
	return li, nil
}

// tensorPayload maps the tensor read-only, copies its elements out, and
// unmaps before returning.
func tensorPayload(name string, t *deepviewrt.Tensor) (TensorPayload, error) {
	tt, err := t.Type()
	if err != nil {
		return TensorPayload{}, err
	}
	shape, err := t.Shape()
	if err != nil {
		return TensorPayload{}, err
	}
	view, err := t.MapRead()
	if err != nil {
		return TensorPayload{}, err
	}
	data := dataJSON(view.Data())
	if err := view.Close(); err != nil {
		return TensorPayload{}, err
	}
	return TensorPayload{
		Name:     name,
		Datatype: tt.String(),
		Shape:    shape[:t.Dims()],
		Size:     int(t.Size()),
		Data:     data,
	}, nil
}

// dataJSON converts mapped elements into a JSON-renderable value. View
// slices alias runtime memory, so every variant is copied out. Raw bytes
// render as base64, uint8 and float16 elements as numbers.
func dataJSON(d deepviewrt.MappedData) any {
	switch v := d.(type) {
	case deepviewrt.RawData:
		return slices.Clone(v)
	case deepviewrt.StringData:
		return string(v)
	case deepviewrt.Int8Data:
		return slices.Clone(v)
	case deepviewrt.Uint8Data:
		out := make([]int, len(v))
		for i, b := range v {
			out[i] = int(b)
		}
		return out
	case deepviewrt.Int16Data:
		return slices.Clone(v)
	case deepviewrt.Uint16Data:
		return slices.Clone(v)
	case deepviewrt.Int32Data:
		return slices.Clone(v)
	case deepviewrt.Uint32Data:
		return slices.Clone(v)
	case deepviewrt.Int64Data:
		return slices.Clone(v)
	case deepviewrt.Uint64Data:
		return slices.Clone(v)
	case deepviewrt.Float16Data:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = f.Float32()
		}
		return out
	case deepviewrt.Float32Data:
		return slices.Clone(v)
	case deepviewrt.Float64Data:
		return slices.Clone(v)
	}
	return nil
}

// fillView writes values through a mapped view, converting to the
// tensor's element type. Raw and string tensors do not take numeric
// input.
func fillView(d deepviewrt.MappedData, values []float64) error {
	switch dst := d.(type) {
	case deepviewrt.Int8Data:
		for i, v := range values {
			dst[i] = int8(v)
		}
	case deepviewrt.Uint8Data:
		for i, v := range values {
			dst[i] = uint8(v)
		}
	case deepviewrt.Int16Data:
		for i, v := range values {
			dst[i] = int16(v)
		}
	case deepviewrt.Uint16Data:
		for i, v := range values {
			dst[i] = uint16(v)
		}
	case deepviewrt.Int32Data:
		for i, v := range values {
			dst[i] = int32(v)
		}
	case deepviewrt.Uint32Data:
		for i, v := range values {
			dst[i] = uint32(v)
		}
	case deepviewrt.Int64Data:
		for i, v := range values {
			dst[i] = int64(v)
		}
	case deepviewrt.Uint64Data:
		for i, v := range values {
			dst[i] = uint64(v)
		}
	case deepviewrt.Float16Data:
		for i, v := range values {
			dst[i] = float16.Fromfloat32(float32(v))
		}
	case deepviewrt.Float32Data:
		for i, v := range values {
			dst[i] = float32(v)
		}
	case deepviewrt.Float64Data:
		copy(dst, values)
	default:
		return mismatchf("layer does not accept numeric input")
	}
	return nil
}
