package deepviewrt

import (
	"errors"
	"slices"
	"testing"
)

func newLoadedModel(t *testing.T) *Model {
	t.Helper()
	c := newTestContext(t)
	loadFixture(t, c)
	m, err := c.Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return m
}

func TestModelMetadata(t *testing.T) {
	installRuntime(t)
	m := newLoadedModel(t)

	name, err := m.Name()
	if err != nil || name != "mobilenet-ssd" {
		t.Fatalf("name = %q, %v; want mobilenet-ssd", name, err)
	}

	n, err := m.LabelCount()
	if err != nil || n != 3 {
		t.Fatalf("label count = %d, %v; want 3", n, err)
	}
	for i, want := range []string{"background", "cat", "dog"} {
		got, err := m.Label(i)
		if err != nil || got != want {
			t.Fatalf("label %d = %q, %v; want %q", i, got, err, want)
		}
	}
	if _, err := m.Label(3); err == nil {
		t.Fatal("no error for out of range label")
	}

	inputs, err := m.Inputs()
	if err != nil {
		t.Fatalf("inputs: %v", err)
	}
	if !slices.Equal(inputs, []int{0}) {
		t.Fatalf("inputs = %v, want [0]", inputs)
	}
	outputs, err := m.Outputs()
	if err != nil {
		t.Fatalf("outputs: %v", err)
	}
	if !slices.Equal(outputs, []int{2}) {
		t.Fatalf("outputs = %v, want [2]", outputs)
	}
}

func TestModelLayers(t *testing.T) {
	installRuntime(t)
	m := newLoadedModel(t)

	n, err := m.LayerCount()
	if err != nil || n != 3 {
		t.Fatalf("layer count = %d, %v; want 3", n, err)
	}

	tests := []struct {
		index    int
		name     string
		op       string
		datatype string
		id       TensorType
		shape    []int32
	}{
		{0, "input", "input", "float32", TypeF32, []int32{1, 4}},
		{1, "conv1", "conv", "int8", TypeI8, []int32{2, 4}},
		{2, "output", "softmax", "float32", TypeF32, []int32{1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := m.LayerName(tt.index)
			if err != nil || name != tt.name {
				t.Fatalf("name = %q, %v; want %q", name, err, tt.name)
			}
			op, err := m.LayerType(tt.index)
			if err != nil || op != tt.op {
				t.Fatalf("op = %q, %v; want %q", op, err, tt.op)
			}
			dt, err := m.LayerDatatype(tt.index)
			if err != nil || dt != tt.datatype {
				t.Fatalf("datatype = %q, %v; want %q", dt, err, tt.datatype)
			}
			id, err := m.LayerDatatypeID(tt.index)
			if err != nil || id != tt.id {
				t.Fatalf("datatype id = %v, %v; want %v", id, err, tt.id)
			}
			shape, err := m.LayerShape(tt.index)
			if err != nil {
				t.Fatalf("shape: %v", err)
			}
			if !slices.Equal(shape, tt.shape) {
				t.Fatalf("shape = %v, want %v", shape, tt.shape)
			}
		})
	}

	if _, err := m.LayerName(3); err == nil {
		t.Fatal("no error for out of range layer")
	}
	if _, err := m.LayerDatatypeID(3); err == nil {
		t.Fatal("no error for out of range datatype id")
	}
}

func TestModelLayerQuantization(t *testing.T) {
	installRuntime(t)
	m := newLoadedModel(t)

	zeros, err := m.LayerZeros(1)
	if err != nil {
		t.Fatalf("layer zeros: %v", err)
	}
	if !slices.Equal(zeros, []int32{0, 16}) {
		t.Fatalf("zeros = %v, want [0 16]", zeros)
	}

	scales, err := m.LayerScales(1)
	if err != nil {
		t.Fatalf("layer scales: %v", err)
	}
	if !slices.Equal(scales, []float32{0.5, 0.25}) {
		t.Fatalf("scales = %v, want [0.5 0.25]", scales)
	}

	axis, err := m.LayerAxis(1)
	if err != nil || axis != 0 {
		t.Fatalf("axis = %d, %v; want 0", axis, err)
	}
	if _, err := m.LayerAxis(3); err == nil {
		t.Fatal("no error for out of range axis index")
	}

	// Layers without quantization report errors, not empty values.
	if _, err := m.LayerZeros(0); err == nil {
		t.Fatal("no error for a layer without zero points")
	}
	if _, err := m.LayerScales(0); err == nil {
		t.Fatal("no error for a layer without scales")
	}
}

func TestModelLayerLookup(t *testing.T) {
	installRuntime(t)
	m := newLoadedModel(t)

	i, err := m.LayerLookup("conv1")
	if err != nil || i != 1 {
		t.Fatalf("lookup conv1 = %d, %v; want 1", i, err)
	}

	_, err = m.LayerLookup("spectre")
	if !errors.Is(err, ErrLayerNotFound) {
		t.Fatalf("err = %v, want ErrLayerNotFound", err)
	}
}
