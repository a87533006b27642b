package deepviewrt

import (
	"testing"

	"github.com/deepviewml/deepview-go/internal/rttest"
)

// installRuntime binds the ABI to a fresh in-process stub for one test.
// The function table is package state, so tests must not run in parallel.
func installRuntime(t *testing.T) *rttest.Runtime {
	t.Helper()
	r := rttest.New()
	r.RegisterPlugin("", rttest.Plugin{Name: "cpu", Version: "2.4.44"})
	t.Cleanup(r.Install())
	return r
}

// fixtureModel is a three layer graph: a float32 input, a per channel
// quantized int8 conv, and a float32 output wired as an identity of the
// input.
func fixtureModel() *rttest.Model {
	return &rttest.Model{
		Name:    "mobilenet-ssd",
		Labels:  []string{"background", "cat", "dog"},
		Inputs:  []uint32{0},
		Outputs: []uint32{2},
		Layers: []rttest.Layer{
			{
				Name:   "input",
				Op:     "input",
				TypeID: 11,
				Shape:  []int32{1, 4},
				Data:   make([]byte, 16),
			},
			{
				Name:   "conv1",
				Op:     "conv",
				TypeID: 2,
				Shape:  []int32{2, 4},
				Axis:   0,
				Zeros:  []int32{0, 16},
				Scales: []float32{0.5, 0.25},
				Data:   []byte{0x00, 0x01, 0x02, 0x03, 0x10, 0x20, 0x30, 0x40},
			},
			{
				Name:   "output",
				Op:     "softmax",
				TypeID: 11,
				Shape:  []int32{1, 4},
				Data:   make([]byte, 16),
			},
		},
	}
}

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	data, err := fixtureModel().Encode()
	if err != nil {
		t.Fatalf("encode fixture model: %v", err)
	}
	return data
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := NewContext(nil, 0, 0)
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func loadFixture(t *testing.T, c *Context) {
	t.Helper()
	if err := c.LoadModel(fixtureBytes(t)); err != nil {
		t.Fatalf("load model: %v", err)
	}
}

func newAllocedTensor(t *testing.T, tt TensorType, shape ...int32) *Tensor {
	t.Helper()
	tens, err := NewTensor(nil)
	if err != nil {
		t.Fatalf("new tensor: %v", err)
	}
	t.Cleanup(func() { _ = tens.Close() })
	if err := tens.Alloc(tt, shape...); err != nil {
		t.Fatalf("alloc %v %v: %v", tt, shape, err)
	}
	return tens
}
