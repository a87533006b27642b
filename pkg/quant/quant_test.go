package quant

import (
	"slices"
	"testing"
)

func TestParamsValidate(t *testing.T) {
	shape := []int32{3, 2}
	tests := []struct {
		name string
		p    Params
		ok   bool
	}{
		{"single scale", Params{Scales: []float32{0.5}}, true},
		{"per channel", Params{Axis: 0, Scales: []float32{1, 2, 3}}, true},
		{"per channel with zeros", Params{Axis: 0, Scales: []float32{1, 2, 3}, Zeros: []int32{0, 1, 2}}, true},
		{"shared zero", Params{Scales: []float32{0.5}, Zeros: []int32{4}}, true},
		{"no scales", Params{}, false},
		{"zeros mismatch", Params{Axis: 0, Scales: []float32{1, 2, 3}, Zeros: []int32{0, 1}}, false},
		{"axis out of range", Params{Axis: 2, Scales: []float32{1, 2}}, false},
		{"scales mismatch", Params{Axis: 1, Scales: []float32{1, 2, 3}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate(shape)
			if tt.ok && err != nil {
				t.Fatalf("validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("invalid parameters accepted")
			}
		})
	}
}

func TestParamsAt(t *testing.T) {
	shape := []int32{2, 3}

	p := Params{Axis: 0, Scales: []float32{0.5, 0.25}, Zeros: []int32{1, 2}}
	wantScales := []float32{0.5, 0.5, 0.5, 0.25, 0.25, 0.25}
	wantZeros := []int32{1, 1, 1, 2, 2, 2}
	for i := range wantScales {
		s, z := p.At(shape, i)
		if s != wantScales[i] || z != wantZeros[i] {
			t.Fatalf("at %d = %v, %d; want %v, %d", i, s, z, wantScales[i], wantZeros[i])
		}
	}

	p = Params{Axis: 1, Scales: []float32{1, 2, 4}}
	for i, want := range []float32{1, 2, 4, 1, 2, 4} {
		s, z := p.At(shape, i)
		if s != want || z != 0 {
			t.Fatalf("at %d = %v, %d; want %v, 0", i, s, z, want)
		}
	}

	// A shared zero point applies to every channel.
	p = Params{Scales: []float32{2}, Zeros: []int32{7}}
	if s, z := p.At(shape, 5); s != 2 || z != 7 {
		t.Fatalf("at 5 = %v, %d; want 2, 7", s, z)
	}
}

func TestDequantizeInt8(t *testing.T) {
	shape := []int32{2, 2}
	src := []int8{-8, -4, 4, 8}
	dst := make([]float32, 4)
	p := Params{Axis: 0, Scales: []float32{0.5, 0.25}, Zeros: []int32{0, 4}}

	if err := DequantizeInt8(dst, src, p, shape); err != nil {
		t.Fatalf("dequantize: %v", err)
	}
	want := []float32{-4, -2, 0, 1}
	if !slices.Equal(dst, want) {
		t.Fatalf("dst = %v, want %v", dst, want)
	}

	if err := DequantizeInt8(dst[:3], src, p, shape); err == nil {
		t.Fatal("short destination accepted")
	}
	if err := DequantizeInt8(dst, src[:3], p, shape); err == nil {
		t.Fatal("short source accepted")
	}
	if err := DequantizeInt8(dst, src, Params{}, shape); err == nil {
		t.Fatal("missing scales accepted")
	}
}

func TestDequantizeUint8(t *testing.T) {
	shape := []int32{4}
	src := []uint8{0, 128, 255, 64}
	dst := make([]float32, 4)
	p := Params{Scales: []float32{0.5}, Zeros: []int32{128}}

	if err := DequantizeUint8(dst, src, p, shape); err != nil {
		t.Fatalf("dequantize: %v", err)
	}
	want := []float32{-64, 0, 63.5, -32}
	if !slices.Equal(dst, want) {
		t.Fatalf("dst = %v, want %v", dst, want)
	}
}

func TestVolume(t *testing.T) {
	if v := Volume([]int32{2, 3, 4}); v != 24 {
		t.Fatalf("volume = %d, want 24", v)
	}
	if v := Volume(nil); v != 1 {
		t.Fatalf("volume of no dims = %d, want 1", v)
	}
}
