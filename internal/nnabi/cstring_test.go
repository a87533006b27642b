package nnabi

import "testing"

func TestGoString(t *testing.T) {
	buf := []byte("deepview-rt\x00trailing")
	s, err := GoString(&buf[0])
	if err != nil || s != "deepview-rt" {
		t.Fatalf("gostring = %q, %v; want deepview-rt", s, err)
	}

	empty := []byte{0}
	s, err = GoString(&empty[0])
	if err != nil || s != "" {
		t.Fatalf("gostring = %q, %v; want empty", s, err)
	}

	if _, err := GoString(nil); err == nil {
		t.Fatal("nil pointer accepted")
	}

	bad := []byte{0xff, 0xfe, 0x00}
	if _, err := GoString(&bad[0]); err == nil {
		t.Fatal("invalid utf-8 accepted")
	}
}
