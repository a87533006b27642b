package nnabi

import (
	"errors"
	"strings"
	"unicode/utf8"
	"unsafe"
)

// GoString copies the NUL-terminated C string at p and validates it as
// UTF-8. p must stay valid for the duration of the call.
func GoString(p *byte) (string, error) {
	if p == nil {
		return "", errors.New("nnabi: nil string pointer")
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	s := unsafe.String(p, n)
	if !utf8.ValidString(s) {
		return "", errors.New("nnabi: string is not valid utf-8")
	}
	return strings.Clone(s), nil
}
