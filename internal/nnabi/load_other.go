//go:build !darwin && !freebsd && !linux && !windows

package nnabi

import "errors"

var defaultLibrary = "libdeepview-rt.so"

var errUnsupported = errors.New("runtime loading not supported on this platform")

func dlopen(path string) (uintptr, error) {
	return 0, errUnsupported
}

func register(lib uintptr) error {
	return errUnsupported
}
