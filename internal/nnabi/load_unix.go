//go:build darwin || freebsd || linux

package nnabi

import (
	"runtime"

	"github.com/ebitengine/purego"
)

var defaultLibrary = func() string {
	if runtime.GOOS == "darwin" {
		return "libdeepview-rt.dylib"
	}
	return "libdeepview-rt.so"
}()

func dlopen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
