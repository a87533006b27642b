//go:build windows

package nnabi

import "golang.org/x/sys/windows"

var defaultLibrary = "deepview-rt.dll"

func dlopen(path string) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	return uintptr(h), err
}
