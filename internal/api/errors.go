package api

import (
	"errors"
	"fmt"
)

var (
	// ErrBadInput marks request validation failures.
	ErrBadInput = errors.New("invalid request")
	// ErrMismatch marks inputs incompatible with the tensor they target.
	ErrMismatch = errors.New("input mismatch")
)

type requestError struct {
	msg  string
	kind error
}

func (e *requestError) Error() string {
	return e.msg
}

func (e *requestError) Unwrap() error {
	return e.kind
}

func badInputf(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...), kind: ErrBadInput}
}

func mismatchf(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...), kind: ErrMismatch}
}
