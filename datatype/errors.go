package datatype

import "fmt"

// CoercionError reports a raw value that cannot be represented in the declared datatype.
type CoercionError struct {
	Datatype Datatype
	Input    any
	Expected string
	Err      error
}

func (e *CoercionError) Error() string {
	msg := fmt.Sprintf("cannot coerce %#v to %s: expected %s", e.Input, e.Datatype, e.Expected)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

func coercionError(dt Datatype, input any, expected string, err error) *CoercionError {
	return &CoercionError{Datatype: dt, Input: input, Expected: expected, Err: err}
}
