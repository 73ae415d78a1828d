// Package errors provides coded errors shared by every edgebench package.
package errors

import (
	"errors"
	"fmt"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func (e *appError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.code.Message()
	}

	switch {
	case e.data != nil:
		return fmt.Sprintf("%s: %v", msg, e.data)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", msg, e.err)
	default:
		return msg
	}
}

func (e *appError) Code() ErrorCode { return e.code }
func (e *appError) Data() any       { return e.data }
func (e *appError) Unwrap() error   { return e.err }

func (e *appError) WithMessage(msg string) Error {
	cp := *e
	cp.message = msg
	return &cp
}

func (e *appError) WithData(data any) Error {
	cp := *e
	cp.data = data
	return &cp
}

type factory struct{}

func (factory) New(code ErrorCode) Error { return &appError{code: code} }

func (factory) Wrap(code ErrorCode, err error) Error { return &appError{code: code, err: err} }

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{code: code, message: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &appError{code: code, data: data}
}

// New returns the error factory.
func New() Factory {
	return factory{}
}

// CodeOf returns the code of the outermost coded error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.Code(), true
	}
	return "", false
}

// HasCode reports whether err, or any error it wraps, carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code() == code {
			return true
		}
		err = appErr.Unwrap()
	}
	return false
}
