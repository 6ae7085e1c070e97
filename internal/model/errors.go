package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies core-visible failures so the control surface can
// map them to HTTP status codes.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindUnreachableServer
	KindExternalTool
	KindStore
	KindTimeout
)

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func UnreachableServer(err error) *Error {
	return &Error{Kind: KindUnreachableServer, Msg: "server unreachable", Err: err}
}

func ExternalTool(msg string, err error) *Error {
	return &Error{Kind: KindExternalTool, Msg: msg, Err: err}
}

func StoreFailure(err error) *Error {
	return &Error{Kind: KindStore, Msg: "job store failure", Err: err}
}

func Timeout(msg string) *Error {
	return &Error{Kind: KindTimeout, Msg: msg}
}

func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of an error; unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
