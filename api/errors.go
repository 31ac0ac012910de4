// Package api
// Author: momentics <momentics@gmail.com>
//
// Error kinds raised by the protocol engine and its collaborators.
// None of them is fatal to the process; callers log and continue.

package api

import (
	"errors"
	"fmt"
)

// Protocol engine error kinds.
var (
	ErrMalformedFrame        = errors.New("malformed frame")
	ErrMissingHandshakeKey   = errors.New("missing Sec-WebSocket-Key header")
	ErrUnexpectedPongShape   = errors.New("unexpected pong frame length")
	ErrUnexpectedPongPayload = errors.New("unexpected pong payload")
	ErrUnclassifiedFrame     = errors.New("unclassified frame")
	ErrWriteFailure          = errors.New("write failure")
	ErrTransportClosed       = errors.New("transport is closed")
)

// ErrorCode enumerates the error kinds above for structured reporting.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeMalformedFrame
	ErrCodeMissingHandshakeKey
	ErrCodeUnexpectedPongShape
	ErrCodeUnexpectedPongPayload
	ErrCodeUnclassifiedFrame
	ErrCodeWriteFailure
	ErrCodeTransportClosed
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeMalformedFrame:        ErrMalformedFrame,
	ErrCodeMissingHandshakeKey:   ErrMissingHandshakeKey,
	ErrCodeUnexpectedPongShape:   ErrUnexpectedPongShape,
	ErrCodeUnexpectedPongPayload: ErrUnexpectedPongPayload,
	ErrCodeUnclassifiedFrame:     ErrUnclassifiedFrame,
	ErrCodeWriteFailure:          ErrWriteFailure,
	ErrCodeTransportClosed:       ErrTransportClosed,
}

// String returns the short name used in log attributes.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeMalformedFrame:
		return "malformed_frame"
	case ErrCodeMissingHandshakeKey:
		return "missing_handshake_key"
	case ErrCodeUnexpectedPongShape:
		return "unexpected_pong_shape"
	case ErrCodeUnexpectedPongPayload:
		return "unexpected_pong_payload"
	case ErrCodeUnclassifiedFrame:
		return "unclassified_frame"
	case ErrCodeWriteFailure:
		return "write_failure"
	case ErrCodeTransportClosed:
		return "transport_closed"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes both the sentinel for Code and the wrapped cause, so
// errors.Is matches either.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := codeSentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap creates a structured error of the given code around cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf reports the ErrorCode carried by err, matching sentinels as well
// as *Error values anywhere in the chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for code, s := range codeSentinels {
		if errors.Is(err, s) {
			return code
		}
	}
	return ErrCodeOK
}
