// Package errors implements the taxonomy of compile-time and runtime errors
// described in spec §7: parse, type, bounds, arithmetic, and resource
// errors, each annotated with enough source/VM context to reproduce the
// diagnostic the spec requires.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the abstract categories from §7's taxonomy table.
type Kind string

const (
	ParseError      Kind = "ParseError"
	TypeErrorKind   Kind = "TypeError"
	BoundsError     Kind = "BoundsError"
	ArithmeticError Kind = "ArithmeticError"
	ResourceError   Kind = "ResourceError"
)

// CompileError is a parse-time failure: (line, column, message), produced
// without any bytecode (§4.1.8 / §7).
type CompileError struct {
	Message string
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	return errors.Errorf("%d:%d: %s", e.Line, e.Column, e.Message).Error()
}

func NewCompileError(message string, line, column int) *CompileError {
	return &CompileError{Message: message, Line: line, Column: column}
}

// RuntimeError is a fatal VM failure, annotated with the file, line, opcode
// and instruction pointer of the failing instruction when a frame is active
// (§4.5).
type RuntimeError struct {
	Kind    Kind
	Message string
	File    string
	Line    int
	Op      string
	IP      int
	cause   error
}

func (e *RuntimeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (at %s:%d, op=%s, ip=%d)", e.Kind, e.Message, e.File, e.Line, e.Op, e.IP)
}

func (e *RuntimeError) Unwrap() error { return e.cause }

// NewRuntimeError builds a RuntimeError without location context yet; the
// VM fetch-execute loop fills File/Line/Op/IP in via WithLocation before the
// error leaves that loop, matching §4.5's annotation contract.
func NewRuntimeError(kind Kind, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message}
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func (e *RuntimeError) WithLocation(file string, line int, op string, ip int) *RuntimeError {
	e.File = file
	e.Line = line
	e.Op = op
	e.IP = ip
	return e
}
