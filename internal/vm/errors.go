package vm

import (
	"fmt"

	"fun/internal/bytecode"
	vmerrors "fun/internal/errors"
	"fun/internal/value"
)

func unknownOpError(in bytecode.Instruction) error {
	return vmerrors.NewRuntimeError(vmerrors.ResourceError, fmt.Sprintf("unimplemented opcode %s", in.Op))
}

func typeError(format string, args ...interface{}) error {
	return vmerrors.NewRuntimeError(vmerrors.TypeErrorKind, fmt.Sprintf(format, args...))
}

func boundsError(format string, args ...interface{}) error {
	return vmerrors.NewRuntimeError(vmerrors.BoundsError, fmt.Sprintf(format, args...))
}

func arithError(format string, args ...interface{}) error {
	return vmerrors.NewRuntimeError(vmerrors.ArithmeticError, fmt.Sprintf(format, args...))
}

func resourceError(format string, args ...interface{}) error {
	return vmerrors.NewRuntimeError(vmerrors.ResourceError, fmt.Sprintf(format, args...))
}

// kindName is a small helper for error messages that want the user-facing
// type name rather than the Go zero value's String().
func kindName(v value.Value) string { return v.Kind.String() }
