package compiler

import "errors"

var (
	errGlobalOverflow = errors.New("too many globals")
	errLocalOverflow  = errors.New("too many locals")
)
