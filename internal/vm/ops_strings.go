package vm

import (
	"strings"

	"fun/internal/bytecode"
	"fun/internal/value"
)

func (vm *VM) execStrings(in bytecode.Instruction) error {
	args, err := vm.popArgs(in.Operand)
	if err != nil {
		return err
	}
	switch in.Op {
	case bytecode.OpSplit:
		return vm.opSplit(args)
	case bytecode.OpJoin:
		return vm.opJoin(args)
	case bytecode.OpSubstr:
		return vm.opSubstr(args)
	case bytecode.OpFind:
		return vm.opFind(args)
	default:
		releaseAll(args...)
		return unknownOpError(in)
	}
}

func (vm *VM) opSplit(args []value.Value) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("split: expects 2 arguments, got %d", len(args))
	}
	s, sep := args[0], args[1]
	defer releaseAll(s, sep)
	if s.Kind != value.KindString || sep.Kind != value.KindString {
		return typeError("split: expects (String, String)")
	}

	var parts []string
	if sep.S == "" {
		parts = make([]string, 0, len(s.S))
		for _, r := range s.S {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(s.S, sep.S)
	}
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return vm.push(value.FromArray(value.NewArray(out...)))
}

func (vm *VM) opJoin(args []value.Value) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("join: expects 2 arguments, got %d", len(args))
	}
	arr, sep := args[0], args[1]
	defer releaseAll(arr, sep)
	if arr.Kind != value.KindArray || sep.Kind != value.KindString {
		return typeError("join: expects (Array, String)")
	}
	items := arr.Arr.Items()
	parts := make([]string, len(items))
	for i, v := range items {
		parts[i] = v.ToString()
	}
	return vm.push(value.String(strings.Join(parts, sep.S)))
}

func (vm *VM) opSubstr(args []value.Value) error {
	if len(args) != 3 {
		releaseAll(args...)
		return resourceError("substr: expects 3 arguments, got %d", len(args))
	}
	s, start, length := args[0], args[1], args[2]
	defer releaseAll(s, start, length)
	if s.Kind != value.KindString || start.Kind != value.KindInt || length.Kind != value.KindInt {
		return typeError("substr: expects (String, Int, Int)")
	}

	runes := []rune(s.S)
	n := len(runes)
	lo := int(start.I)
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi := lo + int(length.I)
	if length.I < 0 {
		hi = lo
	}
	if hi > n {
		hi = n
	}
	if hi < lo {
		hi = lo
	}
	return vm.push(value.String(string(runes[lo:hi])))
}

func (vm *VM) opFind(args []value.Value) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("find: expects 2 arguments, got %d", len(args))
	}
	s, needle := args[0], args[1]
	defer releaseAll(s, needle)
	if s.Kind != value.KindString || needle.Kind != value.KindString {
		return typeError("find: expects (String, String)")
	}
	idx := strings.Index(s.S, needle.S)
	if idx < 0 {
		return vm.push(value.Int(-1))
	}
	return vm.push(value.Int(int64(len([]rune(s.S[:idx])))))
}
