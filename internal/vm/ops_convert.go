package vm

import (
	"strconv"
	"strings"

	"fun/internal/bytecode"
	"fun/internal/value"
)

// wsCutset is the whitespace strtoll/TO_NUMBER tolerates around a decimal
// run, matching the original implementation's explicit space/tab/CR/LF set.
const wsCutset = " \t\r\n"

// parseDecimalTolerant mirrors TO_NUMBER's String case (§4.2): skip leading
// whitespace, parse an optional-sign decimal run, skip trailing whitespace;
// anything left over (or no digits at all) yields 0 rather than an error.
func parseDecimalTolerant(s string) int64 {
	s = strings.TrimLeft(s, wsCutset)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digitsStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digitsStart {
		return 0
	}
	if strings.TrimLeft(s[i:], wsCutset) != "" {
		return 0
	}
	n, _ := strconv.ParseInt(s[:i], 10, 64)
	return n
}

func (vm *VM) execConvert(in bytecode.Instruction) error {
	switch in.Op {
	case bytecode.OpCast:
		return vm.opCast(in.Operand)
	case bytecode.OpUClamp:
		return vm.opUClamp(in.Operand)
	case bytecode.OpSClamp:
		return vm.opSClamp(in.Operand)
	case bytecode.OpTypeof:
		// typeof(expr) emits this with operand hardcoded to 0, not argc;
		// exactly one value is always on the stack, so pop it directly.
		return vm.opTypeof()
	}

	args, err := vm.popArgs(in.Operand)
	if err != nil {
		return err
	}
	switch in.Op {
	case bytecode.OpToNumber:
		return vm.opToNumber(args)
	case bytecode.OpToString:
		return vm.opToString(args)
	default:
		releaseAll(args...)
		return unknownOpError(in)
	}
}

func (vm *VM) opToNumber(args []value.Value) error {
	if len(args) != 1 {
		releaseAll(args...)
		return resourceError("to_number: expects 1 argument, got %d", len(args))
	}
	v := args[0]
	defer v.Release()
	switch v.Kind {
	case value.KindInt:
		return vm.push(v.Clone())
	case value.KindString:
		return vm.push(value.Int(parseDecimalTolerant(v.S)))
	default:
		// Float included: the original only special-cases Int and String,
		// everything else (Float, Bool, Nil, Array, Map, Function) yields 0.
		return vm.push(value.Int(0))
	}
}

func (vm *VM) opToString(args []value.Value) error {
	if len(args) != 1 {
		releaseAll(args...)
		return resourceError("to_string: expects 1 argument, got %d", len(args))
	}
	v := args[0]
	defer v.Release()
	return vm.push(value.String(v.ToString()))
}

func (vm *VM) opTypeof() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	defer v.Release()
	return vm.push(value.String(kindName(v)))
}

// opCast implements the fixed target-x-source coercion table (§4.2): the
// operand is a constant-pool index holding the target type name.
func (vm *VM) opCast(constIdx int32) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	defer v.Release()

	target, ok := vm.frame().Chunk.Constants[constIdx].(value.Value)
	if !ok || target.Kind != value.KindString {
		return resourceError("CAST: malformed target-type constant")
	}

	switch target.S {
	case "number":
		switch v.Kind {
		case value.KindInt:
			return vm.push(v.Clone())
		case value.KindString:
			return vm.push(value.Int(parseDecimalTolerant(v.S)))
		default:
			return vm.push(value.Int(0))
		}
	case "string":
		return vm.push(value.String(v.ToString()))
	case "boolean":
		return vm.push(value.Bool(v.Truthy()))
	case "array":
		if v.Kind == value.KindArray {
			return vm.push(v.Clone())
		}
		return vm.push(value.FromArray(value.NewArray(v.Clone())))
	case "map":
		if v.Kind == value.KindMap {
			return vm.push(v.Clone())
		}
		return vm.push(value.FromMap(value.NewMap()))
	case "nil":
		return vm.push(value.Nil())
	default:
		// Unknown target names produce Nil (§4.2 CAST).
		return vm.push(value.Nil())
	}
}

func maskBits(i int64, bits int32) int64 {
	if bits <= 0 || bits >= 64 {
		return i
	}
	mask := int64(1)<<uint(bits) - 1
	return i & mask
}

// opUClamp implements UCLAMP bits: mask to bits unsigned bits (§8 testable
// property 7).
func (vm *VM) opUClamp(bits int32) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	defer v.Release()
	if v.Kind != value.KindInt {
		return typeError("UCLAMP: expects Int, got %s", kindName(v))
	}
	return vm.push(value.Int(maskBits(v.I, bits)))
}

// opSClamp implements SCLAMP bits: mask then sign-extend if the top bit of
// the clamped width is set.
func (vm *VM) opSClamp(bits int32) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	defer v.Release()
	if v.Kind != value.KindInt {
		return typeError("SCLAMP: expects Int, got %s", kindName(v))
	}
	if bits <= 0 || bits >= 64 {
		return vm.push(value.Int(v.I))
	}
	masked := maskBits(v.I, bits)
	signBit := int64(1) << uint(bits-1)
	if masked&signBit != 0 {
		masked -= int64(1) << uint(bits)
	}
	return vm.push(value.Int(masked))
}
