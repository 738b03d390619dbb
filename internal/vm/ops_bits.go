package vm

import (
	"fun/internal/bytecode"
	"fun/internal/value"
)

// execBitwise implements BAND/BOR/BXOR/BNOT/SHL/SHR/ROL/ROR, all defined over
// unsigned 32-bit words (§4.2).
func (vm *VM) execBitwise(in bytecode.Instruction) error {
	if in.Op == bytecode.OpBNot {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		defer v.Release()
		if v.Kind != value.KindInt {
			return typeError("BNOT: expects Int, got %s", kindName(v))
		}
		return vm.push(value.Int(int64(^uint32(v.I))))
	}

	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	defer a.Release()
	defer b.Release()
	if a.Kind != value.KindInt || b.Kind != value.KindInt {
		return typeError("%s: expects Int operands, got %s and %s", in.Op, kindName(a), kindName(b))
	}
	ua, ub := uint32(a.I), uint32(b.I)
	shift := uint(ub & 31)

	switch in.Op {
	case bytecode.OpBAnd:
		return vm.push(value.Int(int64(ua & ub)))
	case bytecode.OpBOr:
		return vm.push(value.Int(int64(ua | ub)))
	case bytecode.OpBXor:
		return vm.push(value.Int(int64(ua ^ ub)))
	case bytecode.OpShl:
		return vm.push(value.Int(int64(ua << shift)))
	case bytecode.OpShr:
		return vm.push(value.Int(int64(ua >> shift)))
	case bytecode.OpRol:
		return vm.push(value.Int(int64(ua<<shift | ua>>(32-shift))))
	case bytecode.OpRor:
		return vm.push(value.Int(int64(ua>>shift | ua<<(32-shift))))
	default:
		return unknownOpError(in)
	}
}
