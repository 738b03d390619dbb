package vm

import (
	"fun/internal/bytecode"
	"fun/internal/value"
)

// execArith implements ADD/SUB/MUL/DIV/MOD, the relational/equality family,
// and the logical opcodes (§4.2, Open Question 1 mixed Int/Float promotion).
func (vm *VM) execArith(in bytecode.Instruction) error {
	switch in.Op {
	case bytecode.OpNot:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		t := v.Truthy()
		v.Release()
		return vm.push(boolAsInt(!t))

	case bytecode.OpAnd, bytecode.OpOr:
		// The compiler only ever emits these after its own short-circuit
		// jump logic has already reduced the operand to one value on the
		// stack (§4.1.4); their job here is just the truthy-to-1/0
		// normalization of that single remaining value.
		v, err := vm.pop()
		if err != nil {
			return err
		}
		t := v.Truthy()
		v.Release()
		return vm.push(boolAsInt(t))
	}

	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}

	switch in.Op {
	case bytecode.OpAdd:
		return vm.execAdd(a, b)
	case bytecode.OpSub:
		return vm.execNumeric(a, b, "SUB", func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case bytecode.OpMul:
		return vm.execNumeric(a, b, "MUL", func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	case bytecode.OpDiv:
		return vm.execDiv(a, b)
	case bytecode.OpMod:
		return vm.execMod(a, b)
	case bytecode.OpLt:
		return vm.execCompare(a, b, "LT", func(c int) bool { return c < 0 })
	case bytecode.OpLte:
		return vm.execCompare(a, b, "LTE", func(c int) bool { return c <= 0 })
	case bytecode.OpGt:
		return vm.execCompare(a, b, "GT", func(c int) bool { return c > 0 })
	case bytecode.OpGte:
		return vm.execCompare(a, b, "GTE", func(c int) bool { return c >= 0 })
	case bytecode.OpEq:
		eq := value.Equal(a, b)
		a.Release()
		b.Release()
		return vm.push(value.Bool(eq))
	case bytecode.OpNeq:
		eq := value.Equal(a, b)
		a.Release()
		b.Release()
		return vm.push(value.Bool(!eq))
	default:
		a.Release()
		b.Release()
		return unknownOpError(in)
	}
}

func boolAsInt(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}

func (vm *VM) execAdd(a, b value.Value) error {
	defer a.Release()
	defer b.Release()
	switch {
	case a.Kind == value.KindString && b.Kind == value.KindString:
		return vm.push(value.String(a.S + b.S))
	case a.Kind == value.KindArray && b.Kind == value.KindArray:
		return vm.push(value.FromArray(value.Concat(a.Arr, b.Arr)))
	case isNumeric(a) && isNumeric(b):
		if a.Kind == value.KindFloat || b.Kind == value.KindFloat {
			return vm.push(value.Float(asFloat(a) + asFloat(b)))
		}
		return vm.push(value.Int(a.I + b.I))
	default:
		return typeError("ADD: incompatible operand types %s and %s", kindName(a), kindName(b))
	}
}

func isNumeric(v value.Value) bool { return v.Kind == value.KindInt || v.Kind == value.KindFloat }

func asFloat(v value.Value) float64 {
	if v.Kind == value.KindFloat {
		return v.F
	}
	return float64(v.I)
}

func (vm *VM) execNumeric(a, b value.Value, name string, intOp func(int64, int64) int64, floatOp func(float64, float64) float64) error {
	defer a.Release()
	defer b.Release()
	if !isNumeric(a) || !isNumeric(b) {
		return typeError("%s: expects numeric operands, got %s and %s", name, kindName(a), kindName(b))
	}
	if a.Kind == value.KindFloat || b.Kind == value.KindFloat {
		return vm.push(value.Float(floatOp(asFloat(a), asFloat(b))))
	}
	return vm.push(value.Int(intOp(a.I, b.I)))
}

func (vm *VM) execDiv(a, b value.Value) error {
	defer a.Release()
	defer b.Release()
	if !isNumeric(a) || !isNumeric(b) {
		return typeError("DIV: expects numeric operands, got %s and %s", kindName(a), kindName(b))
	}
	if a.Kind == value.KindFloat || b.Kind == value.KindFloat {
		fb := asFloat(b)
		if fb == 0 {
			return arithError("division by zero")
		}
		return vm.push(value.Float(asFloat(a) / fb))
	}
	if b.I == 0 {
		return arithError("division by zero")
	}
	return vm.push(value.Int(a.I / b.I))
}

func (vm *VM) execMod(a, b value.Value) error {
	defer a.Release()
	defer b.Release()
	if a.Kind != value.KindInt || b.Kind != value.KindInt {
		return typeError("MOD: expects Int operands, got %s and %s", kindName(a), kindName(b))
	}
	if b.I == 0 {
		return arithError("modulo by zero")
	}
	return vm.push(value.Int(a.I % b.I))
}

func (vm *VM) execCompare(a, b value.Value, name string, accept func(int) bool) error {
	defer a.Release()
	defer b.Release()
	if !isNumeric(a) || !isNumeric(b) {
		return typeError("%s: expects numeric operands, got %s and %s", name, kindName(a), kindName(b))
	}
	var cmp int
	if a.Kind == value.KindFloat || b.Kind == value.KindFloat {
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			cmp = -1
		case fa > fb:
			cmp = 1
		}
	} else {
		switch {
		case a.I < b.I:
			cmp = -1
		case a.I > b.I:
			cmp = 1
		}
	}
	return vm.push(boolAsInt(accept(cmp)))
}
