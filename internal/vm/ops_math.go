package vm

import (
	"math"

	"fun/internal/bytecode"
	"fun/internal/value"
	"golang.org/x/exp/constraints"
)

func (vm *VM) execMath(in bytecode.Instruction) error {
	args, err := vm.popArgs(in.Operand)
	if err != nil {
		return err
	}
	switch in.Op {
	case bytecode.OpMin:
		return vm.opMinMax(args, "min", true)
	case bytecode.OpMax:
		return vm.opMinMax(args, "max", false)
	case bytecode.OpClamp:
		return vm.opMathClamp(args)
	case bytecode.OpAbs:
		return vm.opAbs(args)
	case bytecode.OpPow:
		return vm.opPow(args)
	case bytecode.OpRandomSeed:
		return vm.opRandomSeed(args)
	case bytecode.OpRandomInt:
		return vm.opRandomInt(args)
	default:
		releaseAll(args...)
		return unknownOpError(in)
	}
}

// genMin/genMax/genClamp back MIN/MAX/CLAMP's numeric core over both the
// Int (int64) and Float (float64) representations a Value may hold.
func genMin[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func genMax[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func genClamp[T constraints.Ordered](v, lo, hi T) T {
	return genMax(lo, genMin(hi, v))
}

func genAbs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func (vm *VM) opMinMax(args []value.Value, name string, wantMin bool) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("%s: expects 2 arguments, got %d", name, len(args))
	}
	a, b := args[0], args[1]
	if !isNumeric(a) || !isNumeric(b) {
		releaseAll(a, b)
		return typeError("%s: expects numeric operands, got %s and %s", name, kindName(a), kindName(b))
	}
	fa, fb := asFloat(a), asFloat(b)
	var keepA bool
	if wantMin {
		keepA = genMin(fa, fb) == fa
	} else {
		keepA = genMax(fa, fb) == fa
	}
	if keepA {
		b.Release()
		return vm.push(a)
	}
	a.Release()
	return vm.push(b)
}

func (vm *VM) opMathClamp(args []value.Value) error {
	if len(args) != 3 {
		releaseAll(args...)
		return resourceError("clamp: expects 3 arguments, got %d", len(args))
	}
	v, lo, hi := args[0], args[1], args[2]
	defer releaseAll(v, lo, hi)
	if !isNumeric(v) || !isNumeric(lo) || !isNumeric(hi) {
		return typeError("clamp: expects numeric operands")
	}
	if v.Kind == value.KindFloat || lo.Kind == value.KindFloat || hi.Kind == value.KindFloat {
		return vm.push(value.Float(genClamp(asFloat(v), asFloat(lo), asFloat(hi))))
	}
	return vm.push(value.Int(genClamp(v.I, lo.I, hi.I)))
}

func (vm *VM) opAbs(args []value.Value) error {
	if len(args) != 1 {
		releaseAll(args...)
		return resourceError("abs: expects 1 argument, got %d", len(args))
	}
	v := args[0]
	defer v.Release()
	switch v.Kind {
	case value.KindInt:
		return vm.push(value.Int(genAbs(v.I)))
	case value.KindFloat:
		return vm.push(value.Float(math.Abs(v.F)))
	default:
		return typeError("abs: expects a numeric operand, got %s", kindName(v))
	}
}

func (vm *VM) opPow(args []value.Value) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("pow: expects 2 arguments, got %d", len(args))
	}
	base, exp := args[0], args[1]
	defer releaseAll(base, exp)
	if !isNumeric(base) || !isNumeric(exp) {
		return typeError("pow: expects numeric operands, got %s and %s", kindName(base), kindName(exp))
	}
	if base.Kind == value.KindFloat || exp.Kind == value.KindFloat {
		return vm.push(value.Float(math.Pow(asFloat(base), asFloat(exp))))
	}
	return vm.push(value.Int(int64(math.Pow(float64(base.I), float64(exp.I)))))
}

func (vm *VM) opRandomSeed(args []value.Value) error {
	if len(args) != 1 {
		releaseAll(args...)
		return resourceError("random: expects 1 argument, got %d", len(args))
	}
	v := args[0]
	defer v.Release()
	if v.Kind != value.KindInt {
		return typeError("random: expects Int seed, got %s", kindName(v))
	}
	vm.rng.Seed(v.I)
	return vm.push(value.Nil())
}

func (vm *VM) opRandomInt(args []value.Value) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("randomInt: expects 2 arguments, got %d", len(args))
	}
	lo, hi := args[0], args[1]
	defer releaseAll(lo, hi)
	if lo.Kind != value.KindInt || hi.Kind != value.KindInt {
		return typeError("randomInt: expects (Int, Int)")
	}
	if hi.I < lo.I {
		return boundsError("randomInt: high bound %d below low bound %d", hi.I, lo.I)
	}
	span := hi.I - lo.I + 1
	return vm.push(value.Int(lo.I + vm.rng.Int63n(span)))
}
