package vm

import (
	"fun/internal/bytecode"
	"fun/internal/value"
)

// popArgs pops n values off the stack and returns them in source
// (left-to-right) order; builtins compiled via the generic call-args path
// (§4.1.7) carry their evaluated argument count as the instruction operand.
func (vm *VM) popArgs(n int32) ([]value.Value, error) {
	args := make([]value.Value, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func releaseAll(vs ...value.Value) {
	for _, v := range vs {
		v.Release()
	}
}

func (vm *VM) execCollections(in bytecode.Instruction) error {
	switch in.Op {
	case bytecode.OpMakeArray:
		return vm.opMakeArray(in.Operand)
	case bytecode.OpMakeMap:
		return vm.opMakeMap(in.Operand)
	case bytecode.OpIndexGet:
		return vm.opIndexGet()
	case bytecode.OpIndexSet:
		return vm.opIndexSet()
	case bytecode.OpSlice:
		return vm.opSlice()
	case bytecode.OpLen:
		// LEN is emitted both from the generic builtin-call path (operand =
		// argc = 1) and inline by the compiler's for-in/higher-order lowering
		// (operand hardcoded to 0); either way exactly one value is on the
		// stack, so the opcode's own fixed arity governs, not the operand.
		return vm.opLen()
	case bytecode.OpPush:
		// same story as LEN: map/filter lowering emits PUSH with operand 0
		// while always leaving exactly two values on the stack.
		return vm.opPush()
	}

	args, err := vm.popArgs(in.Operand)
	if err != nil {
		return err
	}

	switch in.Op {
	case bytecode.OpAPop:
		return vm.opAPop(args)
	case bytecode.OpSet:
		return vm.opArraySet(args)
	case bytecode.OpInsert:
		return vm.opInsert(args)
	case bytecode.OpRemove:
		return vm.opRemove(args)
	case bytecode.OpKeys:
		return vm.opKeys(args)
	case bytecode.OpValues:
		return vm.opValues(args)
	case bytecode.OpHasKey:
		return vm.opHasKey(args)
	case bytecode.OpContains:
		return vm.opContains(args)
	case bytecode.OpIndexOf:
		return vm.opIndexOf(args)
	case bytecode.OpClear:
		return vm.opClear(args)
	case bytecode.OpEnumerate:
		return vm.opEnumerate(args)
	case bytecode.OpZip:
		return vm.opZip(args)
	default:
		releaseAll(args...)
		return unknownOpError(in)
	}
}

func (vm *VM) opMakeArray(n int32) error {
	items := make([]value.Value, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		items[i] = v
	}
	return vm.push(value.FromArray(value.NewArray(items...)))
}

func (vm *VM) opMakeMap(n int32) error {
	type pair struct {
		key string
		val value.Value
	}
	pairs := make([]pair, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		k, err := vm.pop()
		if err != nil {
			return err
		}
		if k.Kind != value.KindString {
			releaseAll(k, v)
			return typeError("MAKE_MAP: key must be String, got %s", kindName(k))
		}
		pairs[i] = pair{key: k.S, val: v}
	}
	m := value.NewMap()
	for _, p := range pairs {
		m.Set(p.key, p.val)
	}
	return vm.push(value.FromMap(m))
}

func (vm *VM) opIndexGet() error {
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	container, err := vm.pop()
	if err != nil {
		return err
	}
	defer releaseAll(idx, container)

	switch container.Kind {
	case value.KindArray:
		if idx.Kind != value.KindInt {
			return typeError("INDEX_GET: Array index must be Int, got %s", kindName(idx))
		}
		v, ok := container.Arr.Get(int(idx.I))
		if !ok {
			return boundsError("array index %d out of range (len=%d)", idx.I, container.Arr.Len())
		}
		return vm.push(v)
	case value.KindMap:
		if idx.Kind != value.KindString {
			return typeError("INDEX_GET: Map key must be String, got %s", kindName(idx))
		}
		v, ok := container.M.Get(idx.S)
		if !ok {
			return vm.push(value.Nil())
		}
		return vm.push(v)
	default:
		return typeError("INDEX_GET: not indexable: %s", kindName(container))
	}
}

func (vm *VM) opIndexSet() error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	idx, err := vm.pop()
	if err != nil {
		return err
	}
	container, err := vm.pop()
	if err != nil {
		return err
	}

	switch container.Kind {
	case value.KindArray:
		if idx.Kind != value.KindInt {
			releaseAll(val, idx, container)
			return typeError("INDEX_SET: Array index must be Int, got %s", kindName(idx))
		}
		if !container.Arr.Set(int(idx.I), val) {
			releaseAll(val, idx, container)
			return boundsError("array index %d out of range (len=%d)", idx.I, container.Arr.Len())
		}
	case value.KindMap:
		if idx.Kind != value.KindString {
			releaseAll(val, idx, container)
			return typeError("INDEX_SET: Map key must be String, got %s", kindName(idx))
		}
		container.M.Set(idx.S, val)
	default:
		releaseAll(val, idx, container)
		return typeError("INDEX_SET: not indexable: %s", kindName(container))
	}
	idx.Release()
	container.Release()
	return nil
}

func (vm *VM) opSlice() error {
	end, err := vm.pop()
	if err != nil {
		return err
	}
	start, err := vm.pop()
	if err != nil {
		return err
	}
	container, err := vm.pop()
	if err != nil {
		return err
	}
	defer releaseAll(end, start, container)

	if container.Kind != value.KindArray {
		return typeError("SLICE: not an Array: %s", kindName(container))
	}
	if start.Kind != value.KindInt || end.Kind != value.KindInt {
		return typeError("SLICE: bounds must be Int")
	}
	return vm.push(value.FromArray(container.Arr.Slice(int(start.I), int(end.I))))
}

func (vm *VM) opLen() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	defer v.Release()
	switch v.Kind {
	case value.KindString:
		return vm.push(value.Int(int64(len(v.S))))
	case value.KindArray:
		return vm.push(value.Int(int64(v.Arr.Len())))
	default:
		return typeError("LEN: expects String or Array, got %s", kindName(v))
	}
}

func (vm *VM) opPush() error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	container, err := vm.pop()
	if err != nil {
		val.Release()
		return err
	}
	if container.Kind != value.KindArray {
		releaseAll(container, val)
		return typeError("push: expects an Array, got %s", kindName(container))
	}
	container.Arr.Push(val)
	return vm.push(container)
}

func (vm *VM) opAPop(args []value.Value) error {
	container := args[0]
	if container.Kind != value.KindArray {
		container.Release()
		return typeError("pop: expects an Array, got %s", kindName(container))
	}
	v, ok := container.Arr.Pop()
	container.Release()
	if !ok {
		return boundsError("pop: array is empty")
	}
	return vm.push(v)
}

func (vm *VM) opArraySet(args []value.Value) error {
	container, idx, val := args[0], args[1], args[2]
	if container.Kind != value.KindArray || idx.Kind != value.KindInt {
		releaseAll(container, idx, val)
		return typeError("set: expects (Array, Int, value)")
	}
	if !container.Arr.Set(int(idx.I), val) {
		releaseAll(container, idx)
		return boundsError("set: array index %d out of range (len=%d)", idx.I, container.Arr.Len())
	}
	idx.Release()
	return vm.push(container)
}

func (vm *VM) opInsert(args []value.Value) error {
	container, idx, val := args[0], args[1], args[2]
	if container.Kind != value.KindArray || idx.Kind != value.KindInt {
		releaseAll(container, idx, val)
		return typeError("insert: expects (Array, Int, value)")
	}
	if !container.Arr.Insert(int(idx.I), val) {
		releaseAll(container, idx, val)
		return boundsError("insert: index %d out of range (len=%d)", idx.I, container.Arr.Len())
	}
	idx.Release()
	return vm.push(container)
}

func (vm *VM) opRemove(args []value.Value) error {
	container, idx := args[0], args[1]
	if container.Kind != value.KindArray || idx.Kind != value.KindInt {
		releaseAll(container, idx)
		return typeError("remove: expects (Array, Int)")
	}
	v, ok := container.Arr.Remove(int(idx.I))
	idx.Release()
	container.Release()
	if !ok {
		return boundsError("remove: index out of range")
	}
	return vm.push(v)
}

func (vm *VM) opKeys(args []value.Value) error {
	m := args[0]
	defer m.Release()
	if m.Kind != value.KindMap {
		return typeError("keys: expects a Map, got %s", kindName(m))
	}
	return vm.push(value.FromArray(m.M.Keys()))
}

func (vm *VM) opValues(args []value.Value) error {
	m := args[0]
	defer m.Release()
	if m.Kind != value.KindMap {
		return typeError("values: expects a Map, got %s", kindName(m))
	}
	return vm.push(value.FromArray(m.M.Values()))
}

func (vm *VM) opHasKey(args []value.Value) error {
	m, key := args[0], args[1]
	defer releaseAll(m, key)
	if m.Kind != value.KindMap || key.Kind != value.KindString {
		return typeError("has: expects (Map, String)")
	}
	return vm.push(value.Bool(m.M.Has(key.S)))
}

func (vm *VM) opContains(args []value.Value) error {
	arr, needle := args[0], args[1]
	defer releaseAll(arr, needle)
	if arr.Kind != value.KindArray {
		return typeError("contains: expects an Array, got %s", kindName(arr))
	}
	return vm.push(value.Bool(arr.Arr.Contains(needle)))
}

func (vm *VM) opIndexOf(args []value.Value) error {
	arr, needle := args[0], args[1]
	defer releaseAll(arr, needle)
	if arr.Kind != value.KindArray {
		return typeError("indexOf: expects an Array, got %s", kindName(arr))
	}
	return vm.push(value.Int(int64(arr.Arr.IndexOf(needle))))
}

func (vm *VM) opClear(args []value.Value) error {
	container := args[0]
	if container.Kind != value.KindArray {
		container.Release()
		return typeError("clear: expects an Array, got %s", kindName(container))
	}
	container.Arr.Clear()
	return vm.push(container)
}

func (vm *VM) opEnumerate(args []value.Value) error {
	arr := args[0]
	defer arr.Release()
	if arr.Kind != value.KindArray {
		return typeError("enumerate: expects an Array, got %s", kindName(arr))
	}
	items := arr.Arr.Items()
	out := make([]value.Value, len(items))
	for i, v := range items {
		out[i] = value.FromArray(value.NewArray(value.Int(int64(i)), v.Clone()))
	}
	return vm.push(value.FromArray(value.NewArray(out...)))
}

func (vm *VM) opZip(args []value.Value) error {
	a, b := args[0], args[1]
	defer releaseAll(a, b)
	if a.Kind != value.KindArray || b.Kind != value.KindArray {
		return typeError("zip: expects two Arrays")
	}
	n := a.Arr.Len()
	if b.Arr.Len() < n {
		n = b.Arr.Len()
	}
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		av, _ := a.Arr.Get(i)
		bv, _ := b.Arr.Get(i)
		out[i] = value.FromArray(value.NewArray(av, bv))
	}
	return vm.push(value.FromArray(value.NewArray(out...)))
}
