package vm

import (
	"testing"

	"fun/internal/bytecode"
	"fun/internal/value"
)

func constChunk(vals ...value.Value) *bytecode.Bytecode {
	b := bytecode.New("<test>")
	for _, v := range vals {
		b.AddConstant(v)
	}
	return b
}

func runChunk(t *testing.T, b *bytecode.Bytecode) *VM {
	t.Helper()
	m := New()
	if err := m.Run(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		a, b     value.Value
		op       bytecode.OpCode
		expected value.Value
	}{
		{"add ints", value.Int(10), value.Int(20), bytecode.OpAdd, value.Int(30)},
		{"sub ints", value.Int(50), value.Int(20), bytecode.OpSub, value.Int(30)},
		{"mul ints", value.Int(5), value.Int(6), bytecode.OpMul, value.Int(30)},
		{"div ints", value.Int(60), value.Int(2), bytecode.OpDiv, value.Int(30)},
		{"mod ints", value.Int(17), value.Int(5), bytecode.OpMod, value.Int(2)},
		{"add promotes to float", value.Int(1), value.Float(0.5), bytecode.OpAdd, value.Float(1.5)},
		{"concat strings", value.String("ab"), value.String("cd"), bytecode.OpAdd, value.String("abcd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := constChunk(tt.a, tt.b)
			b.Emit(bytecode.OpLoadConst, 0)
			b.Emit(bytecode.OpLoadConst, 1)
			b.Emit(tt.op, 0)
			b.Emit(bytecode.OpPrint, 0)
			b.Emit(bytecode.OpHalt, 0)

			m := runChunk(t, b)
			out := m.Output()
			if len(out) != 1 {
				t.Fatalf("expected 1 printed value, got %d", len(out))
			}
			if !value.Equal(out[0], tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, out[0])
			}
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	b := constChunk(value.Int(1), value.Int(0))
	b.Emit(bytecode.OpLoadConst, 0)
	b.Emit(bytecode.OpLoadConst, 1)
	b.Emit(bytecode.OpDiv, 0)
	b.Emit(bytecode.OpHalt, 0)

	m := New()
	if err := m.Run(b); err == nil {
		t.Fatal("expected a division-by-zero error, got nil")
	}
}

func TestShortCircuitAndOr(t *testing.T) {
	// false && <anything> must never evaluate the right-hand side; since we
	// can't observe a side effect directly at this level, we check that a
	// single AND instruction over one already-resolved operand normalizes
	// truthiness to 1/0 rather than consuming a second stack value.
	b := constChunk(value.Int(0), value.Int(99))
	b.Emit(bytecode.OpLoadConst, 1) // push 99 underneath; AND must not consume it
	b.Emit(bytecode.OpLoadConst, 0) // push 0 (falsy)
	b.Emit(bytecode.OpAnd, 0)       // normalize: pushes 0
	b.Emit(bytecode.OpPrint, 0)
	b.Emit(bytecode.OpPrint, 0) // the untouched 99 should still be reachable
	b.Emit(bytecode.OpHalt, 0)

	m := runChunk(t, b)
	out := m.Output()
	if len(out) != 2 {
		t.Fatalf("expected 2 printed values, got %d", len(out))
	}
	if !value.Equal(out[0], value.Int(0)) {
		t.Errorf("expected AND to normalize to 0, got %v", out[0])
	}
	if !value.Equal(out[1], value.Int(99)) {
		t.Errorf("expected the stack to still hold 99, got %v", out[1])
	}
}

func TestEqualityReflexivity(t *testing.T) {
	vs := []value.Value{value.Nil(), value.Bool(true), value.Int(42), value.String("x")}
	for _, v := range vs {
		if !value.Equal(v, v) {
			t.Errorf("%v == %v should be true", v, v)
		}
	}
	if !value.Equal(value.Int(1), value.Bool(true)) {
		t.Error("1 == true should be true")
	}
	if !value.Equal(value.Int(0), value.Bool(false)) {
		t.Error("0 == false should be true")
	}
}

func TestUClampSClamp(t *testing.T) {
	tests := []struct {
		name     string
		op       bytecode.OpCode
		bits     int32
		in       int64
		expected int64
	}{
		{"uint8 wraps 300", bytecode.OpUClamp, 8, 300, 44},
		{"int8 wraps 200", bytecode.OpSClamp, 8, 200, -56},
		{"uint8 no-op on small value", bytecode.OpUClamp, 8, 7, 7},
		{"int16 stays in range", bytecode.OpSClamp, 16, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := constChunk(value.Int(tt.in))
			b.Emit(bytecode.OpLoadConst, 0)
			b.Emit(tt.op, tt.bits)
			b.Emit(bytecode.OpPrint, 0)
			b.Emit(bytecode.OpHalt, 0)

			m := runChunk(t, b)
			got := m.Output()[0]
			if !value.Equal(got, value.Int(tt.expected)) {
				t.Errorf("expected %d, got %v", tt.expected, got)
			}
		})
	}
}

func TestArrayIndexGetSetBounds(t *testing.T) {
	b := constChunk(value.Int(10), value.Int(20), value.Int(30), value.Int(1), value.Int(99))
	b.Emit(bytecode.OpLoadConst, 0)
	b.Emit(bytecode.OpLoadConst, 1)
	b.Emit(bytecode.OpLoadConst, 2)
	b.Emit(bytecode.OpMakeArray, 3)
	b.Emit(bytecode.OpDup, 0)
	b.Emit(bytecode.OpLoadConst, 3) // index 1
	b.Emit(bytecode.OpLoadConst, 4) // value 99
	b.Emit(bytecode.OpIndexSet, 0)
	b.Emit(bytecode.OpLoadConst, 3)
	b.Emit(bytecode.OpIndexGet, 0)
	b.Emit(bytecode.OpPrint, 0)
	b.Emit(bytecode.OpHalt, 0)

	m := runChunk(t, b)
	if !value.Equal(m.Output()[0], value.Int(99)) {
		t.Errorf("expected 99, got %v", m.Output()[0])
	}
}

func TestArrayOutOfRange(t *testing.T) {
	b := constChunk(value.Int(10), value.Int(5))
	b.Emit(bytecode.OpLoadConst, 0)
	b.Emit(bytecode.OpMakeArray, 1)
	b.Emit(bytecode.OpLoadConst, 1)
	b.Emit(bytecode.OpIndexGet, 0)
	b.Emit(bytecode.OpHalt, 0)

	m := New()
	if err := m.Run(b); err == nil {
		t.Fatal("expected a bounds error, got nil")
	}
}

func TestMapGetMissingKeyIsNil(t *testing.T) {
	b := constChunk(value.String("a"), value.Int(1), value.String("missing"))
	b.Emit(bytecode.OpLoadConst, 0) // key "a"
	b.Emit(bytecode.OpLoadConst, 1) // value 1
	b.Emit(bytecode.OpMakeMap, 1)
	b.Emit(bytecode.OpLoadConst, 2)
	b.Emit(bytecode.OpIndexGet, 0)
	b.Emit(bytecode.OpPrint, 0)
	b.Emit(bytecode.OpHalt, 0)

	m := runChunk(t, b)
	if m.Output()[0].Kind != value.KindNil {
		t.Errorf("expected Nil for a missing key, got %v", m.Output()[0])
	}
}

func TestCallReturn(t *testing.T) {
	callee := bytecode.New("<test>")
	callee.Emit(bytecode.OpLoadLocal, 0)
	callee.Emit(bytecode.OpLoadLocal, 0)
	callee.Emit(bytecode.OpMul, 0)
	callee.Emit(bytecode.OpReturn, 0)

	program := bytecode.New("<test>")
	fnIdx := program.AddConstant(value.Func(&value.Function{Name: "square", Arity: 1, Chunk: callee}))
	argIdx := program.AddConstant(value.Int(7))
	program.Emit(bytecode.OpLoadConst, fnIdx)
	program.Emit(bytecode.OpLoadConst, argIdx)
	program.Emit(bytecode.OpCall, 1)
	program.Emit(bytecode.OpPrint, 0)
	program.Emit(bytecode.OpHalt, 0)

	m := runChunk(t, program)
	if !value.Equal(m.Output()[0], value.Int(49)) {
		t.Errorf("expected 49, got %v", m.Output()[0])
	}
}

func TestValueStackOverflow(t *testing.T) {
	b := constChunk(value.Int(1))
	for i := 0; i < maxValueStack+1; i++ {
		b.Emit(bytecode.OpLoadConst, 0)
	}
	b.Emit(bytecode.OpHalt, 0)

	m := New()
	if err := m.Run(b); err == nil {
		t.Fatal("expected a value-stack overflow error, got nil")
	}
}

func TestBitwiseOrShiftRight(t *testing.T) {
	b := constChunk(value.Int(0xF0), value.Int(0x0F), value.Int(4))
	b.Emit(bytecode.OpLoadConst, 0)
	b.Emit(bytecode.OpLoadConst, 1)
	b.Emit(bytecode.OpBOr, 0)
	b.Emit(bytecode.OpPrint, 0)
	b.Emit(bytecode.OpLoadConst, 0)
	b.Emit(bytecode.OpLoadConst, 2)
	b.Emit(bytecode.OpShr, 0)
	b.Emit(bytecode.OpPrint, 0)
	b.Emit(bytecode.OpHalt, 0)

	m := runChunk(t, b)
	if !value.Equal(m.Output()[0], value.Int(0xFF)) {
		t.Errorf("expected 0xFF, got %v", m.Output()[0])
	}
	if !value.Equal(m.Output()[1], value.Int(0x0F)) {
		t.Errorf("expected 0x0F, got %v", m.Output()[1])
	}
}
