// Package value implements Fun's runtime value representation: a tagged
// union of scalars (copied by value) and reference-counted compounds
// (Array, Map) shared through handles, plus non-owning Function handles
// into a Bytecode block.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"fun/internal/bytecode"
)

type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMap
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindBool:
		return "Bool"
	case KindInt, KindFloat:
		return "Number"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindFunction:
		return "Function"
	default:
		return "Unknown"
	}
}

// Function is a non-owning handle to a compiled block: the block is owned
// by whatever program/constant-pool created it, not by the Value.
type Function struct {
	Name  string
	Arity int
	Chunk *bytecode.Bytecode
}

// Value is a tagged scalar-or-handle. Exactly one payload field is valid,
// selected by Kind.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	F    float64
	S    string
	Arr  *Array
	M    *Map
	Fn   *Function
}

func Nil() Value                { return Value{Kind: KindNil} }
func Bool(b bool) Value         { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value         { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, F: f} }
func String(s string) Value     { return Value{Kind: KindString, S: s} }
func Func(fn *Function) Value   { return Value{Kind: KindFunction, Fn: fn} }

func FromArray(a *Array) Value {
	a.Retain()
	return Value{Kind: KindArray, Arr: a}
}

func FromMap(m *Map) Value {
	m.Retain()
	return Value{Kind: KindMap, M: m}
}

// Truthy implements §3.1's truthiness table.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != ""
	case KindArray:
		return v.Arr.Len() > 0
	case KindMap, KindFunction:
		return true
	default:
		return false
	}
}

// Clone is the shallow-clone discipline: scalars are copied, compounds have
// their refcount bumped, Function stays a shared non-owning reference.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		v.Arr.Retain()
	case KindMap:
		v.M.Retain()
	}
	return v
}

// DeepClone recursively duplicates Array/Map contents; scalars and
// Function behave as in Clone.
func (v Value) DeepClone() Value {
	switch v.Kind {
	case KindArray:
		return FromArray(v.Arr.DeepClone())
	case KindMap:
		return FromMap(v.M.DeepClone())
	default:
		return v
	}
}

// Release drops a reference a caller owned; compounds are freed once their
// refcount reaches zero (recursively releasing their own elements).
func (v Value) Release() {
	switch v.Kind {
	case KindArray:
		v.Arr.Release()
	case KindMap:
		v.M.Release()
	}
}

// Equal implements §3.1 / §4.2 EQ semantics: structural equality for
// same-tagged scalars, identity for Function, Int<->Bool interop as 0/1,
// Nil==Nil, handle identity for Array and Map, otherwise false.
func Equal(a, b Value) bool {
	if a.Kind == KindNil && b.Kind == KindNil {
		return true
	}
	if a.Kind == KindBool && b.Kind == KindInt {
		return boolAsInt(a.B) == b.I
	}
	if a.Kind == KindInt && b.Kind == KindBool {
		return a.I == boolAsInt(b.B)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.B == b.B
	case KindInt:
		return a.I == b.I
	case KindFloat:
		return a.F == b.F
	case KindString:
		return a.S == b.S
	case KindFunction:
		return a.Fn == b.Fn
	case KindArray:
		return a.Arr == b.Arr
	case KindMap:
		return a.M == b.M
	default:
		return false
	}
}

func boolAsInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ToString implements §4.2 TO_STRING / the canonical PRINT stringification
// for scalars; for Array/Map it returns the "[array n=N]"/"{map n=N}"
// summary form, while FormatForPrint gives the recursive PRINT form (§9
// open question 3: PRINT recurses, TO_STRING/CAST summarize).
func (v Value) ToString() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindString:
		return v.S
	case KindArray:
		return fmt.Sprintf("[array n=%d]", v.Arr.Len())
	case KindMap:
		return fmt.Sprintf("{map n=%d}", len(v.M.keys))
	case KindFunction:
		return fmt.Sprintf("<function@%p>", v.Fn)
	default:
		return "?"
	}
}

// FormatForPrint is PRINT's recursive rendering of Array/Map (§9 open
// question 3 resolution): elements are rendered, not summarized.
func FormatForPrint(v Value) string {
	switch v.Kind {
	case KindArray:
		parts := make([]string, v.Arr.Len())
		for i, e := range v.Arr.items {
			parts[i] = FormatForPrint(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, 0, len(v.M.keys))
		for _, k := range v.M.keys {
			parts = append(parts, fmt.Sprintf("%q: %s", k, FormatForPrint(v.M.items[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.ToString()
	}
}
