package compiler

import (
	"fun/internal/bytecode"
	"fun/internal/extmodule"
	"fun/internal/lexer"
	"fun/internal/value"
)

// expression compiles the lowest-precedence rule: logical OR (§4.1.2).
func (c *Compiler) expression(chunk *bytecode.Bytecode) {
	c.orExpr(chunk)
}

// orExpr / andExpr lower short-circuit evaluation via JUMP_IF_FALSE with a
// patched "short-circuit" jump that skips the right operand (§4.3).
func (c *Compiler) orExpr(chunk *bytecode.Bytecode) {
	c.andExpr(chunk)
	for c.match(lexer.TokenOr) {
		// if left is truthy, short-circuit to true without evaluating right
		chunk.Emit(bytecode.OpDup, 0)
		skipRight := chunk.Emit(bytecode.OpJumpIfFalse, -1)
		// left was truthy: normalize to 1, jump past right operand
		chunk.Emit(bytecode.OpNot, 0)
		chunk.Emit(bytecode.OpNot, 0)
		end := chunk.Emit(bytecode.OpJump, -1)
		chunk.Patch(skipRight, chunk.Here())
		chunk.Emit(bytecode.OpPop, 0)
		c.andExpr(chunk)
		chunk.Emit(bytecode.OpOr, 0)
		chunk.Patch(end, chunk.Here())
	}
}

func (c *Compiler) andExpr(chunk *bytecode.Bytecode) {
	c.equalityExpr(chunk)
	for c.match(lexer.TokenAnd) {
		// if left is falsy, short-circuit to false without evaluating right
		chunk.Emit(bytecode.OpDup, 0)
		skipRight := chunk.Emit(bytecode.OpJumpIfFalse, -1)
		chunk.Emit(bytecode.OpPop, 0)
		c.equalityExpr(chunk)
		chunk.Emit(bytecode.OpAnd, 0)
		end := chunk.Emit(bytecode.OpJump, -1)
		chunk.Patch(skipRight, chunk.Here())
		chunk.Emit(bytecode.OpNot, 0)
		chunk.Emit(bytecode.OpNot, 0)
		chunk.Patch(end, chunk.Here())
	}
}

func (c *Compiler) equalityExpr(chunk *bytecode.Bytecode) {
	c.relationalExpr(chunk)
	for {
		switch {
		case c.match(lexer.TokenEq):
			c.relationalExpr(chunk)
			chunk.Emit(bytecode.OpEq, 0)
		case c.match(lexer.TokenNeq):
			c.relationalExpr(chunk)
			chunk.Emit(bytecode.OpNeq, 0)
		default:
			return
		}
	}
}

func (c *Compiler) relationalExpr(chunk *bytecode.Bytecode) {
	c.additiveExpr(chunk)
	for {
		switch {
		case c.match(lexer.TokenLt):
			c.additiveExpr(chunk)
			chunk.Emit(bytecode.OpLt, 0)
		case c.match(lexer.TokenLte):
			c.additiveExpr(chunk)
			chunk.Emit(bytecode.OpLte, 0)
		case c.match(lexer.TokenGt):
			c.additiveExpr(chunk)
			chunk.Emit(bytecode.OpGt, 0)
		case c.match(lexer.TokenGte):
			c.additiveExpr(chunk)
			chunk.Emit(bytecode.OpGte, 0)
		default:
			return
		}
	}
}

func (c *Compiler) additiveExpr(chunk *bytecode.Bytecode) {
	c.multiplicativeExpr(chunk)
	for {
		switch {
		case c.match(lexer.TokenPlus):
			c.multiplicativeExpr(chunk)
			chunk.Emit(bytecode.OpAdd, 0)
		case c.match(lexer.TokenMinus):
			c.multiplicativeExpr(chunk)
			chunk.Emit(bytecode.OpSub, 0)
		default:
			return
		}
	}
}

func (c *Compiler) multiplicativeExpr(chunk *bytecode.Bytecode) {
	c.unaryExpr(chunk)
	for {
		switch {
		case c.match(lexer.TokenStar):
			c.unaryExpr(chunk)
			chunk.Emit(bytecode.OpMul, 0)
		case c.match(lexer.TokenSlash):
			c.unaryExpr(chunk)
			chunk.Emit(bytecode.OpDiv, 0)
		case c.match(lexer.TokenPercent):
			c.unaryExpr(chunk)
			chunk.Emit(bytecode.OpMod, 0)
		default:
			return
		}
	}
}

// unaryExpr: `!expr`, unary minus compiled as `0 - expr` (§4.1.2).
func (c *Compiler) unaryExpr(chunk *bytecode.Bytecode) {
	if c.match(lexer.TokenNot) {
		c.unaryExpr(chunk)
		chunk.Emit(bytecode.OpNot, 0)
		return
	}
	if c.match(lexer.TokenMinus) {
		zero := c.addConstant(chunk, value.Int(0))
		chunk.Emit(bytecode.OpLoadConst, zero)
		c.unaryExpr(chunk)
		chunk.Emit(bytecode.OpSub, 0)
		return
	}
	c.postfixExpr(chunk)
}

// postfixExpr handles indexing, slicing, member access, and calls chained
// onto a primary expression (§4.1.2 primary productions).
func (c *Compiler) postfixExpr(chunk *bytecode.Bytecode) {
	c.primaryExpr(chunk)
	for {
		switch {
		case c.check(lexer.TokenLBracket):
			c.advance()
			c.bracketSuffix(chunk)
		case c.check(lexer.TokenDot):
			c.advance()
			name := c.expect(lexer.TokenIdent, "after '.'")
			if c.check(lexer.TokenLParen) {
				c.methodCall(chunk, name.Lexeme)
			} else {
				k := c.addConstant(chunk, value.String(name.Lexeme))
				chunk.Emit(bytecode.OpLoadConst, k)
				chunk.Emit(bytecode.OpIndexGet, 0)
			}
		case c.check(lexer.TokenLParen):
			c.advance()
			argc := c.callArgs(chunk)
			chunk.Emit(bytecode.OpCall, int32(argc))
		default:
			return
		}
	}
}

// bracketSuffix compiles `[expr]` (index) or `[a:b]` (slice); the opening
// '[' has already been consumed.
func (c *Compiler) bracketSuffix(chunk *bytecode.Bytecode) {
	if c.check(lexer.TokenColon) {
		c.advance()
		zero := c.addConstant(chunk, value.Int(0))
		chunk.Emit(bytecode.OpLoadConst, zero)
		c.sliceEnd(chunk)
		return
	}
	c.expression(chunk)
	if c.match(lexer.TokenColon) {
		c.sliceEnd(chunk)
		return
	}
	c.expect(lexer.TokenRBracket, "to close index")
	chunk.Emit(bytecode.OpIndexGet, 0)
}

// sliceEnd compiles the end bound of a slice (possibly absent, defaulting
// to -1 meaning "to end") and the closing bracket, then emits SLICE.
func (c *Compiler) sliceEnd(chunk *bytecode.Bytecode) {
	if c.check(lexer.TokenRBracket) {
		negOne := c.addConstant(chunk, value.Int(-1))
		chunk.Emit(bytecode.OpLoadConst, negOne)
	} else {
		c.expression(chunk)
	}
	c.expect(lexer.TokenRBracket, "to close slice")
	chunk.Emit(bytecode.OpSlice, 0)
}

// methodCall lowers `obj.method(args)` per §4.1.5: push obj, duplicate it,
// index-get "method" off the duplicate, swap so the function sits below
// the receiver, then call with argc+1 (receiver first).
func (c *Compiler) methodCall(chunk *bytecode.Bytecode, method string) {
	chunk.Emit(bytecode.OpDup, 0)
	k := c.addConstant(chunk, value.String(method))
	chunk.Emit(bytecode.OpLoadConst, k)
	chunk.Emit(bytecode.OpIndexGet, 0)
	chunk.Emit(bytecode.OpSwap, 0)
	c.advance() // '('
	argc := c.callArgs(chunk)
	chunk.Emit(bytecode.OpCall, int32(argc+1))
}

// callArgs compiles a comma-separated argument list; '(' already consumed.
func (c *Compiler) callArgs(chunk *bytecode.Bytecode) int {
	argc := 0
	if c.check(lexer.TokenRParen) {
		c.advance()
		return 0
	}
	for {
		c.expression(chunk)
		argc++
		if c.match(lexer.TokenComma) {
			continue
		}
		break
	}
	c.expect(lexer.TokenRParen, "to close call arguments")
	return argc
}

// primaryExpr: literals, grouping, array/map literals, identifiers
// (possibly a call or builtin), member of the primary grammar (§4.1.2 #1).
func (c *Compiler) primaryExpr(chunk *bytecode.Bytecode) {
	tok := c.peek()
	switch {
	case c.match(lexer.TokenInt):
		k := c.addConstant(chunk, value.Int(tok.IntVal))
		chunk.Emit(bytecode.OpLoadConst, k)
	case c.match(lexer.TokenString):
		k := c.addConstant(chunk, value.String(tok.Lexeme))
		chunk.Emit(bytecode.OpLoadConst, k)
	case c.match(lexer.TokenTrue):
		k := c.addConstant(chunk, value.Bool(true))
		chunk.Emit(bytecode.OpLoadConst, k)
	case c.match(lexer.TokenFalse):
		k := c.addConstant(chunk, value.Bool(false))
		chunk.Emit(bytecode.OpLoadConst, k)
	case c.match(lexer.TokenLParen):
		c.expression(chunk)
		c.expect(lexer.TokenRParen, "to close parenthesized expression")
	case c.check(lexer.TokenLBracket):
		c.arrayLiteral(chunk)
	case c.check(lexer.TokenLBrace):
		c.mapLiteral(chunk)
	case c.check(lexer.TokenIdent):
		c.identifierExpr(chunk)
	default:
		c.fail("expected an expression, got "+string(tok.Type), tok)
	}
}

func (c *Compiler) arrayLiteral(chunk *bytecode.Bytecode) {
	c.expect(lexer.TokenLBracket, "to begin array literal")
	n := 0
	if !c.check(lexer.TokenRBracket) {
		for {
			c.expression(chunk)
			n++
			if c.match(lexer.TokenComma) {
				if c.check(lexer.TokenRBracket) {
					break
				}
				continue
			}
			break
		}
	}
	c.expect(lexer.TokenRBracket, "to close array literal")
	chunk.Emit(bytecode.OpMakeArray, int32(n))
}

func (c *Compiler) mapLiteral(chunk *bytecode.Bytecode) {
	c.expect(lexer.TokenLBrace, "to begin map literal")
	n := 0
	if !c.check(lexer.TokenRBrace) {
		for {
			keyTok := c.expect(lexer.TokenString, "as map key")
			k := c.addConstant(chunk, value.String(keyTok.Lexeme))
			chunk.Emit(bytecode.OpLoadConst, k)
			c.expect(lexer.TokenColon, "after map key")
			c.expression(chunk)
			n++
			if c.match(lexer.TokenComma) {
				if c.check(lexer.TokenRBrace) {
					break
				}
				continue
			}
			break
		}
	}
	c.expect(lexer.TokenRBrace, "to close map literal")
	chunk.Emit(bytecode.OpMakeMap, int32(n))
}

// identifierExpr dispatches a bare identifier to a builtin call, a
// map/filter/reduce inline-loop lowering, or an ordinary load/call.
func (c *Compiler) identifierExpr(chunk *bytecode.Bytecode) {
	nameTok := c.advance()
	name := nameTok.Lexeme

	if c.check(lexer.TokenLParen) {
		if op, ok := builtinOpcodes[name]; ok {
			c.advance()
			argc := c.callArgs(chunk)
			chunk.Emit(op, int32(argc))
			return
		}
		switch name {
		case "map", "filter", "reduce":
			c.advance()
			c.higherOrderCall(chunk, name)
			return
		case "typeof":
			c.advance()
			c.typeofCall(chunk)
			return
		}
		if idx, ok := extmodule.BuiltinIndex(name); ok {
			c.advance()
			c.extCall(chunk, name, idx)
			return
		}
	}

	isLocal, slot := c.loadTarget(name)
	c.emitLoad(chunk, isLocal, slot)
}

// builtinOpcodes is the §4.1.7 table of identifiers lowered directly to
// dedicated opcodes when followed by '(' (never ordinary user calls).
var builtinOpcodes = map[string]bytecode.OpCode{
	"len":        bytecode.OpLen,
	"push":       bytecode.OpPush,
	"pop":        bytecode.OpAPop,
	"set":        bytecode.OpSet,
	"insert":     bytecode.OpInsert,
	"remove":     bytecode.OpRemove,
	"to_number":  bytecode.OpToNumber,
	"to_string":  bytecode.OpToString,
	"keys":       bytecode.OpKeys,
	"values":     bytecode.OpValues,
	"has":        bytecode.OpHasKey,
	"read_file":  bytecode.OpReadFile,
	"write_file": bytecode.OpWriteFile,
	"split":      bytecode.OpSplit,
	"join":       bytecode.OpJoin,
	"substr":     bytecode.OpSubstr,
	"find":       bytecode.OpFind,
	"contains":   bytecode.OpContains,
	"indexOf":    bytecode.OpIndexOf,
	"clear":      bytecode.OpClear,
	"enumerate":  bytecode.OpEnumerate,
	"zip":        bytecode.OpZip,
	"min":        bytecode.OpMin,
	"max":        bytecode.OpMax,
	"clamp":      bytecode.OpClamp,
	"abs":        bytecode.OpAbs,
	"pow":        bytecode.OpPow,
	"random":     bytecode.OpRandomSeed,
	"randomInt":  bytecode.OpRandomInt,
}

// extCall compiles a CALL_EXT builtin (§4.1.7 NEW): an exact, fixed argc
// enforced at compile time, since the extension boundary never overloads
// by arity the way a user call might.
func (c *Compiler) extCall(chunk *bytecode.Bytecode, name string, idx int) {
	argc := extmodule.Builtins[idx].Argc
	c.expect(lexer.TokenLParen, "after '"+name+"'")
	for i := 0; i < argc; i++ {
		c.expression(chunk)
		if i < argc-1 {
			c.expect(lexer.TokenComma, "between "+name+" arguments")
		}
	}
	c.expect(lexer.TokenRParen, "to close "+name+"(...)")
	chunk.Emit(bytecode.OpCallExt, int32(idx))
}

// typeofCall: typeof(ident) substitutes a compile-time width string
// (e.g. "Uint32") when ident has a declared integer width, otherwise emits
// the TYPEOF opcode (§4.2 TYPEOF).
func (c *Compiler) typeofCall(chunk *bytecode.Bytecode) {
	c.expect(lexer.TokenLParen, "after 'typeof'")
	if c.check(lexer.TokenIdent) {
		save := c.pos
		identTok := c.advance()
		if c.check(lexer.TokenRParen) {
			if w, ok := c.widthOf(identTok.Lexeme); ok {
				c.advance()
				k := c.addConstant(chunk, value.String(widthTypeName(w)))
				chunk.Emit(bytecode.OpLoadConst, k)
				return
			}
		}
		c.pos = save
	}
	c.expression(chunk)
	c.expect(lexer.TokenRParen, "to close typeof(...)")
	chunk.Emit(bytecode.OpTypeof, 0)
}

func widthTypeName(w widthInfo) string {
	prefix := "Uint"
	if w.signed {
		prefix = "Sint"
	}
	switch w.bits {
	case 8:
		return prefix + "8"
	case 16:
		return prefix + "16"
	case 32:
		return prefix + "32"
	case 64:
		return prefix + "64"
	}
	return prefix + "0"
}

// higherOrderCall lowers map(arr, fn) / filter(arr, fn) / reduce(arr, fn,
// init) to an inline loop built from existing opcodes, per §4.1.7: these
// names can never be shadowed by a user function.
func (c *Compiler) higherOrderCall(chunk *bytecode.Bytecode, kind string) {
	c.expect(lexer.TokenLParen, "after '"+kind+"'")
	c.expression(chunk) // source array
	c.expect(lexer.TokenComma, "between "+kind+" arguments")

	srcName := c.nextTemp("src")
	_, srcSlot := c.declareTypedLocal(srcName, nil)
	srcIsLocal := c.cur.locals != nil
	c.emitStore(chunk, srcIsLocal, srcSlot)

	fnName := c.nextTemp("fn")
	_, fnSlot := c.declareTypedLocal(fnName, nil)
	fnIsLocal := c.cur.locals != nil
	c.expression(chunk) // callback
	c.emitStore(chunk, fnIsLocal, fnSlot)

	accName := c.nextTemp("acc")
	_, accSlot := c.declareTypedLocal(accName, nil)
	accIsLocal := c.cur.locals != nil
	if kind == "reduce" {
		c.expect(lexer.TokenComma, "before reduce initial value")
		c.expression(chunk)
	} else {
		chunk.Emit(bytecode.OpMakeArray, 0)
	}
	c.emitStore(chunk, accIsLocal, accSlot)
	c.expect(lexer.TokenRParen, "to close "+kind+"(...)")

	idxName := c.nextTemp("idx")
	_, idxSlot := c.declareTypedLocal(idxName, nil)
	idxIsLocal := c.cur.locals != nil
	zero := c.addConstant(chunk, value.Int(0))
	chunk.Emit(bytecode.OpLoadConst, zero)
	c.emitStore(chunk, idxIsLocal, idxSlot)

	lenName := c.nextTemp("len")
	_, lenSlot := c.declareTypedLocal(lenName, nil)
	lenIsLocal := c.cur.locals != nil
	c.emitLoad(chunk, srcIsLocal, srcSlot)
	chunk.Emit(bytecode.OpLen, 0)
	c.emitStore(chunk, lenIsLocal, lenSlot)

	top := chunk.Here()
	c.emitLoad(chunk, idxIsLocal, idxSlot)
	c.emitLoad(chunk, lenIsLocal, lenSlot)
	chunk.Emit(bytecode.OpLt, 0)
	exitJump := chunk.Emit(bytecode.OpJumpIfFalse, -1)

	switch kind {
	case "map":
		c.emitLoad(chunk, fnIsLocal, fnSlot)
		c.emitLoad(chunk, srcIsLocal, srcSlot)
		c.emitLoad(chunk, idxIsLocal, idxSlot)
		chunk.Emit(bytecode.OpIndexGet, 0)
		chunk.Emit(bytecode.OpCall, 1)
		resName := c.nextTemp("res")
		_, resSlot := c.declareTypedLocal(resName, nil)
		resIsLocal := c.cur.locals != nil
		c.emitStore(chunk, resIsLocal, resSlot)
		c.emitLoad(chunk, accIsLocal, accSlot)
		c.emitLoad(chunk, resIsLocal, resSlot)
		chunk.Emit(bytecode.OpPush, 0)
		c.emitStore(chunk, accIsLocal, accSlot)
	case "filter":
		c.emitLoad(chunk, fnIsLocal, fnSlot)
		c.emitLoad(chunk, srcIsLocal, srcSlot)
		c.emitLoad(chunk, idxIsLocal, idxSlot)
		chunk.Emit(bytecode.OpIndexGet, 0)
		chunk.Emit(bytecode.OpCall, 1)
		keepJump := chunk.Emit(bytecode.OpJumpIfFalse, -1)
		c.emitLoad(chunk, accIsLocal, accSlot)
		c.emitLoad(chunk, srcIsLocal, srcSlot)
		c.emitLoad(chunk, idxIsLocal, idxSlot)
		chunk.Emit(bytecode.OpIndexGet, 0)
		chunk.Emit(bytecode.OpPush, 0)
		c.emitStore(chunk, accIsLocal, accSlot)
		chunk.Patch(keepJump, chunk.Here())
	case "reduce":
		c.emitLoad(chunk, fnIsLocal, fnSlot)
		c.emitLoad(chunk, accIsLocal, accSlot)
		c.emitLoad(chunk, srcIsLocal, srcSlot)
		c.emitLoad(chunk, idxIsLocal, idxSlot)
		chunk.Emit(bytecode.OpIndexGet, 0)
		chunk.Emit(bytecode.OpCall, 2)
		c.emitStore(chunk, accIsLocal, accSlot)
	}

	c.emitLoad(chunk, idxIsLocal, idxSlot)
	one := c.addConstant(chunk, value.Int(1))
	chunk.Emit(bytecode.OpLoadConst, one)
	chunk.Emit(bytecode.OpAdd, 0)
	c.emitStore(chunk, idxIsLocal, idxSlot)
	chunk.Emit(bytecode.OpJump, top)

	chunk.Patch(exitJump, chunk.Here())
	c.emitLoad(chunk, accIsLocal, accSlot)
}
