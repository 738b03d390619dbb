package compiler

import (
	"path/filepath"
	"strings"

	"fun/internal/bytecode"
	"fun/internal/lexer"
	"fun/internal/value"
)

// statement compiles one statement at the current indent level into chunk.
func (c *Compiler) statement(chunk *bytecode.Bytecode) {
	tok := c.peek()
	chunk.Emit(bytecode.OpLine, int32(tok.Line))

	switch {
	case c.match(lexer.TokenPrint):
		c.printStatement(chunk)
	case c.checkTypeKeyword():
		c.typedDeclStatement(chunk)
	case c.match(lexer.TokenReturn):
		c.returnStatement(chunk)
	case c.match(lexer.TokenBreak):
		c.breakStatement(chunk)
	case c.match(lexer.TokenContinue):
		c.continueStatement(chunk)
	case c.match(lexer.TokenIf):
		c.ifStatement(chunk)
	case c.match(lexer.TokenWhile):
		c.whileStatement(chunk)
	case c.match(lexer.TokenFor):
		c.forStatement(chunk)
	case c.match(lexer.TokenFun):
		c.funStatement(chunk)
	case c.match(lexer.TokenClass):
		c.classStatement(chunk)
	case c.match(lexer.TokenImport):
		c.importStatement(chunk)
	default:
		c.assignmentOrExprStatement(chunk)
	}
}

func (c *Compiler) checkTypeKeyword() bool {
	switch c.peek().Type {
	case lexer.TokenTypeNumber, lexer.TokenTypeString, lexer.TokenTypeBoolean, lexer.TokenTypeNil,
		lexer.TokenTypeUint8, lexer.TokenTypeUint16, lexer.TokenTypeUint32, lexer.TokenTypeUint64,
		lexer.TokenTypeInt8, lexer.TokenTypeInt16, lexer.TokenTypeInt32, lexer.TokenTypeInt64:
		return true
	}
	return false
}

func (c *Compiler) printStatement(chunk *bytecode.Bytecode) {
	c.expect(lexer.TokenLParen, "after print")
	c.expression(chunk)
	c.expect(lexer.TokenRParen, "to close print(...)")
	chunk.Emit(bytecode.OpPrint, 0)
	c.endOfStatement()
}

// typedDeclStatement: `<type> <name>` or `<type> <name> = expr`.
func (c *Compiler) typedDeclStatement(chunk *bytecode.Bytecode) {
	typeTok := c.advance()
	nameTok := c.expect(lexer.TokenIdent, "after type keyword")

	var w *widthInfo
	if wi, ok := lexer.IntegerWidthKeywords[typeTok.Type]; ok {
		w = &widthInfo{bits: wi.Bits, signed: wi.Signed}
	}
	isLocal, slot := c.declareTypedLocal(nameTok.Lexeme, w)

	if c.match(lexer.TokenAssign) {
		c.expression(chunk)
		if w != nil {
			if w.signed {
				chunk.Emit(bytecode.OpSClamp, int32(w.bits))
			} else {
				chunk.Emit(bytecode.OpUClamp, int32(w.bits))
			}
		}
	} else {
		k := c.addConstant(chunk, value.Nil())
		chunk.Emit(bytecode.OpLoadConst, k)
	}
	c.emitStore(chunk, isLocal, slot)
	c.endOfStatement()
}

func (c *Compiler) returnStatement(chunk *bytecode.Bytecode) {
	if c.check(lexer.TokenNewline) || c.check(lexer.TokenDedent) || c.check(lexer.TokenEOF) {
		k := c.addConstant(chunk, value.Nil())
		chunk.Emit(bytecode.OpLoadConst, k)
	} else {
		c.expression(chunk)
	}
	chunk.Emit(bytecode.OpReturn, 0)
	c.endOfStatement()
}

func (c *Compiler) breakStatement(chunk *bytecode.Bytecode) {
	if c.cur.loop == nil {
		c.fail("'break' used outside of a loop", c.prev())
	}
	at := chunk.Emit(bytecode.OpJump, -1)
	c.cur.loop.breakPatches = append(c.cur.loop.breakPatches, at)
	c.endOfStatement()
}

func (c *Compiler) continueStatement(chunk *bytecode.Bytecode) {
	if c.cur.loop == nil {
		c.fail("'continue' used outside of a loop", c.prev())
	}
	chunk.Emit(bytecode.OpJump, c.cur.loop.continueAt)
	c.endOfStatement()
}

func (c *Compiler) endOfStatement() {
	if c.check(lexer.TokenNewline) {
		c.advance()
		return
	}
	if c.check(lexer.TokenEOF) || c.check(lexer.TokenDedent) {
		return
	}
	c.fail("expected end of statement", c.peek())
}

// ifStatement lowers if/else-if/else into a chain: each arm's condition
// jumps past its body on false; each body ends with a jump to a common end
// label, patched once the whole chain is compiled (§4.1.4).
func (c *Compiler) ifStatement(chunk *bytecode.Bytecode) {
	var endPatches []int
	for {
		c.expression(chunk)
		falseJump := chunk.Emit(bytecode.OpJumpIfFalse, -1)
		c.block(chunk)
		endJump := chunk.Emit(bytecode.OpJump, -1)
		endPatches = append(endPatches, endJump)
		chunk.Patch(falseJump, chunk.Here())

		if c.check(lexer.TokenElse) {
			save := c.pos
			c.advance()
			if c.match(lexer.TokenIf) {
				continue
			}
			c.pos = save
		}
		break
	}
	if c.match(lexer.TokenElse) {
		c.block(chunk)
	}
	for _, p := range endPatches {
		chunk.Patch(p, chunk.Here())
	}
}

// whileStatement: L_top: cond; JUMP_IF_FALSE L_end; body; JUMP L_top; L_end:
// break -> L_end, continue -> L_top (§4.1.4).
func (c *Compiler) whileStatement(chunk *bytecode.Bytecode) {
	top := chunk.Here()
	loop := &loopContext{parent: c.cur.loop, continueAt: top}
	c.cur.loop = loop

	c.expression(chunk)
	exitJump := chunk.Emit(bytecode.OpJumpIfFalse, -1)
	c.block(chunk)
	chunk.Emit(bytecode.OpJump, top)
	chunk.Patch(exitJump, chunk.Here())
	for _, p := range loop.breakPatches {
		chunk.Patch(p, chunk.Here())
	}
	c.cur.loop = loop.parent
}

// forStatement covers both `for x in range(a, b)` and `for x in <expr>`
// (§4.1.4): the loop bound / iterable snapshot is a compiler-synthesized
// temporary, evaluated once.
func (c *Compiler) forStatement(chunk *bytecode.Bytecode) {
	varTok := c.expect(lexer.TokenIdent, "after 'for'")
	c.expect(lexer.TokenIn, "after for-loop variable")

	if c.check(lexer.TokenIdent) && c.peek().Lexeme == "range" {
		c.forRange(chunk, varTok.Lexeme)
		return
	}
	c.forEach(chunk, varTok.Lexeme)
}

func (c *Compiler) forRange(chunk *bytecode.Bytecode, varName string) {
	c.advance() // 'range' identifier
	c.expect(lexer.TokenLParen, "after 'range'")
	c.expression(chunk) // a
	c.expect(lexer.TokenComma, "between range bounds")

	_, xSlot := c.declareTypedLocal(varName, nil)
	xIsLocal := c.cur.locals != nil
	c.emitStore(chunk, xIsLocal, xSlot)

	boundName := c.nextTemp("bound")
	_, boundSlot := c.declareTypedLocal(boundName, nil)
	boundIsLocal := c.cur.locals != nil
	c.expression(chunk) // b
	c.expect(lexer.TokenRParen, "to close range(...)")
	c.emitStore(chunk, boundIsLocal, boundSlot)

	top := chunk.Here()
	c.emitLoad(chunk, xIsLocal, xSlot)
	c.emitLoad(chunk, boundIsLocal, boundSlot)
	chunk.Emit(bytecode.OpLt, 0)
	exitJump := chunk.Emit(bytecode.OpJumpIfFalse, -1)

	loop := &loopContext{parent: c.cur.loop, continueAt: top}
	c.cur.loop = loop

	c.block(chunk)

	contAt := chunk.Here()
	loop.continueAt = contAt
	c.emitLoad(chunk, xIsLocal, xSlot)
	one := c.addConstant(chunk, value.Int(1))
	chunk.Emit(bytecode.OpLoadConst, one)
	chunk.Emit(bytecode.OpAdd, 0)
	c.emitStore(chunk, xIsLocal, xSlot)
	chunk.Emit(bytecode.OpJump, top)

	chunk.Patch(exitJump, chunk.Here())
	for _, p := range loop.breakPatches {
		chunk.Patch(p, chunk.Here())
	}
	c.cur.loop = loop.parent
	c.fixupForRangeContinue(chunk, loop, top, contAt)
}

// fixupForRangeContinue re-targets `continue` jumps emitted inside the body
// (which were compiled before contAt was known) to the increment step.
func (c *Compiler) fixupForRangeContinue(chunk *bytecode.Bytecode, loop *loopContext, bodyStart, contAt int32) {
	for i := int(bodyStart); i < int(contAt); i++ {
		ins := &chunk.Instructions[i]
		if ins.Op == bytecode.OpJump && ins.Operand == bodyStart {
			ins.Operand = contAt
		}
	}
}

func (c *Compiler) forEach(chunk *bytecode.Bytecode, varName string) {
	c.expression(chunk) // the iterable
	arrName := c.nextTemp("arr")
	_, arrSlot := c.declareTypedLocal(arrName, nil)
	arrIsLocal := c.cur.locals != nil
	c.emitStore(chunk, arrIsLocal, arrSlot)

	idxName := c.nextTemp("idx")
	_, idxSlot := c.declareTypedLocal(idxName, nil)
	idxIsLocal := c.cur.locals != nil
	zero := c.addConstant(chunk, value.Int(0))
	chunk.Emit(bytecode.OpLoadConst, zero)
	c.emitStore(chunk, idxIsLocal, idxSlot)

	lenName := c.nextTemp("len")
	_, lenSlot := c.declareTypedLocal(lenName, nil)
	lenIsLocal := c.cur.locals != nil
	c.emitLoad(chunk, arrIsLocal, arrSlot)
	chunk.Emit(bytecode.OpLen, 0)
	c.emitStore(chunk, lenIsLocal, lenSlot)

	_, xSlot := c.declareTypedLocal(varName, nil)
	xIsLocal := c.cur.locals != nil

	top := chunk.Here()
	c.emitLoad(chunk, idxIsLocal, idxSlot)
	c.emitLoad(chunk, lenIsLocal, lenSlot)
	chunk.Emit(bytecode.OpLt, 0)
	exitJump := chunk.Emit(bytecode.OpJumpIfFalse, -1)

	c.emitLoad(chunk, arrIsLocal, arrSlot)
	c.emitLoad(chunk, idxIsLocal, idxSlot)
	chunk.Emit(bytecode.OpIndexGet, 0)
	c.emitStore(chunk, xIsLocal, xSlot)

	loop := &loopContext{parent: c.cur.loop, continueAt: top}
	c.cur.loop = loop

	c.block(chunk)

	contAt := chunk.Here()
	loop.continueAt = contAt
	c.emitLoad(chunk, idxIsLocal, idxSlot)
	one := c.addConstant(chunk, value.Int(1))
	chunk.Emit(bytecode.OpLoadConst, one)
	chunk.Emit(bytecode.OpAdd, 0)
	c.emitStore(chunk, idxIsLocal, idxSlot)
	chunk.Emit(bytecode.OpJump, top)

	chunk.Patch(exitJump, chunk.Here())
	for _, p := range loop.breakPatches {
		chunk.Patch(p, chunk.Here())
	}
	c.cur.loop = loop.parent
	c.fixupForRangeContinue(chunk, loop, top, contAt)
}

// importStatement binds the imported file's exported globals Map to a
// namespace global named after the file's base name (e.g. `import "util.fun"`
// binds `util`), per SPEC_FULL §4.1 NEW.
func (c *Compiler) importStatement(chunk *bytecode.Bytecode) {
	pathTok := c.expect(lexer.TokenString, "after 'import'")
	k := c.addConstant(chunk, value.String(pathTok.Lexeme))
	chunk.Emit(bytecode.OpImport, k)

	base := filepath.Base(pathTok.Lexeme)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	slot, err := c.globals.declare(base)
	if err != nil {
		c.fail(err.Error(), pathTok)
	}
	chunk.Emit(bytecode.OpStoreGlobal, slot)
	c.endOfStatement()
}

// assignmentOrExprStatement handles `name = expr`, `name[i] = expr`,
// `name.field = expr`, and bare expression statements (§4.1.2).
func (c *Compiler) assignmentOrExprStatement(chunk *bytecode.Bytecode) {
	if !c.check(lexer.TokenIdent) {
		c.expressionStatement(chunk)
		return
	}
	save := c.pos
	nameTok := c.advance()

	// name = expr
	if c.check(lexer.TokenAssign) {
		c.advance()
		isLocal, slot := c.storeTarget(nameTok.Lexeme)
		c.expression(chunk)
		w, hasWidth := c.widthOf(nameTok.Lexeme)
		if hasWidth {
			if w.signed {
				chunk.Emit(bytecode.OpSClamp, int32(w.bits))
			} else {
				chunk.Emit(bytecode.OpUClamp, int32(w.bits))
			}
		}
		c.emitStore(chunk, isLocal, slot)
		c.endOfStatement()
		return
	}

	// indexed / member assignment: name(.field|[expr])+ '=' expr
	if c.check(lexer.TokenLBracket) || c.check(lexer.TokenDot) {
		if n, ok := c.countAccessors(); ok {
			c.indexedAssignment(chunk, nameTok, n)
			return
		}
	}

	c.pos = save
	c.expressionStatement(chunk)
}

// countAccessors looks ahead past a run of [..]/.field accessors (without
// consuming any tokens) and reports how many there are, and whether an '='
// follows them — i.e. whether this is really an indexed assignment and not
// just an indexing expression statement.
func (c *Compiler) countAccessors() (int, bool) {
	save := c.pos
	defer func() { c.pos = save }()
	n := 0
	for {
		switch {
		case c.check(lexer.TokenLBracket):
			c.advance()
			depth := 1
			for depth > 0 {
				if c.atEnd() {
					return 0, false
				}
				if c.check(lexer.TokenLBracket) {
					depth++
				} else if c.check(lexer.TokenRBracket) {
					depth--
				}
				c.advance()
			}
			n++
		case c.check(lexer.TokenDot):
			c.advance()
			if !c.check(lexer.TokenIdent) {
				return 0, false
			}
			c.advance()
			n++
		default:
			return n, c.check(lexer.TokenAssign)
		}
	}
}

// indexedAssignment compiles `name[a][b]...= expr` / `name.field = expr`
// (member access is sugar for a String-keyed index, §4.1.2). Values are
// cloned on read (§3.1), but for Array/Map that clone only bumps a
// refcount on the same underlying handle, so chained INDEX_GET on
// intermediate accessors still reaches the real nested container — only
// the final accessor needs INDEX_SET.
func (c *Compiler) indexedAssignment(chunk *bytecode.Bytecode, nameTok lexer.Token, count int) {
	isLocal, slot := c.loadTarget(nameTok.Lexeme)
	c.emitLoad(chunk, isLocal, slot)

	for i := 0; i < count; i++ {
		last := i == count-1
		if c.match(lexer.TokenDot) {
			field := c.expect(lexer.TokenIdent, "after '.'")
			k := c.addConstant(chunk, value.String(field.Lexeme))
			chunk.Emit(bytecode.OpLoadConst, k)
		} else {
			c.expect(lexer.TokenLBracket, "to begin index")
			c.expression(chunk)
			c.expect(lexer.TokenRBracket, "to close index")
		}
		if !last {
			chunk.Emit(bytecode.OpIndexGet, 0)
		}
	}
	c.expect(lexer.TokenAssign, "in indexed assignment")
	c.expression(chunk)
	chunk.Emit(bytecode.OpIndexSet, 0)
	c.endOfStatement()
}

func (c *Compiler) expressionStatement(chunk *bytecode.Bytecode) {
	c.expression(chunk)
	chunk.Emit(bytecode.OpPop, 0)
	c.endOfStatement()
}
