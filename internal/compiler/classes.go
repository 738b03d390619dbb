package compiler

import (
	"fmt"

	"fun/internal/bytecode"
	"fun/internal/lexer"
	"fun/internal/value"
)

type classParam struct {
	name string
	kind string // "Number", "String", "Nil", or "" if unchecked
	w    *widthInfo
}

// classStatement compiles `class Name(type1 p1, type2 p2, …)` into a
// factory Bytecode per §4.1.6: bind+typecheck params, build __this, emit
// member funs/fields, override params over defaults, return __this.
func (c *Compiler) classStatement(chunk *bytecode.Bytecode) {
	nameTok := c.expect(lexer.TokenIdent, "after 'class'")
	params := c.classParamList()

	fn := c.compileClassFactory(nameTok.Lexeme, params)

	k := c.addConstant(chunk, value.Func(fn))
	isLocal, slot := c.declareTypedLocal(nameTok.Lexeme, nil)
	chunk.Emit(bytecode.OpLoadConst, k)
	c.emitStore(chunk, isLocal, slot)
}

func (c *Compiler) classParamList() []classParam {
	c.expect(lexer.TokenLParen, "after class name")
	var params []classParam
	if !c.check(lexer.TokenRParen) {
		for {
			typeTok := c.advance()
			kind := typeKeywordKind(typeTok.Type)
			var w *widthInfo
			if wi, ok := lexer.IntegerWidthKeywords[typeTok.Type]; ok {
				w = &widthInfo{bits: wi.Bits, signed: wi.Signed}
			}
			nameTok := c.expect(lexer.TokenIdent, "as class parameter name")
			params = append(params, classParam{name: nameTok.Lexeme, kind: kind, w: w})
			if c.match(lexer.TokenComma) {
				continue
			}
			break
		}
	}
	c.expect(lexer.TokenRParen, "to close class parameter list")
	return params
}

func typeKeywordKind(t lexer.TokenType) string {
	switch t {
	case lexer.TokenTypeNumber:
		return "Number"
	case lexer.TokenTypeString:
		return "String"
	case lexer.TokenTypeNil:
		return "Nil"
	default:
		return ""
	}
}

// compileClassFactory builds the factory Bytecode block. Parameters occupy
// local slots 0..n-1; one extra guard slot (slot n) catches any surplus
// call argument (since CALL only fills locals 0..argc-1, an unused
// declared local stays Nil — so the guard is Nil when argc<=n and
// otherwise holds the first surplus argument, however many were passed;
// a call whose first surplus argument is itself Nil passes the guard).
func (c *Compiler) compileClassFactory(name string, params []classParam) *value.Function {
	fnChunk := bytecode.New(c.file)
	fnChunk.Name = name

	locals := newLocalScope()
	for _, p := range params {
		locals.declare(p.name)
	}
	guardSlot, _ := locals.declare(c.nextTemp("guard"))

	parent := c.cur
	c.cur = &funcCtx{chunk: fnChunk, locals: locals, parent: parent}

	for i, p := range params {
		if p.kind == "" {
			continue
		}
		fnChunk.Emit(bytecode.OpLoadLocal, int32(i))
		fnChunk.Emit(bytecode.OpTypeof, 0)
		kindConst := c.addConstant(fnChunk, value.String(p.kind))
		fnChunk.Emit(bytecode.OpLoadConst, kindConst)
		fnChunk.Emit(bytecode.OpEq, 0)
		okJump := fnChunk.Emit(bytecode.OpJumpIfFalse, -1)
		pastJump := fnChunk.Emit(bytecode.OpJump, -1)
		fnChunk.Patch(okJump, fnChunk.Here())
		msg := fmt.Sprintf("TypeError: %s() expects %s for '%s'", name, p.kind, p.name)
		msgConst := c.addConstant(fnChunk, value.String(msg))
		fnChunk.Emit(bytecode.OpLoadConst, msgConst)
		fnChunk.Emit(bytecode.OpPrint, 0)
		fnChunk.Emit(bytecode.OpHalt, 0)
		fnChunk.Patch(pastJump, fnChunk.Here())
	}

	fnChunk.Emit(bytecode.OpLoadLocal, guardSlot)
	nilConst := c.addConstant(fnChunk, value.Nil())
	fnChunk.Emit(bytecode.OpLoadConst, nilConst)
	fnChunk.Emit(bytecode.OpEq, 0)
	guardOK := fnChunk.Emit(bytecode.OpJumpIfFalse, -1)
	guardPast := fnChunk.Emit(bytecode.OpJump, -1)
	fnChunk.Patch(guardOK, fnChunk.Here())
	tooMany := fmt.Sprintf("TypeError: %s() received too many arguments", name)
	tooManyConst := c.addConstant(fnChunk, value.String(tooMany))
	fnChunk.Emit(bytecode.OpLoadConst, tooManyConst)
	fnChunk.Emit(bytecode.OpPrint, 0)
	fnChunk.Emit(bytecode.OpHalt, 0)
	fnChunk.Patch(guardPast, fnChunk.Here())

	thisSlot, _ := locals.declare("__this")
	fnChunk.Emit(bytecode.OpMakeMap, 0)
	fnChunk.Emit(bytecode.OpStoreLocal, thisSlot)

	c.classBody(fnChunk, thisSlot)

	for i, p := range params {
		fnChunk.Emit(bytecode.OpLoadLocal, thisSlot)
		fieldConst := c.addConstant(fnChunk, value.String(p.name))
		fnChunk.Emit(bytecode.OpLoadConst, fieldConst)
		fnChunk.Emit(bytecode.OpLoadLocal, int32(i))
		fnChunk.Emit(bytecode.OpIndexSet, 0)
	}

	fnChunk.Emit(bytecode.OpLoadLocal, thisSlot)
	fnChunk.Emit(bytecode.OpReturn, 0)

	c.cur = parent

	return &value.Function{Name: name, Arity: len(params), Chunk: fnChunk}
}

// classBody compiles the class's indented member block: `fun name(this, …)`
// bound as __this["name"], and `field = expr` bound as __this["field"].
func (c *Compiler) classBody(fnChunk *bytecode.Bytecode, thisSlot int32) {
	c.skipNewlines()
	c.expect(lexer.TokenIndent, "to begin class body")
	c.skipNewlines()
	for !c.check(lexer.TokenDedent) && !c.atEnd() {
		tok := c.peek()
		fnChunk.Emit(bytecode.OpLine, int32(tok.Line))
		switch {
		case c.match(lexer.TokenFun):
			c.classMethod(fnChunk, thisSlot)
		default:
			c.classField(fnChunk, thisSlot)
		}
		c.skipNewlines()
	}
	c.expect(lexer.TokenDedent, "to end class body")
}

func (c *Compiler) classMethod(fnChunk *bytecode.Bytecode, thisSlot int32) {
	nameTok := c.expect(lexer.TokenIdent, "after 'fun' in class body")
	params := c.paramList()
	if len(params) == 0 || params[0] != "this" {
		c.fail("class method "+nameTok.Lexeme+" must declare 'this' as its first parameter", nameTok)
	}
	method := c.compileFunctionBody(nameTok.Lexeme, params)
	methodConst := c.addConstant(fnChunk, value.Func(method))

	fnChunk.Emit(bytecode.OpLoadLocal, thisSlot)
	keyConst := c.addConstant(fnChunk, value.String(nameTok.Lexeme))
	fnChunk.Emit(bytecode.OpLoadConst, keyConst)
	fnChunk.Emit(bytecode.OpLoadConst, methodConst)
	fnChunk.Emit(bytecode.OpIndexSet, 0)
}

func (c *Compiler) classField(fnChunk *bytecode.Bytecode, thisSlot int32) {
	nameTok := c.expect(lexer.TokenIdent, "as class field name")
	c.expect(lexer.TokenAssign, "after class field name")

	fnChunk.Emit(bytecode.OpLoadLocal, thisSlot)
	keyConst := c.addConstant(fnChunk, value.String(nameTok.Lexeme))
	fnChunk.Emit(bytecode.OpLoadConst, keyConst)
	c.expression(fnChunk)
	fnChunk.Emit(bytecode.OpIndexSet, 0)
	c.endOfStatement()
}
