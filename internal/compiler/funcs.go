package compiler

import (
	"fun/internal/bytecode"
	"fun/internal/lexer"
	"fun/internal/value"
)

// funStatement compiles `fun name(p1, p2, …)` into its own Bytecode block,
// bound to a global Function constant (§4.1.2, §4.1.3).
func (c *Compiler) funStatement(chunk *bytecode.Bytecode) {
	nameTok := c.expect(lexer.TokenIdent, "after 'fun'")
	params := c.paramList()
	fn := c.compileFunctionBody(nameTok.Lexeme, params)

	k := c.addConstant(chunk, value.Func(fn))
	isLocal, slot := c.declareTypedLocal(nameTok.Lexeme, nil)
	chunk.Emit(bytecode.OpLoadConst, k)
	c.emitStore(chunk, isLocal, slot)
}

// paramList parses `(p1, p2, …)`, returning the parameter names in order.
func (c *Compiler) paramList() []string {
	c.expect(lexer.TokenLParen, "after function name")
	var params []string
	if !c.check(lexer.TokenRParen) {
		for {
			p := c.expect(lexer.TokenIdent, "as parameter name")
			params = append(params, p.Lexeme)
			if c.match(lexer.TokenComma) {
				continue
			}
			break
		}
	}
	c.expect(lexer.TokenRParen, "to close parameter list")
	return params
}

// compileFunctionBody compiles an indented block as a standalone Bytecode
// with its own local scope, params occupying slots 0..argc-1 (§4.1.3).
func (c *Compiler) compileFunctionBody(name string, params []string) *value.Function {
	fnChunk := bytecode.New(c.file)
	fnChunk.Name = name

	locals := newLocalScope()
	for _, p := range params {
		locals.declare(p)
	}

	parent := c.cur
	c.cur = &funcCtx{chunk: fnChunk, locals: locals, parent: parent}

	c.block(fnChunk)

	// implicit `return nil` if the body falls through (§4.4 item 4).
	nilConst := c.addConstant(fnChunk, value.Nil())
	fnChunk.Emit(bytecode.OpLoadConst, nilConst)
	fnChunk.Emit(bytecode.OpReturn, 0)

	c.cur = parent

	return &value.Function{Name: name, Arity: len(params), Chunk: fnChunk}
}
