// Package compiler implements Fun's single-pass, indentation-sensitive
// compiler: it walks the token stream and emits bytecode directly, with no
// separate AST pass (spec §4.1).
package compiler

import (
	"fmt"
	"os"

	"fun/internal/bytecode"
	cerrors "fun/internal/errors"
	"fun/internal/lexer"
	"fun/internal/value"
)

// funcCtx is the compilation context for one Bytecode block: the outer
// program, or a nested function/class-method/class-factory body.
type funcCtx struct {
	chunk  *bytecode.Bytecode
	locals *localScope // nil for the top-level program (it only has globals)
	parent *funcCtx
	loop   *loopContext
}

type Compiler struct {
	toks    []lexer.Token
	pos     int
	file    string
	globals *globalTable
	cur     *funcCtx
	temp    int
}

func newCompiler(file string) *Compiler {
	return &Compiler{file: file, globals: newGlobalTable()}
}

// CompileString compiles Fun source text into a top-level Bytecode program.
func CompileString(src, file string) (bc *bytecode.Bytecode, err error) {
	toks, lexErr := lexer.Scan(src)
	if lexErr != nil {
		if le, ok := lexErr.(*lexer.Error); ok {
			return nil, cerrors.NewCompileError(le.Message, le.Line, le.Column)
		}
		return nil, cerrors.NewCompileError(lexErr.Error(), 0, 0)
	}
	c := newCompiler(file)
	c.toks = toks
	program := bytecode.New(file)
	program.Name = "<main>"
	c.cur = &funcCtx{chunk: program}

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*cerrors.CompileError); ok {
				bc, err = nil, ce
				return
			}
			panic(r)
		}
	}()

	c.skipNewlines()
	for !c.check(lexer.TokenEOF) {
		c.statement(program)
		c.skipNewlines()
	}
	program.Emit(bytecode.OpHalt, 0)
	program.GlobalNames = c.globals.order
	return program, nil
}

// CompileFile reads path and compiles it.
func CompileFile(path string) (*bytecode.Bytecode, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return CompileString(string(src), path)
}

// ---- token cursor -------------------------------------------------------

func (c *Compiler) peek() lexer.Token  { return c.toks[c.pos] }
func (c *Compiler) prev() lexer.Token  { return c.toks[c.pos-1] }
func (c *Compiler) atEnd() bool        { return c.peek().Type == lexer.TokenEOF }
func (c *Compiler) check(t lexer.TokenType) bool {
	return c.peek().Type == t
}

func (c *Compiler) advance() lexer.Token {
	if !c.atEnd() {
		c.pos++
	}
	return c.prev()
}

func (c *Compiler) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if c.check(t) {
			c.advance()
			return true
		}
	}
	return false
}

func (c *Compiler) expect(t lexer.TokenType, context string) lexer.Token {
	if c.check(t) {
		return c.advance()
	}
	tok := c.peek()
	c.fail(fmt.Sprintf("expected %s %s, got %s %q", t, context, tok.Type, tok.Lexeme), tok)
	panic("unreachable")
}

func (c *Compiler) fail(msg string, tok lexer.Token) {
	panic(cerrors.NewCompileError(msg, tok.Line, tok.Column))
}

func (c *Compiler) skipNewlines() {
	for c.check(lexer.TokenNewline) {
		c.advance()
	}
}

// block expects an INDENT, compiles statements until a matching DEDENT.
func (c *Compiler) block(chunk *bytecode.Bytecode) {
	c.skipNewlines()
	c.expect(lexer.TokenIndent, "to begin a block")
	c.skipNewlines()
	for !c.check(lexer.TokenDedent) && !c.atEnd() {
		c.statement(chunk)
		c.skipNewlines()
	}
	c.expect(lexer.TokenDedent, "to end a block")
}

func (c *Compiler) nextTemp(prefix string) string {
	c.temp++
	return fmt.Sprintf("$%s%d", prefix, c.temp)
}

// ---- global/local resolution --------------------------------------------

// storeTarget implements §4.1.3: inside a function a bare
// `name = expr` uses an existing local if one exists, otherwise creates a
// *global* (never an implicit new local); typed declarations go through
// declareTypedLocal instead, which adds a local when inside a function and
// a global otherwise.
func (c *Compiler) storeTarget(name string) (isLocal bool, slot int32) {
	if c.cur.locals != nil {
		if idx, ok := c.cur.locals.resolve(name); ok {
			return true, idx
		}
	}
	idx, err := c.globals.declare(name)
	if err != nil {
		c.fail(err.Error(), c.prev())
	}
	return false, idx
}

func (c *Compiler) loadTarget(name string) (isLocal bool, slot int32) {
	if c.cur.locals != nil {
		if idx, ok := c.cur.locals.resolve(name); ok {
			return true, idx
		}
	}
	idx, err := c.globals.declare(name)
	if err != nil {
		c.fail(err.Error(), c.prev())
	}
	return false, idx
}

func (c *Compiler) declareTypedLocal(name string, w *widthInfo) (isLocal bool, slot int32) {
	if c.cur.locals != nil {
		idx, err := c.cur.locals.declare(name)
		if err != nil {
			c.fail(err.Error(), c.prev())
		}
		if w != nil {
			c.cur.locals.setWidth(name, *w)
		}
		return true, idx
	}
	idx, err := c.globals.declare(name)
	if err != nil {
		c.fail(err.Error(), c.prev())
	}
	if w != nil {
		c.globals.setWidth(name, *w)
	}
	return false, idx
}

func (c *Compiler) emitLoad(chunk *bytecode.Bytecode, isLocal bool, slot int32) {
	if isLocal {
		chunk.Emit(bytecode.OpLoadLocal, slot)
	} else {
		chunk.Emit(bytecode.OpLoadGlobal, slot)
	}
}

func (c *Compiler) emitStore(chunk *bytecode.Bytecode, isLocal bool, slot int32) {
	if isLocal {
		chunk.Emit(bytecode.OpStoreLocal, slot)
	} else {
		chunk.Emit(bytecode.OpStoreGlobal, slot)
	}
}

// widthOf looks up a declared width for a name visible from the current
// scope, used by TYPEOF's compile-time substitution (§4.2).
func (c *Compiler) widthOf(name string) (widthInfo, bool) {
	if c.cur.locals != nil {
		if w, ok := c.cur.locals.width(name); ok {
			return w, true
		}
	}
	return c.globals.width(name)
}

func (c *Compiler) addConstant(chunk *bytecode.Bytecode, v value.Value) int32 {
	return chunk.AddConstant(v)
}
