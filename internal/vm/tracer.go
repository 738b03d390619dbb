package vm

import (
	"fmt"
	"io"
	"os"

	"fun/internal/bytecode"
	"github.com/dustin/go-humanize"
	"github.com/kr/text"
)

// tracer renders one structured line per executed instruction (§4.4): file,
// line, function name, ip, opcode, operand, and up to four top-of-stack
// values, purely observational.
type tracer struct {
	out   io.Writer
	color bool
	count int64
}

// newTracer's color argument is normally the result of isatty.IsTerminal on
// the destination fd, decided by the caller (cmd/fun) via VM.TraceColor;
// this package itself has no terminal dependency.
func newTracer(color bool) *tracer {
	return &tracer{out: os.Stderr, color: color}
}

func (t *tracer) before(vm *VM, f *Frame, ip int32, instr bytecode.Instruction) {
	t.count++
	stack := t.topValues(vm, 4)
	depth := len(vm.frames) - 1
	opName := instr.Op.String()
	if t.color {
		opName = "\x1b[36m" + opName + "\x1b[0m"
	}
	line := fmt.Sprintf("#%s %s:%d in %s ip=%d  %s %d  stack=%v",
		humanize.Comma(t.count), f.Chunk.File, vm.currentLine, f.Chunk.Name, ip,
		opName, instr.Operand, stack)
	io.WriteString(t.out, text.Indent(line, indentFor(depth))+"\n")
}

func indentFor(depth int) string {
	if depth <= 0 {
		return ""
	}
	out := make([]byte, depth*2)
	for i := range out {
		out[i] = ' '
	}
	return string(out)
}

func (t *tracer) topValues(vm *VM, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v, err := vm.peek(i)
		if err != nil {
			break
		}
		out = append(out, v.ToString())
	}
	return out
}
