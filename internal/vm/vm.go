// Package vm implements the stack-based bytecode virtual machine: a value
// stack, a frame stack of bounded depth, process-wide global slots, an
// output buffer, and hooks for the debugger and extension-module registry.
package vm

import (
	"fmt"
	"math/rand"

	"fun/internal/bytecode"
	"fun/internal/debugger"
	vmerrors "fun/internal/errors"
	"fun/internal/extmodule"
	"fun/internal/value"
)

const (
	maxValueStack = 1024
	maxFrames     = 128
	maxGlobals    = 128
)

// Trap is the installed error-trap callback (§4.5): when set, a fatal
// runtime error transfers control to it instead of terminating the run.
type Trap func(err error)

// VM holds all state for one execution: the value stack, frame stack,
// globals, output buffer, debugger, and extension registry. Nothing here
// is safe for concurrent use from more than one goroutine (§5).
type VM struct {
	stack []value.Value
	sp    int

	frames     []*Frame
	globals    [maxGlobals]value.Value
	globalSeen [maxGlobals]bool

	output []value.Value

	Debugger *debugger.Debugger
	Registry *extmodule.Registry

	// DebugHook is invoked synchronously whenever the debugger decides
	// execution should stop (breakpoint or step anchor), per §4.4 step 1.
	// It may call the Debugger's Request* methods, inspect vm.DumpGlobals,
	// or leave step mode in place to stop again at the very next instruction.
	DebugHook func(vm *VM)

	Tracing    bool
	TraceColor bool
	tracer     *tracer

	trap    Trap
	exit    bool
	exitCod int

	instrCount  int64
	currentFile string
	currentLine int

	rng *rand.Rand

	modules  map[string]*value.Map
	loading  map[string]bool
	basePath string
}

// New builds a VM with empty globals, no registered extension modules, and
// tracing/debugging off. Callers register extmodule.Module implementations
// via vm.Registry.Register before running untrusted CALL_EXT-using programs.
func New() *VM {
	return &VM{
		stack:    make([]value.Value, maxValueStack),
		frames:   make([]*Frame, 0, maxFrames),
		Debugger: debugger.New(),
		Registry: extmodule.NewRegistry(),
		rng:      rand.New(rand.NewSource(1)),
		modules:  make(map[string]*value.Map),
		loading:  make(map[string]bool),
	}
}

// SetTrap installs the error-trap callback (§4.5/§6).
func (vm *VM) SetTrap(t Trap) { vm.trap = t }

// SetBasePath sets the directory IMPORT resolves relative module paths
// against (normally the directory of the top-level file being run).
func (vm *VM) SetBasePath(dir string) { vm.basePath = dir }

// Reset clears all mutable execution state, leaving registered extension
// modules and the error trap in place (§6 `vm_reset`).
func (vm *VM) Reset() {
	for i := range vm.stack {
		vm.stack[i] = value.Value{}
	}
	vm.sp = 0
	vm.frames = vm.frames[:0]
	for i := range vm.globals {
		vm.globals[i] = value.Value{}
		vm.globalSeen[i] = false
	}
	vm.output = nil
	vm.exit = false
	vm.exitCod = 0
	vm.instrCount = 0
	vm.currentLine = 0
	vm.modules = make(map[string]*value.Map)
	vm.loading = make(map[string]bool)
	vm.Debugger.Reset()
}

// Output returns the values PRINT has appended so far, in order (§6
// `vm_print_output`); callers typically stringify each via value.FormatForPrint.
func (vm *VM) Output() []value.Value { return vm.output }

// ClearOutput empties the output buffer (§6 `vm_clear_output`).
func (vm *VM) ClearOutput() { vm.output = nil }

// ExitCode reports the code set by an EXIT instruction, if any.
func (vm *VM) ExitCode() int { return vm.exitCod }

// DumpGlobals renders the declared global slots for debugging (§6
// `vm_dump_globals`); slots never written are omitted.
func (vm *VM) DumpGlobals() map[int]value.Value {
	out := make(map[int]value.Value)
	for i, seen := range vm.globalSeen {
		if seen {
			out[i] = vm.globals[i]
		}
	}
	return out
}

// ---- stack helpers -------------------------------------------------------

func (vm *VM) push(v value.Value) error {
	if vm.sp >= len(vm.stack) {
		return vmerrors.NewRuntimeError(vmerrors.BoundsError, "value stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() (value.Value, error) {
	if vm.sp == 0 {
		return value.Value{}, vmerrors.NewRuntimeError(vmerrors.BoundsError, "value stack underflow")
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Value{}
	return v, nil
}

func (vm *VM) peek(offset int) (value.Value, error) {
	i := vm.sp - 1 - offset
	if i < 0 {
		return value.Value{}, vmerrors.NewRuntimeError(vmerrors.BoundsError, "value stack underflow on peek")
	}
	return vm.stack[i], nil
}

func (vm *VM) frame() *Frame { return vm.frames[len(vm.frames)-1] }

// ---- run loop -------------------------------------------------------------

// Run executes program to completion (HALT, EXIT, or the frame stack
// emptying) starting a fresh top-level frame, per §4.4's fetch-execute
// contract. It returns the error-trap-free result: a nil error on a clean
// stop, or the first fatal *vmerrors.RuntimeError encountered.
func (vm *VM) Run(program *bytecode.Bytecode) error {
	vm.currentFile = program.File
	vm.frames = append(vm.frames, newFrame(program))
	if vm.tracer == nil && vm.Tracing {
		vm.tracer = newTracer(vm.TraceColor)
	}

	err := vm.loop()
	if err != nil && vm.trap != nil {
		vm.trap(err)
		return nil
	}
	return err
}

func (vm *VM) loop() error {
	for len(vm.frames) > 0 {
		f := vm.frame()

		if vm.DebugHook != nil && vm.Debugger.ShouldStop(len(vm.frames), vm.instrCount) {
			vm.DebugHook(vm)
		}

		if f.IP < 0 || int(f.IP) >= len(f.Chunk.Instructions) {
			// implicit RETURN Nil on fallthrough (§4.4.4)
			if err := vm.doReturn(value.Nil()); err != nil {
				return err
			}
			continue
		}

		instr := f.Chunk.Instructions[f.IP]
		ip := f.IP
		f.IP++
		vm.instrCount++

		if vm.tracer != nil {
			vm.tracer.before(vm, f, ip, instr)
		}

		if err := vm.execute(instr); err != nil {
			rerr, ok := err.(*vmerrors.RuntimeError)
			if !ok {
				rerr = vmerrors.NewRuntimeError(vmerrors.ResourceError, err.Error())
			}
			return rerr.WithLocation(f.Chunk.File, vm.currentLine, instr.Op.String(), int(ip))
		}

		if vm.exit {
			return nil
		}
		if instr.Op == bytecode.OpHalt {
			return nil
		}
	}
	return nil
}

// execute dispatches one instruction; core/control opcodes are handled
// inline, the rest fan out to the per-category handlers in ops_*.go.
func (vm *VM) execute(in bytecode.Instruction) error {
	switch in.Op {
	case bytecode.OpNop:
		return nil
	case bytecode.OpLine:
		vm.currentLine = int(in.Operand)
		if vm.DebugHook != nil && vm.Debugger.BreakpointHit(vm.currentFile, vm.currentLine) {
			vm.DebugHook(vm)
		}
		return nil

	case bytecode.OpLoadConst:
		return vm.opLoadConst(in.Operand)
	case bytecode.OpLoadLocal:
		return vm.push(vm.frame().Locals[in.Operand].Clone())
	case bytecode.OpStoreLocal:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		f := vm.frame()
		f.Locals[in.Operand].Release()
		f.Locals[in.Operand] = v
		return nil
	case bytecode.OpLoadGlobal:
		return vm.push(vm.globals[in.Operand].Clone())
	case bytecode.OpStoreGlobal:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.globals[in.Operand].Release()
		vm.globals[in.Operand] = v
		vm.globalSeen[in.Operand] = true
		return nil

	case bytecode.OpPop:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		v.Release()
		return nil
	case bytecode.OpDup:
		v, err := vm.peek(0)
		if err != nil {
			return err
		}
		return vm.push(v.Clone())
	case bytecode.OpSwap:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		b, err := vm.pop()
		if err != nil {
			return err
		}
		if err := vm.push(a); err != nil {
			return err
		}
		return vm.push(b)

	case bytecode.OpJump:
		vm.frame().IP = in.Operand
		return nil
	case bytecode.OpJumpIfFalse:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		t := v.Truthy()
		v.Release()
		if !t {
			vm.frame().IP = in.Operand
		}
		return nil

	case bytecode.OpCall:
		return vm.opCall(int(in.Operand))
	case bytecode.OpReturn:
		v, err := vm.pop()
		if err != nil {
			v = value.Nil()
		}
		return vm.doReturn(v)

	case bytecode.OpPrint:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.output = append(vm.output, v.DeepClone())
		v.Release()
		return nil

	case bytecode.OpHalt:
		return nil
	case bytecode.OpExit:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.exitCod = exitCodeOf(v)
		v.Release()
		vm.exit = true
		return nil

	case bytecode.OpImport:
		return vm.opImport(in.Operand)
	case bytecode.OpCallExt:
		return vm.opCallExt(in.Operand)
	case bytecode.OpTryPush:
		vm.frame().TryHandlers = append(vm.frame().TryHandlers, in.Operand)
		return nil
	case bytecode.OpTryPop:
		f := vm.frame()
		if len(f.TryHandlers) > 0 {
			f.TryHandlers = f.TryHandlers[:len(f.TryHandlers)-1]
		}
		return nil
	case bytecode.OpThrow:
		return vm.opThrow()

	default:
		return vm.executeExtended(in)
	}
}

func (vm *VM) opLoadConst(k int32) error {
	f := vm.frame()
	if int(k) < 0 || int(k) >= len(f.Chunk.Constants) {
		return vmerrors.NewRuntimeError(vmerrors.BoundsError, "constant index out of range")
	}
	v, ok := f.Chunk.Constants[k].(value.Value)
	if !ok {
		return vmerrors.NewRuntimeError(vmerrors.BoundsError, "malformed constant pool entry")
	}
	return vm.push(v.Clone())
}

func (vm *VM) opCall(argc int) error {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	fnVal, err := vm.pop()
	if err != nil {
		return err
	}
	if fnVal.Kind != value.KindFunction {
		return vmerrors.NewRuntimeError(vmerrors.TypeErrorKind, fmt.Sprintf("CALL target is not a Function (got %s)", fnVal.Kind))
	}
	if argc > maxLocals {
		releaseAll(args...)
		return vmerrors.NewRuntimeError(vmerrors.BoundsError, fmt.Sprintf("CALL: %d arguments exceeds the %d-local frame limit", argc, maxLocals))
	}
	if len(vm.frames) >= maxFrames {
		releaseAll(args...)
		return vmerrors.NewRuntimeError(vmerrors.BoundsError, "call frame overflow")
	}
	nf := newFrame(fnVal.Fn.Chunk)
	copy(nf.Locals[:argc], args)
	vm.frames = append(vm.frames, nf)
	return nil
}

// doReturn pops the current frame and pushes v onto the caller's stack; if
// the popped frame was the outermost one, execution simply stops.
func (vm *VM) doReturn(v value.Value) error {
	f := vm.frame()
	for _, local := range f.Locals {
		local.Release()
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		v.Release()
		return nil
	}
	return vm.push(v)
}

// opThrow implements §7's scaffolding contract: unwind to the nearest
// TRY_PUSH target in the current frame and push the thrown value.
func (vm *VM) opThrow() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	f := vm.frame()
	if len(f.TryHandlers) == 0 {
		return vmerrors.NewRuntimeError(vmerrors.ResourceError, "THROW with no active TRY_PUSH handler")
	}
	target := f.TryHandlers[len(f.TryHandlers)-1]
	f.TryHandlers = f.TryHandlers[:len(f.TryHandlers)-1]
	f.IP = target
	return vm.push(v)
}

func exitCodeOf(v value.Value) int {
	switch v.Kind {
	case value.KindNil:
		return 0
	case value.KindInt:
		return int(v.I)
	case value.KindString:
		n := int64(0)
		fmt.Sscanf(v.S, "%d", &n)
		return int(n)
	default:
		return 0
	}
}
