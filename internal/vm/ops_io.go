package vm

import (
	"os"
	"path/filepath"

	"fun/internal/bytecode"
	"fun/internal/value"
)

func (vm *VM) execIO(in bytecode.Instruction) error {
	args, err := vm.popArgs(in.Operand)
	if err != nil {
		return err
	}
	switch in.Op {
	case bytecode.OpReadFile:
		return vm.opReadFile(args)
	case bytecode.OpWriteFile:
		return vm.opWriteFile(args)
	case bytecode.OpEnv:
		return vm.opEnv(args)
	default:
		releaseAll(args...)
		return unknownOpError(in)
	}
}

// resolvePath resolves a script-relative path against the running program's
// base directory, matching IMPORT's own path resolution (§4.1 NEW).
func (vm *VM) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(vm.basePath, p)
}

func (vm *VM) opReadFile(args []value.Value) error {
	if len(args) != 1 {
		releaseAll(args...)
		return resourceError("read_file: expects 1 argument, got %d", len(args))
	}
	path := args[0]
	defer path.Release()
	if path.Kind != value.KindString {
		return typeError("read_file: expects String, got %s", kindName(path))
	}
	data, err := os.ReadFile(vm.resolvePath(path.S))
	if err != nil {
		return resourceError("read_file: %v", err)
	}
	return vm.push(value.String(string(data)))
}

func (vm *VM) opWriteFile(args []value.Value) error {
	if len(args) != 2 {
		releaseAll(args...)
		return resourceError("write_file: expects 2 arguments, got %d", len(args))
	}
	path, data := args[0], args[1]
	defer releaseAll(path, data)
	if path.Kind != value.KindString || data.Kind != value.KindString {
		return typeError("write_file: expects (String, String)")
	}
	if err := os.WriteFile(vm.resolvePath(path.S), []byte(data.S), 0o644); err != nil {
		return resourceError("write_file: %v", err)
	}
	return vm.push(value.Nil())
}

func (vm *VM) opEnv(args []value.Value) error {
	if len(args) != 1 {
		releaseAll(args...)
		return resourceError("env: expects 1 argument, got %d", len(args))
	}
	name := args[0]
	defer name.Release()
	if name.Kind != value.KindString {
		return typeError("env: expects String, got %s", kindName(name))
	}
	v, ok := os.LookupEnv(name.S)
	if !ok {
		return vm.push(value.Nil())
	}
	return vm.push(value.String(v))
}
