package vm

import (
	"path/filepath"

	"fun/internal/compiler"
	"fun/internal/extmodule"
	"fun/internal/value"
)

// opImport implements IMPORT k (SPEC_FULL §4.1 NEW): resolve the constant at
// k to a module path, compile and run it once (memoized by resolved path),
// and push its exported globals as a Map.
func (vm *VM) opImport(k int32) error {
	f := vm.frame()
	if int(k) < 0 || int(k) >= len(f.Chunk.Constants) {
		return resourceError("IMPORT: constant index out of range")
	}
	pathVal, ok := f.Chunk.Constants[k].(value.Value)
	if !ok || pathVal.Kind != value.KindString {
		return resourceError("IMPORT: malformed path constant")
	}
	resolved := vm.resolvePath(pathVal.S)

	if cached, ok := vm.modules[resolved]; ok {
		return vm.push(value.FromMap(cached))
	}
	if vm.loading[resolved] {
		return resourceError("IMPORT: circular import of %q", resolved)
	}

	program, err := compiler.CompileFile(resolved)
	if err != nil {
		return resourceError("IMPORT: %v", err)
	}

	vm.loading[resolved] = true
	child := New()
	child.Registry = vm.Registry
	child.loading = vm.loading
	child.SetBasePath(filepath.Dir(resolved))
	runErr := child.Run(program)
	delete(vm.loading, resolved)
	if runErr != nil {
		return runErr
	}

	m := value.NewMap()
	for i, name := range program.GlobalNames {
		if i < len(child.globals) && child.globalSeen[i] {
			m.Set(name, child.globals[i])
		}
	}
	// The cache owns a permanent reference; a module stays alive and
	// identical across every import site for the life of this VM.
	m.Retain()
	vm.modules[resolved] = m
	return vm.push(value.FromMap(m))
}

// opCallExt implements CALL_EXT k (SPEC_FULL §4.2 NEW): k indexes
// extmodule.Builtins, whose Argc the compiler already enforced at the call
// site; resolve the backing Module through the Registry and delegate.
func (vm *VM) opCallExt(k int32) error {
	if int(k) < 0 || int(k) >= len(extmodule.Builtins) {
		return resourceError("CALL_EXT: builtin index out of range")
	}
	b := extmodule.Builtins[k]

	args, err := vm.popArgs(int32(b.Argc))
	if err != nil {
		return err
	}

	mod, ok := vm.Registry.Lookup(b.Module)
	if !ok {
		releaseAll(args...)
		return resourceError("CALL_EXT: extension module %q not registered", b.Module)
	}
	result, callErr := mod.Call(b.Name, args)
	if callErr != nil {
		return resourceError("CALL_EXT %s: %v", b.Name, callErr)
	}
	return vm.push(result)
}
