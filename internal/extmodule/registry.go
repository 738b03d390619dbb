// Package extmodule is the plug-in boundary for the opcodes the core
// compiler/VM deliberately keeps external (§1 non-goals): the VM never
// imports a SQL driver or an HTTP/WebSocket package directly, it only calls
// through Module.Call, looked up by module key in a Registry each time a
// CALL_EXT instruction executes.
package extmodule

import (
	"fun/internal/value"
)

// Module is one external collaborator (a database backend, a network
// client). name is the specific CALL_EXT builtin invoked (e.g.
// "sql_query"); a single Module instance typically backs several related
// builtins sharing state (connection/handle tables). Call receives
// already-evaluated arguments and returns a single Value, matching
// CALL_EXT's stack contract.
type Module interface {
	Call(name string, args []value.Value) (value.Value, error)
}

// Registry maps a module key (a Builtins entry's Module field, e.g. "sql"
// or "net") to its Module implementation.
// A fresh VM gets an empty Registry; cmd/fun registers the SQL and network
// modules at startup (§6 NEW).
type Registry struct {
	mods map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{mods: make(map[string]Module)}
}

func (r *Registry) Register(name string, mod Module) {
	r.mods[name] = mod
}

func (r *Registry) Lookup(name string) (Module, bool) {
	m, ok := r.mods[name]
	return m, ok
}
