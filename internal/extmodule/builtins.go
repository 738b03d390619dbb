package extmodule

// Builtins is the process-wide ordered table of CALL_EXT names: the
// compiler emits CALL_EXT with an operand indexing this table (§4.1.7 NEW),
// and the VM takes the entry at instructions[ip].Operand and looks its
// Module key up in the Registry. Argc records the fixed argument count the
// compiler must enforce at the call site.
var Builtins = []struct {
	Name   string
	Argc   int
	Module string // registry key a VM resolves this builtin's handler through
}{
	{"sql_connect", 2, "sql"}, // (driver, dsn) -> handle string
	{"sql_query", 2, "sql"},   // (handle, query) -> Array of row Maps
	{"sql_exec", 2, "sql"},    // (handle, statement) -> Int rows affected
	{"sql_close", 1, "sql"},   // (handle) -> Nil
	{"http_get", 1, "net"},    // (url) -> Map{status, body}
	{"http_post", 2, "net"},   // (url, body) -> Map{status, body}
	{"ws_dial", 1, "net"},     // (url) -> handle string
	{"ws_send", 2, "net"},     // (handle, message) -> Nil
	{"ws_recv", 1, "net"},     // (handle) -> String
	{"ws_close", 1, "net"},    // (handle) -> Nil
}

// BuiltinIndex resolves a CALL_EXT name to its table index at compile time.
func BuiltinIndex(name string) (int, bool) {
	for i, b := range Builtins {
		if b.Name == name {
			return i, true
		}
	}
	return 0, false
}
