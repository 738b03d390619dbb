package extmodule

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"fun/internal/value"
)

// SQLModule backs the sql_connect/sql_query/sql_exec/sql_close CALL_EXT
// builtins over database/sql, grounded on internal/database's connection
// manager: a registry of live *sql.DB handles keyed by an opaque uuid
// string handed back to Fun code.
type SQLModule struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

func NewSQLModule() *SQLModule {
	return &SQLModule{conns: make(map[string]*sql.DB)}
}

// Call dispatches by which builtin name invoked it; the VM always passes
// exactly the argc declared in Builtins, and the handlers index args
// directly without checking its length.
func (m *SQLModule) Call(name string, args []value.Value) (value.Value, error) {
	switch name {
	case "sql_connect":
		return m.connect(args)
	case "sql_query":
		return m.query(args)
	case "sql_exec":
		return m.exec(args)
	case "sql_close":
		return m.close(args)
	default:
		return value.Nil(), errors.Errorf("sql: unknown builtin %q", name)
	}
}

func driverName(kind string) (string, error) {
	switch kind {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "mssql", "sqlserver":
		return "sqlserver", nil
	default:
		return "", errors.Errorf("sql: unsupported driver %q", kind)
	}
}

func (m *SQLModule) connect(args []value.Value) (value.Value, error) {
	driver, err := driverName(args[0].S)
	if err != nil {
		return value.Nil(), err
	}
	db, err := sql.Open(driver, args[1].S)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "sql_connect")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return value.Nil(), errors.Wrap(err, "sql_connect")
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.conns[id] = db
	m.mu.Unlock()
	return value.String(id), nil
}

func (m *SQLModule) handle(id string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.conns[id]
	if !ok {
		return nil, errors.Errorf("sql: handle %q not found", id)
	}
	return db, nil
}

func (m *SQLModule) query(args []value.Value) (value.Value, error) {
	db, err := m.handle(args[0].S)
	if err != nil {
		return value.Nil(), err
	}
	rows, err := db.Query(args[1].S)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "sql_query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return value.Nil(), errors.Wrap(err, "sql_query")
	}

	result := value.NewArray()
	rawVals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range rawVals {
		ptrs[i] = &rawVals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return value.Nil(), errors.Wrap(err, "sql_query")
		}
		row := value.NewMap()
		for i, col := range cols {
			row.Set(col, sqlValueToFun(rawVals[i]))
		}
		result.Push(value.FromMap(row))
	}
	return value.FromArray(result), rows.Err()
}

func sqlValueToFun(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Nil()
	case int64:
		return value.Int(t)
	case float64:
		return value.Float(t)
	case bool:
		return value.Bool(t)
	case []byte:
		return value.String(string(t))
	case string:
		return value.String(t)
	default:
		return value.String(fmt.Sprintf("%v", t))
	}
}

func (m *SQLModule) exec(args []value.Value) (value.Value, error) {
	db, err := m.handle(args[0].S)
	if err != nil {
		return value.Nil(), err
	}
	res, err := db.Exec(args[1].S)
	if err != nil {
		return value.Nil(), errors.Wrap(err, "sql_exec")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return value.Nil(), errors.Wrap(err, "sql_exec")
	}
	return value.Int(affected), nil
}

func (m *SQLModule) close(args []value.Value) (value.Value, error) {
	m.mu.Lock()
	db, ok := m.conns[args[0].S]
	if ok {
		delete(m.conns, args[0].S)
	}
	m.mu.Unlock()
	if !ok {
		return value.Nil(), errors.Errorf("sql: handle %q not found", args[0].S)
	}
	if err := db.Close(); err != nil {
		return value.Nil(), errors.Wrap(err, "sql_close")
	}
	return value.Nil(), nil
}
