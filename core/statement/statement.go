// Package statement provides typed, resource-safe execution of SQL on an
// engine connection.
//
// A Statement is the exclusive owner of one compiled statement handle for
// its whole life: prepare, then any number of bind/step/reset cycles, then
// Close. All execution goes through the blocking layer, so shared-cache
// contention suspends the calling goroutine instead of surfacing as a
// transient failure.
//
// Ordinary bind and query failures are reported as a status on the
// Statement, not as errors; callers check Ok or Done after terminal
// operations. A Statement must not be driven by two goroutines at once —
// share the database, not the statement.
package statement

import (
	"strings"

	"github.com/FocuswithJustin/sqlock/core/blocking"
	"github.com/FocuswithJustin/sqlock/core/engine"
)

// Statement wraps one compiled statement and the status of the most recent
// operation on it.
type Statement struct {
	conn *engine.Conn
	stmt *engine.Stmt // nil when construction failed
	rc   engine.Code
}

// Prepare compiles the first statement in sql and, strictly, requires the
// rest of sql to be nothing but whitespace and comments. When trailing SQL
// is found it is discarded without running and the status is forced to an
// error, but the first statement stays compiled: Reset recovers the
// Statement and it runs normally. Use PrepareLoose to ignore trailing text.
func Prepare(conn *engine.Conn, sql string) *Statement {
	st, tail := prepareFirst(conn, sql)
	if st.stmt == nil || st.rc != engine.Ok {
		return st
	}
	st.rc = checkTrailing(conn, tail)
	return st
}

// PrepareLoose compiles the first statement in sql and ignores anything
// after it unconditionally.
func PrepareLoose(conn *engine.Conn, sql string) *Statement {
	st, _ := prepareFirst(conn, sql)
	return st
}

func prepareFirst(conn *engine.Conn, sql string) (*Statement, string) {
	stmt, tail, rc := blocking.Prepare(conn, sql)
	if rc == engine.Ok && stmt == nil {
		// Nothing but whitespace or comments compiles to nothing runnable.
		rc = engine.ErrGeneric
	}
	return &Statement{conn: conn, stmt: stmt, rc: rc}, tail
}

// checkTrailing compiles the remainder just far enough to learn whether it
// holds a real statement. Whatever compiles is finalized immediately, never
// run.
func checkTrailing(conn *engine.Conn, tail string) engine.Code {
	for strings.TrimSpace(tail) != "" {
		stmt, rest, rc := blocking.Prepare(conn, tail)
		if rc != engine.Ok {
			return rc
		}
		if stmt != nil {
			stmt.Finalize()
			return engine.ErrGeneric
		}
		if rest == tail {
			break // no progress; nothing further to find
		}
		tail = rest
	}
	return engine.Ok
}

// Ok reports whether the most recent operation succeeded.
func (st *Statement) Ok() bool { return st.rc == engine.Ok }

// Done reports whether the most recent operation ran the statement to
// completion.
func (st *Statement) Done() bool { return st.rc == engine.Done }

// Code returns the raw status of the most recent operation.
func (st *Statement) Code() engine.Code { return st.rc }

// ErrText returns the engine's description of the current status.
func (st *Statement) ErrText() string { return st.rc.Errstr() }

// Reset rewinds the statement to before its first row without touching
// bound parameters, and clears any sticky error status. Resetting a
// Statement that owns no handle leaves it in the error state.
func (st *Statement) Reset() bool {
	if st.stmt == nil {
		st.rc = engine.ErrGeneric
		return false
	}
	st.stmt.Reset()
	st.rc = engine.Ok
	return true
}

// ClearBindings sets every parameter back to NULL. Unlike Reset this does
// not rewind the statement.
func (st *Statement) ClearBindings() bool {
	if st.stmt == nil {
		st.rc = engine.ErrGeneric
		return false
	}
	st.rc = st.stmt.ClearBindings()
	return st.rc == engine.Ok
}

// Bind resets the statement and binds values positionally, left to right,
// stopping at the first failure. Supported values are int, int64, float64,
// string, []byte, bools, Null of any of these, and nil for SQL NULL.
func (st *Statement) Bind(values ...any) bool {
	if !st.Reset() {
		return false
	}
	return st.bindAll(values)
}

// BindCopy is Bind with eager-copy semantics for text and blob values. The
// pure-Go engine boundary copies at bind time either way, so both forms are
// safe for transient buffers; BindCopy exists for parity with the C calling
// convention where the distinction matters.
func (st *Statement) BindCopy(values ...any) bool {
	return st.Bind(values...)
}

func (st *Statement) bindAll(values []any) bool {
	for i, v := range values {
		// Parameters are one-indexed at the engine boundary.
		if st.rc = bindValue(st.stmt, i+1, v); st.rc != engine.Ok {
			return false
		}
	}
	return true
}

// Set resets the statement and binds the single named parameter, leaving
// all other bindings alone. The name may be spelled with or without its
// ':'/'@'/'?' prefix.
func (st *Statement) Set(name string, value any) bool {
	if !st.Reset() {
		return false
	}
	pos := st.stmt.BindParameterIndexSearch(name)
	if pos == 0 {
		st.rc = engine.Range
		return false
	}
	st.rc = bindValue(st.stmt, pos, value)
	return st.rc == engine.Ok
}

// SetCopy is Set; see BindCopy for why the copy distinction is vestigial
// here.
func (st *Statement) SetCopy(name string, value any) bool {
	return st.Set(name, value)
}

// SetAt resets the statement and binds the single parameter at a literal
// 1-based position.
func (st *Statement) SetAt(pos int, value any) bool {
	if !st.Reset() {
		return false
	}
	st.rc = bindValue(st.stmt, pos, value)
	return st.rc == engine.Ok
}

// SetAtCopy is SetAt; see BindCopy.
func (st *Statement) SetAtCopy(pos int, value any) bool {
	return st.SetAt(pos, value)
}

// Run resets and executes a statement that is expected to produce no rows.
// It reports success only when the statement ran to completion; a returned
// row counts as failure.
func (st *Statement) Run() bool {
	if !st.Reset() {
		return false
	}
	st.rc = blocking.Step(st.stmt)
	return st.rc == engine.Done
}

// stepRow advances the statement one row, through the blocking layer.
func (st *Statement) stepRow() bool {
	if st.stmt == nil {
		st.rc = engine.ErrGeneric
		return false
	}
	st.rc = blocking.Step(st.stmt)
	return st.rc == engine.Row
}

// Close finalizes the owned handle, whatever state it is in. Close is
// idempotent: after the first call the Statement owns nothing and further
// calls are no-ops, so a handle can never be finalized twice.
func (st *Statement) Close() {
	if st.stmt == nil {
		return
	}
	st.stmt.Finalize()
	st.stmt = nil
}

// Exec runs every statement in script in order, discarding rows, and
// reports whether the whole script succeeded.
func Exec(conn *engine.Conn, script string) bool {
	return ExecCode(conn, script) == engine.Ok
}

// ExecCode is Exec returning the status of the first failing statement, or
// Ok. Statements before the failing one have already taken effect.
func ExecCode(conn *engine.Conn, script string) engine.Code {
	return blocking.Exec(conn, script)
}
