// Package blocking turns the engine's transient SQLITE_LOCKED status into a
// real wait.
//
// Shared-cache contention makes prepare and step fail immediately with
// SQLITE_LOCKED instead of blocking. The wrappers here retry those calls
// around engine.WaitForUnlock, so callers see either the final status of the
// operation or SQLITE_LOCKED meaning "deadlock, roll back" — never the
// transient form.
//
// Adapted from the engine's documented unlock-notify pattern
// (https://www.sqlite.org/unlock_notify.html).
package blocking

import (
	"log/slog"

	"github.com/FocuswithJustin/sqlock/core/engine"
)

// Prepare compiles the first statement in sql, waiting out shared-cache
// contention. Results are as engine.Prepare; a returned Locked code means
// deadlock was detected while waiting.
func Prepare(conn *engine.Conn, sql string) (*engine.Stmt, string, engine.Code) {
	for {
		stmt, tail, rc := engine.Prepare(conn, sql)
		if !rc.IsLocked() {
			return stmt, tail, rc
		}
		if wrc := wait(conn, "prepare"); wrc != engine.Ok {
			return nil, tail, wrc
		}
	}
}

// Step advances stmt, waiting out shared-cache contention. After a resolved
// wait the statement must be reset before it can be stepped again, so Step
// restarts the statement from the top in that case; callers that already
// consumed rows from this execution will see them again.
func Step(stmt *engine.Stmt) engine.Code {
	for {
		rc := stmt.Step()
		if !rc.IsLocked() {
			return rc
		}
		if wrc := wait(stmt.Conn(), "step"); wrc != engine.Ok {
			return wrc
		}
		stmt.Reset()
	}
}

// Exec runs every statement in script in order, discarding result rows. It
// stops at the first statement that fails and returns that statement's
// status; statements before it have already taken effect. Trailing
// whitespace and comments are fine.
func Exec(conn *engine.Conn, script string) engine.Code {
	remaining := script
	for remaining != "" {
		stmt, tail, rc := Prepare(conn, remaining)
		remaining = tail
		if rc != engine.Ok {
			return rc
		}
		if stmt == nil {
			continue // only whitespace or comments were consumed
		}
		for rc = Step(stmt); rc == engine.Row; rc = Step(stmt) {
		}
		stmt.Finalize()
		if rc != engine.Ok && rc != engine.Done {
			return rc
		}
	}
	return engine.Ok
}

// wait blocks on the unlock-notify mechanism and logs the suspension at
// debug level; waits are invisible to callers otherwise.
func wait(conn *engine.Conn, op string) engine.Code {
	slog.Debug("blocked on shared-cache lock", "op", op)
	rc := engine.WaitForUnlock(conn)
	if rc != engine.Ok {
		slog.Debug("wait would deadlock, giving up", "op", op)
	} else {
		slog.Debug("shared-cache lock released", "op", op)
	}
	return rc
}
