package statement

import (
	"fmt"
	"iter"

	"github.com/FocuswithJustin/sqlock/core/engine"
)

// Row1 advances the statement and decodes the first column of the produced
// row. ok is false when the statement is done or failed; check Done
// afterwards to tell the two apart.
func Row1[A Value](st *Statement) (a A, ok bool) {
	if !st.stepRow() {
		return a, false
	}
	return Column[A](st, 0), true
}

// Row2 advances the statement and decodes a two-column row.
func Row2[A, B Value](st *Statement) (a A, b B, ok bool) {
	if !st.stepRow() {
		return a, b, false
	}
	return Column[A](st, 0), Column[B](st, 1), true
}

// Row3 advances the statement and decodes a three-column row.
func Row3[A, B, C Value](st *Statement) (a A, b B, c C, ok bool) {
	if !st.stepRow() {
		return a, b, c, false
	}
	return Column[A](st, 0), Column[B](st, 1), Column[C](st, 2), true
}

// Row4 advances the statement and decodes a four-column row.
func Row4[A, B, C, D Value](st *Statement) (a A, b B, c C, d D, ok bool) {
	if !st.stepRow() {
		return a, b, c, d, false
	}
	return Column[A](st, 0), Column[B](st, 1), Column[C](st, 2), Column[D](st, 3), true
}

// Scan advances the statement and decodes the produced row into dest, one
// pointer per column, for rows wider than the typed helpers cover. Each
// dest must point at one of the supported column types.
func (st *Statement) Scan(dest ...any) bool {
	if !st.stepRow() {
		return false
	}
	for col, d := range dest {
		if !decodeColumn(st.stmt, col, d) {
			st.rc = engine.Mismatch
			return false
		}
	}
	return true
}

// Rows1 returns a restartable sequence over the statement's first column.
// Every range over it resets the statement and re-runs the query from the
// beginning. Only one traversal may be active at a time: concurrent
// traversals share the one handle and corrupt each other's position. The
// sequence is dead once the owning Statement is closed.
//
// When the sequence stops yielding, check Done on the statement; not-done
// means the query failed partway.
func Rows1[A Value](st *Statement) iter.Seq[A] {
	return func(yield func(A) bool) {
		st.Reset()
		for {
			a, ok := Row1[A](st)
			if !ok || !yield(a) {
				return
			}
		}
	}
}

// Rows2 is Rows1 for two-column rows.
func Rows2[A, B Value](st *Statement) iter.Seq2[A, B] {
	return func(yield func(A, B) bool) {
		st.Reset()
		for {
			a, b, ok := Row2[A, B](st)
			if !ok || !yield(a, b) {
				return
			}
		}
	}
}

// Triple is a three-column row yielded by Rows3.
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}

// Rows3 is Rows1 for three-column rows.
func Rows3[A, B, C Value](st *Statement) iter.Seq[Triple[A, B, C]] {
	return func(yield func(Triple[A, B, C]) bool) {
		st.Reset()
		for {
			a, b, c, ok := Row3[A, B, C](st)
			if !ok || !yield(Triple[A, B, C]{a, b, c}) {
				return
			}
		}
	}
}

// Sink writes rows through its statement, one execution per Put. A failed
// write is a hard error, not a status: silently dropping a row would break
// the caller's N-rows-in, N-rows-out accounting, so iteration must stop.
type Sink struct {
	st *Statement
}

// Sink returns a write-side consumer for the statement, typically an INSERT.
func (st *Statement) Sink() Sink { return Sink{st: st} }

// Put clears previous bindings, binds values positionally and runs the
// statement once. The returned error wraps the engine's error text.
func (k Sink) Put(values ...any) error {
	st := k.st
	if st.stmt == nil {
		st.rc = engine.ErrGeneric
		return fmt.Errorf("sink write: %w", &engine.Error{Code: st.rc})
	}
	if !st.ClearBindings() || !st.Bind(values...) || !st.Run() {
		return fmt.Errorf("sink write: %w", &engine.Error{Code: st.rc, Msg: st.conn.ErrMsg()})
	}
	return nil
}

// PutAll drains a sequence of rows into the sink, stopping at the first
// failed write.
func (k Sink) PutAll(rows iter.Seq[[]any]) error {
	for row := range rows {
		if err := k.Put(row...); err != nil {
			return err
		}
	}
	return nil
}
