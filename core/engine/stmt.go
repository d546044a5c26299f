package engine

import (
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	sqlite3 "modernc.org/sqlite/lib"
)

// Stmt is a raw compiled-statement handle. It keeps ownership of the C
// buffers backing text and blob bindings: sqlite reads those lazily at step
// time, so each buffer lives until its parameter is rebound, bindings are
// cleared, or the statement is finalized.
//
// Parameter positions are 1-based, result columns 0-based, exactly as at the
// C API.
type Stmt struct {
	conn   *Conn
	pstmt  uintptr
	allocs map[int]uintptr
}

// Prepare compiles the first statement in sql. It returns the compiled
// statement (nil when sql held nothing but whitespace and comments), the
// unconsumed remainder of sql, and the result code. Prepare does not retry
// on contention; that is the blocking layer's job.
func Prepare(conn *Conn, sql string) (*Stmt, string, Code) {
	zSql, err := libc.CString(sql)
	if err != nil {
		return nil, sql, NoMem
	}
	defer libc.Xfree(conn.tls, zSql)

	out := libc.Xmalloc(conn.tls, types.Size_t(2*unsafe.Sizeof(uintptr(0))))
	if out == 0 {
		return nil, sql, NoMem
	}
	defer libc.Xfree(conn.tls, out)
	ppStmt := out
	pzTail := out + unsafe.Sizeof(uintptr(0))

	rc := Code(sqlite3.Xsqlite3_prepare_v2(conn.tls, conn.db, zSql, int32(len(sql))+1, ppStmt, pzTail))

	tail := sql
	if zTail := *(*uintptr)(unsafe.Pointer(pzTail)); zTail != 0 {
		consumed := int(zTail - zSql)
		if consumed >= 0 && consumed <= len(sql) {
			tail = sql[consumed:]
		}
	}
	pstmt := *(*uintptr)(unsafe.Pointer(ppStmt))
	if rc != Ok || pstmt == 0 {
		return nil, tail, rc
	}
	return &Stmt{conn: conn, pstmt: pstmt}, tail, rc
}

// Conn returns the connection the statement was compiled on,
// sqlite3_db_handle style.
func (s *Stmt) Conn() *Conn { return s.conn }

// Step is sqlite3_step: Row, Done, Locked, or an error code.
func (s *Stmt) Step() Code {
	return Code(sqlite3.Xsqlite3_step(s.conn.tls, s.pstmt))
}

// Reset rewinds the statement to before its first row. Bindings survive.
func (s *Stmt) Reset() Code {
	return Code(sqlite3.Xsqlite3_reset(s.conn.tls, s.pstmt))
}

// ClearBindings sets every parameter back to NULL and releases the buffers
// this side was keeping alive for them.
func (s *Stmt) ClearBindings() Code {
	rc := Code(sqlite3.Xsqlite3_clear_bindings(s.conn.tls, s.pstmt))
	s.freeAllocs()
	return rc
}

// Finalize destroys the statement. Safe to call more than once; after the
// first call the receiver owns nothing.
func (s *Stmt) Finalize() {
	if s.pstmt == 0 {
		return
	}
	sqlite3.Xsqlite3_finalize(s.conn.tls, s.pstmt)
	s.pstmt = 0
	s.freeAllocs()
}

func (s *Stmt) freeAllocs() {
	for _, p := range s.allocs {
		libc.Xfree(s.conn.tls, p)
	}
	s.allocs = nil
}

// retain records p as the buffer behind parameter pos, releasing whatever
// was bound there before.
func (s *Stmt) retain(pos int, p uintptr) {
	if s.allocs == nil {
		s.allocs = make(map[int]uintptr)
	}
	if old, ok := s.allocs[pos]; ok {
		libc.Xfree(s.conn.tls, old)
	}
	s.allocs[pos] = p
}

// BindInt64 is sqlite3_bind_int64.
func (s *Stmt) BindInt64(pos int, v int64) Code {
	return Code(sqlite3.Xsqlite3_bind_int64(s.conn.tls, s.pstmt, int32(pos), v))
}

// BindDouble is sqlite3_bind_double.
func (s *Stmt) BindDouble(pos int, v float64) Code {
	return Code(sqlite3.Xsqlite3_bind_double(s.conn.tls, s.pstmt, int32(pos), v))
}

// BindNull is sqlite3_bind_null.
func (s *Stmt) BindNull(pos int) Code {
	return Code(sqlite3.Xsqlite3_bind_null(s.conn.tls, s.pstmt, int32(pos)))
}

// BindText binds v as TEXT. The empty string still binds a non-null
// zero-length buffer so it round-trips as '' and never as NULL.
func (s *Stmt) BindText(pos int, v string) Code {
	p, err := libc.CString(v) // one NUL byte even for the empty string
	if err != nil {
		return NoMem
	}
	rc := Code(sqlite3.Xsqlite3_bind_text(s.conn.tls, s.pstmt, int32(pos), p, int32(len(v)), 0))
	if rc != Ok {
		libc.Xfree(s.conn.tls, p)
		return rc
	}
	s.retain(pos, p)
	return rc
}

// BindBlob binds v as BLOB. The empty (or nil) slice binds through
// sqlite3_bind_zeroblob, which is the only way to get a zero-length non-null
// blob across the boundary.
func (s *Stmt) BindBlob(pos int, v []byte) Code {
	if len(v) == 0 {
		return s.BindZeroBlob(pos, 0)
	}
	p := libc.Xmalloc(s.conn.tls, types.Size_t(len(v)))
	if p == 0 {
		return NoMem
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(p)), len(v)), v)
	rc := Code(sqlite3.Xsqlite3_bind_blob(s.conn.tls, s.pstmt, int32(pos), p, int32(len(v)), 0))
	if rc != Ok {
		libc.Xfree(s.conn.tls, p)
		return rc
	}
	s.retain(pos, p)
	return rc
}

// BindZeroBlob is sqlite3_bind_zeroblob.
func (s *Stmt) BindZeroBlob(pos, n int) Code {
	return Code(sqlite3.Xsqlite3_bind_zeroblob(s.conn.tls, s.pstmt, int32(pos), int32(n)))
}

// BindParameterCount is sqlite3_bind_parameter_count.
func (s *Stmt) BindParameterCount() int {
	return int(sqlite3.Xsqlite3_bind_parameter_count(s.conn.tls, s.pstmt))
}

// BindParameterIndex resolves a parameter name, spelled exactly as in the
// SQL including its ':'/'@'/'?' prefix, to its 1-based position. Zero means
// no such parameter.
func (s *Stmt) BindParameterIndex(name string) int {
	zName, err := libc.CString(name)
	if err != nil {
		return 0
	}
	defer libc.Xfree(s.conn.tls, zName)
	return int(sqlite3.Xsqlite3_bind_parameter_index(s.conn.tls, s.pstmt, zName))
}

// BindParameterIndexSearch resolves a bare parameter name by trying each of
// the prefixes sqlite accepts.
func (s *Stmt) BindParameterIndexSearch(name string) int {
	if i := s.BindParameterIndex(name); i != 0 {
		return i
	}
	for _, prefix := range []string{":", "@", "?"} {
		if i := s.BindParameterIndex(prefix + name); i != 0 {
			return i
		}
	}
	return 0
}

// ColumnCount is sqlite3_column_count.
func (s *Stmt) ColumnCount() int {
	return int(sqlite3.Xsqlite3_column_count(s.conn.tls, s.pstmt))
}

// ColumnName is sqlite3_column_name.
func (s *Stmt) ColumnName(col int) string {
	return libc.GoString(sqlite3.Xsqlite3_column_name(s.conn.tls, s.pstmt, int32(col)))
}

// ColumnType is the dynamic type tag of the column in the current row.
func (s *Stmt) ColumnType(col int) ColumnType {
	return ColumnType(sqlite3.Xsqlite3_column_type(s.conn.tls, s.pstmt, int32(col)))
}

// ColumnInt64 is sqlite3_column_int64.
func (s *Stmt) ColumnInt64(col int) int64 {
	return sqlite3.Xsqlite3_column_int64(s.conn.tls, s.pstmt, int32(col))
}

// ColumnDouble is sqlite3_column_double.
func (s *Stmt) ColumnDouble(col int) float64 {
	return sqlite3.Xsqlite3_column_double(s.conn.tls, s.pstmt, int32(col))
}

// ColumnText returns the column as text. The bytes are copied out of engine
// storage before returning, so the value survives the next step.
func (s *Stmt) ColumnText(col int) string {
	p := sqlite3.Xsqlite3_column_text(s.conn.tls, s.pstmt, int32(col))
	n := sqlite3.Xsqlite3_column_bytes(s.conn.tls, s.pstmt, int32(col))
	if p == 0 || n <= 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// ColumnBlob returns the column as a freshly allocated byte slice.
func (s *Stmt) ColumnBlob(col int) []byte {
	p := sqlite3.Xsqlite3_column_blob(s.conn.tls, s.pstmt, int32(col))
	n := sqlite3.Xsqlite3_column_bytes(s.conn.tls, s.pstmt, int32(col))
	if p == 0 || n <= 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	return out
}
