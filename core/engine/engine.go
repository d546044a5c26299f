// Package engine is the process boundary with the embedded SQLite engine.
//
// The engine is the C amalgamation transpiled to Go (modernc.org/sqlite/lib),
// driven through a per-connection libc TLS. This package is the only place
// that talks to the transpiled API directly: it exposes raw connection and
// statement handles with manual lifecycles and numeric result codes, and the
// one-shot unlock-notify wait the blocking layer is built on.
//
// A Conn must not be driven from more than one goroutine at a time. The
// intended shape for concurrent work is one Conn per goroutine, all opened on
// the same shared-cache database.
package engine

import (
	"fmt"
	"sync"
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error is a failed engine call, carrying the result code and the
// connection's error message at the time of failure.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("sqlite: %s", e.Code)
	}
	return fmt.Sprintf("sqlite: %s: %s", e.Code, e.Msg)
}

// Conn is an open database connection: one sqlite3* handle plus the libc
// thread-local state all calls on this connection go through.
type Conn struct {
	tls *libc.TLS
	db  uintptr
}

// OpenFlags for Open. The defaults match what the unlock-notify machinery
// needs: URI filenames so callers can request cache=shared per database.
const (
	OpenReadOnly  = sqlite3.SQLITE_OPEN_READONLY
	OpenReadWrite = sqlite3.SQLITE_OPEN_READWRITE
	OpenCreate    = sqlite3.SQLITE_OPEN_CREATE
	OpenURI       = sqlite3.SQLITE_OPEN_URI
	OpenMemory    = sqlite3.SQLITE_OPEN_MEMORY

	openDefaults = OpenReadWrite | OpenCreate | OpenURI
)

// Open opens a database connection. The dsn may be a plain path or a URI
// such as "file:jobs.db?cache=shared". Unlock-notify waits only ever resolve
// between connections sharing a cache.
func Open(dsn string) (*Conn, error) {
	return OpenWithFlags(dsn, openDefaults)
}

// OpenWithFlags opens a database connection with explicit open flags.
func OpenWithFlags(dsn string, flags int) (*Conn, error) {
	tls := libc.NewTLS()
	zName, err := libc.CString(dsn)
	if err != nil {
		tls.Close()
		return nil, fmt.Errorf("open %q: %w", dsn, err)
	}
	defer libc.Xfree(tls, zName)

	ppDb := libc.Xmalloc(tls, types.Size_t(unsafe.Sizeof(uintptr(0))))
	if ppDb == 0 {
		tls.Close()
		return nil, fmt.Errorf("open %q: out of memory", dsn)
	}
	defer libc.Xfree(tls, ppDb)

	rc := Code(sqlite3.Xsqlite3_open_v2(tls, zName, ppDb, int32(flags), 0))
	db := *(*uintptr)(unsafe.Pointer(ppDb))
	if rc != Ok {
		// Even a failed open can hand back a handle that must be closed.
		msg := rc.Errstr()
		if db != 0 {
			msg = libc.GoString(sqlite3.Xsqlite3_errmsg(tls, db))
			sqlite3.Xsqlite3_close_v2(tls, db)
		}
		tls.Close()
		return nil, fmt.Errorf("open %q: %w", dsn, &Error{Code: rc, Msg: msg})
	}
	return &Conn{tls: tls, db: db}, nil
}

// Close closes the connection. Statements prepared on it must already be
// finalized; sqlite3_close_v2 defers the actual teardown otherwise, but the
// TLS behind those statements is gone once Close returns.
func (c *Conn) Close() error {
	if c.db == 0 {
		return nil
	}
	rc := Code(sqlite3.Xsqlite3_close_v2(c.tls, c.db))
	c.db = 0
	c.tls.Close()
	c.tls = nil
	if rc != Ok {
		return &Error{Code: rc, Msg: rc.Errstr()}
	}
	return nil
}

// ErrMsg returns the engine's message for the most recent failed call on
// this connection.
func (c *Conn) ErrMsg() string {
	return libc.GoString(sqlite3.Xsqlite3_errmsg(c.tls, c.db))
}

// ErrCode returns the result code of the most recent failed call on this
// connection.
func (c *Conn) ErrCode() Code {
	return Code(sqlite3.Xsqlite3_errcode(c.tls, c.db))
}

// LastInsertRowid is sqlite3_last_insert_rowid.
func (c *Conn) LastInsertRowid() int64 {
	return sqlite3.Xsqlite3_last_insert_rowid(c.tls, c.db)
}

// Changes is sqlite3_changes: the number of rows touched by the most recent
// INSERT, UPDATE or DELETE.
func (c *Conn) Changes() int {
	return int(sqlite3.Xsqlite3_changes(c.tls, c.db))
}

// lastError packages the connection's current error state.
func (c *Conn) lastError() *Error {
	return &Error{Code: c.ErrCode(), Msg: c.ErrMsg()}
}

// errstr needs a TLS but no connection; sqlite3_errstr only reads a static
// table. A single shared TLS behind a mutex keeps it off the hot path
// without a connection in hand.
var (
	errstrMu  sync.Mutex
	errstrTLS *libc.TLS
)

func errstr(rc int32) string {
	errstrMu.Lock()
	defer errstrMu.Unlock()
	if errstrTLS == nil {
		errstrTLS = libc.NewTLS()
	}
	return libc.GoString(sqlite3.Xsqlite3_errstr(errstrTLS, rc))
}
