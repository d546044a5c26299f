package engine

import (
	sqlite3 "modernc.org/sqlite/lib"
)

// Code is a SQLite result code, possibly extended.
type Code int32

// Result codes used by this layer. The full set lives in the engine; these
// are the ones callers are expected to compare against.
const (
	Ok         Code = sqlite3.SQLITE_OK
	ErrGeneric Code = sqlite3.SQLITE_ERROR
	Busy       Code = sqlite3.SQLITE_BUSY
	Locked     Code = sqlite3.SQLITE_LOCKED
	NoMem      Code = sqlite3.SQLITE_NOMEM
	Interrupt  Code = sqlite3.SQLITE_INTERRUPT
	Constraint Code = sqlite3.SQLITE_CONSTRAINT
	Mismatch   Code = sqlite3.SQLITE_MISMATCH
	Misuse     Code = sqlite3.SQLITE_MISUSE
	Range      Code = sqlite3.SQLITE_RANGE
	Row        Code = sqlite3.SQLITE_ROW
	Done       Code = sqlite3.SQLITE_DONE

	LockedSharedCache Code = sqlite3.SQLITE_LOCKED | (1 << 8)
)

// ColumnType is the dynamic type tag of a result column.
type ColumnType int32

const (
	TypeInteger ColumnType = sqlite3.SQLITE_INTEGER
	TypeFloat   ColumnType = sqlite3.SQLITE_FLOAT
	TypeText    ColumnType = sqlite3.SQLITE_TEXT
	TypeBlob    ColumnType = sqlite3.SQLITE_BLOB
	TypeNull    ColumnType = sqlite3.SQLITE_NULL
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	case TypeNull:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// Primary strips any extended-code bits, e.g. turning
// SQLITE_LOCKED_SHAREDCACHE back into SQLITE_LOCKED.
func (c Code) Primary() Code { return c & 0xff }

// IsLocked reports whether c is the transient shared-cache contention status
// that the blocking layer retries on.
func (c Code) IsLocked() bool { return c.Primary() == Locked }

// Errstr returns the engine's English-language description of the code,
// sqlite3_errstr style.
func (c Code) Errstr() string { return errstr(int32(c)) }

func (c Code) String() string {
	switch c.Primary() {
	case Ok:
		return "SQLITE_OK"
	case ErrGeneric:
		return "SQLITE_ERROR"
	case Busy:
		return "SQLITE_BUSY"
	case Locked:
		return "SQLITE_LOCKED"
	case NoMem:
		return "SQLITE_NOMEM"
	case Interrupt:
		return "SQLITE_INTERRUPT"
	case Constraint:
		return "SQLITE_CONSTRAINT"
	case Mismatch:
		return "SQLITE_MISMATCH"
	case Misuse:
		return "SQLITE_MISUSE"
	case Range:
		return "SQLITE_RANGE"
	case Row:
		return "SQLITE_ROW"
	case Done:
		return "SQLITE_DONE"
	default:
		return c.Errstr()
	}
}
