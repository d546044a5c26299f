package statement

import (
	"github.com/FocuswithJustin/sqlock/core/engine"
)

// Null carries a value of one of the supported column types together with a
// validity flag; an invalid Null binds and decodes as SQL NULL.
type Null[T any] struct {
	Value T
	Valid bool
}

// Some wraps a present value.
func Some[T any](v T) Null[T] { return Null[T]{Value: v, Valid: true} }

// None is the absent value.
func None[T any]() Null[T] { return Null[T]{} }

// Value is the closed set of types a result column can be decoded into.
// Every member maps to exactly one typed accessor at the engine boundary;
// the Null forms consult the dynamic column type tag first and yield an
// invalid value for SQL NULL.
type Value interface {
	int | int64 | float64 | string | []byte | bool |
		Null[int] | Null[int64] | Null[float64] | Null[string] | Null[[]byte] | Null[bool]
}

// bindValue encodes one parameter. Dispatch is on the static shape of the
// supplied value: integers through bind_int64, float64 through bind_double,
// string as TEXT, []byte as BLOB, nil and absent Nulls as SQL NULL. The
// encoding never consults engine state.
func bindValue(stmt *engine.Stmt, pos int, v any) engine.Code {
	switch v := v.(type) {
	case nil:
		return stmt.BindNull(pos)
	case int:
		return stmt.BindInt64(pos, int64(v))
	case int32:
		return stmt.BindInt64(pos, int64(v))
	case int64:
		return stmt.BindInt64(pos, v)
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return stmt.BindInt64(pos, n)
	case float64:
		return stmt.BindDouble(pos, v)
	case string:
		return stmt.BindText(pos, v)
	case []byte:
		return stmt.BindBlob(pos, v)
	case Null[int]:
		if !v.Valid {
			return stmt.BindNull(pos)
		}
		return stmt.BindInt64(pos, int64(v.Value))
	case Null[int64]:
		if !v.Valid {
			return stmt.BindNull(pos)
		}
		return stmt.BindInt64(pos, v.Value)
	case Null[bool]:
		if !v.Valid {
			return stmt.BindNull(pos)
		}
		n := int64(0)
		if v.Value {
			n = 1
		}
		return stmt.BindInt64(pos, n)
	case Null[float64]:
		if !v.Valid {
			return stmt.BindNull(pos)
		}
		return stmt.BindDouble(pos, v.Value)
	case Null[string]:
		if !v.Valid {
			return stmt.BindNull(pos)
		}
		return stmt.BindText(pos, v.Value)
	case Null[[]byte]:
		if !v.Valid {
			return stmt.BindNull(pos)
		}
		return stmt.BindBlob(pos, v.Value)
	default:
		return engine.Mismatch
	}
}

// Column decodes result column col of the current row as T. The column is
// read with the accessor matching T; the dynamic type tag is only inspected
// for the Null forms, to distinguish SQL NULL from a present value.
func Column[T Value](st *Statement, col int) T {
	var out T
	if st.stmt == nil {
		return out
	}
	decodeColumn(st.stmt, col, &out)
	return out
}

// decodeColumn reports false when out is not a pointer to a supported
// column type; the generic Column entry point can never trip that, Scan can.
func decodeColumn(stmt *engine.Stmt, col int, out any) bool {
	switch p := out.(type) {
	case *int:
		*p = int(stmt.ColumnInt64(col))
	case *int64:
		*p = stmt.ColumnInt64(col)
	case *bool:
		*p = stmt.ColumnInt64(col) != 0
	case *float64:
		*p = stmt.ColumnDouble(col)
	case *string:
		*p = stmt.ColumnText(col)
	case *[]byte:
		*p = stmt.ColumnBlob(col)
	case *Null[int]:
		if stmt.ColumnType(col) != engine.TypeNull {
			*p = Some(int(stmt.ColumnInt64(col)))
		}
	case *Null[int64]:
		if stmt.ColumnType(col) != engine.TypeNull {
			*p = Some(stmt.ColumnInt64(col))
		}
	case *Null[bool]:
		if stmt.ColumnType(col) != engine.TypeNull {
			*p = Some(stmt.ColumnInt64(col) != 0)
		}
	case *Null[float64]:
		if stmt.ColumnType(col) != engine.TypeNull {
			*p = Some(stmt.ColumnDouble(col))
		}
	case *Null[string]:
		if stmt.ColumnType(col) != engine.TypeNull {
			*p = Some(stmt.ColumnText(col))
		}
	case *Null[[]byte]:
		if stmt.ColumnType(col) != engine.TypeNull {
			*p = Some(stmt.ColumnBlob(col))
		}
	default:
		return false
	}
	return true
}
