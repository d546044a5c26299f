package statement

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/sqlock/core/engine"

	_ "modernc.org/sqlite"
)

// A database written through this layer is an ordinary SQLite file; anything
// database/sql can open must read it back unchanged.
func TestInteropDatabaseSQL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interop.db")

	conn, err := engine.Open(path)
	require.NoError(t, err)
	require.True(t, Exec(conn, `CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)`))

	ins := Prepare(conn, `INSERT INTO kv VALUES (?, ?)`)
	require.True(t, ins.Ok())
	sink := ins.Sink()
	require.NoError(t, sink.Put("alpha", int64(1)))
	require.NoError(t, sink.Put("beta", nil))
	require.NoError(t, sink.Put("", int64(3))) // empty key stays a real key
	ins.Close()
	require.NoError(t, conn.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	got := map[string]sql.NullInt64{}
	rows, err := db.Query(`SELECT k, v FROM kv`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var (
			k string
			v sql.NullInt64
		)
		require.NoError(t, rows.Scan(&k, &v))
		got[k] = v
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, map[string]sql.NullInt64{
		"alpha": {Int64: 1, Valid: true},
		"beta":  {},
		"":      {Int64: 3, Valid: true},
	}, got)
}

// And the reverse direction: rows written by database/sql come back through
// the typed row helpers.
func TestInteropReadForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (n INTEGER, s TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t VALUES (1, 'from database/sql'), (2, NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	conn, err := engine.Open(path)
	require.NoError(t, err)
	defer conn.Close()

	st := Prepare(conn, `SELECT n, s FROM t ORDER BY n`)
	require.True(t, st.Ok(), st.ErrText())
	defer st.Close()

	n, s, ok := Row2[int64, Null[string]](st)
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, Some("from database/sql"), s)

	n, s, ok = Row2[int64, Null[string]](st)
	require.True(t, ok)
	assert.Equal(t, int64(2), n)
	assert.False(t, s.Valid)
}
