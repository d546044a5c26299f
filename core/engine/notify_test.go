package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Raw step against a write-locked table returns the extended locked code;
// WaitForUnlock then parks until the holder commits and the retried step
// succeeds.
func TestWaitForUnlock(t *testing.T) {
	dsn := memDSN()
	writer, err := Open(dsn)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := Open(dsn)
	require.NoError(t, err)
	defer reader.Close()

	for _, sql := range []string{
		`CREATE TABLE t (n INTEGER)`,
		`BEGIN IMMEDIATE`,
		`INSERT INTO t VALUES (1)`,
	} {
		run(t, writer, sql)
	}

	stmt, _, rc := Prepare(reader, `SELECT n FROM t`)
	require.Equal(t, Ok, rc)
	defer stmt.Finalize()

	rc = stmt.Step()
	// extended result codes are not enabled, so this is the primary code
	require.Equal(t, Locked, rc)

	go func() {
		time.Sleep(100 * time.Millisecond)
		commit, _, _ := Prepare(writer, `COMMIT`)
		commit.Step()
		commit.Finalize()
	}()

	require.Equal(t, Ok, WaitForUnlock(reader))
	stmt.Reset()
	require.Equal(t, Row, stmt.Step())
	assert.Equal(t, int64(1), stmt.ColumnInt64(0))
}
