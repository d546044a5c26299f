// Command sqlock demonstrates the blocking statement layer: typed queries,
// write sinks, script execution, and shared-cache contention that suspends
// instead of failing.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/sqlock/core/engine"
	"github.com/FocuswithJustin/sqlock/core/statement"
	"github.com/FocuswithJustin/sqlock/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for sqlock.
var CLI struct {
	Debug bool `help:"Enable debug logging, including lock-wait traces."`
	JSON  bool `name:"json" help:"Log in JSON format."`

	Demo    DemoCmd    `cmd:"" help:"Run the end-to-end typed query demonstration"`
	Contend ContendCmd `cmd:"" help:"Show a blocked step waiting out a write lock"`
	Script  ScriptCmd  `cmd:"" help:"Run a SQL script file through the blocking runner"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlock"),
		kong.Description("Blocking, typed statement layer over shared-cache SQLite."))

	level := logging.LevelInfo
	if CLI.Debug {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.JSON {
		format = logging.FormatJSON
	}
	logging.Init(level, format)

	ctx.FatalIfErrorf(ctx.Run())
}

// sharedMemDSN names a fresh in-memory database that any number of
// connections in this process can open against one shared cache.
func sharedMemDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// DemoCmd runs the canonical scenario: schema, sink inserts, typed reads
// with NULL-aware columns.
type DemoCmd struct {
	DB string `help:"Database path (default: temporary in-memory)" type:"path"`
}

func (c *DemoCmd) Run() error {
	dsn := c.DB
	if dsn == "" {
		dsn = sharedMemDSN()
	}
	conn, err := engine.Open(dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !statement.Exec(conn, `CREATE TABLE a(x INTEGER PRIMARY KEY, y INTEGER, z TEXT);`) {
		return fmt.Errorf("create table: %s", conn.ErrMsg())
	}

	ins := statement.Prepare(conn, `INSERT INTO a(x, y, z) VALUES (?, ?, ?);`)
	defer ins.Close()
	sink := ins.Sink()
	for _, row := range [][]any{
		{1, 4, "asdf"},
		{3, nil, "test"},
		{6, 0, ""},
	} {
		if err := sink.Put(row...); err != nil {
			return err
		}
	}

	q := statement.Prepare(conn, `SELECT x, y, z FROM a ORDER BY x;`)
	defer q.Close()
	for row := range statement.Rows3[int64, statement.Null[int64], statement.Null[string]](q) {
		y, z := "NULL", "NULL"
		if row.B.Valid {
			y = fmt.Sprint(row.B.Value)
		}
		if row.C.Valid {
			z = fmt.Sprintf("%q", row.C.Value)
		}
		fmt.Printf("x=%d y=%s z=%s\n", row.A, y, z)
	}
	if !q.Done() {
		return fmt.Errorf("query failed: %s", q.ErrText())
	}
	return nil
}

// ContendCmd opens two connections on one shared cache, takes a write lock
// on the first, and shows a read on the second blocking until the writer
// commits instead of failing with SQLITE_LOCKED.
type ContendCmd struct {
	Hold time.Duration `default:"2s" help:"How long the writer holds its lock."`
}

func (c *ContendCmd) Run() error {
	dsn := sharedMemDSN()
	writer, err := engine.Open(dsn)
	if err != nil {
		return err
	}
	defer writer.Close()
	reader, err := engine.Open(dsn)
	if err != nil {
		return err
	}
	defer reader.Close()

	if !statement.Exec(writer, `CREATE TABLE t(n INTEGER); INSERT INTO t VALUES (1);`) {
		return fmt.Errorf("setup: %s", writer.ErrMsg())
	}
	if !statement.Exec(writer, `BEGIN IMMEDIATE; INSERT INTO t VALUES (2);`) {
		return fmt.Errorf("begin: %s", writer.ErrMsg())
	}
	fmt.Printf("writer holds the write lock for %v\n", c.Hold)

	released := make(chan struct{})
	go func() {
		defer close(released)
		time.Sleep(c.Hold)
		if !statement.Exec(writer, `COMMIT;`) {
			fmt.Fprintf(os.Stderr, "commit failed: %s\n", writer.ErrMsg())
		}
	}()

	q := statement.Prepare(reader, `SELECT count(*) FROM t;`)
	defer q.Close()
	start := time.Now()
	n, ok := statement.Row1[int64](q)
	<-released
	if !ok {
		return fmt.Errorf("read failed: %s", q.ErrText())
	}
	fmt.Printf("read %d rows after waiting %v\n", n, time.Since(start).Round(time.Millisecond))
	return nil
}

// ScriptCmd runs a multi-statement SQL file, stopping at the first error.
type ScriptCmd struct {
	Path string `arg:"" help:"Path to SQL script" type:"existingfile"`
	DB   string `arg:"" help:"Database path" type:"path"`
}

func (c *ScriptCmd) Run() error {
	script, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	conn, err := engine.Open(c.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	if rc := statement.ExecCode(conn, string(script)); rc != engine.Ok {
		return fmt.Errorf("script failed: %s: %s", rc, conn.ErrMsg())
	}
	fmt.Println("ok")
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("sqlock %s\n", version)
	return nil
}
