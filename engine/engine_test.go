package engine

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	sharedDB   *sql.DB
	sharedLogs bytes.Buffer
)

// TestMain opens the package database before any other connection exists,
// so bson_each is installed on it.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "engine-test")
	if err != nil {
		fmt.Fprintf(os.Stderr, "MkdirTemp failed: %v\n", err)
		os.Exit(1)
	}
	cfg := &Config{
		DSN:          filepath.Join(dir, "docs.sqlite"),
		Pragmas:      []string{"journal_mode=WAL", "busy_timeout=5000"},
		LogLevel:     "debug",
		MaxOpenConns: 1,
		RegisterEach: true,
		Output:       &sharedLogs,
	}
	sharedDB, err = OpenConfig(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenConfig failed: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	_ = sharedDB.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// TestOpenInMemory verifies that we can open an in-memory SQLite database
// using the modernc.org/sqlite driver and execute a trivial statement.
func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t(x BLOB)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO t(x) VALUES (X'0500000000'),(NULL)"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
}

func TestOpenConfig(t *testing.T) {
	db := sharedDB
	if db == nil {
		t.Fatalf("shared database not opened")
	}

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
	var text string
	if err := db.QueryRow(`SELECT bson_to_json(bson_from_json('{"a":1}'))`).Scan(&text); err != nil {
		t.Fatalf("document functions unavailable: %v", err)
	}
	if text != `{"a":1}` {
		t.Fatalf("bson_to_json = %s, want {\"a\":1}", text)
	}
	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS bson_each USING bson_each`); err != nil {
		t.Fatalf("CREATE VIRTUAL TABLE bson_each failed: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM bson_each WHERE doc = bson_from_json('{"a":1,"b":[2]}')`).Scan(&n); err != nil {
		t.Fatalf("SELECT FROM bson_each failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("bson_each rows = %d, want 2", n)
	}
	logs := sharedLogs.String()
	for _, want := range []string{"registered module", "applied pragma", "opened document database"} {
		if !strings.Contains(logs, want) {
			t.Fatalf("log output %q missing %q", logs, want)
		}
	}
	if strings.Index(logs, "registered module") > strings.Index(logs, "applied pragma") {
		t.Fatalf("bson_each registered after the first statement: %q", logs)
	}
}

func TestOpenConfig_BadPragma(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pragmas = []string{"journal_mode=WAL; DROP"}
	cfg.Output = &bytes.Buffer{}
	if _, err := OpenConfig(context.Background(), cfg); err == nil {
		t.Fatalf("OpenConfig with malformed pragma succeeded")
	}
}
