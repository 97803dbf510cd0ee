package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// OpenConfig registers the document functions, opens cfg.DSN, registers the
// bson_each module when enabled and then applies the configured pragmas.
//
// The driver installs virtual table modules on connections it opens after
// registration, and installs each module natively only once per process: the
// first connection opened after RegisterEach is the one that sees bson_each.
// Keep MaxOpenConns at 1 and open a single such database per process.
func OpenConfig(ctx context.Context, cfg *Config) (*sql.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger()
	if err := RegisterDocumentFunctions(nil); err != nil {
		return nil, err
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", cfg.DSN, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.RegisterEach {
		if err := RegisterEach(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Debug("registered module", "module", EachModuleName)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: open %q: %w", cfg.DSN, err)
	}
	for _, pragma := range cfg.Pragmas {
		if _, err := db.ExecContext(ctx, "PRAGMA "+pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("engine: pragma %q: %w", pragma, err)
		}
		logger.Debug("applied pragma", "pragma", pragma)
	}
	logger.Info("opened document database", "dsn", cfg.DSN, "max_open_conns", cfg.MaxOpenConns)
	return db, nil
}
