package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/askdata/askdata/internal/store"
)

var Dialect = store.Dialect{
	Name:         "SQLite",
	IntegerType:  "INTEGER",
	RealType:     "REAL",
	TextType:     "TEXT",
	ColumnsQuery: `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
}

// Open returns a store backed by an in-memory SQLite database. The database
// lives as long as its only connection, so the pool is pinned to one.
func Open(logger *slog.Logger) (*store.Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return store.New(db, Dialect, logger), nil
}
