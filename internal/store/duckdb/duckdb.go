package duckdb

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/askdata/askdata/internal/store"
)

// dsn keeps each session database in memory and away from the host
// filesystem and network (read_csv, COPY, httpfs and friends).
const dsn = "?enable_external_access=false"

var Dialect = store.Dialect{
	Name:         "DuckDB",
	IntegerType:  "BIGINT",
	RealType:     "DOUBLE",
	TextType:     "VARCHAR",
	ColumnsQuery: `SELECT column_name FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position`,
	Normalize:    normalize,
}

// Open returns a store backed by a private in-memory DuckDB database.
func Open(logger *slog.Logger) (*store.Store, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return store.New(db, Dialect, logger), nil
}

func normalize(dbType string, value any) any {
	switch typed := value.(type) {
	case duckdb.Decimal:
		if typed.Value == nil {
			return nil
		}
		return typed.Float64()
	case duckdb.Interval:
		return formatInterval(typed)
	case duckdb.UUID:
		return typed.String()
	case []byte:
		if dbType == "UUID" && len(typed) == len(duckdb.UUID{}) {
			id := duckdb.UUID(typed)
			return id.String()
		}
		return value
	default:
		return value
	}
}

func formatInterval(iv duckdb.Interval) string {
	micros := time.Duration(iv.Micros) * time.Microsecond
	return fmt.Sprintf("%d months %d days %s", iv.Months, iv.Days, micros)
}
