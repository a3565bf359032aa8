package session

import (
	"fmt"
	"log/slog"

	"github.com/askdata/askdata/internal/config"
	"github.com/askdata/askdata/internal/store/duckdb"
	"github.com/askdata/askdata/internal/store/sqlite"
)

// OpenerForEngine returns an Opener creating in-memory stores of the named engine.
func OpenerForEngine(engine string, logger *slog.Logger) (Opener, error) {
	switch engine {
	case config.EngineDuckDB:
		return func() (Store, error) { return duckdb.Open(logger) }, nil
	case config.EngineSQLite:
		return func() (Store, error) { return sqlite.Open(logger) }, nil
	default:
		return nil, fmt.Errorf("unsupported store engine %q", engine)
	}
}
