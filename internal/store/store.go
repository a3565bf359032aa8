package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/observability"
)

var ErrNoDataset = errors.New("no dataset has been ingested")

// ExecutionError wraps the engine message of a query that failed to run.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Dialect carries the engine-specific SQL the store needs.
type Dialect struct {
	Name        string
	IntegerType string
	RealType    string
	TextType    string
	// ColumnsQuery takes the table name as its only argument and returns the
	// column names in declaration order.
	ColumnsQuery string
	// Normalize, when set, converts engine-specific scan values to plain
	// scalars. It gets the column's database type name and runs before the
	// shared []byte and *big.Int conversions.
	Normalize func(dbType string, value any) any
}

func (d Dialect) columnType(kind dataset.ColumnType) string {
	switch kind {
	case dataset.TypeInteger:
		return d.IntegerType
	case dataset.TypeReal:
		return d.RealType
	default:
		return d.TextType
	}
}

type Rows struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// Store holds at most one dataset, table "data", in a single-connection database.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{db: db, dialect: dialect, logger: observability.OrDiscard(logger)}
}

func (s *Store) Dialect() string {
	return s.dialect.Name
}

// Ingest decodes raw as kind and replaces the active dataset with it,
// returning the decoded dataset. On any failure the previous dataset stays
// active.
func (s *Store) Ingest(ctx context.Context, raw []byte, kind string) (*dataset.Dataset, error) {
	ds, err := dataset.Decode(raw, kind)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// Load replaces the active dataset in one transaction.
func (s *Store) Load(ctx context.Context, ds *dataset.Dataset) (err error) {
	if ds == nil || len(ds.Columns) == 0 {
		return fmt.Errorf("dataset has no columns")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	table := quoteIdent(dataset.TableName)
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop previous dataset: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.createTableSQL(ds.Columns)); err != nil {
		return fmt.Errorf("create dataset table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(len(ds.Columns)))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range ds.Rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ingest tx: %w", err)
	}

	s.logger.Debug("dataset loaded",
		"columns", len(ds.Columns),
		"rows", len(ds.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Store) Schema(ctx context.Context) (dataset.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, s.dialect.ColumnsQuery, dataset.TableName)
	if err != nil {
		return nil, fmt.Errorf("list dataset columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	schema := dataset.Schema{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		schema = append(schema, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column names: %w", err)
	}
	if len(schema) == 0 {
		return nil, ErrNoDataset
	}
	return schema, nil
}

// Execute runs text as-is. When maxRows is positive at most maxRows rows are
// read and Truncated reports whether more were available. Engine failures are
// returned as *ExecutionError.
func (s *Store) Execute(ctx context.Context, text string, maxRows int) (Rows, error) {
	sqlText := stripTrailingSemicolons(text)
	if sqlText == "" {
		return Rows{}, &ExecutionError{Query: text, Err: errors.New("query is empty")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Rows{}, &ExecutionError{Query: text, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Rows{}, &ExecutionError{Query: text, Err: err}
	}

	var dbTypes []string
	if s.dialect.Normalize != nil {
		columnTypes, err := rows.ColumnTypes()
		if err != nil {
			return Rows{}, &ExecutionError{Query: text, Err: err}
		}
		dbTypes = make([]string, len(columnTypes))
		for i, columnType := range columnTypes {
			dbTypes[i] = columnType.DatabaseTypeName()
		}
	}

	result := Rows{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Rows{}, &ExecutionError{Query: text, Err: err}
		}
		result.Rows = append(result.Rows, normalizeValues(values, dbTypes, s.dialect.Normalize))
	}
	if err := rows.Err(); err != nil {
		return Rows{}, &ExecutionError{Query: text, Err: err}
	}
	return result, nil
}

// Preview returns the first n rows of the active dataset.
func (s *Store) Preview(ctx context.Context, n int) (Rows, error) {
	if _, err := s.Schema(ctx); err != nil {
		return Rows{}, err
	}
	if n <= 0 {
		return Rows{Rows: make([][]any, 0)}, nil
	}
	return s.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(dataset.TableName), n), 0)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTableSQL(columns []dataset.Column) string {
	defs := make([]string, 0, len(columns))
	for _, column := range columns {
		defs = append(defs, quoteIdent(column.Name)+" "+s.dialect.columnType(column.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(dataset.TableName), strings.Join(defs, ", "))
}

func insertSQL(width int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", width), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(dataset.TableName), placeholders)
}

func normalizeValues(values []any, dbTypes []string, engine func(string, any) any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		if engine != nil {
			dbType := ""
			if i < len(dbTypes) {
				dbType = dbTypes[i]
			}
			value = engine(dbType, value)
		}
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case *big.Int:
			if typed.IsInt64() {
				normalized[i] = typed.Int64()
			} else {
				normalized[i] = typed.String()
			}
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
