package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/nl2sql"
	"github.com/askdata/askdata/internal/observability"
	"github.com/askdata/askdata/internal/query"
	"github.com/askdata/askdata/internal/store"
)

// Store is the tabular store a session owns.
type Store interface {
	Ingest(ctx context.Context, raw []byte, kind string) (*dataset.Dataset, error)
	Schema(ctx context.Context) (dataset.Schema, error)
	Execute(ctx context.Context, text string, maxRows int) (store.Rows, error)
	Preview(ctx context.Context, n int) (store.Rows, error)
	Dialect() string
	Close() error
}

type Options struct {
	PreviewRows int
	ReadOnly    bool
	MaxRows     int
	StripFences bool
	Logger      *slog.Logger
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type IngestResult struct {
	Table    string       `json:"table"`
	Columns  []Column     `json:"columns"`
	RowCount int          `json:"row_count"`
	Preview  query.Result `json:"preview"`
}

// Schema returns the column names in file order.
func (r IngestResult) Schema() dataset.Schema {
	names := make(dataset.Schema, 0, len(r.Columns))
	for _, column := range r.Columns {
		names = append(names, column.Name)
	}
	return names
}

type AskResult struct {
	SQL    string       `json:"sql"`
	Result query.Result `json:"result"`
}

// Session owns one tabular store and the components that work on it.
type Session struct {
	id          string
	store       Store
	synthesizer *nl2sql.Synthesizer
	executor    *query.Executor
	previewRows int
	logger      *slog.Logger

	mu       sync.Mutex
	lastUsed time.Time
}

func New(id string, st Store, completer nl2sql.Completer, opts Options) *Session {
	logger := observability.OrDiscard(opts.Logger).With("session_id", id)
	return &Session{
		id:    id,
		store: st,
		synthesizer: nl2sql.NewSynthesizer(completer, nl2sql.Options{
			Dialect:     st.Dialect(),
			StripFences: opts.StripFences,
			Logger:      logger,
		}),
		executor: query.NewExecutor(st, query.Options{
			ReadOnly: opts.ReadOnly,
			MaxRows:  opts.MaxRows,
			Logger:   logger,
		}),
		previewRows: opts.PreviewRows,
		logger:      logger,
		lastUsed:    time.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Ingest replaces the session dataset with the decoded file. Unsupported kinds
// and decode failures leave the previous dataset active.
func (s *Session) Ingest(ctx context.Context, raw []byte, kind string) (IngestResult, error) {
	ds, err := s.store.Ingest(ctx, raw, kind)
	if err != nil {
		observability.ObserveIngest(kindLabel(kind), outcomeFor(err), 0)
		return IngestResult{}, err
	}
	observability.ObserveIngest(string(ds.Kind), observability.OutcomeOK, len(ds.Rows))

	columns := make([]Column, 0, len(ds.Columns))
	for _, column := range ds.Columns {
		columns = append(columns, Column{Name: column.Name, Type: column.Type.String()})
	}

	preview, err := s.store.Preview(ctx, s.previewRows)
	if err != nil {
		return IngestResult{}, fmt.Errorf("preview dataset: %w", err)
	}

	s.logger.Info("dataset ingested", "kind", ds.Kind, "columns", len(columns), "rows", len(ds.Rows))
	return IngestResult{
		Table:    dataset.TableName,
		Columns:  columns,
		RowCount: len(ds.Rows),
		Preview: query.Result{
			Columns: preview.Columns,
			Rows:    preview.Rows,
		},
	}, nil
}

func (s *Session) Schema(ctx context.Context) (dataset.Schema, error) {
	return s.store.Schema(ctx)
}

// Ask synthesizes a query for question against the current schema and runs
// it. Execution problems are reported in AskResult.Result.Error.
func (s *Session) Ask(ctx context.Context, question, credential string) (AskResult, error) {
	schema, err := s.store.Schema(ctx)
	if err != nil {
		return AskResult{}, err
	}
	sqlText, err := s.synthesizer.Synthesize(ctx, question, schema, credential)
	if err != nil {
		return AskResult{}, err
	}
	return AskResult{SQL: sqlText, Result: s.executor.Run(ctx, sqlText)}, nil
}

// Dialect names the SQL dialect of the session store.
func (s *Session) Dialect() string {
	return s.store.Dialect()
}

func (s *Session) Run(ctx context.Context, text string) query.Result {
	return s.executor.Run(ctx, text)
}

func (s *Session) Close() error {
	return s.store.Close()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func kindLabel(kind string) string {
	parsed, err := dataset.ParseKind(kind)
	if err != nil {
		return "unsupported"
	}
	return string(parsed)
}

func outcomeFor(err error) string {
	var unsupported *dataset.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return observability.OutcomeRejected
	}
	return observability.OutcomeError
}
