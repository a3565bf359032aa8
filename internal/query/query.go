package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/askdata/askdata/internal/observability"
	"github.com/askdata/askdata/internal/store"
)

// Runner is the part of the tabular store the executor needs.
type Runner interface {
	Execute(ctx context.Context, text string, maxRows int) (store.Rows, error)
}

// Result is the outcome of running a query. On failure Rows is empty and
// Error holds a message meant for the user.
type Result struct {
	Columns   []string      `json:"columns"`
	Rows      [][]any       `json:"rows"`
	Error     string        `json:"error,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"-"`
}

func (r Result) Failed() bool {
	return r.Error != ""
}

type Options struct {
	ReadOnly bool
	MaxRows  int
	Logger   *slog.Logger
}

type Executor struct {
	runner   Runner
	readOnly bool
	maxRows  int
	logger   *slog.Logger
}

func NewExecutor(runner Runner, opts Options) *Executor {
	maxRows := opts.MaxRows
	if maxRows < 0 {
		maxRows = 0
	}
	return &Executor{
		runner:   runner,
		readOnly: opts.ReadOnly,
		maxRows:  maxRows,
		logger:   observability.OrDiscard(opts.Logger),
	}
}

// Run executes text and never fails: any problem is reported in Result.Error.
func (e *Executor) Run(ctx context.Context, text string) Result {
	start := time.Now()
	if e.readOnly {
		if err := CheckReadOnly(text); err != nil {
			observability.ObserveQuery(observability.OutcomeRejected, time.Since(start))
			return failed(err.Error(), time.Since(start))
		}
	}

	rows, err := e.runner.Execute(ctx, text, e.maxRows)
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveQuery(observability.OutcomeError, elapsed)
		message := err.Error()
		var execErr *store.ExecutionError
		if errors.As(err, &execErr) {
			message = execErr.Err.Error()
		}
		e.logger.Info("query failed", "error", message, "duration_ms", elapsed.Milliseconds())
		return failed(message, elapsed)
	}

	observability.ObserveQuery(observability.OutcomeOK, elapsed)
	return Result{
		Columns:   rows.Columns,
		Rows:      rows.Rows,
		Truncated: rows.Truncated,
		Duration:  elapsed,
	}
}

func failed(message string, elapsed time.Duration) Result {
	return Result{Columns: []string{}, Rows: [][]any{}, Error: message, Duration: elapsed}
}
