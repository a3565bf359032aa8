package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/observability"
)

var ErrMissingCredential = errors.New("a text completion API key is required")

// ServiceError reports a failed text completion call. StatusCode is zero when
// no HTTP response was received.
type ServiceError struct {
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("text completion failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("text completion failed: %v", e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

type CompletionRequest struct {
	APIKey string
	Prompt string
}

// Completer is a text completion service.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type Options struct {
	// Dialect names the SQL flavor of the store, e.g. "DuckDB".
	Dialect     string
	StripFences bool
	Logger      *slog.Logger
}

type Synthesizer struct {
	completer   Completer
	dialect     string
	stripFences bool
	logger      *slog.Logger
}

func NewSynthesizer(completer Completer, opts Options) *Synthesizer {
	dialect := strings.TrimSpace(opts.Dialect)
	if dialect == "" {
		dialect = "standard"
	}
	return &Synthesizer{
		completer:   completer,
		dialect:     dialect,
		stripFences: opts.StripFences,
		logger:      observability.OrDiscard(opts.Logger),
	}
}

func (s *Synthesizer) Dialect() string {
	return s.dialect
}

// Synthesize asks the completion service for a query answering question over
// the columns in schema. The response text is returned as-is unless fence
// stripping is enabled.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, schema dataset.Schema, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		observability.ObserveSynthesis(observability.OutcomeRejected, 0)
		return "", ErrMissingCredential
	}
	if s.completer == nil {
		return "", &ServiceError{Err: errors.New("no completion service configured")}
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, CompletionRequest{
		APIKey: credential,
		Prompt: BuildPrompt(question, schema, s.dialect),
	})
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveSynthesis(observability.OutcomeError, elapsed)
		s.logger.Warn("text completion failed", "error", err, "duration_ms", elapsed.Milliseconds())
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return "", err
		}
		return "", &ServiceError{Err: err}
	}
	observability.ObserveSynthesis(observability.OutcomeOK, elapsed)
	s.logger.Debug("query synthesized", "duration_ms", elapsed.Milliseconds(), "columns", len(schema))

	if s.stripFences {
		text = stripMarkdownSQL(text)
	}
	return text, nil
}

// BuildPrompt renders the fixed instruction template.
func BuildPrompt(question string, schema dataset.Schema, dialect string) string {
	columns := make([]string, 0, len(schema))
	for _, name := range schema {
		columns = append(columns, `"`+strings.ReplaceAll(name, `"`, `""`)+`"`)
	}

	var b strings.Builder
	b.WriteString("You are an expert in converting English questions to SQL queries!\n")
	fmt.Fprintf(&b, "The SQL database has a single table named %s with these columns: %s.\n",
		dataset.TableName, strings.Join(columns, ", "))
	fmt.Fprintf(&b, "Write the query in the %s SQL dialect and reference only the listed columns.\n", dialect)
	fmt.Fprintf(&b, "Now convert the following question in English to a valid SQL query: %s\n", strings.TrimSpace(question))
	b.WriteString("No preamble, no explanation and no markdown formatting, only valid SQL please.")
	return b.String()
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
