package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/store"
)

func TestIngestReturnsSchemaInFileOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ds, err := s.Ingest(ctx, []byte("zeta,alpha,mid\n1,2,3\n"), "csv")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	want := dataset.Schema{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(ds.Schema(), want) {
		t.Fatalf("Ingest() schema = %#v", ds.Schema())
	}

	again, err := s.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !reflect.DeepEqual(again, want) {
		t.Fatalf("Schema() = %#v", again)
	}
}

func TestSecondIngestReplacesDataset(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, []byte("name,sales\na,500\n"), "csv"); err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	if _, err := s.Ingest(ctx, []byte("city\nOslo\nLima\n"), "csv"); err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}

	schema, err := s.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !reflect.DeepEqual(schema, dataset.Schema{"city"}) {
		t.Fatalf("Schema() = %#v", schema)
	}
	rows, err := s.Execute(ctx, "SELECT COUNT(*) FROM data", 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if rows.Rows[0][0] != int64(2) {
		t.Fatalf("count = %#v", rows.Rows[0][0])
	}
}

func TestUnsupportedIngestLeavesDatasetUnchanged(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, []byte("name,sales\na,500\n"), "csv"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	_, err := s.Ingest(ctx, []byte("city\nOslo\n"), "txt")
	var unsupported *dataset.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Ingest() error = %v, want UnsupportedFormatError", err)
	}

	schema, err := s.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if !reflect.DeepEqual(schema, dataset.Schema{"name", "sales"}) {
		t.Fatalf("Schema() = %#v", schema)
	}
}

func TestSchemaBeforeIngest(t *testing.T) {
	s := openStore(t)
	if _, err := s.Schema(context.Background()); !errors.Is(err, store.ErrNoDataset) {
		t.Fatalf("Schema() error = %v, want ErrNoDataset", err)
	}
	if _, err := s.Preview(context.Background(), 5); !errors.Is(err, store.ErrNoDataset) {
		t.Fatalf("Preview() error = %v, want ErrNoDataset", err)
	}
}

func TestExecuteFiltersTypedColumns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, []byte("name,sales\na,500\nb,1500\n"), "csv"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	rows, err := s.Execute(ctx, "SELECT * FROM data WHERE sales > 1000", 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(rows.Columns, []string{"name", "sales"}) {
		t.Fatalf("Columns = %#v", rows.Columns)
	}
	if !reflect.DeepEqual(rows.Rows, [][]any{{"b", int64(1500)}}) {
		t.Fatalf("Rows = %#v", rows.Rows)
	}
}

func TestExecuteInvalidSQL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, []byte("name\na\n"), "csv"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	_, err := s.Execute(ctx, "SELEC nothing", 0)
	var execErr *store.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Execute() error = %v, want ExecutionError", err)
	}
}

func TestPreviewLimitsRows(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, []byte("v\n1\n2\n3\n4\n5\n6\n7\n"), "csv"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	rows, err := s.Preview(ctx, 5)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(rows.Rows) != 5 {
		t.Fatalf("preview rows = %d", len(rows.Rows))
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := Open(nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
