package export

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "CSV": FormatCSV, " parquet ": FormatParquet}
	for raw, want := range tests {
		got, err := ParseFormat(raw)
		if err != nil {
			t.Fatalf("ParseFormat(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"name", "sales", "ratio"}, [][]any{
		{"b", int64(1500), 0.25},
		{"c, inc", nil, 2.0},
	})
	if err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "name,sales,ratio\nb,1500,0.25\n\"c, inc\",,2\n"
	if buf.String() != want {
		t.Fatalf("WriteCSV() = %q, want %q", buf.String(), want)
	}
}

func TestEncodeParquetRoundTrip(t *testing.T) {
	data, err := EncodeParquet([]string{"name", "sales", "ratio"}, [][]any{
		{"a", int64(500), 0.5},
		{"b", int64(1500), nil},
	})
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if file.NumRows() != 2 {
		t.Fatalf("NumRows() = %d", file.NumRows())
	}

	index := map[string]int{}
	for i, field := range file.Schema().Fields() {
		index[field.Name()] = i
	}
	if len(index) != 3 {
		t.Fatalf("fields = %#v", index)
	}

	reader := parquet.NewReader(bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquet.Row, 2)
	n, err := reader.ReadRows(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("ReadRows() = %d", n)
	}
	if got := string(rows[1][index["name"]].ByteArray()); got != "b" {
		t.Fatalf("name = %q", got)
	}
	if got := rows[1][index["sales"]].Int64(); got != 1500 {
		t.Fatalf("sales = %d", got)
	}
	if !rows[1][index["ratio"]].IsNull() {
		t.Fatalf("ratio = %v, want null", rows[1][index["ratio"]])
	}
}

func TestEncodeParquetDeduplicatesColumns(t *testing.T) {
	names := uniqueNames([]string{"a", "a", ""})
	if names[0] != "a" || names[1] != "a.1" || names[2] != "column_2" {
		t.Fatalf("uniqueNames() = %#v", names)
	}
	if _, err := EncodeParquet([]string{"a", "a"}, [][]any{{int64(1), "x"}}); err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}
}

func TestEncodeParquetRequiresColumns(t *testing.T) {
	if _, err := EncodeParquet(nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestInferLeaf(t *testing.T) {
	rows := [][]any{{int64(1), int64(1), true, nil}, {2.5, int64(2), int64(3), nil}}
	want := []leafKind{leafDouble, leafInt64, leafString, leafString}
	for i, kind := range want {
		if got := inferLeaf(rows, i); got != kind {
			t.Fatalf("inferLeaf(col %d) = %d, want %d", i, got, kind)
		}
	}
}
