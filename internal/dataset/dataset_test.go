package dataset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseKind(t *testing.T) {
	for _, raw := range []string{"csv", "CSV", ".xlsx", " .Xls "} {
		if _, err := ParseKind(raw); err != nil {
			t.Fatalf("ParseKind(%q) error = %v", raw, err)
		}
	}

	_, err := ParseKind("txt")
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("ParseKind(txt) error = %v, want UnsupportedFormatError", err)
	}
	if unsupported.Kind != "txt" {
		t.Fatalf("Kind = %q", unsupported.Kind)
	}
}

func TestKindFromFilename(t *testing.T) {
	kind, err := KindFromFilename("Sales Report.XLSX")
	if err != nil {
		t.Fatalf("KindFromFilename() error = %v", err)
	}
	if kind != KindXLSX {
		t.Fatalf("kind = %q", kind)
	}
	if _, err := KindFromFilename("notes"); err == nil {
		t.Fatal("expected error for file without extension")
	}
}

func TestDecodeCSVKeepsColumnOrderAndTypes(t *testing.T) {
	raw := []byte("\xEF\xBB\xBFname,sales,ratio,note\na,500,0.5,\nb,1500,2,x\n")
	ds, err := Decode(raw, "csv")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got := ds.Schema(); !reflect.DeepEqual(got, Schema{"name", "sales", "ratio", "note"}) {
		t.Fatalf("Schema() = %#v", got)
	}
	wantTypes := []ColumnType{TypeText, TypeInteger, TypeReal, TypeText}
	for i, column := range ds.Columns {
		if column.Type != wantTypes[i] {
			t.Fatalf("column %q type = %s, want %s", column.Name, column.Type, wantTypes[i])
		}
	}
	want := [][]any{
		{"a", int64(500), 0.5, nil},
		{"b", int64(1500), 2.0, "x"},
	}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Fatalf("Rows = %#v", ds.Rows)
	}
}

func TestDecodeCSVNamesBlankAndDuplicateHeaders(t *testing.T) {
	ds, err := Decode([]byte("a,,a,a\n1,2,3,4\n"), "csv")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := Schema{"a", "Unnamed: 1", "a.1", "a.2"}
	if got := ds.Schema(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Schema() = %#v, want %#v", got, want)
	}
}

func TestDecodeCSVFitsRaggedRows(t *testing.T) {
	ds, err := Decode([]byte("x,y\n1\n2,3,4\n\n"), "csv")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := [][]any{{int64(1), nil}, {int64(2), int64(3)}}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Fatalf("Rows = %#v", ds.Rows)
	}
}

func TestDecodeMissingTokensBecomeNull(t *testing.T) {
	ds, err := Decode([]byte("v\n1\nNA\nnull\n3\n"), "csv")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ds.Columns[0].Type != TypeInteger {
		t.Fatalf("type = %s", ds.Columns[0].Type)
	}
	want := [][]any{{int64(1)}, {nil}, {nil}, {int64(3)}}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Fatalf("Rows = %#v", ds.Rows)
	}
}

func TestDecodeEmptyCSVFails(t *testing.T) {
	_, err := Decode([]byte("\n\n"), "csv")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want DecodeError", err)
	}
}

func TestDecodeUnsupportedKind(t *testing.T) {
	_, err := Decode([]byte("name\nx\n"), "txt")
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Decode() error = %v, want UnsupportedFormatError", err)
	}
}

func TestDecodeXLSXReadsFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"name", "sales"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]any{"a", 500}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A3", &[]any{"b", 1500}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}
	if err := f.SetSheetRow("Other", "A1", &[]any{"ignored"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	ds, err := Decode(buf.Bytes(), ".XLSX")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := ds.Schema(); !reflect.DeepEqual(got, Schema{"name", "sales"}) {
		t.Fatalf("Schema() = %#v", got)
	}
	want := [][]any{{"a", int64(500)}, {"b", int64(1500)}}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Fatalf("Rows = %#v", ds.Rows)
	}
}

func TestDecodeLegacyXLSFailsAsDecodeError(t *testing.T) {
	_, err := Decode([]byte("BIFF8 workbook bytes"), "xls")
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want DecodeError", err)
	}
	if decodeErr.Kind != KindXLS {
		t.Fatalf("Kind = %q", decodeErr.Kind)
	}
}
