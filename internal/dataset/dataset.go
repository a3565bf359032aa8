package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// TableName is the fixed name the active dataset is stored and queried under.
const TableName = "data"

type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLS  Kind = "xls"
	KindXLSX Kind = "xlsx"
)

type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeReal
	TypeText
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	default:
		return "text"
	}
}

type Column struct {
	Name string
	Type ColumnType
}

// Dataset is a decoded upload. Row values are int64, float64, string or nil.
type Dataset struct {
	Kind    Kind
	Columns []Column
	Rows    [][]any
}

// Schema is the ordered list of column names of a dataset.
type Schema []string

func (d *Dataset) Schema() Schema {
	if d == nil {
		return nil
	}
	names := make(Schema, 0, len(d.Columns))
	for _, column := range d.Columns {
		names = append(names, column.Name)
	}
	return names
}

type UnsupportedFormatError struct {
	Kind string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Kind == "" {
		return "unsupported file format: missing extension, expected csv, xls or xlsx"
	}
	return fmt.Sprintf("unsupported file format %q, expected csv, xls or xlsx", e.Kind)
}

// DecodeError reports a file of a supported kind whose content could not be read.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s dataset: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errEmpty = errors.New("file has no header row")

// ParseKind accepts an extension such as "CSV" or ".xlsx".
func ParseKind(raw string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	switch Kind(normalized) {
	case KindCSV, KindXLS, KindXLSX:
		return Kind(normalized), nil
	default:
		return "", &UnsupportedFormatError{Kind: normalized}
	}
}

func KindFromFilename(name string) (Kind, error) {
	return ParseKind(filepath.Ext(strings.TrimSpace(name)))
}

// Decode turns raw file bytes of the given kind into a typed Dataset. The first
// record is the header row.
func Decode(raw []byte, kind string) (*Dataset, error) {
	parsed, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch parsed {
	case KindCSV:
		records, err = readCSV(raw)
	default:
		records, err = readSpreadsheet(raw)
	}
	if err != nil {
		return nil, &DecodeError{Kind: parsed, Err: err}
	}
	for len(records) > 0 && isBlank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, &DecodeError{Kind: parsed, Err: errEmpty}
	}

	ds := build(records[0], records[1:])
	ds.Kind = parsed
	return ds, nil
}

func build(header []string, records [][]string) *Dataset {
	names := columnNames(header)
	width := len(names)

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		if isBlank(record) {
			continue
		}
		rows = append(rows, fitWidth(record, width))
	}

	columns := make([]Column, width)
	for i, name := range names {
		columns[i] = Column{Name: name, Type: inferType(rows, i)}
	}

	values := make([][]any, len(rows))
	for r, row := range rows {
		converted := make([]any, width)
		for i, cell := range row {
			converted[i] = convert(cell, columns[i].Type)
		}
		values[r] = converted
	}

	return &Dataset{Columns: columns, Rows: values}
}

// columnNames applies dataframe-style naming: blank headers become
// "Unnamed: <index>" and repeats get a ".N" suffix.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		name := raw
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s.%d", name, n)
				if !seen[candidate] {
					name = candidate
					break
				}
			}
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

func fitWidth(record []string, width int) []string {
	if len(record) == width {
		return record
	}
	fitted := make([]string, width)
	copy(fitted, record)
	return fitted
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
