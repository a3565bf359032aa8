package export

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

type leafKind int

const (
	leafInt64 leafKind = iota
	leafDouble
	leafBoolean
	leafString
)

// EncodeParquet writes a result set as a parquet file with one optional
// column per result column. Column types are inferred from the values.
func EncodeParquet(columns []string, rows [][]any) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	names := uniqueNames(columns)
	kinds := make([]leafKind, len(columns))
	group := parquet.Group{}
	for i, name := range names {
		kinds[i] = inferLeaf(rows, i)
		group[name] = parquet.Optional(leafNode(kinds[i]))
	}
	schema := parquet.NewSchema("result", group)

	// Group fields are ordered by name, so map each result column to its leaf index.
	leafIndex := make(map[string]int, len(names))
	for i, field := range schema.Fields() {
		leafIndex[field.Name()] = i
	}

	encoded := make([]parquet.Row, 0, len(rows))
	for _, row := range rows {
		out := make(parquet.Row, len(names))
		for i, name := range names {
			var value any
			if i < len(row) {
				value = row[i]
			}
			out[leafIndex[name]] = leafValue(value, kinds[i], leafIndex[name])
		}
		encoded = append(encoded, out)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewWriter(buf, schema)
	if _, err := writer.WriteRows(encoded); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func leafNode(kind leafKind) parquet.Node {
	switch kind {
	case leafInt64:
		return parquet.Int(64)
	case leafDouble:
		return parquet.Leaf(parquet.DoubleType)
	case leafBoolean:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func inferLeaf(rows [][]any, column int) leafKind {
	kind := leafInt64
	present := false
	for _, row := range rows {
		if column >= len(row) || row[column] == nil {
			continue
		}
		switch row[column].(type) {
		case int64:
			if kind == leafBoolean {
				return leafString
			}
		case float64:
			if kind == leafBoolean {
				return leafString
			}
			kind = leafDouble
		case bool:
			if present && kind != leafBoolean {
				return leafString
			}
			kind = leafBoolean
		default:
			return leafString
		}
		present = true
	}
	if !present {
		return leafString
	}
	return kind
}

func leafValue(value any, kind leafKind, columnIndex int) parquet.Value {
	if value == nil {
		return parquet.NullValue().Level(0, 0, columnIndex)
	}
	var v parquet.Value
	switch kind {
	case leafInt64:
		v = parquet.Int64Value(value.(int64))
	case leafDouble:
		switch typed := value.(type) {
		case int64:
			v = parquet.DoubleValue(float64(typed))
		default:
			v = parquet.DoubleValue(typed.(float64))
		}
	case leafBoolean:
		v = parquet.BooleanValue(value.(bool))
	default:
		v = parquet.ByteArrayValue([]byte(formatCell(value)))
	}
	return v.Level(0, 1, columnIndex)
}

func uniqueNames(columns []string) []string {
	names := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, column := range columns {
		base := column
		if base == "" {
			base = fmt.Sprintf("column_%d", i)
		}
		name := base
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
