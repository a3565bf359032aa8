package dataset

import (
	"math"
	"strconv"
	"strings"
)

var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"#N/A": true,
}

func isMissing(cell string) bool {
	return missingTokens[strings.TrimSpace(cell)]
}

// inferType picks the narrowest type every present cell of the column fits.
// A column with no present cells is text.
func inferType(rows [][]string, column int) ColumnType {
	kind := TypeInteger
	present := false
	for _, row := range rows {
		cell := row[column]
		if isMissing(cell) {
			continue
		}
		present = true
		if kind == TypeInteger {
			if _, ok := parseInt(cell); ok {
				continue
			}
			kind = TypeReal
		}
		if _, ok := parseReal(cell); !ok {
			return TypeText
		}
	}
	if !present {
		return TypeText
	}
	return kind
}

func convert(cell string, kind ColumnType) any {
	if isMissing(cell) {
		return nil
	}
	switch kind {
	case TypeInteger:
		value, _ := parseInt(cell)
		return value
	case TypeReal:
		value, _ := parseReal(cell)
		return value
	default:
		return cell
	}
}

func parseInt(cell string) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	return value, err == nil
}

func parseReal(cell string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
