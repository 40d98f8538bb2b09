// Package sheet loads tabular files into the raw cell matrix the import
// pipeline consumes. The pipeline is agnostic to file format; this package
// owns the format-specific reading (xlsx via excelize, csv via stdlib) and
// hands back a plain [][]any.
package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// MaxFileSize is the maximum accepted upload (20MB). Whole files are held
// in memory; streaming parsing is out of scope.
var MaxFileSize int64 = 20 * 1024 * 1024

// LoadMatrix reads a spreadsheet export into a raw matrix. The format is
// picked by file extension: .xlsx/.xlsm/.xltx go through excelize, anything
// else is treated as CSV.
func LoadMatrix(filename string, data []byte) ([][]any, error) {
	if int64(len(data)) > MaxFileSize {
		return nil, fmt.Errorf("file exceeds %dMB limit", MaxFileSize/(1024*1024))
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx":
		return loadExcel(data)
	default:
		return loadCSV(data)
	}
}

// loadExcel reads the first sheet of an Excel workbook.
func loadExcel(data []byte) ([][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return toMatrix(rows), nil
}

func loadCSV(data []byte) ([][]any, error) {
	r := csv.NewReader(bytes.NewReader(sanitizeUTF8(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return toMatrix(rows), nil
}

func toMatrix(rows [][]string) [][]any {
	matrix := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		matrix[i] = cells
	}
	return matrix
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// the csv reader never chokes on legacy encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
