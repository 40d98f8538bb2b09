package importer

// layout.go classifies a raw cell matrix as one of two shapes:
//
//   - Positional: the legacy export format with no header row, a fixed
//     banner of three rows and field identity implied by column position.
//   - Labeled: a self-describing export whose first few rows include a row
//     of column-name labels.
//
// Detection is an ordered list of strategies tried in sequence, each
// returning (Layout, bool). The ordering is a deliberate heuristic: the
// legacy check runs first because legacy banners sometimes contain text that
// looks like a header row.

import (
	"fmt"
	"strings"
)

// LayoutMode is the detected shape of a matrix.
type LayoutMode string

const (
	ModePositional LayoutMode = "POSITIONAL"
	ModeLabeled    LayoutMode = "LABELED"
)

// ColumnID identifies a column either by a letter-style positional label
// (A, B, ..., AA, ...) or by a header-derived text label made unique by
// suffixing duplicates.
type ColumnID string

// Layout describes where data starts and what the columns are called.
type Layout struct {
	Mode      LayoutMode
	DataStart int
	Columns   []ColumnID
}

// Index returns the position of a column in the layout, or -1.
func (l Layout) Index(id ColumnID) int {
	for i, c := range l.Columns {
		if c == id {
			return i
		}
	}
	return -1
}

const (
	// legacyDataStart is the fixed row where data begins in legacy exports,
	// after the undocumented three-row banner.
	legacyDataStart = 3

	// headerScanRows is how deep into the matrix a header row is searched for.
	headerScanRows = 10

	// widthSampleRows is how many data rows are sampled to find the widest.
	widthSampleRows = 17

	// maxColumns caps synthesized positional columns.
	maxColumns = 30
)

// headerHints are normalized tokens whose presence in a cell marks a
// plausible header row.
var headerHints = []string{"data", "date", "valor", "value", "issue", "emissao", "amount", "montante"}

type layoutStrategy func(matrix [][]any) (Layout, bool)

var layoutStrategies = []layoutStrategy{detectLegacyFixed, detectLabeled}

// Detect inspects a raw matrix and produces its Layout. It never fails:
// when no strategy matches, the matrix is treated as positional with data
// starting at row zero.
func Detect(matrix [][]any) Layout {
	for _, strategy := range layoutStrategies {
		if l, ok := strategy(matrix); ok {
			return l
		}
	}
	return Layout{
		Mode:      ModePositional,
		DataStart: 0,
		Columns:   letterColumns(widestRow(matrix, 0)),
	}
}

// detectLegacyFixed matches the historical export: at least three cells on
// row index 3 and a date in its first cell.
func detectLegacyFixed(matrix [][]any) (Layout, bool) {
	if len(matrix) <= legacyDataStart {
		return Layout{}, false
	}
	row := matrix[legacyDataStart]
	if len(row) < 3 {
		return Layout{}, false
	}
	if _, err := ToISODate(row[0]); err != nil {
		return Layout{}, false
	}
	return Layout{
		Mode:      ModePositional,
		DataStart: legacyDataStart,
		Columns:   letterColumns(widestRow(matrix, legacyDataStart)),
	}, true
}

// detectLabeled scans the first rows for one with at least three non-empty
// text cells of which at least one carries a date/value hint token.
func detectLabeled(matrix [][]any) (Layout, bool) {
	limit := len(matrix)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		if !looksLikeHeader(matrix[i]) {
			continue
		}
		return Layout{
			Mode:      ModeLabeled,
			DataStart: i + 1,
			Columns:   headerColumns(matrix[i], widestRow(matrix, i+1)),
		}, true
	}
	return Layout{}, false
}

func looksLikeHeader(row []any) bool {
	nonEmpty := 0
	hinted := false
	for _, cell := range row {
		text := CellText(cell)
		if text == "" {
			continue
		}
		nonEmpty++
		key := NormalizeKey(text)
		for _, hint := range headerHints {
			if strings.Contains(key, hint) {
				hinted = true
				break
			}
		}
	}
	return nonEmpty >= 3 && hinted
}

// headerColumns derives ColumnIDs from a header row. Empty cells get a
// positional letter placeholder; duplicate labels get an occurrence counter
// suffix. The result is padded with letters out to the widest sampled data
// row so every cell stays addressable.
func headerColumns(header []any, width int) []ColumnID {
	if width < len(header) {
		width = len(header)
	}
	if width > maxColumns {
		width = maxColumns
	}
	cols := make([]ColumnID, 0, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		label := ""
		if i < len(header) {
			label = CellText(header[i])
		}
		if label == "" {
			label = columnLetter(i)
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s_%d", label, n)
		}
		cols = append(cols, ColumnID(label))
	}
	return cols
}

// widestRow returns the widest row length among widthSampleRows rows
// starting at from, capped at maxColumns.
func widestRow(matrix [][]any, from int) int {
	widest := 0
	end := from + widthSampleRows
	if end > len(matrix) {
		end = len(matrix)
	}
	for i := from; i < end; i++ {
		if len(matrix[i]) > widest {
			widest = len(matrix[i])
		}
	}
	if widest > maxColumns {
		widest = maxColumns
	}
	return widest
}

func letterColumns(n int) []ColumnID {
	cols := make([]ColumnID, n)
	for i := range cols {
		cols[i] = ColumnID(columnLetter(i))
	}
	return cols
}

// columnLetter converts a zero-based index to a spreadsheet letter label
// (0 -> A, 25 -> Z, 26 -> AA).
func columnLetter(i int) string {
	letters := ""
	for i >= 0 {
		letters = string(rune('A'+i%26)) + letters
		i = i/26 - 1
	}
	return letters
}
