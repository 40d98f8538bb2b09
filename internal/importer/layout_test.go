package importer

import (
	"testing"
)

func row(cells ...any) []any { return cells }

func TestDetect_LegacyFixed(t *testing.T) {
	matrix := [][]any{
		row("Recibos 2024"),
		row(),
		row("gerado em 2024-04-01"),
		row("2024-03-10", "REC-001", "ACME", "Services", "Consulting", "", 1000, "11.5", "23", "S"),
		row("2024-03-11", "REC-002", "ACME", "Services", "Consulting", "", 500, "", "", ""),
	}

	l := Detect(matrix)
	if l.Mode != ModePositional {
		t.Fatalf("Mode = %s, want POSITIONAL", l.Mode)
	}
	if l.DataStart != 3 {
		t.Errorf("DataStart = %d, want 3", l.DataStart)
	}
	if len(l.Columns) != 10 {
		t.Errorf("columns = %d, want 10", len(l.Columns))
	}
	if l.Columns[0] != "A" || l.Columns[9] != "J" {
		t.Errorf("columns = %v, want letter labels A..J", l.Columns)
	}
}

// Legacy detection has precedence: a date on row 3 wins no matter what the
// banner rows look like, even when they resemble a header.
func TestDetect_LegacyWinsOverHeaderLikeBanner(t *testing.T) {
	matrix := [][]any{
		row("Data", "Valor", "Categoria", "Pago"),
		row(),
		row(),
		row("2024-03-10", "100", "Casa", "S"),
	}

	l := Detect(matrix)
	if l.Mode != ModePositional || l.DataStart != 3 {
		t.Errorf("got %s/%d, want POSITIONAL/3", l.Mode, l.DataStart)
	}
}

func TestDetect_Labeled(t *testing.T) {
	matrix := [][]any{
		row("Relatório de despesas"),
		row("Data", "Tipo", "Banco", "Categoria", "Valor", "Pago"),
		row("2024-03-10", "Despesa", "BCP", "Casa", "100,50", "S"),
	}

	l := Detect(matrix)
	if l.Mode != ModeLabeled {
		t.Fatalf("Mode = %s, want LABELED", l.Mode)
	}
	if l.DataStart != 2 {
		t.Errorf("DataStart = %d, want 2", l.DataStart)
	}
	want := []ColumnID{"Data", "Tipo", "Banco", "Categoria", "Valor", "Pago"}
	if len(l.Columns) != len(want) {
		t.Fatalf("columns = %v, want %v", l.Columns, want)
	}
	for i, c := range want {
		if l.Columns[i] != c {
			t.Errorf("column %d = %s, want %s", i, l.Columns[i], c)
		}
	}
}

func TestDetect_LabeledDuplicatesAndBlanks(t *testing.T) {
	matrix := [][]any{
		row("Data", "Valor", "Valor", "", "Pago"),
		row("2024-03-10", "1", "2", "3", "S"),
	}

	l := Detect(matrix)
	if l.Mode != ModeLabeled {
		t.Fatalf("Mode = %s, want LABELED", l.Mode)
	}
	if l.Columns[1] != "Valor" || l.Columns[2] != "Valor_2" {
		t.Errorf("duplicate labels = %v, want Valor / Valor_2", l.Columns[1:3])
	}
	if l.Columns[3] != "D" {
		t.Errorf("blank label = %s, want positional placeholder D", l.Columns[3])
	}
}

// A header row needs at least three non-empty cells and a hint token.
func TestDetect_HeaderRowThreshold(t *testing.T) {
	matrix := [][]any{
		row("Data", "Valor"), // only two cells, not a header
		row("x", "y", "z"),   // three cells but no hint
	}

	l := Detect(matrix)
	if l.Mode != ModePositional {
		t.Fatalf("Mode = %s, want POSITIONAL fallback", l.Mode)
	}
	if l.DataStart != 0 {
		t.Errorf("DataStart = %d, want 0", l.DataStart)
	}
	if len(l.Columns) != 3 {
		t.Errorf("columns = %d, want widest row 3", len(l.Columns))
	}
}

func TestDetect_EmptyMatrix(t *testing.T) {
	l := Detect(nil)
	if l.Mode != ModePositional || l.DataStart != 0 || len(l.Columns) != 0 {
		t.Errorf("got %+v, want empty positional layout", l)
	}
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		i    int
		want string
	}{
		{0, "A"}, {1, "B"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"},
	}
	for _, tt := range tests {
		if got := columnLetter(tt.i); got != tt.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tt.i, got, tt.want)
		}
	}
}

func TestWidestRowCap(t *testing.T) {
	wide := make([]any, 40)
	for i := range wide {
		wide[i] = "x"
	}
	matrix := [][]any{wide}

	l := Detect(matrix)
	if len(l.Columns) != maxColumns {
		t.Errorf("columns = %d, want capped at %d", len(l.Columns), maxColumns)
	}
}
