package importer

// mapping.go resolves logical record fields to concrete columns. Positional
// layouts use fixed letter conventions per record kind; labeled layouts are
// matched against per-field synonym sets, exact normalized match first and
// substring containment second. Auto-mapping returns nil whenever a required
// field is missing or two fields would land on the same column, signalling
// the orchestrator to ask the operator for a manual mapping.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lardosa/contacerta/internal/ledger"
)

// RecordKind selects the target record type and jurisdiction of an import.
type RecordKind string

const (
	KindLedgerPT RecordKind = "ledger-pt"
	KindLedgerBR RecordKind = "ledger-br"
	KindReceipts RecordKind = "receipts"
)

// Country returns the jurisdiction a record kind commits into.
func (k RecordKind) Country() ledger.Country {
	if k == KindLedgerBR {
		return ledger.CountryBR
	}
	return ledger.CountryPT
}

// IsLedger reports whether the kind produces ledger entry drafts.
func (k RecordKind) IsLedger() bool {
	return k == KindLedgerPT || k == KindLedgerBR
}

// LogicalField is a field the parser needs to locate in a row. The exact
// set in play depends on the record kind.
type LogicalField string

const (
	FieldDate          LogicalField = "DATE"
	FieldType          LogicalField = "TYPE"
	FieldBank          LogicalField = "BANK"
	FieldCategory      LogicalField = "CATEGORY"
	FieldItem          LogicalField = "ITEM"
	FieldDescription   LogicalField = "DESCRIPTION"
	FieldAmount        LogicalField = "AMOUNT"
	FieldPaidFlag      LogicalField = "PAID_FLAG"
	FieldReceiptID     LogicalField = "RECEIPT_ID"
	FieldSupplier      LogicalField = "SUPPLIER"
	FieldBaseAmount    LogicalField = "BASE_AMOUNT"
	FieldRatePrimary   LogicalField = "RATE_PRIMARY"
	FieldRateSecondary LogicalField = "RATE_SECONDARY"
)

// ledgerFields and receiptFields list each kind's fields in resolution
// order. Order matters for labeled auto-mapping: earlier fields claim
// columns first, so the specific synonyms win over the generic ones.
var (
	ledgerRequired = []LogicalField{FieldDate, FieldType, FieldBank, FieldCategory, FieldAmount}
	ledgerOptional = []LogicalField{FieldItem, FieldDescription, FieldPaidFlag}

	receiptRequired = []LogicalField{FieldDate, FieldReceiptID, FieldSupplier, FieldCategory, FieldBaseAmount}
	receiptOptional = []LogicalField{FieldItem, FieldDescription, FieldRatePrimary, FieldRateSecondary, FieldPaidFlag}
)

// RequiredFields returns the fields a kind cannot parse without.
func RequiredFields(kind RecordKind) []LogicalField {
	if kind.IsLedger() {
		return ledgerRequired
	}
	return receiptRequired
}

// OptionalFields returns the fields a kind uses when present.
func OptionalFields(kind RecordKind) []LogicalField {
	if kind.IsLedger() {
		return ledgerOptional
	}
	return receiptOptional
}

// Positional conventions for the legacy exports. Receipts occupy columns
// A-J, ledger entries A-H.
var (
	receiptPositional = map[LogicalField]ColumnID{
		FieldDate: "A", FieldReceiptID: "B", FieldSupplier: "C",
		FieldCategory: "D", FieldItem: "E", FieldDescription: "F",
		FieldBaseAmount: "G", FieldRatePrimary: "H", FieldRateSecondary: "I",
		FieldPaidFlag: "J",
	}
	ledgerPositional = map[LogicalField]ColumnID{
		FieldDate: "A", FieldType: "B", FieldBank: "C", FieldCategory: "D",
		FieldItem: "E", FieldDescription: "F", FieldAmount: "G",
		FieldPaidFlag: "H",
	}
)

// fieldSynonyms matches normalized header labels to logical fields.
// Portuguese labels cover both the PT and BR exports.
var fieldSynonyms = map[LogicalField][]string{
	FieldDate:          {"data emissao", "data de emissao", "issue date", "emissao", "data", "date", "dia"},
	FieldType:          {"tipo", "type", "movimento"},
	FieldBank:          {"banco", "bank", "conta", "account", "forma de pagamento", "metodo de pagamento", "payment method"},
	FieldCategory:      {"categoria", "category"},
	FieldItem:          {"item", "rubrica", "subcategoria", "line item"},
	FieldDescription:   {"descricao", "description", "observacoes", "notas", "notes"},
	FieldAmount:        {"valor", "amount", "montante", "total"},
	FieldPaidFlag:      {"pago", "paid", "estado", "status", "liquidado"},
	FieldReceiptID:     {"numero do recibo", "numero recibo", "recibo", "receipt number", "receipt id", "numero", "number"},
	FieldSupplier:      {"fornecedor", "supplier", "cliente", "client", "entidade"},
	FieldBaseAmount:    {"valor base", "base amount", "base", "valor", "amount"},
	FieldRatePrimary:   {"taxa irs", "irs", "retencao", "withholding", "taxa retencao"},
	FieldRateSecondary: {"taxa iva", "iva", "vat", "taxa"},
}

// FieldMapping binds each logical field of a record kind to a column.
// Immutable once built; construction enforces the invariant that every
// required field resolves to a distinct column.
type FieldMapping struct {
	Kind    RecordKind
	columns map[LogicalField]ColumnID
}

// Column returns the mapped column for a field, if any.
func (m *FieldMapping) Column(f LogicalField) (ColumnID, bool) {
	c, ok := m.columns[f]
	return c, ok
}

// Fields returns the mapped logical fields in stable order.
func (m *FieldMapping) Fields() []LogicalField {
	fields := make([]LogicalField, 0, len(m.columns))
	for f := range m.columns {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// AutoMap resolves every field of the record kind against the layout.
// Returns nil when any required field is unresolved or when two fields
// collide on the same column; the caller then falls back to manual mapping.
func AutoMap(kind RecordKind, layout Layout) *FieldMapping {
	columns := make(map[LogicalField]ColumnID)
	used := make(map[ColumnID]bool)

	resolve := func(f LogicalField) bool {
		var col ColumnID
		var ok bool
		if layout.Mode == ModePositional {
			col, ok = positionalColumn(kind, f)
			ok = ok && layout.Index(col) >= 0
		} else {
			col, ok = synonymColumn(f, layout.Columns, used)
		}
		if !ok || used[col] {
			return false
		}
		columns[f] = col
		used[col] = true
		return true
	}

	for _, f := range RequiredFields(kind) {
		if !resolve(f) {
			return nil
		}
	}
	for _, f := range OptionalFields(kind) {
		resolve(f) // best-effort, absence is fine
	}

	return &FieldMapping{Kind: kind, columns: columns}
}

// ApplyManual validates an operator-supplied mapping: every required field
// present, no column claimed twice.
func ApplyManual(kind RecordKind, draft map[LogicalField]ColumnID) (*FieldMapping, error) {
	var missing []string
	for _, f := range RequiredFields(kind) {
		if _, ok := draft[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteMapping, strings.Join(missing, ", "))
	}

	used := make(map[ColumnID]LogicalField, len(draft))
	columns := make(map[LogicalField]ColumnID, len(draft))
	for f, col := range draft {
		if other, dup := used[col]; dup {
			return nil, fmt.Errorf("%w: column %s mapped to both %s and %s", ErrIncompleteMapping, col, other, f)
		}
		used[col] = f
		columns[f] = col
	}

	return &FieldMapping{Kind: kind, columns: columns}, nil
}

func positionalColumn(kind RecordKind, f LogicalField) (ColumnID, bool) {
	if kind.IsLedger() {
		c, ok := ledgerPositional[f]
		return c, ok
	}
	c, ok := receiptPositional[f]
	return c, ok
}

// synonymColumn tries exact normalized matches across all synonyms first,
// then substring containment, skipping columns another field already claimed.
func synonymColumn(f LogicalField, columns []ColumnID, used map[ColumnID]bool) (ColumnID, bool) {
	synonyms := fieldSynonyms[f]

	for _, syn := range synonyms {
		for _, col := range columns {
			if used[col] {
				continue
			}
			if NormalizeKey(string(col)) == syn {
				return col, true
			}
		}
	}
	for _, syn := range synonyms {
		for _, col := range columns {
			if used[col] {
				continue
			}
			if strings.Contains(NormalizeKey(string(col)), syn) {
				return col, true
			}
		}
	}
	return "", false
}
