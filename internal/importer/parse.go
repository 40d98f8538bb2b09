package importer

// parse.go turns one raw data row into a draft record. Parsing is pure over
// its inputs apart from generating a fresh candidate id; validation problems
// are collected on the draft rather than raised, so a single bad cell never
// aborts a run and the operator sees every problem in a row at once.

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lardosa/contacerta/internal/ledger"
)

// revenueSynonyms classify the TYPE cell of ledger rows. Anything else is
// an expense.
var revenueSynonyms = []string{"receita", "revenue", "entrada", "rendimento", "income"}

// ParserConfig carries jurisdiction policy into the parser. Default tax
// rates are policy, not pipeline logic, so they arrive here instead of
// living as literals in the parse path.
type ParserConfig struct {
	TaxPolicies map[ledger.Country]ledger.TaxPolicy
}

// Policy returns the tax policy for a country, zero-valued when the
// jurisdiction is unknown.
func (c ParserConfig) Policy(country ledger.Country) ledger.TaxPolicy {
	return c.TaxPolicies[country]
}

// Summary is the human-readable digest of a draft shown in review.
type Summary struct {
	Date     string          `json:"date"`
	Label    string          `json:"label"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Draft is a parsed-but-not-committed candidate record. Exactly one of
// Ledger and Receipt is set, per the session's record kind. A draft with
// validation errors stays in the result set for operator review but is
// never committed.
type Draft struct {
	ID          string     `json:"id"`
	Kind        RecordKind `json:"kind"`
	Line        int        `json:"line"` // 1-based source row number
	Valid       bool       `json:"valid"`
	Errors      []string   `json:"errors,omitempty"`
	Summary     Summary    `json:"summary"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Duplicate   bool       `json:"duplicate"`

	Ledger  *ledger.LedgerEntry   `json:"-"`
	Receipt *ledger.FiscalReceipt `json:"-"`
}

// ParseRow extracts the mapped cells from a raw row and builds a draft.
// Returns nil when the mapped DATE cell is empty: blank-date rows are
// end-of-data markers or separators in the legacy exports, not errors.
func ParseRow(row []any, layout Layout, m *FieldMapping, refs ledger.Reference, cfg ParserConfig, line int) *Draft {
	cells := newRowReader(row, layout, m)

	if cells.text(FieldDate) == "" {
		return nil
	}

	d := &Draft{
		ID:   uuid.NewString(),
		Kind: m.Kind,
		Line: line,
	}
	if m.Kind.IsLedger() {
		parseLedgerRow(d, cells, refs)
	} else {
		parseReceiptRow(d, cells, refs, cfg.Policy(m.Kind.Country()))
	}
	d.Valid = len(d.Errors) == 0
	return d
}

func parseLedgerRow(d *Draft, cells rowReader, refs ledger.Reference) {
	e := &ledger.LedgerEntry{
		ID:      d.ID,
		Country: d.Kind.Country(),
		Origin:  ledger.OriginImport,
	}

	date, err := ToISODate(cells.raw(FieldDate))
	if err != nil {
		d.fail("invalid date %q", cells.text(FieldDate))
	}
	e.AccrualDate = date
	e.DueDate = date

	e.Type = ledger.TypeExpense
	if containsAny(NormalizeKey(cells.text(FieldType)), revenueSynonyms) {
		e.Type = ledger.TypeRevenue
	}

	bankName := cells.text(FieldBank)
	if id, ok := refs.PaymentMethodByName(bankName); ok {
		e.PaymentMethodID = id
	} else {
		d.fail("unresolved bank %q", bankName)
	}

	categoryName := cells.text(FieldCategory)
	itemName := cells.text(FieldItem)
	e.CategoryID, e.ItemID = resolveCategoryItem(d, refs, categoryName, itemName)

	e.Amount = ledger.Round2(ToDecimalAmount(cells.raw(FieldAmount)))
	if !e.Amount.IsPositive() {
		d.fail("amount must be positive, got %s", e.Amount)
	}

	e.Status = ledger.StatusPending
	if ToBooleanFlag(cells.raw(FieldPaidFlag)) {
		e.Status = ledger.StatusPaid
	}
	e.Description = cells.text(FieldDescription)

	d.Ledger = e
	d.Summary = Summary{
		Date:     date,
		Label:    firstNonEmpty(e.Description, itemName, categoryName),
		Category: categoryName,
		Amount:   e.Amount,
	}
}

func parseReceiptRow(d *Draft, cells rowReader, refs ledger.Reference, policy ledger.TaxPolicy) {
	r := &ledger.FiscalReceipt{
		InternalID: d.ID,
		Country:    d.Kind.Country(),
	}

	date, err := ToISODate(cells.raw(FieldDate))
	if err != nil {
		d.fail("invalid date %q", cells.text(FieldDate))
	}
	r.IssueDate = date

	r.ExternalID = cells.text(FieldReceiptID)
	if r.ExternalID == "" {
		d.fail("missing receipt number")
	}

	supplierName := cells.text(FieldSupplier)
	if id, ok := refs.SupplierByName(supplierName); ok {
		r.SupplierID = id
	} else {
		d.fail("unresolved supplier %q", supplierName)
	}

	categoryName := cells.text(FieldCategory)
	itemName := cells.text(FieldItem)
	r.CategoryID, r.ItemID = resolveCategoryItem(d, refs, categoryName, itemName)

	r.BaseAmount = ledger.Round2(ToDecimalAmount(cells.raw(FieldBaseAmount)))
	if !r.BaseAmount.IsPositive() {
		d.fail("base amount must be positive, got %s", r.BaseAmount)
	}

	r.PrimaryRate = rateOrDefault(cells, FieldRatePrimary, policy.PrimaryRate)
	r.SecondaryRate = rateOrDefault(cells, FieldRateSecondary, policy.SecondaryRate)

	hundred := decimal.NewFromInt(100)
	r.PrimaryTaxAmount = ledger.Round2(r.BaseAmount.Mul(r.PrimaryRate).Div(hundred))
	r.SecondaryTaxAmount = ledger.Round2(r.BaseAmount.Mul(r.SecondaryRate).Div(hundred))
	r.NetAmount = r.BaseAmount.Sub(r.PrimaryTaxAmount)
	r.ReceivedAmount = policy.ReceivedAmount(r.NetAmount, r.SecondaryTaxAmount)

	r.IsPaid = ToBooleanFlag(cells.raw(FieldPaidFlag))
	r.Description = cells.text(FieldDescription)

	d.Receipt = r
	d.Summary = Summary{
		Date:     date,
		Label:    firstNonEmpty(supplierName, r.Description),
		Category: categoryName,
		Amount:   r.BaseAmount,
	}
}

// resolveCategoryItem resolves a category name and, when given, an item name
// within it. Item resolution is only attempted once the category resolved;
// a missing category already explains why the item could not be found.
func resolveCategoryItem(d *Draft, refs ledger.Reference, categoryName, itemName string) (categoryID, itemID string) {
	cat, ok := refs.CategoryByName(categoryName)
	if !ok {
		d.fail("unresolved category %q", categoryName)
		return "", ""
	}
	categoryID = cat.ID
	if itemName == "" {
		return categoryID, ""
	}
	item, ok := cat.ItemByName(NormalizeKey, itemName)
	if !ok {
		d.fail("unresolved item %q in category %q", itemName, categoryName)
		return categoryID, ""
	}
	return categoryID, item.ID
}

// rateOrDefault reads a percentage cell, falling back to the jurisdiction
// default when the cell is blank.
func rateOrDefault(cells rowReader, f LogicalField, def decimal.Decimal) decimal.Decimal {
	if cells.text(f) == "" {
		return def
	}
	return ToDecimalAmount(cells.raw(f))
}

func (d *Draft) fail(format string, args ...any) {
	d.Errors = append(d.Errors, fmt.Sprintf(format, args...))
}

// rowReader gives mapped-field access to one raw row.
type rowReader struct {
	row    []any
	layout Layout
	m      *FieldMapping
}

func newRowReader(row []any, layout Layout, m *FieldMapping) rowReader {
	return rowReader{row: row, layout: layout, m: m}
}

// raw returns the untyped cell for a field, nil when unmapped or the row is
// too short.
func (r rowReader) raw(f LogicalField) any {
	col, ok := r.m.Column(f)
	if !ok {
		return nil
	}
	idx := r.layout.Index(col)
	if idx < 0 || idx >= len(r.row) {
		return nil
	}
	return r.row[idx]
}

func (r rowReader) text(f LogicalField) string {
	return CellText(r.raw(f))
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
