package ledger

// reference.go defines the read-only reference data the import pipeline
// validates against: the category tree, payment methods and suppliers.
// The data is owned by external collaborators; the pipeline only ever sees
// an immutable Snapshot taken at the start of a run.

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is a line item within a category.
type Item struct {
	ID   string
	Name string
}

// Category groups an ordered list of line items.
type Category struct {
	ID    string
	Name  string
	Items []Item
}

// PaymentMethod is a bank account or payment instrument.
type PaymentMethod struct {
	ID   string
	Name string
}

// Supplier is a counterparty on receipts and supplier-linked entries.
type Supplier struct {
	ID   string
	Name string
}

// Reference resolves human labels to stable ids. Matching is exact up to
// case and diacritics; there is no fuzzy matching.
type Reference interface {
	CategoryByName(name string) (*Category, bool)
	PaymentMethodByName(name string) (string, bool)
	SupplierByName(name string) (string, bool)
}

// Sink is the persistence collaborator the pipeline commits to. Both commit
// operations must be idempotent keyed by the record's fingerprint or stable
// id, so a retried commit never creates a duplicate.
type Sink interface {
	CommitLedgerEntry(ctx context.Context, e LedgerEntry) error
	CommitFiscalReceipt(ctx context.Context, r FiscalReceipt) error
	ExistingFingerprints(ctx context.Context) (map[string]struct{}, error)
}

// Snapshot is an in-memory Reference built from reference-data lists.
// Lookups are keyed by a caller-supplied normalizer so that the pipeline's
// name normalization rules apply uniformly.
type Snapshot struct {
	normalize      func(string) string
	categories     map[string]*Category
	paymentMethods map[string]string
	suppliers      map[string]string
}

// NewSnapshot indexes the given reference lists. The normalize function is
// applied to every name on both the index and lookup sides.
func NewSnapshot(normalize func(string) string, categories []Category, methods []PaymentMethod, suppliers []Supplier) *Snapshot {
	s := &Snapshot{
		normalize:      normalize,
		categories:     make(map[string]*Category, len(categories)),
		paymentMethods: make(map[string]string, len(methods)),
		suppliers:      make(map[string]string, len(suppliers)),
	}
	for i := range categories {
		c := categories[i]
		s.categories[normalize(c.Name)] = &c
	}
	for _, m := range methods {
		s.paymentMethods[normalize(m.Name)] = m.ID
	}
	for _, sp := range suppliers {
		s.suppliers[normalize(sp.Name)] = sp.ID
	}
	return s
}

func (s *Snapshot) CategoryByName(name string) (*Category, bool) {
	c, ok := s.categories[s.normalize(name)]
	return c, ok
}

func (s *Snapshot) PaymentMethodByName(name string) (string, bool) {
	id, ok := s.paymentMethods[s.normalize(name)]
	return id, ok
}

func (s *Snapshot) SupplierByName(name string) (string, bool) {
	id, ok := s.suppliers[s.normalize(name)]
	return id, ok
}

// ItemByName finds a line item inside a category.
func (c *Category) ItemByName(normalize func(string) string, name string) (*Item, bool) {
	want := normalize(name)
	for i := range c.Items {
		if normalize(c.Items[i].Name) == want {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// Round2 rounds a monetary amount to two decimal places. All persisted
// amounts and fingerprint inputs use this precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
