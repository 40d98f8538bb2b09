// Package store is the Postgres persistence collaborator. It implements
// ledger.Sink for committed records and loads the reference-data snapshot
// the pipeline validates against. Commits are idempotent: records are keyed
// by fingerprint (ledger entries) or stable internal id (receipts), so a
// retried commit of the same draft never creates a duplicate.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lardosa/contacerta/internal/ledger"
)

// DBTX is the interface for database operations, satisfied by both
// *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store wraps a connection pool with the import pipeline's persistence
// operations.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS category_items (
	id          TEXT PRIMARY KEY,
	category_id TEXT NOT NULL REFERENCES categories(id),
	name        TEXT NOT NULL,
	position    INT  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS payment_methods (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS suppliers (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id                TEXT PRIMARY KEY,
	country           TEXT NOT NULL,
	type              TEXT NOT NULL,
	accrual_date      TEXT NOT NULL,
	due_date          TEXT NOT NULL,
	description       TEXT,
	amount            NUMERIC(14,2) NOT NULL,
	status            TEXT NOT NULL,
	payment_method_id TEXT,
	category_id       TEXT,
	item_id           TEXT,
	supplier_id       TEXT,
	origin            TEXT NOT NULL,
	linked_receipt_id TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fiscal_receipts (
	internal_id          TEXT PRIMARY KEY,
	external_id          TEXT NOT NULL,
	country              TEXT NOT NULL,
	issue_date           TEXT NOT NULL,
	supplier_id          TEXT,
	category_id          TEXT,
	item_id              TEXT,
	base_amount          NUMERIC(14,2) NOT NULL,
	primary_rate         NUMERIC(6,2) NOT NULL,
	secondary_rate       NUMERIC(6,2) NOT NULL,
	primary_tax_amount   NUMERIC(14,2) NOT NULL,
	secondary_tax_amount NUMERIC(14,2) NOT NULL,
	net_amount           NUMERIC(14,2) NOT NULL,
	received_amount      NUMERIC(14,2) NOT NULL,
	is_paid              BOOLEAN NOT NULL,
	description          TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CommitLedgerEntry inserts a ledger entry, silently keeping the existing
// row when the same key was committed before.
func (s *Store) CommitLedgerEntry(ctx context.Context, e ledger.LedgerEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (
			id, country, type, accrual_date, due_date, description, amount,
			status, payment_method_id, category_id, item_id, supplier_id,
			origin, linked_receipt_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Country), string(e.Type), e.AccrualDate, e.DueDate,
		nullText(e.Description), e.Amount.StringFixed(2), string(e.Status),
		nullText(e.PaymentMethodID), nullText(e.CategoryID), nullText(e.ItemID),
		nullText(e.SupplierID), e.Origin, nullText(e.LinkedReceiptID),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry %s: %w", e.ID, err)
	}
	return nil
}

// CommitFiscalReceipt inserts a receipt, keyed by its stable internal id.
func (s *Store) CommitFiscalReceipt(ctx context.Context, r ledger.FiscalReceipt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fiscal_receipts (
			internal_id, external_id, country, issue_date, supplier_id,
			category_id, item_id, base_amount, primary_rate, secondary_rate,
			primary_tax_amount, secondary_tax_amount, net_amount,
			received_amount, is_paid, description
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (internal_id) DO NOTHING`,
		r.InternalID, r.ExternalID, string(r.Country), r.IssueDate,
		nullText(r.SupplierID), nullText(r.CategoryID), nullText(r.ItemID),
		r.BaseAmount.StringFixed(2), r.PrimaryRate.String(), r.SecondaryRate.String(),
		r.PrimaryTaxAmount.StringFixed(2), r.SecondaryTaxAmount.StringFixed(2),
		r.NetAmount.StringFixed(2), r.ReceivedAmount.StringFixed(2),
		r.IsPaid, nullText(r.Description),
	)
	if err != nil {
		return fmt.Errorf("insert fiscal receipt %s: %w", r.InternalID, err)
	}
	return nil
}

// ExistingFingerprints returns the deduplication keys of every previously
// imported record: ledger entries are keyed by their fingerprint directly,
// receipts by their stable internal id.
func (s *Store) ExistingFingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM ledger_entries WHERE origin = $1
		UNION
		SELECT internal_id FROM fiscal_receipts`,
		ledger.OriginImport,
	)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		known[fp] = struct{}{}
	}
	return known, rows.Err()
}

// LoadReference reads the reference-data snapshot the pipeline validates
// against. The snapshot is immutable for the duration of a run.
func (s *Store) LoadReference(ctx context.Context, normalize func(string) string) (*ledger.Snapshot, error) {
	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	methods, err := loadNamed[ledger.PaymentMethod](ctx, s.pool,
		`SELECT id, name FROM payment_methods ORDER BY name`,
		func(id, name string) ledger.PaymentMethod { return ledger.PaymentMethod{ID: id, Name: name} })
	if err != nil {
		return nil, err
	}

	suppliers, err := loadNamed[ledger.Supplier](ctx, s.pool,
		`SELECT id, name FROM suppliers ORDER BY name`,
		func(id, name string) ledger.Supplier { return ledger.Supplier{ID: id, Name: name} })
	if err != nil {
		return nil, err
	}

	return ledger.NewSnapshot(normalize, categories, methods, suppliers), nil
}

func (s *Store) loadCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, i.id, i.name
		FROM categories c
		LEFT JOIN category_items i ON i.category_id = c.id
		ORDER BY c.name, i.position`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []ledger.Category
	index := make(map[string]int)
	for rows.Next() {
		var catID, catName string
		var itemID, itemName pgtype.Text
		if err := rows.Scan(&catID, &catName, &itemID, &itemName); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		pos, ok := index[catID]
		if !ok {
			pos = len(categories)
			index[catID] = pos
			categories = append(categories, ledger.Category{ID: catID, Name: catName})
		}
		if itemID.Valid {
			categories[pos].Items = append(categories[pos].Items, ledger.Item{
				ID:   itemID.String,
				Name: itemName.String,
			})
		}
	}
	return categories, rows.Err()
}

func loadNamed[T any](ctx context.Context, db DBTX, query string, build func(id, name string) T) ([]T, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reference data: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan reference row: %w", err)
		}
		out = append(out, build(id, name))
	}
	return out, rows.Err()
}

// nullText maps empty strings to SQL NULL.
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
