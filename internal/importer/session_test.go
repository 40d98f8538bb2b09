package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lardosa/contacerta/internal/ledger"
)

// fakeSink records commits in memory and can simulate stored fingerprints
// and persistence failures.
type fakeSink struct {
	entries      []ledger.LedgerEntry
	receipts     []ledger.FiscalReceipt
	known        map[string]struct{}
	failReceipts bool
}

func (s *fakeSink) CommitLedgerEntry(_ context.Context, e ledger.LedgerEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeSink) CommitFiscalReceipt(_ context.Context, r ledger.FiscalReceipt) error {
	if s.failReceipts {
		return errors.New("store rejected receipt")
	}
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *fakeSink) ExistingFingerprints(context.Context) (map[string]struct{}, error) {
	if s.known == nil {
		return map[string]struct{}{}, nil
	}
	return s.known, nil
}

// legacyMatrix prepends the three-row banner of the historical exports.
func legacyMatrix(rows ...[]any) [][]any {
	matrix := [][]any{
		{"Recibos Verdes 2024"},
		{},
		{},
	}
	return append(matrix, rows...)
}

func receiptRow(date, number, base string) []any {
	return []any{date, number, "ACME", "Services", "Consulting", "", base, "", "", "Sim"}
}

func newReceiptSession(sink *fakeSink) *Session {
	return NewSession(KindReceipts, newTestRefs(), sink, testParserConfig())
}

func TestSession_ReceiptsEndToEnd(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	sess := newReceiptSession(sink)

	if sess.State() != StateUpload {
		t.Fatalf("state = %s, want UPLOAD", sess.State())
	}

	err := sess.Load(ctx, legacyMatrix(
		receiptRow("10/03/2024", "2024/42", "1.000,00"),
		receiptRow("11/03/2024", "2024/43", "500"),
	))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if sess.State() != StateReview {
		t.Fatalf("state = %s, want REVIEW", sess.State())
	}

	r := sess.Review()
	if r.Summary.Total != 2 || r.Summary.Valid != 2 || r.Summary.Invalid != 0 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	if r.Valid[0].Line != 4 || r.Valid[1].Line != 5 {
		t.Errorf("lines = %d, %d, want 4, 5", r.Valid[0].Line, r.Valid[1].Line)
	}

	result, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 2 || result.Skipped != 0 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if sess.State() != StateCommitted {
		t.Errorf("state = %s, want COMMITTED", sess.State())
	}

	// Each receipt emits itself plus exactly one linked revenue entry.
	if len(sink.receipts) != 2 || len(sink.entries) != 2 {
		t.Fatalf("sink got %d receipts, %d entries", len(sink.receipts), len(sink.entries))
	}

	rec := sink.receipts[0]
	if rec.InternalID != r.Valid[0].Fingerprint {
		t.Errorf("receipt persisted under %s, want fingerprint %s", rec.InternalID, r.Valid[0].Fingerprint)
	}
	linked := sink.entries[0]
	if linked.ID != rec.InternalID+"-tx" {
		t.Errorf("linked entry id = %s", linked.ID)
	}
	if linked.Type != ledger.TypeRevenue {
		t.Errorf("linked entry type = %s", linked.Type)
	}
	if linked.LinkedReceiptID != rec.InternalID {
		t.Errorf("linked receipt id = %s", linked.LinkedReceiptID)
	}
	if !linked.Amount.Equal(rec.ReceivedAmount) {
		t.Errorf("linked amount = %s, want %s", linked.Amount, rec.ReceivedAmount)
	}
	if linked.Status != ledger.StatusPaid {
		t.Errorf("linked status = %s", linked.Status)
	}
	if linked.Description != "Recibo 2024/42" {
		t.Errorf("linked description = %q", linked.Description)
	}
}

func TestSession_SecondImportSkipsExisting(t *testing.T) {
	ctx := context.Background()
	matrix := legacyMatrix(receiptRow("10/03/2024", "2024/42", "1000"))

	first := &fakeSink{}
	sess := newReceiptSession(first)
	if err := sess.Load(ctx, matrix); err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if _, err := sess.Commit(ctx); err != nil {
		t.Fatalf("Commit error = %v", err)
	}

	// Second import of the same file against a store that knows the
	// committed fingerprints.
	second := &fakeSink{known: map[string]struct{}{}}
	for _, r := range first.receipts {
		second.known[r.InternalID] = struct{}{}
	}

	resess := newReceiptSession(second)
	if err := resess.Load(ctx, matrix); err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if got := resess.Review().Summary.Duplicates; got != 1 {
		t.Errorf("duplicates = %d, want 1", got)
	}

	result, err := resess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 0 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(second.receipts) != 0 {
		t.Errorf("sink got %d receipts, want 0", len(second.receipts))
	}
}

func TestSession_ForceReingest(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{known: map[string]struct{}{}}

	sess := newReceiptSession(sink)
	if err := sess.Load(ctx, legacyMatrix(receiptRow("10/03/2024", "2024/42", "1000"))); err != nil {
		t.Fatalf("Load error = %v", err)
	}
	sink.known[sess.Review().Valid[0].Fingerprint] = struct{}{}

	// Re-map to re-run review so the duplicate mark reflects the store.
	if err := sess.SetMapping(ctx, map[LogicalField]ColumnID{
		FieldDate: "A", FieldReceiptID: "B", FieldSupplier: "C",
		FieldCategory: "D", FieldBaseAmount: "G",
	}); err != nil {
		t.Fatalf("SetMapping error = %v", err)
	}

	sess.SkipExisting = false
	result, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 1 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestSession_InFileDuplicate(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	sess := newReceiptSession(sink)

	row := receiptRow("10/03/2024", "2024/42", "1000")
	if err := sess.Load(ctx, legacyMatrix(row, row)); err != nil {
		t.Fatalf("Load error = %v", err)
	}

	r := sess.Review()
	if r.Summary.Valid != 2 || r.Summary.Duplicates != 1 {
		t.Fatalf("summary = %+v", r.Summary)
	}

	result, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(sink.receipts) != 1 {
		t.Errorf("sink got %d receipts, want 1", len(sink.receipts))
	}
}

func TestSession_ManualMappingFlow(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	sess := NewSession(KindLedgerPT, newTestRefs(), sink, testParserConfig())

	// Labeled export whose headers do not cover the type and bank fields,
	// so auto-mapping cannot resolve.
	matrix := [][]any{
		{"Data", "Categoria", "Valor", "Info1", "Info2"},
		{"10/03/2024", "Habitação", "250,50", "Despesa", "BCP"},
	}
	if err := sess.Load(ctx, matrix); err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if sess.State() != StateMapping {
		t.Fatalf("state = %s, want MAPPING", sess.State())
	}

	if _, err := sess.Commit(ctx); !errors.Is(err, ErrWrongState) {
		t.Errorf("Commit error = %v, want ErrWrongState", err)
	}

	err := sess.SetMapping(ctx, map[LogicalField]ColumnID{
		FieldDate: "Data", FieldType: "Info1", FieldBank: "Info2",
		FieldCategory: "Categoria", FieldAmount: "Valor",
	})
	if err != nil {
		t.Fatalf("SetMapping error = %v", err)
	}
	if sess.State() != StateReview {
		t.Fatalf("state = %s, want REVIEW", sess.State())
	}

	r := sess.Review()
	if r.Summary.Valid != 1 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	e := r.Valid[0].Ledger
	if e.PaymentMethodID != "pm-bcp" || e.Type != ledger.TypeExpense {
		t.Errorf("entry = %+v", e)
	}

	result, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 1 {
		t.Errorf("result = %+v", result)
	}
	if sink.entries[0].ID != r.Valid[0].Fingerprint {
		t.Errorf("entry persisted under %s, want fingerprint", sink.entries[0].ID)
	}
}

func TestSession_InvalidRowsNeverCommit(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	sess := newReceiptSession(sink)

	err := sess.Load(ctx, legacyMatrix(
		receiptRow("10/03/2024", "2024/42", "1000"),
		[]any{"11/03/2024", "2024/43", "ACME", "Servicess", "", "", "100", "", "", ""},
	))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	r := sess.Review()
	if r.Summary.Valid != 1 || r.Summary.Invalid != 1 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	if r.Invalid[0].Fingerprint != "" {
		t.Errorf("invalid draft has fingerprint %s", r.Invalid[0].Fingerprint)
	}

	result, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(sink.receipts) != 1 {
		t.Errorf("sink got %d receipts, want 1", len(sink.receipts))
	}
}

func TestSession_CommitFailureReported(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{failReceipts: true}
	sess := newReceiptSession(sink)

	if err := sess.Load(ctx, legacyMatrix(receiptRow("10/03/2024", "2024/42", "1000"))); err != nil {
		t.Fatalf("Load error = %v", err)
	}
	result, err := sess.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit error = %v", err)
	}
	if result.Committed != 0 || len(result.Failed) != 1 {
		t.Fatalf("result = %+v", result)
	}
	f := result.Failed[0]
	if f.Line != 4 || !strings.Contains(f.Reason, "store rejected receipt") {
		t.Errorf("failure = %+v", f)
	}
	// The linked entry is not emitted when the receipt itself failed.
	if len(sink.entries) != 0 {
		t.Errorf("sink got %d entries, want 0", len(sink.entries))
	}
}

func TestSession_LoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty matrix", func(t *testing.T) {
		sess := newReceiptSession(&fakeSink{})
		if err := sess.Load(ctx, nil); !errors.Is(err, ErrEmptyMatrix) {
			t.Errorf("error = %v, want ErrEmptyMatrix", err)
		}
		if sess.State() != StateUpload {
			t.Errorf("state = %s, want UPLOAD", sess.State())
		}
	})

	t.Run("header without data rows", func(t *testing.T) {
		sess := newReceiptSession(&fakeSink{})
		matrix := [][]any{{"Data", "Numero", "Fornecedor", "Valor"}}
		if err := sess.Load(ctx, matrix); !errors.Is(err, ErrNoDataRows) {
			t.Errorf("error = %v, want ErrNoDataRows", err)
		}
		if sess.State() != StateUpload {
			t.Errorf("state = %s, want UPLOAD", sess.State())
		}
	})

	t.Run("second load rejected", func(t *testing.T) {
		sess := newReceiptSession(&fakeSink{})
		matrix := legacyMatrix(receiptRow("10/03/2024", "2024/42", "1000"))
		if err := sess.Load(ctx, matrix); err != nil {
			t.Fatalf("Load error = %v", err)
		}
		if err := sess.Load(ctx, matrix); !errors.Is(err, ErrWrongState) {
			t.Errorf("error = %v, want ErrWrongState", err)
		}
	})
}

func TestSession_Discard(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}

	t.Run("before commit", func(t *testing.T) {
		sess := newReceiptSession(sink)
		if err := sess.Load(ctx, legacyMatrix(receiptRow("10/03/2024", "2024/42", "1000"))); err != nil {
			t.Fatalf("Load error = %v", err)
		}
		if err := sess.Discard(); err != nil {
			t.Fatalf("Discard error = %v", err)
		}
		if sess.State() != StateDiscarded {
			t.Errorf("state = %s, want DISCARDED", sess.State())
		}
		if _, err := sess.Commit(ctx); !errors.Is(err, ErrWrongState) {
			t.Errorf("Commit error = %v, want ErrWrongState", err)
		}
		if len(sink.receipts) != 0 || len(sink.entries) != 0 {
			t.Error("discard must not touch the sink")
		}
	})

	t.Run("after commit", func(t *testing.T) {
		sess := newReceiptSession(sink)
		if err := sess.Load(ctx, legacyMatrix(receiptRow("10/03/2024", "2024/42", "1000"))); err != nil {
			t.Fatalf("Load error = %v", err)
		}
		if _, err := sess.Commit(ctx); err != nil {
			t.Fatalf("Commit error = %v", err)
		}
		if err := sess.Discard(); !errors.Is(err, ErrWrongState) {
			t.Errorf("Discard error = %v, want ErrWrongState", err)
		}
	})
}
