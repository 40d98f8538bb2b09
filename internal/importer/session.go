package importer

// session.go drives the pipeline end to end as a short state machine:
//
//	TYPE_SELECT -> UPLOAD -> (MAPPING)? -> REVIEW -> COMMITTED | DISCARDED
//
// Creating a session consumes the TYPE_SELECT step (the operator has picked
// a record kind). Loading a matrix runs structure detection and auto-mapping
// and, when the mapping resolves, goes straight to review; otherwise the
// session parks in MAPPING until a manual mapping arrives. Everything up to
// commit is pure in-memory state, so a discard at any pre-commit point has
// no external effects.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lardosa/contacerta/internal/ledger"
)

// State is the orchestrator's position in the import flow.
type State string

const (
	StateUpload    State = "UPLOAD"
	StateMapping   State = "MAPPING"
	StateReview    State = "REVIEW"
	StateCommitted State = "COMMITTED"
	StateDiscarded State = "DISCARDED"
)

// Session is one import run. Sessions are not safe for concurrent use;
// each run owns its matrix and its snapshot of reference data.
type Session struct {
	ID   string
	Kind RecordKind

	// SkipExisting excludes drafts whose fingerprint is already known to
	// the store. On by default; the operator may toggle it off before
	// commit to force re-ingestion.
	SkipExisting bool

	state   State
	cfg     ParserConfig
	refs    ledger.Reference
	sink    ledger.Sink
	matrix  [][]any
	layout  Layout
	mapping *FieldMapping
	drafts  []*Draft
	log     *slog.Logger
}

// NewSession starts an import run for the given record kind.
func NewSession(kind RecordKind, refs ledger.Reference, sink ledger.Sink, cfg ParserConfig) *Session {
	id := uuid.NewString()
	return &Session{
		ID:           id,
		Kind:         kind,
		SkipExisting: true,
		state:        StateUpload,
		cfg:          cfg,
		refs:         refs,
		sink:         sink,
		log:          slog.With("session", id, "kind", string(kind)),
	}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Layout returns the detected layout; zero-valued before Load.
func (s *Session) Layout() Layout { return s.layout }

// Load accepts the raw matrix, detects its structure and attempts
// auto-mapping. On success the session parses all rows and moves to REVIEW;
// when auto-mapping fails it moves to MAPPING and waits for SetMapping.
// Structural failures (empty input, no data rows) abort with an error and
// leave the session in UPLOAD.
func (s *Session) Load(ctx context.Context, matrix [][]any) error {
	if s.state != StateUpload {
		return fmt.Errorf("%w: load in state %s", ErrWrongState, s.state)
	}
	if len(matrix) == 0 {
		return ErrEmptyMatrix
	}

	layout := Detect(matrix)
	if layout.DataStart >= len(matrix) {
		return ErrNoDataRows
	}

	s.matrix = matrix
	s.layout = layout
	s.log.Info("layout detected",
		"mode", string(layout.Mode),
		"data_start", layout.DataStart,
		"columns", len(layout.Columns),
	)

	mapping := AutoMap(s.Kind, layout)
	if mapping == nil {
		s.state = StateMapping
		s.log.Info("auto-mapping failed, waiting for manual mapping")
		return nil
	}
	s.mapping = mapping
	return s.review(ctx)
}

// SetMapping applies an operator-supplied mapping and moves to review.
// Incomplete mappings are rejected and the session stays in MAPPING.
func (s *Session) SetMapping(ctx context.Context, draft map[LogicalField]ColumnID) error {
	if s.state != StateMapping && s.state != StateReview {
		return fmt.Errorf("%w: mapping in state %s", ErrWrongState, s.state)
	}
	mapping, err := ApplyManual(s.Kind, draft)
	if err != nil {
		return err
	}
	s.mapping = mapping
	return s.review(ctx)
}

// review parses every data row, fingerprints the valid drafts and marks
// duplicates against both the store's known fingerprints and earlier rows
// of the same file.
func (s *Session) review(ctx context.Context) error {
	existing, err := s.sink.ExistingFingerprints(ctx)
	if err != nil {
		return fmt.Errorf("load existing fingerprints: %w", err)
	}

	s.drafts = s.drafts[:0]
	seen := make(map[string]bool)

	for i := s.layout.DataStart; i < len(s.matrix); i++ {
		d := ParseRow(s.matrix[i], s.layout, s.mapping, s.refs, s.cfg, i+1)
		if d == nil {
			continue
		}
		if d.Valid {
			d.Fingerprint = Fingerprint(d)
			if _, ok := existing[d.Fingerprint]; ok || seen[d.Fingerprint] {
				d.Duplicate = true
			}
			seen[d.Fingerprint] = true
		}
		s.drafts = append(s.drafts, d)
	}

	s.state = StateReview
	r := s.Review()
	s.log.Info("review ready",
		"total", r.Summary.Total,
		"valid", r.Summary.Valid,
		"invalid", r.Summary.Invalid,
		"duplicates", r.Summary.Duplicates,
	)
	return nil
}

// ReviewSummary is the operator-facing tally of a parsed matrix.
type ReviewSummary struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
}

// ReviewResult partitions drafts for operator review. Invalid drafts are
// shown but never committed; duplicate drafts are committed only when
// skip-existing is toggled off.
type ReviewResult struct {
	Summary ReviewSummary `json:"summary"`
	Valid   []*Draft      `json:"valid"`
	Invalid []*Draft      `json:"invalid"`
}

// Review returns the current partition of drafts. Only meaningful in
// REVIEW and later states.
func (s *Session) Review() ReviewResult {
	var r ReviewResult
	for _, d := range s.drafts {
		r.Summary.Total++
		if d.Valid {
			r.Summary.Valid++
			if d.Duplicate {
				r.Summary.Duplicates++
			}
			r.Valid = append(r.Valid, d)
		} else {
			r.Summary.Invalid++
			r.Invalid = append(r.Invalid, d)
		}
	}
	return r
}

// CommitFailure reports one record the persistence collaborator rejected.
type CommitFailure struct {
	Line   int    `json:"line"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// CommitResult is the outcome of a commit: commit is best-effort and
// sequential, not a transaction, so failures are reported per record for
// re-attempt rather than rolled back.
type CommitResult struct {
	Committed int             `json:"committed"`
	Skipped   int             `json:"skipped"`
	Failed    []CommitFailure `json:"failed,omitempty"`
}

// Commit hands the valid, non-duplicate drafts to the persistence
// collaborator one record at a time in original row order. Each receipt
// additionally emits exactly one linked revenue ledger entry referencing it.
func (s *Session) Commit(ctx context.Context) (*CommitResult, error) {
	if s.state != StateReview {
		return nil, fmt.Errorf("%w: commit in state %s", ErrWrongState, s.state)
	}

	result := &CommitResult{}
	for _, d := range s.drafts {
		if !d.Valid {
			continue
		}
		if d.Duplicate && s.SkipExisting {
			result.Skipped++
			continue
		}
		if err := s.commitDraft(ctx, d); err != nil {
			result.Failed = append(result.Failed, CommitFailure{
				Line:   d.Line,
				ID:     d.ID,
				Reason: err.Error(),
			})
			continue
		}
		result.Committed++
	}

	s.state = StateCommitted
	s.log.Info("committed",
		"records", result.Committed,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
	)
	return result, nil
}

func (s *Session) commitDraft(ctx context.Context, d *Draft) error {
	if d.Ledger != nil {
		e := *d.Ledger
		e.ID = d.Fingerprint // fingerprint is the idempotent persistence key
		return s.sink.CommitLedgerEntry(ctx, e)
	}

	r := *d.Receipt
	r.InternalID = d.Fingerprint
	if err := s.sink.CommitFiscalReceipt(ctx, r); err != nil {
		return err
	}
	return s.sink.CommitLedgerEntry(ctx, linkedEntryFor(r))
}

// linkedEntryFor builds the revenue-side ledger entry a receipt generates.
func linkedEntryFor(r ledger.FiscalReceipt) ledger.LedgerEntry {
	status := ledger.StatusPending
	if r.IsPaid {
		status = ledger.StatusPaid
	}
	desc := r.Description
	if desc == "" {
		desc = "Recibo " + r.ExternalID
	}
	return ledger.LedgerEntry{
		ID:              r.InternalID + "-tx",
		Country:         r.Country,
		Type:            ledger.TypeRevenue,
		AccrualDate:     r.IssueDate,
		DueDate:         r.IssueDate,
		Description:     desc,
		Amount:          r.ReceivedAmount,
		Status:          status,
		CategoryID:      r.CategoryID,
		ItemID:          r.ItemID,
		SupplierID:      r.SupplierID,
		Origin:          ledger.OriginImport,
		LinkedReceiptID: r.InternalID,
	}
}

// Discard abandons the run and drops all in-memory state. Allowed at any
// point before commit; no external effects occur.
func (s *Session) Discard() error {
	if s.state == StateCommitted {
		return fmt.Errorf("%w: discard after commit", ErrWrongState)
	}
	s.matrix = nil
	s.drafts = nil
	s.mapping = nil
	s.state = StateDiscarded
	s.log.Info("discarded")
	return nil
}
