package importer

// service.go manages the live import sessions on behalf of the surrounding
// application. Each session gets its own reference-data snapshot taken at
// creation time, so concurrent runs never share mutable state.

import (
	"context"
	"fmt"
	"sync"

	"github.com/lardosa/contacerta/internal/ledger"
)

// ErrUnknownSession is returned for ids that were never created or have
// already been removed.
var ErrUnknownSession = fmt.Errorf("unknown import session")

// ReferenceLoader produces a fresh read-only snapshot of reference data.
type ReferenceLoader func(ctx context.Context) (ledger.Reference, error)

// Service creates and tracks import sessions.
type Service struct {
	sink        ledger.Sink
	loadRefs    ReferenceLoader
	cfg         ParserConfig
	defaultSkip bool

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService wires the pipeline to its collaborators. defaultSkip is the
// initial duplicate-skip setting for new sessions.
func NewService(sink ledger.Sink, loadRefs ReferenceLoader, cfg ParserConfig, defaultSkip bool) *Service {
	return &Service{
		sink:        sink,
		loadRefs:    loadRefs,
		cfg:         cfg,
		defaultSkip: defaultSkip,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new session for the given record kind, snapshotting
// reference data for the whole run.
func (s *Service) Create(ctx context.Context, kind RecordKind) (*Session, error) {
	switch kind {
	case KindLedgerPT, KindLedgerBR, KindReceipts:
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}

	refs, err := s.loadRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	sess := NewSession(kind, refs, s.sink, s.cfg)
	sess.SkipExisting = s.defaultSkip

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns a live session by id.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

// Remove drops a session from the registry. Called after commit or discard.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
