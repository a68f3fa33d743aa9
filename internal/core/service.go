package core

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTooManyBatches is returned when the server-wide batch limit is reached.
var ErrTooManyBatches = errors.New("too many batches running, please try again later")

// DefaultMaxActiveBatches bounds concurrent background batches across sessions.
const DefaultMaxActiveBatches = 8

// DefaultSessionIdleTTL is how long an idle session is kept.
const DefaultSessionIdleTTL = 2 * time.Hour

// ServiceConfig holds the collaborators shared by every session.
type ServiceConfig struct {
	Decoder          Decoder
	Issuer           Issuer
	Aliases          ColumnAliases
	Recorder         Recorder
	IdleTTL          time.Duration
	MaxActiveBatches int

	// Clock is used for issue-date defaults and idle tracking.
	Clock func() time.Time
}

// Service owns the import sessions of a running process. Each session has
// its own Batch; nothing is shared between sessions but the collaborators.
type Service struct {
	decoder   Decoder
	issuer    Issuer
	recorder  Recorder
	assembler *Assembler
	idleTTL   time.Duration
	now       func() time.Time
	active    *Gate

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	batch     *Batch
	createdAt time.Time
}

// SessionInfo describes a session for listings.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
	Counts    Counts    `json:"counts"`
	Busy      bool      `json:"busy"`
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultSessionIdleTTL
	}
	if cfg.MaxActiveBatches <= 0 {
		cfg.MaxActiveBatches = DefaultMaxActiveBatches
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultColumnAliases()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = Recorders(nil)
	}

	return &Service{
		decoder:   cfg.Decoder,
		issuer:    cfg.Issuer,
		recorder:  cfg.Recorder,
		assembler: NewAssembler(WithAliases(cfg.Aliases), WithClock(cfg.Clock)),
		idleTTL:   cfg.IdleTTL,
		now:       cfg.Clock,
		active:    NewGate(cfg.MaxActiveBatches),
		sessions:  make(map[string]*session),
	}
}

// CreateSession starts an empty session and returns its batch.
func (s *Service) CreateSession() *Batch {
	id := uuid.NewString()
	b := NewBatch(BatchConfig{
		SessionID: id,
		Decoder:   s.decoder,
		Assembler: s.assembler,
		Issuer:    s.issuer,
		Recorder:  s.recorder,
		Clock:     s.now,
	})

	s.mu.Lock()
	s.sessions[id] = &session{batch: b, createdAt: s.now()}
	s.mu.Unlock()

	slog.Debug("session created", "session_id", id)
	return b
}

// Session returns the batch of a session.
func (s *Service) Session(id string) (*Batch, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.batch, nil
}

// CloseSession discards a session. Busy sessions cannot be closed.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.batch.Busy() {
		return ErrBusy
	}
	delete(s.sessions, id)
	sess.batch.closeListeners()
	return nil
}

// ListSessions returns every session, oldest first.
func (s *Service) ListSessions() []SessionInfo {
	s.mu.RLock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for id, sess := range s.sessions {
		infos = append(infos, SessionInfo{
			ID:        id,
			CreatedAt: sess.createdAt,
			LastUsed:  sess.batch.LastUsed(),
			Counts:    sess.batch.Counts(),
			Busy:      sess.batch.Busy(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// StartSubmitAll runs a session's batch in the background. It returns
// ErrBusy if that batch is held and ErrTooManyBatches when the server-wide
// limit is reached.
func (s *Service) StartSubmitAll(ctx context.Context, id string) error {
	b, err := s.Session(id)
	if err != nil {
		return err
	}
	if b.Busy() {
		return ErrBusy
	}
	if !s.active.TryAcquire() {
		return ErrTooManyBatches
	}
	if err := b.StartSubmitAll(ctx, func(Counts) { s.active.Release() }); err != nil {
		s.active.Release()
		return err
	}
	return nil
}

// SweepIdle closes sessions that are not busy and unused for longer than
// the idle TTL. It returns the number of sessions removed.
func (s *Service) SweepIdle() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.batch.Busy() || sess.batch.LastUsed().After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		sess.batch.closeListeners()
		removed++
	}
	return removed
}

// RunSweeper calls SweepIdle every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepIdle(); n > 0 {
				slog.Info("idle sessions removed", "count", n)
			}
		}
	}
}

// ActiveStatus reports the server-wide batch gate.
func (s *Service) ActiveStatus() GateStatus {
	return s.active.Status()
}

// WaitForSubmissions blocks until every running batch and in-flight
// submission has settled, or ctx is done. Used on shutdown.
func (s *Service) WaitForSubmissions(ctx context.Context) error {
	if err := s.active.WaitForDrain(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	batches := make([]*Batch, 0, len(s.sessions))
	for _, sess := range s.sessions {
		batches = append(batches, sess.batch)
	}
	s.mu.RUnlock()

	for _, b := range batches {
		if err := b.WaitIdle(ctx); err != nil {
			return err
		}
	}
	return nil
}
