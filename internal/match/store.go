// internal/match/store.go
package match

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcrane/gridlife/internal/archive"
	"github.com/mcrane/gridlife/internal/engine"
	"github.com/mcrane/gridlife/internal/journal"
)

// Config tunes the coordinator-wide timings. Zero values fall back to the
// defaults below.
type Config struct {
	WindowDuration time.Duration
	RematchTimeout time.Duration
}

const (
	defaultWindowDuration = 500 * time.Millisecond
	defaultRematchTimeout = 60 * time.Second
)

// Store is the in-memory registry of live matches, keyed by identity. It owns
// every piece of per-match bookkeeping with an explicit lifecycle: matches
// are created here when a pairing event arrives and torn down here when a
// rematch resolves or a collaborator calls Teardown.
type Store struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*Match

	windowDur  time.Duration
	rematchDur time.Duration

	// Journal and Archive are optional sinks; nil disables them.
	Journal *journal.Publisher
	Archive *archive.Archive

	// OnMatchCreated lets the transport layer wire broadcast hooks before the
	// match emits its first event (the initial window open).
	OnMatchCreated func(m *Match)
	// OnRematchTimeout notifies collaborators that a lone rematch requester's
	// deadline elapsed, so the idle participant can be told.
	OnRematchTimeout func(matchID uuid.UUID)
}

// NewStore returns an empty registry.
func NewStore(cfg Config) *Store {
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaultWindowDuration
	}
	if cfg.RematchTimeout <= 0 {
		cfg.RematchTimeout = defaultRematchTimeout
	}
	return &Store{
		matches:    make(map[uuid.UUID]*Match),
		windowDur:  cfg.WindowDuration,
		rematchDur: cfg.RematchTimeout,
	}
}

// CreateMatch registers a fresh match for a pair of participants. Seats are
// assigned deterministically: participantA is seat A and moves first in turn
// mode. In simultaneous mode the first window opens immediately.
func (s *Store) CreateMatch(participantA, participantB uuid.UUID, mode Mode, eng engine.Engine) *Match {
	limit := acceptedCap
	if q, ok := eng.(engine.ClaimQuota); ok && q.ClaimsPerSeat() > limit {
		limit = q.ClaimsPerSeat()
	}
	m := &Match{
		ID:            uuid.New(),
		Mode:          mode,
		Engine:        eng,
		SeatA:         participantA,
		SeatB:         participantB,
		State:         eng.InitState(),
		Status:        StatusActive,
		CreatedAt:     time.Now(),
		seen:          make(map[string]bool),
		limits:        make(map[uuid.UUID]*rateLimit),
		acceptedLimit: limit,
		windowDur:     s.windowDur,
		Journal:       s.Journal,
	}
	m.OnFinish = func(snap Snapshot) {
		s.archiveResult(snap)
	}

	s.mu.Lock()
	s.matches[m.ID] = m
	s.mu.Unlock()

	if s.OnMatchCreated != nil {
		s.OnMatchCreated(m)
	}
	if mode == ModeSimultaneous {
		m.OpenWindow()
	}
	log.Printf("match %s created (%s, %s) seats a=%s b=%s", m.ID, eng.Name(), mode, participantA, participantB)
	return m
}

// Get retrieves a live match if it exists.
func (s *Store) Get(id uuid.UUID) (*Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	return m, ok
}

// SubmitClaim routes a claim to the named match. Unknown matches yield the
// terminal-state rejection, matching the contract that a claim against a gone
// match is indistinguishable from a claim against a finished one.
func (s *Store) SubmitClaim(matchID, participantID uuid.UUID, cell int, token string) ClaimOutcome {
	m, ok := s.Get(matchID)
	if !ok {
		return ClaimOutcome{Reason: engine.ReasonMatchFinished}
	}
	return m.SubmitClaim(participantID, cell, token)
}

// Teardown removes a match and releases its timers and bookkeeping.
func (s *Store) Teardown(id uuid.UUID) {
	m, ok := s.Get(id)
	if !ok {
		return
	}
	s.remove(id)

	m.Mu.Lock()
	m.stopWindowLocked()
	if m.rematch != nil {
		m.rematch.timer.Stop()
		m.rematch = nil
	}
	m.Mu.Unlock()
	log.Printf("match %s torn down", id)
}

// Len reports the number of live matches.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func (s *Store) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.matches, id)
	s.mu.Unlock()
}

// archiveResult writes a terminal record without blocking coordination.
func (s *Store) archiveResult(snap Snapshot) {
	if s.Archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Archive.RecordResult(ctx, archive.ResultRecord{
			MatchID: snap.ID,
			Variant: snap.Variant,
			Mode:    string(snap.Mode),
			Winner:  snap.Winner,
			Version: snap.Version,
		}); err != nil {
			log.Printf("archive: failed to record result for match %s: %v", snap.ID, err)
		}
	}()
}

// archiveRematch links a resolved rematch to its predecessor.
func (s *Store) archiveRematch(oldID, newID uuid.UUID) {
	if s.Archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Archive.RecordRematch(ctx, oldID.String(), newID.String()); err != nil {
			log.Printf("archive: failed to link rematch %s -> %s: %v", oldID, newID, err)
		}
	}()
}
