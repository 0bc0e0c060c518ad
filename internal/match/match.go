// internal/match/match.go
package match

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcrane/gridlife/internal/engine"
	"github.com/mcrane/gridlife/internal/journal"
)

// Mode selects how claims are scheduled: strict alternation, or time-boxed
// simultaneous windows.
type Mode string

const (
	ModeTurn         Mode = "turn"
	ModeSimultaneous Mode = "simultaneous"
)

// Status is the match lifecycle state. The transition is one-way: once
// finished, board, winner and version never change again.
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Move is one applied claim in the ordered match log.
type Move struct {
	Seat  engine.Seat `json:"seat"`
	Cell  int         `json:"cell"`
	Token string      `json:"token"`
	At    time.Time   `json:"at"`
}

// Match holds the entire coordination state for a single live match.
// Every read-then-write path locks Mu first; methods suffixed "Locked" assume
// the lock is held. Matches are fully independent, there is no cross-match
// locking.
type Match struct {
	ID     uuid.UUID
	Mode   Mode
	Engine engine.Engine

	// Participant identifiers with deterministic seat assignment: the first
	// joiner is seat A, the second seat B.
	SeatA uuid.UUID
	SeatB uuid.UUID

	State      engine.State
	Version    int
	Status     Status
	Winner     engine.Seat // meaningful only once finished; SeatNone = draw
	Line       []int
	Moves      []Move
	CreatedAt  time.Time
	FinishedAt time.Time

	// Per-match bookkeeping: idempotency tokens already applied or buffered,
	// and per-participant rate-limit state. acceptedLimit is at least the
	// number of accepted claims the engine needs per seat, so the limiter can
	// never strand a variant short of its terminal phase.
	seen          map[string]bool
	limits        map[uuid.UUID]*rateLimit
	acceptedLimit int

	// Simultaneous-mode window state.
	windowSeq int
	win       *window
	windowDur time.Duration

	// Rematch handshake state, present only between the first request and
	// agreement or timeout.
	rematch *rematchPending

	Mu sync.Mutex

	// BroadcastFn sends an event to both participants. If nil, no broadcast
	// is done.
	BroadcastFn func(ev Event)
	// BroadcastToParticipantFn sends an event to a single participant.
	BroadcastToParticipantFn func(participantID uuid.UUID, ev Event)
	// OnFinish is invoked exactly once, at the terminal transition, with the
	// final snapshot. It runs before the match_end broadcast completes so
	// downstream result emission stays exactly-once.
	OnFinish func(snap Snapshot)

	// Journal receives applied-move and terminal records. May be nil.
	Journal *journal.Publisher
}

// ClaimOutcome is the structured result of a claim submission. Rejections are
// expected outcomes, never errors; the snapshot always reflects the match
// state after the call so the caller can broadcast consistently.
type ClaimOutcome struct {
	Applied  bool          `json:"applied"`
	Buffered bool          `json:"buffered,omitempty"`
	Reason   engine.Reason `json:"reason,omitempty"`
	Snapshot Snapshot      `json:"snapshot"`
}

// Snapshot is a read-only copy of the externally visible match state,
// sufficient for a collaborator to broadcast a consistent view to both
// participants without further computation. It never aliases live state.
type Snapshot struct {
	ID      string        `json:"id"`
	Mode    Mode          `json:"mode"`
	Variant string        `json:"variant"`
	Board   []engine.Seat `json:"board"`
	Version int           `json:"version"`
	Turn    engine.Seat   `json:"turn,omitempty"`
	Status  Status        `json:"status"`
	Winner  string        `json:"winner,omitempty"` // "a", "b" or "draw"
	Line    []int         `json:"line,omitempty"`
}

// SeatOf resolves a participant to their seat, or SeatNone if the participant
// is not part of this match.
func (m *Match) SeatOf(participantID uuid.UUID) engine.Seat {
	switch participantID {
	case m.SeatA:
		return engine.SeatA
	case m.SeatB:
		return engine.SeatB
	}
	return engine.SeatNone
}

// ParticipantFor is the inverse of SeatOf.
func (m *Match) ParticipantFor(seat engine.Seat) uuid.UUID {
	switch seat {
	case engine.SeatA:
		return m.SeatA
	case engine.SeatB:
		return m.SeatB
	}
	return uuid.Nil
}

// Snapshot returns a copy of the current externally visible state.
func (m *Match) Snapshot() Snapshot {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked builds a snapshot copy. Assumes lock is held.
func (m *Match) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:      m.ID.String(),
		Mode:    m.Mode,
		Variant: m.Engine.Name(),
		Board:   m.State.Board(), // Board already copies
		Version: m.Version,
		Turn:    m.State.Turn(),
		Status:  m.Status,
	}
	if m.Mode == ModeSimultaneous {
		// Windows have no turn owner; the engine's internal alternation is
		// not part of the visible contract.
		snap.Turn = engine.SeatNone
	}
	if m.Status == StatusFinished {
		snap.Turn = engine.SeatNone
		if m.Winner == engine.SeatNone {
			snap.Winner = "draw"
		} else {
			snap.Winner = string(m.Winner)
		}
		snap.Line = append([]int(nil), m.Line...)
	}
	return snap
}

// SubmitClaim validates and applies (turn mode) or buffers (simultaneous
// mode) a single move for the given participant.
func (m *Match) SubmitClaim(participantID uuid.UUID, cell int, token string) ClaimOutcome {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.submitClaimLocked(participantID, cell, token, time.Now())
}

func (m *Match) submitClaimLocked(participantID uuid.UUID, cell int, token string, at time.Time) ClaimOutcome {
	if m.Status != StatusActive {
		return m.rejectLocked(participantID, cell, engine.ReasonMatchFinished)
	}
	if m.seen[token] {
		// Replay-safe: the retried token changes nothing.
		return m.rejectLocked(participantID, cell, engine.ReasonDuplicateSelection)
	}
	seat := m.SeatOf(participantID)
	if seat == engine.SeatNone {
		// An unknown participant has no legitimate path here.
		return m.rejectLocked(participantID, cell, engine.ReasonMatchFinished)
	}
	if !m.limitFor(participantID).allow(at, m.acceptedLimit) {
		return m.rejectLocked(participantID, cell, engine.ReasonCapReached)
	}

	if m.Mode == ModeSimultaneous {
		return m.bufferClaimLocked(seat, participantID, cell, token, at)
	}

	if reason := m.Engine.ValidateClaim(m.State, seat, cell); reason != "" {
		return m.rejectLocked(participantID, cell, reason)
	}

	m.applyClaimLocked(seat, participantID, cell, token, at)
	m.checkResultLocked()

	snap := m.snapshotLocked()
	c := cell
	m.fireEvent(Event{Type: EventClaimApplied, Seat: seat, Cell: &c, Snapshot: &snap})
	return ClaimOutcome{Applied: true, Snapshot: snap}
}

// rejectLocked builds a rejection outcome and surfaces it to the offending
// participant only. Assumes lock is held.
func (m *Match) rejectLocked(participantID uuid.UUID, cell int, reason engine.Reason) ClaimOutcome {
	c := cell
	m.fireEventToParticipant(participantID, Event{Type: EventClaimRejected, Cell: &c, Reason: reason})
	return ClaimOutcome{Reason: reason, Snapshot: m.snapshotLocked()}
}

// applyClaimLocked mutates the board through the rule engine and updates the
// move log, version counter, idempotency set and accepted-claim counter.
// Assumes lock is held and the claim already validated.
func (m *Match) applyClaimLocked(seat engine.Seat, participantID uuid.UUID, cell int, token string, at time.Time) {
	m.State = m.Engine.ApplyClaim(m.State, seat, cell)
	m.Version++
	m.Moves = append(m.Moves, Move{Seat: seat, Cell: cell, Token: token, At: at})
	m.seen[token] = true
	m.limitFor(participantID).accepted++

	m.Journal.PublishMove(journal.MoveRecord{
		MatchID:   m.ID,
		Version:   m.Version,
		Seat:      string(seat),
		Cell:      cell,
		Window:    m.windowSeq,
		Timestamp: at.UnixMilli(),
	})
}

// checkResultLocked runs the engine's terminal check and, on the first
// finished result, performs the one-way transition to finished.
// Assumes lock is held.
func (m *Match) checkResultLocked() {
	res := m.Engine.CheckResult(m.State)
	if !res.Finished || m.Status != StatusActive {
		return
	}
	m.Status = StatusFinished
	m.Winner = res.Winner
	m.Line = append([]int(nil), res.Line...)
	m.FinishedAt = time.Now()
	m.stopWindowLocked()

	snap := m.snapshotLocked()
	m.Journal.PublishResult(journal.ResultRecord{
		MatchID:   m.ID,
		Version:   m.Version,
		Winner:    snap.Winner,
		Line:      snap.Line,
		Timestamp: m.FinishedAt.UnixMilli(),
	})
	if m.OnFinish != nil {
		m.OnFinish(snap)
	}
	m.fireEvent(Event{Type: EventMatchEnd, Snapshot: &snap})
}

// limitFor returns the rate-limit bucket for a participant, creating it on
// first use. Assumes lock is held.
func (m *Match) limitFor(participantID uuid.UUID) *rateLimit {
	rl, ok := m.limits[participantID]
	if !ok {
		rl = &rateLimit{}
		m.limits[participantID] = rl
	}
	return rl
}
