// internal/match/window.go
package match

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcrane/gridlife/internal/engine"
)

// pendingClaim is one seat's buffered move inside the open window. The slot
// is overwritten by that seat's latest submission, so last-write-wins locally.
type pendingClaim struct {
	Seat        engine.Seat
	Participant uuid.UUID
	Cell        int
	Token       string
	At          time.Time
}

// window is one time-boxed collection interval. The sequence number guards
// against stale timer callbacks, the same way a turn counter guards a turn
// timer.
type window struct {
	seq      int
	starter  engine.Seat
	deadline time.Time
	slots    map[engine.Seat]*pendingClaim
	timer    *time.Timer
}

// AppliedClaim reports a claim that landed on the board at window close.
type AppliedClaim struct {
	Seat engine.Seat `json:"seat"`
	Cell int         `json:"cell"`
}

// RejectedClaim reports a claim that lost at window close.
type RejectedClaim struct {
	Seat   engine.Seat   `json:"seat"`
	Cell   int           `json:"cell"`
	Reason engine.Reason `json:"reason"`
}

// WindowResult is the deterministic resolution of one window: per-claim
// applied/rejected lists plus the resulting snapshot.
type WindowResult struct {
	Window   int             `json:"window"`
	Starter  engine.Seat     `json:"starter"`
	Applied  []AppliedClaim  `json:"applied"`
	Rejected []RejectedClaim `json:"rejected,omitempty"`
	Snapshot Snapshot        `json:"snapshot"`
}

// OpenWindow starts a new collection interval. It is a no-op unless the match
// is an active simultaneous-mode match.
func (m *Match) OpenWindow() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.openWindowLocked()
}

// openWindowLocked increments the window counter, flips the starter seat,
// clears the pending slots and arms the auto-close timer.
// Assumes lock is held.
func (m *Match) openWindowLocked() {
	if m.Mode != ModeSimultaneous || m.Status != StatusActive || m.win != nil {
		return
	}
	m.windowSeq++
	starter := engine.SeatA
	if m.windowSeq%2 == 0 {
		starter = engine.SeatB
	}
	w := &window{
		seq:      m.windowSeq,
		starter:  starter,
		deadline: time.Now().Add(m.windowDur),
		slots:    make(map[engine.Seat]*pendingClaim, 2),
	}
	m.win = w

	seq := w.seq
	w.timer = time.AfterFunc(m.windowDur, func() {
		m.Mu.Lock()
		defer m.Mu.Unlock()
		// Ignore stale timers: the window may have closed early or the match
		// may have been torn down since this timer was armed.
		if m.win == nil || m.win.seq != seq || m.Status != StatusActive {
			return
		}
		m.closeWindowLocked()
	})

	m.fireEvent(Event{Type: EventWindowOpen, Payload: map[string]interface{}{
		"window":   w.seq,
		"starter":  string(w.starter),
		"deadline": w.deadline.UnixMilli(),
	}})
}

// bufferClaimLocked stores a validated submission in the claimant's pending
// slot. Turn ownership is bypassed; bounds and occupancy are checked now
// because the board cannot change before the window closes.
// Assumes lock is held.
func (m *Match) bufferClaimLocked(seat engine.Seat, participantID uuid.UUID, cell int, token string, at time.Time) ClaimOutcome {
	if m.win == nil {
		m.openWindowLocked()
	}
	if reason := m.Engine.ValidateClaim(m.State, seat, cell); reason != "" && reason != engine.ReasonNotYourTurn {
		return m.rejectLocked(participantID, cell, reason)
	}

	m.seen[token] = true
	m.win.slots[seat] = &pendingClaim{
		Seat:        seat,
		Participant: participantID,
		Cell:        cell,
		Token:       token,
		At:          at,
	}
	c := cell
	m.fireEventToParticipant(participantID, Event{Type: EventClaimPending, Seat: seat, Cell: &c})

	// Both seats have submitted: close early. Pure optimization, the timer
	// close stays authoritative via the sequence guard.
	if len(m.win.slots) == 2 {
		m.closeWindowLocked()
	}
	return ClaimOutcome{Buffered: true, Snapshot: m.snapshotLocked()}
}

// CloseWindow resolves the open window immediately, for callers that drive
// the timer themselves. Returns nil when no window is open.
func (m *Match) CloseWindow() *WindowResult {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.closeWindowLocked()
}

// closeWindowLocked groups pending claims by target cell and resolves them
// deterministically: occupied cells reject every claimant, unique claims on
// free cells apply, and contested cells go to the earliest submission, with
// the window's starter seat breaking an exact timestamp tie. The terminal
// check runs once for the whole batch.
// Assumes lock is held.
func (m *Match) closeWindowLocked() *WindowResult {
	w := m.win
	if w == nil {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	m.win = nil

	res := &WindowResult{Window: w.seq, Starter: w.starter}
	board := m.State.Board()

	var apply []*pendingClaim
	claimA, claimB := w.slots[engine.SeatA], w.slots[engine.SeatB]
	for _, pc := range []*pendingClaim{claimA, claimB} {
		if pc == nil {
			continue
		}
		if board[pc.Cell] != engine.SeatNone {
			res.Rejected = append(res.Rejected, RejectedClaim{Seat: pc.Seat, Cell: pc.Cell, Reason: engine.ReasonSquareOccupied})
			m.fireEventToParticipant(pc.Participant, Event{Type: EventClaimRejected, Cell: &pc.Cell, Reason: engine.ReasonSquareOccupied})
			continue
		}
		apply = append(apply, pc)
	}

	if len(apply) == 2 && apply[0].Cell == apply[1].Cell {
		winner, loser := apply[0], apply[1]
		switch {
		case loser.At.Before(winner.At):
			winner, loser = loser, winner
		case winner.At.Equal(loser.At) && loser.Seat == w.starter:
			winner, loser = loser, winner
		}
		apply = []*pendingClaim{winner}
		res.Rejected = append(res.Rejected, RejectedClaim{Seat: loser.Seat, Cell: loser.Cell, Reason: engine.ReasonConflictLost})
		m.fireEventToParticipant(loser.Participant, Event{Type: EventClaimRejected, Cell: &loser.Cell, Reason: engine.ReasonConflictLost})
	}

	// Apply starter's claim first so the move log order is reproducible.
	if len(apply) == 2 && apply[1].Seat == w.starter {
		apply[0], apply[1] = apply[1], apply[0]
	}
	for _, pc := range apply {
		m.applyClaimLocked(pc.Seat, pc.Participant, pc.Cell, pc.Token, pc.At)
		res.Applied = append(res.Applied, AppliedClaim{Seat: pc.Seat, Cell: pc.Cell})
	}

	m.checkResultLocked()
	res.Snapshot = m.snapshotLocked()
	m.fireEvent(Event{Type: EventWindowResult, Window: res})

	if m.Status == StatusActive {
		m.openWindowLocked()
	}
	return res
}

// stopWindowLocked releases the window timer at the terminal transition or
// teardown. Assumes lock is held.
func (m *Match) stopWindowLocked() {
	if m.win == nil {
		return
	}
	if m.win.timer != nil {
		m.win.timer.Stop()
	}
	m.win = nil
}
