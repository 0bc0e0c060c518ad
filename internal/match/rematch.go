// internal/match/rematch.go
package match

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcrane/gridlife/internal/engine"
)

// RematchStatus is the caller-visible phase of the rematch handshake.
type RematchStatus string

const (
	RematchWaiting RematchStatus = "waiting"
	RematchMatched RematchStatus = "matched"
	RematchTimeout RematchStatus = "timeout"
)

// RematchOutcome reports the result of a rematch request.
type RematchOutcome struct {
	Status     RematchStatus `json:"status"`
	NewMatchID uuid.UUID     `json:"newMatchId,omitempty"`
	Deadline   time.Time     `json:"deadline,omitempty"`
}

// rematchPending tracks one finished match's handshake between the first
// request and agreement or timeout. Guarded by the match's mutex.
type rematchPending struct {
	requesters map[uuid.UUID]bool
	deadline   time.Time
	timer      *time.Timer
}

// RequestRematch registers one participant's consent to a rematch of a
// finished match. The first request opens a pending cycle with a deadline;
// the other participant's request before the deadline resolves it into a
// brand-new match with the seats flipped, so the prior second seat starts.
// A duplicate request from the same participant is a no-op.
func (s *Store) RequestRematch(matchID, participantID uuid.UUID) (RematchOutcome, error) {
	m, ok := s.Get(matchID)
	if !ok {
		return RematchOutcome{}, fmt.Errorf("match %s not found", matchID)
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Status != StatusFinished {
		return RematchOutcome{}, fmt.Errorf("match %s is still active", matchID)
	}
	if m.SeatOf(participantID) == engine.SeatNone {
		return RematchOutcome{}, fmt.Errorf("participant %s is not part of match %s", participantID, matchID)
	}

	if m.rematch == nil {
		pending := &rematchPending{
			requesters: map[uuid.UUID]bool{participantID: true},
			deadline:   time.Now().Add(s.rematchDur),
		}
		m.rematch = pending
		pending.timer = time.AfterFunc(s.rematchDur, func() {
			s.expireRematch(m, pending)
		})
		m.fireEvent(Event{Type: EventRematchWait, Payload: map[string]interface{}{
			"requester": participantID.String(),
			"deadline":  pending.deadline.UnixMilli(),
		}})
		return RematchOutcome{Status: RematchWaiting, Deadline: pending.deadline}, nil
	}

	if m.rematch.requesters[participantID] {
		// Set semantics: requesting twice doesn't double-count.
		return RematchOutcome{Status: RematchWaiting, Deadline: m.rematch.deadline}, nil
	}

	// Both participants consented: resolve.
	m.rematch.timer.Stop()
	m.rematch = nil

	next := s.CreateMatch(m.SeatB, m.SeatA, m.Mode, m.Engine)
	s.archiveRematch(m.ID, next.ID)
	m.fireEvent(Event{Type: EventRematchFound, Payload: map[string]interface{}{
		"newMatchId": next.ID.String(),
	}})
	// The old match has served its purpose; drop its registry entry.
	s.remove(m.ID)
	return RematchOutcome{Status: RematchMatched, NewMatchID: next.ID}, nil
}

// expireRematch fires when the handshake deadline elapses with a lone
// requester. The pending pointer guards against a stale timer racing a
// resolution that already cleared or replaced the cycle.
func (s *Store) expireRematch(m *Match, pending *rematchPending) {
	m.Mu.Lock()
	if m.rematch != pending {
		m.Mu.Unlock()
		return
	}
	m.rematch = nil
	m.fireEvent(Event{Type: EventRematchExpire, Payload: map[string]interface{}{
		"matchId": m.ID.String(),
	}})
	m.Mu.Unlock()

	if s.OnRematchTimeout != nil {
		s.OnRematchTimeout(m.ID)
	}
}
