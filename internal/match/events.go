// internal/match/events.go
package match

import (
	"github.com/google/uuid"

	"github.com/mcrane/gridlife/internal/engine"
)

// EventType is an enum-like type for broadcasting match updates.
type EventType string

const (
	EventSync          EventType = "sync"           // private: full snapshot on (re)connect
	EventClaimApplied  EventType = "claim_applied"  // public: a claim landed on the board
	EventClaimRejected EventType = "claim_rejected" // private: sent to the offending participant only
	EventClaimPending  EventType = "claim_pending"  // private: claim buffered into the open window
	EventWindowOpen    EventType = "window_open"    // public: a new simultaneous window opened
	EventWindowResult  EventType = "window_result"  // public: window closed and resolved
	EventMatchEnd      EventType = "match_end"      // public: terminal transition, emitted exactly once
	EventRematchWait   EventType = "rematch_waiting"
	EventRematchFound  EventType = "rematch_matched"
	EventRematchExpire EventType = "rematch_timeout"
)

// Event holds data about a match update that can be broadcast to clients in a
// consistent format.
type Event struct {
	Type     EventType              `json:"type"`
	Seat     engine.Seat            `json:"seat,omitempty"`
	Cell     *int                   `json:"cell,omitempty"`
	Reason   engine.Reason          `json:"reason,omitempty"`
	Snapshot *Snapshot              `json:"snapshot,omitempty"`
	Window   *WindowResult          `json:"window,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// fireEvent broadcasts an event to both participants.
// Assumes lock is held.
func (m *Match) fireEvent(ev Event) {
	if m.BroadcastFn != nil {
		m.BroadcastFn(ev)
	}
}

// fireEventToParticipant sends an event only to a specific participant.
// Assumes lock is held.
func (m *Match) fireEventToParticipant(participantID uuid.UUID, ev Event) {
	if m.BroadcastToParticipantFn != nil {
		m.BroadcastToParticipantFn(participantID, ev)
	}
}
