// internal/match/rematch_test.go
package match

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcrane/gridlife/internal/engine"
)

func TestRematchRequiresFinishedMatch(t *testing.T) {
	s, m, pa, _, _ := setupTestMatch(t, ModeTurn, "grid")

	_, err := s.RequestRematch(m.ID, pa)
	assert.Error(t, err)

	_, err = s.RequestRematch(uuid.New(), pa)
	assert.Error(t, err)
}

func TestRematchRejectsNonParticipant(t *testing.T) {
	s, m, pa, pb, _ := setupTestMatch(t, ModeTurn, "grid")
	finishGridMatch(t, m, pa, pb)

	_, err := s.RequestRematch(m.ID, uuid.New())
	assert.Error(t, err)
}

func TestRematchHandshake(t *testing.T) {
	s, m, pa, pb, mb := setupTestMatch(t, ModeTurn, "grid")
	finishGridMatch(t, m, pa, pb)

	out, err := s.RequestRematch(m.ID, pa)
	require.NoError(t, err)
	assert.Equal(t, RematchWaiting, out.Status)
	assert.False(t, out.Deadline.IsZero())
	require.NotNil(t, mb.lastEventOfType(EventRematchWait))

	// Set semantics: the same participant asking again changes nothing.
	again, err := s.RequestRematch(m.ID, pa)
	require.NoError(t, err)
	assert.Equal(t, RematchWaiting, again.Status)
	assert.Equal(t, out.Deadline, again.Deadline)

	out, err = s.RequestRematch(m.ID, pb)
	require.NoError(t, err)
	assert.Equal(t, RematchMatched, out.Status)
	require.NotEqual(t, uuid.Nil, out.NewMatchID)

	next, ok := s.Get(out.NewMatchID)
	require.True(t, ok)
	assert.Equal(t, pb, next.SeatA, "seats flip so the prior second seat starts")
	assert.Equal(t, pa, next.SeatB)
	assert.Equal(t, StatusActive, next.Status)
	assert.Equal(t, 0, next.Snapshot().Version)

	// The finished predecessor leaves the registry once the rematch resolves.
	_, ok = s.Get(m.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestRematchTimeout(t *testing.T) {
	s, m, pa, pb, mb := setupTestMatch(t, ModeTurn, "grid")
	finishGridMatch(t, m, pa, pb)

	var timeouts atomic.Int32
	s.OnRematchTimeout = func(matchID uuid.UUID) {
		assert.Equal(t, m.ID, matchID)
		timeouts.Add(1)
	}

	_, err := s.RequestRematch(m.ID, pa)
	require.NoError(t, err)

	// The 40ms test deadline elapses with a lone requester.
	require.Eventually(t, func() bool {
		return timeouts.Load() == 1
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, mb.lastEventOfType(EventRematchExpire))

	m.Mu.Lock()
	assert.Nil(t, m.rematch)
	m.Mu.Unlock()

	// An expired cycle does not consume the match; a new request starts over.
	out, err := s.RequestRematch(m.ID, pb)
	require.NoError(t, err)
	assert.Equal(t, RematchWaiting, out.Status)
}

func TestRematchInheritsModeAndVariant(t *testing.T) {
	s := NewStore(Config{WindowDuration: 40 * time.Millisecond})
	mb := newMockBroadcaster()
	s.OnMatchCreated = func(m *Match) {
		m.BroadcastFn = mb.broadcastFn
		m.BroadcastToParticipantFn = mb.broadcastToParticipantFn
	}
	pa, pb := uuid.New(), uuid.New()
	m := s.CreateMatch(pa, pb, ModeSimultaneous, engine.New("grid"))

	// Force a finish so the handshake is legal.
	m.Mu.Lock()
	m.Status = StatusFinished
	m.Winner = engine.SeatA
	m.stopWindowLocked()
	m.Mu.Unlock()

	_, err := s.RequestRematch(m.ID, pa)
	require.NoError(t, err)
	out, err := s.RequestRematch(m.ID, pb)
	require.NoError(t, err)

	next, ok := s.Get(out.NewMatchID)
	require.True(t, ok)
	assert.Equal(t, ModeSimultaneous, next.Mode)
	assert.Equal(t, "grid", next.Engine.Name())

	next.Mu.Lock()
	assert.NotNil(t, next.win, "a simultaneous rematch opens its first window")
	next.Mu.Unlock()
}
