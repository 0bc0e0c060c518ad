// internal/match/window_test.go
package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcrane/gridlife/internal/engine"
)

func TestWindowOpensOnCreation(t *testing.T) {
	_, m, _, _, mb := setupTestMatch(t, ModeSimultaneous, "grid")

	m.Mu.Lock()
	require.NotNil(t, m.win)
	assert.Equal(t, 1, m.win.seq)
	assert.Equal(t, engine.SeatA, m.win.starter, "odd windows are started by seat A")
	m.Mu.Unlock()

	ev := mb.lastEventOfType(EventWindowOpen)
	require.NotNil(t, ev)
	assert.Equal(t, 1, ev.Payload["window"])
	assert.Equal(t, "a", ev.Payload["starter"])
}

func TestWindowBuffersAndClosesEarly(t *testing.T) {
	_, m, pa, pb, mb := setupTestMatch(t, ModeSimultaneous, "grid")

	out := m.SubmitClaim(pa, 0, "tok-a")
	assert.True(t, out.Buffered)
	assert.False(t, out.Applied)
	assert.Equal(t, 0, out.Snapshot.Version, "buffered claims do not touch the board")

	pend := mb.lastParticipantEvent(pa)
	require.NotNil(t, pend)
	assert.Equal(t, EventClaimPending, pend.Type)

	// The second seat's submission fills the window and closes it early.
	out = m.SubmitClaim(pb, 4, "tok-b")
	assert.True(t, out.Buffered)
	assert.Equal(t, 2, out.Snapshot.Version)
	assert.Equal(t, engine.SeatA, out.Snapshot.Board[0])
	assert.Equal(t, engine.SeatB, out.Snapshot.Board[4])

	res := mb.lastEventOfType(EventWindowResult)
	require.NotNil(t, res)
	require.NotNil(t, res.Window)
	assert.Equal(t, 1, res.Window.Window)
	require.Len(t, res.Window.Applied, 2)
	assert.Equal(t, engine.SeatA, res.Window.Applied[0].Seat, "the starter's claim lands first in the log")
	assert.Empty(t, res.Window.Rejected)

	// The next window opens immediately with the starter flipped.
	m.Mu.Lock()
	require.NotNil(t, m.win)
	assert.Equal(t, 2, m.win.seq)
	assert.Equal(t, engine.SeatB, m.win.starter)
	m.Mu.Unlock()
}

func TestSimultaneousSnapshotHasNoTurnOwner(t *testing.T) {
	_, m, pa, pb, _ := setupTestMatch(t, ModeSimultaneous, "grid")

	assert.Equal(t, engine.SeatNone, m.Snapshot().Turn)

	// The engine alternates internally as claims land, but the snapshot never
	// surfaces a turn owner in this mode.
	require.True(t, m.SubmitClaim(pa, 0, "tok-a").Buffered)
	out := m.SubmitClaim(pb, 4, "tok-b")
	require.Equal(t, 2, out.Snapshot.Version)
	assert.Equal(t, engine.SeatNone, out.Snapshot.Turn)
}

func TestWindowSlotOverwrite(t *testing.T) {
	_, m, pa, pb, mb := setupTestMatch(t, ModeSimultaneous, "grid")

	require.True(t, m.SubmitClaim(pa, 0, "tok-1").Buffered)
	require.True(t, m.SubmitClaim(pa, 8, "tok-2").Buffered)

	// Only the latest slot content resolves.
	require.True(t, m.SubmitClaim(pb, 4, "tok-3").Buffered)
	res := mb.lastEventOfType(EventWindowResult)
	require.NotNil(t, res)
	applied := res.Window.Applied
	require.Len(t, applied, 2)
	assert.Equal(t, 8, applied[0].Cell)
	assert.Equal(t, engine.SeatNone, m.Snapshot().Board[0])
}

func TestWindowConflictEarliestTimestampWins(t *testing.T) {
	_, m, pa, pb, mb := setupTestMatch(t, ModeSimultaneous, "grid")

	now := time.Now()
	m.Mu.Lock()
	m.submitClaimLocked(pa, 4, "tok-a", now)
	out := m.submitClaimLocked(pb, 4, "tok-b", now.Add(-10*time.Millisecond))
	m.Mu.Unlock()

	assert.Equal(t, engine.SeatB, out.Snapshot.Board[4], "the earlier submission takes the cell")
	assert.Equal(t, 1, out.Snapshot.Version)

	loser := mb.lastParticipantEvent(pa)
	require.NotNil(t, loser)
	assert.Equal(t, EventClaimRejected, loser.Type)
	assert.Equal(t, engine.ReasonConflictLost, loser.Reason)

	res := mb.lastEventOfType(EventWindowResult)
	require.NotNil(t, res)
	require.Len(t, res.Window.Rejected, 1)
	assert.Equal(t, engine.SeatA, res.Window.Rejected[0].Seat)
}

func TestWindowConflictStarterBreaksExactTie(t *testing.T) {
	_, m, pa, pb, _ := setupTestMatch(t, ModeSimultaneous, "grid")

	// Window 1 is started by seat A, so an exact timestamp tie goes to A.
	now := time.Now()
	m.Mu.Lock()
	m.submitClaimLocked(pb, 4, "tok-b", now)
	out := m.submitClaimLocked(pa, 4, "tok-a", now)
	m.Mu.Unlock()

	assert.Equal(t, engine.SeatA, out.Snapshot.Board[4])
	require.Len(t, m.Moves, 1)
	assert.Equal(t, engine.SeatA, m.Moves[0].Seat)
}

func TestWindowRejectsOccupiedCellAtBufferTime(t *testing.T) {
	_, m, pa, pb, _ := setupTestMatch(t, ModeSimultaneous, "grid")

	require.True(t, m.SubmitClaim(pa, 0, "tok-1").Buffered)
	require.True(t, m.SubmitClaim(pb, 4, "tok-2").Buffered)

	// Cell 0 was taken when window 1 resolved.
	out := m.SubmitClaim(pb, 0, "tok-3")
	assert.False(t, out.Buffered)
	assert.Equal(t, engine.ReasonSquareOccupied, out.Reason)
}

func TestWindowTimerFlushesLoneClaim(t *testing.T) {
	_, m, pa, _, _ := setupTestMatch(t, ModeSimultaneous, "grid")

	require.True(t, m.SubmitClaim(pa, 0, "tok-1").Buffered)

	// The 40ms test window elapses and the timer resolves the lone claim.
	require.Eventually(t, func() bool {
		return m.Snapshot().Version == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, engine.SeatA, m.Snapshot().Board[0])

	m.Mu.Lock()
	assert.GreaterOrEqual(t, m.win.seq, 2, "a fresh window follows the timer close")
	m.Mu.Unlock()
}

func TestWindowStopsAtTerminalTransition(t *testing.T) {
	_, m, pa, pb, mb := setupTestMatch(t, ModeSimultaneous, "grid")

	require.True(t, m.SubmitClaim(pa, 0, "w1-a").Buffered)
	require.True(t, m.SubmitClaim(pb, 3, "w1-b").Buffered)
	require.True(t, m.SubmitClaim(pa, 1, "w2-a").Buffered)
	require.True(t, m.SubmitClaim(pb, 4, "w2-b").Buffered)

	require.True(t, m.SubmitClaim(pa, 2, "w3-a").Buffered)
	res := m.CloseWindow()
	require.NotNil(t, res)

	snap := m.Snapshot()
	assert.Equal(t, StatusFinished, snap.Status)
	assert.Equal(t, "a", snap.Winner)
	assert.Equal(t, []int{0, 1, 2}, snap.Line)
	assert.Equal(t, 1, mb.countByType(EventMatchEnd))

	m.Mu.Lock()
	assert.Nil(t, m.win, "no window reopens after the match finishes")
	m.Mu.Unlock()
}
