// internal/handlers/match_server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mcrane/gridlife/internal/match"
)

const sendQueueSize = 32

// client is one participant's registered connection. Outbound events funnel
// through a single buffered queue drained by one writer goroutine, so frames
// reach the socket in the order the match emitted them.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// enqueue hands a frame to the writer without blocking. A client that cannot
// drain its queue loses frames; snapshots are self-contained, so a lagging
// client recovers on the next event.
func (cl *client) enqueue(data []byte, logger *logrus.Logger) {
	select {
	case cl.send <- data:
	default:
		logger.Warn("dropping frame for slow WebSocket client")
	}
}

func (cl *client) writeLoop(logger *logrus.Logger) {
	for data := range cl.send {
		writeWithTimeout(cl.conn, data, logger)
	}
}

// MatchServer bridges the coordination core and the WebSocket transport. It
// owns the per-match connection table and installs the broadcast hooks on
// every match the store creates.
type MatchServer struct {
	Store  *match.Store
	Logger *logrus.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]map[uuid.UUID]*client // matchID -> participantID -> client
}

func NewMatchServer(store *match.Store, logger *logrus.Logger) *MatchServer {
	ms := &MatchServer{
		Store:  store,
		Logger: logger,
		conns:  make(map[uuid.UUID]map[uuid.UUID]*client),
	}
	store.OnMatchCreated = ms.wireMatch
	store.OnRematchTimeout = func(matchID uuid.UUID) {
		logger.Infof("rematch window expired for match %s", matchID)
	}
	return ms
}

// wireMatch installs the broadcast hooks before the match emits its first
// event. The hooks are called while the match lock is held, so they only
// enqueue; the per-connection writer goroutines do the socket writes.
func (ms *MatchServer) wireMatch(m *match.Match) {
	id := m.ID
	m.BroadcastFn = func(ev match.Event) {
		ms.broadcast(id, ev)
	}
	m.BroadcastToParticipantFn = func(participantID uuid.UUID, ev match.Event) {
		ms.sendTo(id, participantID, ev)
	}
}

// register records a participant's live connection, replacing any prior one,
// and starts its writer.
func (ms *MatchServer) register(matchID, participantID uuid.UUID, c *websocket.Conn) {
	cl := &client{conn: c, send: make(chan []byte, sendQueueSize)}
	ms.mu.Lock()
	if ms.conns[matchID] == nil {
		ms.conns[matchID] = make(map[uuid.UUID]*client, 2)
	}
	if old := ms.conns[matchID][participantID]; old != nil {
		close(old.send)
	}
	ms.conns[matchID][participantID] = cl
	ms.mu.Unlock()
	go cl.writeLoop(ms.Logger)
}

// unregister drops a connection if it is still the registered one, and the
// whole match entry once both sides are gone.
func (ms *MatchServer) unregister(matchID, participantID uuid.UUID, c *websocket.Conn) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if cur, ok := ms.conns[matchID][participantID]; ok && cur.conn == c {
		close(cur.send)
		delete(ms.conns[matchID], participantID)
	}
	if len(ms.conns[matchID]) == 0 {
		delete(ms.conns, matchID)
	}
}

// broadcast enqueues an event for both participants. Enqueueing happens under
// the table lock, so every client observes events in emission order.
func (ms *MatchServer) broadcast(matchID uuid.UUID, ev match.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		ms.Logger.Errorf("failed to marshal event %s for match %s: %v", ev.Type, matchID, err)
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, cl := range ms.conns[matchID] {
		cl.enqueue(data, ms.Logger)
	}
}

func (ms *MatchServer) sendTo(matchID, participantID uuid.UUID, ev match.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		ms.Logger.Errorf("failed to marshal private event %s for participant %s: %v", ev.Type, participantID, err)
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if cl := ms.conns[matchID][participantID]; cl != nil {
		cl.enqueue(data, ms.Logger)
	}
}

func writeWithTimeout(c *websocket.Conn, data []byte, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		logger.Warnf("failed to write WebSocket message: %v", err)
	}
}
