// internal/handlers/match_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mcrane/gridlife/internal/auth"
	"github.com/mcrane/gridlife/internal/engine"
	"github.com/mcrane/gridlife/internal/match"
	"github.com/mcrane/gridlife/internal/middleware"
)

// ClientMessage is the structure for incoming WebSocket messages during a
// match.
type ClientMessage struct {
	Type string `json:"type"`
	// Cell is the target cell index for claim messages.
	Cell int `json:"cell,omitempty"`
	// Token is the client-supplied idempotency token for claim messages.
	Token string `json:"token,omitempty"`
}

// MatchWSHandler upgrades the HTTP connection to WebSocket for a specific
// match: /match/ws/{match_id}?token={session token}. It authenticates the
// participant, verifies they hold a seat, registers the connection for
// broadcasts and runs the read loop.
func MatchWSHandler(logger *logrus.Logger, ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/match/ws/")
		if i := strings.IndexByte(idStr, '/'); i >= 0 {
			idStr = idStr[:i]
		}
		matchID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid match_id format (/match/ws/{match_id})", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"match"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for match %s: %v", matchID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal error during handler exit")

		if c.Subprotocol() != "match" {
			c.Close(BadSubprotocolError, "client must speak the match subprotocol")
			return
		}

		m, ok := ms.Store.Get(matchID)
		if !ok {
			c.Close(InvalidMatchIDError, "match does not exist")
			return
		}

		participantID, err := auth.AuthenticateSessionToken(sessionToken(r))
		if err != nil {
			logger.Warnf("authentication failed for match %s: %v", matchID, err)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}
		if m.SeatOf(participantID) == engine.SeatNone {
			logger.Warnf("participant %s holds no seat in match %s", participantID, matchID)
			c.Close(NotAParticipantError, "you are not a participant in this match")
			return
		}

		ms.register(matchID, participantID, c)
		defer ms.unregister(matchID, participantID, c)
		logger.Infof("participant %s connected to match %s from %s", participantID, matchID, r.RemoteAddr)

		// Initial sync so a (re)connecting client can render without waiting
		// for the next event. Goes through the send queue so it cannot pass
		// an event enqueued between register and here.
		snap := m.Snapshot()
		ms.sendTo(matchID, participantID, match.Event{Type: match.EventSync, Snapshot: &snap})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		readErr := readClientMessages(ctx, c, ms, matchID, participantID, logger)
		middleware.LogWebSocketClose(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// sessionToken pulls the session token from the query string, the
// Authorization header, or a cookie, in that order.
func sessionToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if ck, err := r.Cookie("session"); err == nil {
		return ck.Value
	}
	return ""
}

// readClientMessages reads and routes messages until the connection drops or
// the context is cancelled. All coordination outcomes are structured
// rejections rather than errors, so a malformed or illegal request never
// tears down the socket.
func readClientMessages(ctx context.Context, c *websocket.Conn, ms *MatchServer, matchID, participantID uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(ctx, c, "invalid JSON format")
			continue
		}
		logger.Debugf("received %q from participant %s in match %s", msg.Type, participantID, matchID)

		switch msg.Type {
		case "claim":
			outcome := ms.Store.SubmitClaim(matchID, participantID, msg.Cell, msg.Token)
			sendWsMessage(ctx, c, map[string]interface{}{"type": "claim_outcome", "outcome": outcome})

		case "rematch":
			outcome, err := ms.Store.RequestRematch(matchID, participantID)
			if err != nil {
				sendWsError(ctx, c, err.Error())
				continue
			}
			sendWsMessage(ctx, c, map[string]interface{}{"type": "rematch_outcome", "outcome": outcome})

		case "ping":
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})

		default:
			sendWsError(ctx, c, "unknown message type: "+msg.Type)
		}
	}
}

// sendWsMessage marshals a message and writes it with a short timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = c.Write(writeCtx, websocket.MessageText, data)
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
