// internal/handlers/match.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mcrane/gridlife/internal/auth"
	"github.com/mcrane/gridlife/internal/engine"
	"github.com/mcrane/gridlife/internal/match"
)

// SessionHandler mints an ephemeral participant identity and its session
// token. Collaborators call this once per socket and reuse the identity for
// the lifetime of any match.
func SessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, token, err := auth.NewSession()
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"participantId": id.String(),
		"token":         token,
	})
}

type createMatchRequest struct {
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
	Mode         string `json:"mode,omitempty"`    // "turn" (default) | "simultaneous"
	Variant      string `json:"variant,omitempty"` // "grid" (default) | "cellular"
}

// CreateMatchHandler consumes a pairing event: two participant identifiers
// become a match, with seats assigned in the order given.
func CreateMatchHandler(ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		pa, errA := uuid.Parse(req.ParticipantA)
		pb, errB := uuid.Parse(req.ParticipantB)
		if errA != nil || errB != nil || pa == pb {
			http.Error(w, "participantA and participantB must be distinct UUIDs", http.StatusBadRequest)
			return
		}

		mode := match.ModeTurn
		switch req.Mode {
		case "", string(match.ModeTurn):
		case string(match.ModeSimultaneous):
			mode = match.ModeSimultaneous
		default:
			http.Error(w, "unknown mode", http.StatusBadRequest)
			return
		}

		variant := req.Variant
		if variant == "" {
			variant = "grid"
		}
		eng := engine.New(variant)
		if eng == nil {
			http.Error(w, "unknown variant", http.StatusBadRequest)
			return
		}

		m := ms.Store.CreateMatch(pa, pb, mode, eng)
		writeJSON(w, http.StatusOK, m.Snapshot())
	}
}

// GetMatchHandler returns the current snapshot for a match:
// GET /match/{match_id}.
func GetMatchHandler(ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/match/")
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid match id", http.StatusBadRequest)
			return
		}
		m, ok := ms.Store.Get(id)
		if !ok {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, m.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
