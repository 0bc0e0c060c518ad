// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the match handlers. These provide more
// specific reasons for closure than the standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided session token was invalid or expired.
	InvalidMatchIDError   = 3002 // Target match ID in the WS URL does not exist or is malformed.
	NotAParticipantError  = 3003 // Authenticated identity holds no seat in the target match.
)
