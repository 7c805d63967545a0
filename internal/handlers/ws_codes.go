// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler. These give clients
// more specific reasons for closure than the standard codes.
const (
	BadSubprotocolError     = 3000 // Client connected with an unsupported subprotocol.
	InvalidSessionError     = 3001 // Session token was missing, invalid, or expired.
	MalformedFrameError     = 3002 // Client repeatedly sent frames the server could not parse.
	ServiceShuttingDownCode = 3003 // Server is draining connections for shutdown.
)
