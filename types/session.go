package types

// SessionMeta identifies one client session for logs and downstream events.
type SessionMeta struct {
	// SessionID is generated once per process.
	SessionID string
	// Endpoint is the backend websocket URL.
	Endpoint string
}
