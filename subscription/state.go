package subscription

// ConnectionState tracks where a subscription's connection loop currently is.
// States are string-backed so they serialize cleanly into status documents
// and log attributes.
type ConnectionState string

const (
	// StateNotStarted is the initial state before any attempt has been made.
	StateNotStarted ConnectionState = "not_started"
	// StateStarting is set while the loop goroutine is being launched.
	StateStarting ConnectionState = "starting"
	// StateConnecting is set while the WebSocket dial is in flight.
	StateConnecting ConnectionState = "connecting"
	// StateConnected is set once the WebSocket handshake completed.
	StateConnected ConnectionState = "connected"
	// StateAuthenticated is set when the server acknowledged connection_init.
	StateAuthenticated ConnectionState = "authenticated"
	// StateSubscribed is set once the subscribe frame has been sent.
	StateSubscribed ConnectionState = "subscribed"
	// StateError records a recoverable error; the loop keeps running.
	StateError ConnectionState = "error"
	// StateAuthFailed records a server-side credential rejection. Terminal.
	StateAuthFailed ConnectionState = "auth_failed"
	// StateTimeout records a connect or ack timeout; the loop retries.
	StateTimeout ConnectionState = "timeout"
	// StateDisconnected records a dropped connection; the loop retries.
	StateDisconnected ConnectionState = "disconnected"
	// StateReconnecting is set while sleeping between attempts.
	StateReconnecting ConnectionState = "reconnecting"
	// StateMaxRetriesExceeded records an exhausted attempt budget. Terminal.
	StateMaxRetriesExceeded ConnectionState = "max_retries_exceeded"
	// StateInvalidURI records an unusable endpoint URL. Terminal.
	StateInvalidURI ConnectionState = "invalid_uri"
	// StateCompleted records a server-initiated completion. Terminal.
	StateCompleted ConnectionState = "completed"
	// StateStopped records an explicit stop. Terminal.
	StateStopped ConnectionState = "stopped"
	// StateFailed records a failure to launch the loop at all. Terminal.
	StateFailed ConnectionState = "failed"
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	return string(s)
}

// Terminal reports whether the state means the connection loop has exited
// and will not attempt further connections without an explicit restart.
func (s ConnectionState) Terminal() bool {
	switch s {
	case StateAuthFailed, StateMaxRetriesExceeded, StateInvalidURI,
		StateCompleted, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}
