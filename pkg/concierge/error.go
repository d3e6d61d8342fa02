package concierge

import (
	"errors"
	"fmt"
)

// TransportError is a connection-level fault: a failed dial, a broken read or
// write, or an exhausted reconnect budget. The session reacts by reconnecting
// or, when attempts run out, by entering the error state; another Connect
// always recovers.
type TransportError struct {
	// Op names the failing operation, e.g. "dial" or "write".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("concierge: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StateError reports an operation that is invalid in the session's current
// state and could not be auto-recovered.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("concierge: cannot %s in state %s", e.Op, e.State)
}

// ServerError carries an error message delivered by the server on the JSON
// channel. It is surfaced through Handlers.OnError; the session keeps running.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("concierge: server error: %s", e.Message)
}

// AsTransportError reports whether err is (or wraps) a *TransportError.
func AsTransportError(err error) (*TransportError, bool) {
	var e *TransportError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
