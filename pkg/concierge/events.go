package concierge

// State is the session's protocol state.
type State int

const (
	// StateIdle means no connection exists.
	StateIdle State = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateConnected means the duplex connection is open and no query is
	// streaming.
	StateConnected

	// StateStreaming means a query was sent and response chunks are expected.
	StateStreaming

	// StateReconnecting means the connection dropped involuntarily and a
	// retry is scheduled.
	StateReconnecting

	// StateErrored means reconnect attempts were exhausted or an unrecoverable
	// fault occurred. Connect recovers from this state.
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateErrored:
		return "error"
	default:
		return "unknown"
	}
}

// Handlers receives session events. All fields are optional; nil handlers are
// skipped. Handlers run on a dedicated dispatch goroutine in emission order,
// never while internal locks are held, so a handler may call back into the
// client (for example Send from OnStreamEnded). Events queue without bound
// behind a slow handler; none are dropped, they are delivered late.
type Handlers struct {
	// OnStateChange fires on every protocol state transition.
	OnStateChange func(from, to State)

	// OnTranscription fires for each displayable transcription fragment,
	// in arrival order.
	OnTranscription func(text string)

	// OnHeaderMessage fires when the server updates the status header shown
	// while an answer streams.
	OnHeaderMessage func(text string)

	// OnStreamStarted fires when the server confirms a query stream opened.
	OnStreamStarted func()

	// OnStreamEnded fires when a turn finishes: final chunk received, user
	// stop, or server stop.
	OnStreamEnded func()

	// OnError receives transport faults and server-sent errors.
	OnError func(err error)

	// OnReconnectFailed fires when the reconnect budget is exhausted.
	OnReconnectFailed func(err error)

	// OnDisconnected fires after a user-requested disconnect completes.
	OnDisconnected func()
}
