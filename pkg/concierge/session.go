package concierge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kaptinlin/jsonrepair"

	"github.com/lumenkind/sona/pkg/envelope"
	"github.com/lumenkind/sona/pkg/history"
)

const (
	dialTimeout  = 15 * time.Second
	writeTimeout = 10 * time.Second
	flushTimeout = 15 * time.Second
)

// session owns the duplex connection and all protocol state. The connection
// is replaced wholesale on reconnect: a read loop is bound to the connection
// it was started for, and every callback re-checks that binding under the
// lock, so a late event from a dying connection can never be misattributed
// to its successor.
//
// All mutation happens under mu. Handlers are never invoked while mu is
// held; they are queued to a dispatch goroutine in emission order, which
// keeps reentrant calls (Send from inside a handler) safe and makes every
// handler observe the latest state. The queue grows as needed: a slow
// handler delays later events but never loses one.
type session struct {
	cfg    *clientConfig
	id     string
	sink   frameSink
	logger *slog.Logger

	writeMu sync.Mutex // serializes writes to the websocket

	evMu      sync.Mutex
	evCond    *sync.Cond
	evQueue   []func()
	evClosed  bool
	closeOnce sync.Once

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	attempts       int
	userStopped    bool
	queryNumber    int
	requestID      string
	lastRequest    map[string]any // resent verbatim after an involuntary drop
	resumeToken    string
	chunkSeq       int
	awaitingFirst  bool
	assistant      strings.Builder
	keepalive      *time.Timer
	reconnectTimer *time.Timer
}

// frameSink is the slice of the audio sink the session needs.
type frameSink interface {
	Enqueue(frame []byte)
	Reset()
	Flush(ctx context.Context) error
}

func newSession(cfg *clientConfig, id string, sink frameSink, logger *slog.Logger) *session {
	s := &session{
		cfg:    cfg,
		id:     id,
		sink:   sink,
		logger: logger,
	}
	s.evCond = sync.NewCond(&s.evMu)
	go s.dispatchLoop()
	return s
}

func (s *session) dispatchLoop() {
	s.evMu.Lock()
	for {
		for len(s.evQueue) == 0 && !s.evClosed {
			s.evCond.Wait()
		}
		if len(s.evQueue) == 0 {
			s.evMu.Unlock()
			return
		}
		f := s.evQueue[0]
		s.evQueue = s.evQueue[1:]
		s.evMu.Unlock()
		f()
		s.evMu.Lock()
	}
}

func (s *session) emit(f func()) {
	s.evMu.Lock()
	if s.evClosed {
		s.evMu.Unlock()
		return
	}
	s.evQueue = append(s.evQueue, f)
	s.evCond.Signal()
	s.evMu.Unlock()
}

func (s *session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	if h := s.cfg.handlers.OnStateChange; h != nil {
		s.emit(func() { h(prev, next) })
	}
}

func (s *session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// open dials the session endpoint and installs the new connection. With
// retry set, a dial failure leaves the state machine in StateReconnecting so
// the backoff loop keeps ownership of the state.
func (s *session) open(ctx context.Context, retry bool) error {
	s.mu.Lock()
	if s.conn != nil && (s.state == StateConnected || s.state == StateStreaming) {
		s.mu.Unlock()
		return nil // already connected for this session id
	}
	s.teardownLocked()
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := s.cfg.dialer.DialContext(dctx, s.cfg.endpoint+"/"+s.id, s.cfg.header)
	cancel()
	if err != nil {
		s.mu.Lock()
		if !retry && s.state == StateConnecting {
			s.setStateLocked(StateIdle)
		}
		s.mu.Unlock()
		return &TransportError{Op: "dial", Err: err}
	}

	s.mu.Lock()
	if retry && s.userStopped {
		// Disconnect raced the dial; drop the fresh connection.
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.teardownLocked()
	s.conn = conn
	s.attempts = 0
	s.userStopped = false
	s.setStateLocked(StateConnected)

	// Resume a query that was interrupted mid-answer: same request id, last
	// acknowledged token.
	if s.lastRequest != nil {
		req := make(map[string]any, len(s.lastRequest))
		for k, v := range s.lastRequest {
			req[k] = v
		}
		req["resumption_token"] = s.resumeToken
		if err := s.sendControl(conn, req); err != nil {
			s.logger.Warn("concierge: resend after reconnect failed", "err", err)
		} else {
			s.setStateLocked(StateStreaming)
			s.awaitingFirst = true
			s.armKeepaliveLocked()
		}
	}
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// teardownLocked fully detaches the current connection before a replacement
// is created. The read loop bound to the old connection exits on its own and
// all its late events are discarded by the conn identity checks.
func (s *session) teardownLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.stopKeepaliveLocked()
	if s.conn != nil {
		old := s.conn
		s.conn = nil
		go old.Close()
	}
}

func (s *session) readLoop(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.handleTransportClose(conn, err)
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			s.handleBinary(conn, data)
		case websocket.TextMessage:
			s.handleText(conn, data)
		}
	}
}

func (s *session) handleBinary(conn *websocket.Conn, data []byte) {
	env, err := envelope.DecodeMessage(data)
	if err != nil {
		// Malformed frame: drop this message only, the session continues.
		s.logger.Warn("concierge: dropping malformed binary message",
			"size", len(data), "err", err)
		return
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}

	// Ack before anything else. The server's send window stalls without the
	// ack, and it must never wait on playback.
	if env.Token != "" {
		if err := s.sendControl(conn, ackMessage(env.Token)); err != nil {
			s.logger.Warn("concierge: send ack", "err", err)
		}
		s.resumeToken = env.Token
	}

	if s.awaitingFirst {
		s.awaitingFirst = false
		s.stopKeepaliveLocked()
	}
	s.chunkSeq++
	if env.ChunkNumber != 0 && env.ChunkNumber != s.chunkSeq {
		// Chunks arrive in order on a single connection, so a gap means the
		// server renumbered (resumed mid-answer) or skipped chunks. Track the
		// server's numbering from here on.
		s.logger.Warn("concierge: chunk sequence mismatch",
			"got", env.ChunkNumber, "want", s.chunkSeq)
		s.chunkSeq = env.ChunkNumber
	}

	h := s.cfg.handlers
	if env.HeaderMessage != "" {
		if fn := h.OnHeaderMessage; fn != nil {
			msg := env.HeaderMessage
			s.emit(func() { fn(msg) })
		}
	}
	if env.Transcription != "" && displayableTranscription(env.Transcription) {
		s.assistant.WriteString(env.Transcription)
		if fn := h.OnTranscription; fn != nil {
			text := env.Transcription
			s.emit(func() { fn(text) })
		}
	}
	for _, frame := range envelope.ExtractFrames(env.AudioData) {
		s.sink.Enqueue(frame)
	}

	if !env.IsEnd {
		s.mu.Unlock()
		return
	}

	// Final chunk: the turn completed cleanly, nothing left to resume.
	turn := s.assistant.String()
	s.assistant.Reset()
	s.resumeToken = ""
	s.lastRequest = nil
	s.requestID = ""
	s.stopKeepaliveLocked()
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	if err := s.sink.Flush(ctx); err != nil {
		s.logger.Warn("concierge: flush audio queue", "err", err)
	}
	cancel()

	if turn != "" {
		err := s.cfg.history.Append(context.Background(), history.Message{
			Role:    history.RoleAssistant,
			Content: turn,
		})
		if err != nil {
			s.logger.Warn("concierge: store assistant message", "err", err)
		}
	}
	if err := s.sendControl(conn, endStreamMessage()); err != nil {
		s.logger.Warn("concierge: send end-of-stream", "err", err)
	}
	if fn := s.cfg.handlers.OnStreamEnded; fn != nil {
		s.emit(func() { fn() })
	}
}

func (s *session) handleText(conn *websocket.Conn, data []byte) {
	var msg struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := unmarshalText(data, &msg); err != nil {
		s.logger.Warn("concierge: ignoring unparseable text message", "err", err)
		return
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	if s.awaitingFirst {
		s.armKeepaliveLocked() // the server is alive, push the idle ping out
	}
	h := s.cfg.handlers

	switch msg.Type {
	case "stream_started":
		s.mu.Unlock()
		if fn := h.OnStreamStarted; fn != nil {
			s.emit(func() { fn() })
		}
	case "stream_stopped":
		if s.state == StateStreaming {
			s.setStateLocked(StateConnected)
		}
		s.mu.Unlock()
		if fn := h.OnStreamEnded; fn != nil {
			s.emit(func() { fn() })
		}
	case "error":
		s.mu.Unlock()
		s.logger.Warn("concierge: server reported error", "message", msg.Message)
		if fn := h.OnError; fn != nil {
			serr := &ServerError{Message: msg.Message}
			s.emit(func() { fn(serr) })
		}
	default:
		s.mu.Unlock()
		s.logger.Debug("concierge: ignoring text message", "type", msg.Type)
	}
}

// unmarshalText parses a JSON control message, repairing mildly malformed
// payloads before giving up.
func unmarshalText(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func (s *session) handleTransportClose(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return // superseded connection, already torn down
	}
	s.conn = nil
	s.stopKeepaliveLocked()

	if s.userStopped {
		s.setStateLocked(StateIdle)
		h := s.cfg.handlers.OnDisconnected
		s.mu.Unlock()
		if h != nil {
			s.emit(func() { h() })
		}
		return
	}

	s.logger.Warn("concierge: connection lost", "err", cause)
	s.scheduleReconnectLocked(cause)
	s.mu.Unlock()
}

func (s *session) scheduleReconnectLocked(cause error) {
	if s.attempts >= s.cfg.maxReconnects {
		s.setStateLocked(StateErrored)
		terr := &TransportError{Op: "reconnect", Err: cause}
		if h := s.cfg.handlers.OnReconnectFailed; h != nil {
			s.emit(func() { h(terr) })
		}
		if h := s.cfg.handlers.OnError; h != nil {
			s.emit(func() { h(terr) })
		}
		return
	}
	s.attempts++
	delay := s.cfg.backoff.Delay(s.attempts)
	s.setStateLocked(StateReconnecting)
	s.logger.Info("concierge: reconnecting",
		"attempt", s.attempts, "max", s.cfg.maxReconnects, "delay", delay)
	s.reconnectTimer = time.AfterFunc(delay, s.redial)
}

func (s *session) redial() {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	err := s.open(ctx, true)
	cancel()
	if err == nil {
		return
	}
	s.mu.Lock()
	if !s.userStopped && s.state != StateIdle {
		s.scheduleReconnectLocked(err)
	}
	s.mu.Unlock()
}

func (s *session) sendQuery(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.conn == nil || (s.state != StateConnected && s.state != StateStreaming) {
		s.mu.Unlock()
		if err := s.open(ctx, false); err != nil {
			return err
		}
		s.mu.Lock()
		if s.conn == nil {
			st := s.state
			s.mu.Unlock()
			return &StateError{Op: "send query", State: st}
		}
	}
	conn := s.conn

	// End any previous stream server-side; harmless when nothing streams.
	if err := s.sendControl(conn, endStreamMessage()); err != nil {
		s.mu.Unlock()
		return &TransportError{Op: "write", Err: err}
	}
	s.chunkSeq = 0
	s.assistant.Reset()
	s.userStopped = false
	s.queryNumber++
	s.requestID = uuid.NewString()
	s.resumeToken = ""
	requestID := s.requestID
	queryNumber := s.queryNumber
	s.mu.Unlock()

	s.sink.Reset()

	// History is read before the new query is appended, so chat_history
	// carries only prior turns; the query itself travels in user_query.
	hist, err := s.cfg.history.Recent(ctx, s.cfg.historyDepth)
	if err != nil {
		s.logger.Warn("concierge: load chat history", "err", err)
	}
	req, err := buildQueryRequest(s.cfg, s.id, requestID, text, hist, queryNumber, "")
	if err != nil {
		return err
	}
	if err := s.sendControl(conn, req); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := s.cfg.history.Append(ctx, history.Message{Role: history.RoleUser, Content: text}); err != nil {
		s.logger.Warn("concierge: store user message", "err", err)
	}

	s.mu.Lock()
	s.lastRequest = req
	s.setStateLocked(StateStreaming)
	s.awaitingFirst = true
	s.armKeepaliveLocked()
	s.mu.Unlock()
	return nil
}

func (s *session) stopStreaming(ctx context.Context) error {
	s.mu.Lock()
	s.userStopped = true
	s.resumeToken = ""
	s.lastRequest = nil
	s.requestID = ""
	s.assistant.Reset()
	s.stopKeepaliveLocked()
	conn := s.conn
	wasStreaming := s.state == StateStreaming
	if conn != nil {
		if err := s.sendControl(conn, endStreamMessage()); err != nil {
			s.logger.Warn("concierge: send end-of-stream", "err", err)
		}
	}
	if wasStreaming {
		s.setStateLocked(StateConnected)
	}
	h := s.cfg.handlers.OnStreamEnded
	s.mu.Unlock()

	s.sink.Reset()
	if err := s.cfg.player.Stop(ctx); err != nil {
		s.logger.Warn("concierge: stop playback", "err", err)
	}
	if wasStreaming && h != nil {
		s.emit(func() { h() })
	}
	return nil
}

func (s *session) disconnect() error {
	s.mu.Lock()
	s.userStopped = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.stopKeepaliveLocked()
	conn := s.conn
	s.conn = nil
	s.setStateLocked(StateIdle)
	h := s.cfg.handlers.OnDisconnected
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.sink.Reset()
	if h != nil {
		s.emit(func() { h() })
	}
	return nil
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.evMu.Lock()
		s.evClosed = true
		s.evCond.Broadcast()
		s.evMu.Unlock()
	})
}

func (s *session) sendControl(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// Inactivity keepalive: while the first chunk of a response is pending, a
// ping goes out every interval so intermediary infrastructure does not drop
// the idle connection during slow model thinking time.

func (s *session) armKeepaliveLocked() {
	s.stopKeepaliveLocked()
	s.keepalive = time.AfterFunc(s.cfg.keepAlive, s.keepaliveFire)
}

func (s *session) stopKeepaliveLocked() {
	if s.keepalive != nil {
		s.keepalive.Stop()
		s.keepalive = nil
	}
}

func (s *session) keepaliveFire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming || !s.awaitingFirst || s.conn == nil {
		return
	}
	if err := s.sendControl(s.conn, pingMessage()); err != nil {
		s.logger.Warn("concierge: send keepalive ping", "err", err)
		return
	}
	s.keepalive = time.AfterFunc(s.cfg.keepAlive, s.keepaliveFire)
}
