// Package concierge implements the client side of a streaming conversational
// session protocol: a duplex websocket per session carrying JSON control
// messages outbound and a mix of JSON and packed binary response chunks
// inbound, with per-chunk acknowledgements, resumable reconnects, and
// strictly ordered audio delivery.
package concierge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lumenkind/sona/pkg/audiosink"
	"github.com/lumenkind/sona/pkg/history"
)

const (
	defaultKeepAlive     = 10 * time.Second
	defaultMaxReconnects = 5
	defaultHistoryDepth  = 20
)

// BackoffPolicy computes reconnect delays. Attempt numbering starts at 1.
type BackoffPolicy struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Max caps the delay regardless of attempt number.
	Max time.Duration
}

// Delay returns the wait before the given attempt, doubling per attempt up
// to Max.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.Base) * math.Pow(2, float64(attempt-1)))
	if d > p.Max || d <= 0 {
		d = p.Max
	}
	return d
}

type clientConfig struct {
	endpoint      string
	conciergeName string
	userID        string
	mode          string

	header        http.Header
	dialer        *websocket.Dialer
	handlers      Handlers
	history       history.Store
	historyDepth  int
	player        audiosink.Player
	playerConfig  audiosink.Config
	backoff       BackoffPolicy
	maxReconnects int
	keepAlive     time.Duration
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithConciergeName sets the server-side persona the queries address.
func WithConciergeName(name string) Option {
	return func(c *clientConfig) { c.conciergeName = name }
}

// WithUserID sets the user identity carried in query metadata.
func WithUserID(id string) Option {
	return func(c *clientConfig) { c.userID = id }
}

// WithMode sets the interaction mode carried in query metadata,
// e.g. "voice" or "text".
func WithMode(mode string) Option {
	return func(c *clientConfig) { c.mode = mode }
}

// WithHandlers installs the event handlers.
func WithHandlers(h Handlers) Option {
	return func(c *clientConfig) { c.handlers = h }
}

// WithHistory sets the conversation store. Defaults to an in-memory store.
func WithHistory(store history.Store) Option {
	return func(c *clientConfig) { c.history = store }
}

// WithHistoryDepth sets how many prior messages each query carries.
func WithHistoryDepth(n int) Option {
	return func(c *clientConfig) { c.historyDepth = n }
}

// WithPlayer sets the playback engine and its configuration. Defaults to a
// player that discards all audio.
func WithPlayer(p audiosink.Player, cfg audiosink.Config) Option {
	return func(c *clientConfig) {
		c.player = p
		c.playerConfig = cfg
	}
}

// WithBackoff sets the reconnect backoff policy.
func WithBackoff(policy BackoffPolicy) Option {
	return func(c *clientConfig) { c.backoff = policy }
}

// WithMaxReconnects sets the reconnect attempt budget per outage.
func WithMaxReconnects(n int) Option {
	return func(c *clientConfig) { c.maxReconnects = n }
}

// WithKeepAlive sets the inactivity interval after which a ping is sent
// while the first response chunk is pending.
func WithKeepAlive(d time.Duration) Option {
	return func(c *clientConfig) { c.keepAlive = d }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *clientConfig) { c.dialer = d }
}

// WithHTTPHeader sets extra headers sent on the websocket handshake, for
// example an Authorization header.
func WithHTTPHeader(h http.Header) Option {
	return func(c *clientConfig) { c.header = h }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// Client is the public face of a conversational session. One Client owns one
// session id for its whole lifetime; Connect and Disconnect may alternate
// freely and always reuse that id, so the server can restore context.
//
// All methods are safe for concurrent use and may be called from event
// handlers.
type Client struct {
	cfg       *clientConfig
	sessionID string
	sink      *audiosink.Sink
	sess      *session
}

// A playback engine's native setup must happen exactly once per process even
// when several clients share one Player, so initialization state is tracked
// per Player, not per Client.
var (
	playersMu          sync.Mutex
	initializedPlayers = map[audiosink.Player]bool{}
)

// NewClient creates a client for the given websocket endpoint, for example
// "wss://host/session". A fresh session id is generated; see NewClientWithID
// to resume a known session.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	return NewClientWithID(endpoint, uuid.NewString(), opts...)
}

// NewClientWithID creates a client bound to an existing session id.
func NewClientWithID(endpoint, sessionID string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("concierge: endpoint required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("concierge: session id required")
	}

	cfg := &clientConfig{
		mode:          "text",
		dialer:        websocket.DefaultDialer,
		history:       history.NewMemoryStore(),
		historyDepth:  defaultHistoryDepth,
		player:        audiosink.DiscardPlayer{},
		backoff:       BackoffPolicy{Base: time.Second, Max: 30 * time.Second},
		maxReconnects: defaultMaxReconnects,
		keepAlive:     defaultKeepAlive,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{
		cfg:       cfg,
		sessionID: sessionID,
	}
	c.sink = audiosink.New(cfg.player, cfg.logger)
	c.sess = newSession(cfg, sessionID, c.sink, cfg.logger)
	c.cfg.endpoint = strings.TrimRight(endpoint, "/")
	return c, nil
}

// SessionID returns the id this client connects under.
func (c *Client) SessionID() string { return c.sessionID }

// State returns the current protocol state.
func (c *Client) State() State { return c.sess.currentState() }

// Connect opens the duplex connection for this client's session id. Calling
// Connect while already connected is a no-op. The playback engine is
// initialized on the first Connect of the process.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.ensurePlayer(ctx); err != nil {
		return err
	}
	return c.sess.open(ctx, false)
}

// Send transmits a user query. If the session is not connected, Connect is
// attempted first. The response streams back through the installed handlers
// and the audio sink; Send returns as soon as the query is on the wire.
func (c *Client) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("concierge: empty query")
	}
	if err := c.ensurePlayer(ctx); err != nil {
		return err
	}
	return c.sess.sendQuery(ctx, text)
}

// Stop abandons the in-flight response: pending audio is discarded, playback
// stops, and the server is told to end the stream. The connection stays open
// for the next query, and a later connection drop will not replay the
// abandoned query.
func (c *Client) Stop(ctx context.Context) error {
	return c.sess.stopStreaming(ctx)
}

// Disconnect closes the connection without ending the logical session; a
// later Connect resumes under the same session id. No reconnect is attempted
// after a user-requested disconnect.
func (c *Client) Disconnect() error {
	return c.sess.disconnect()
}

// History returns the conversation store.
func (c *Client) History() history.Store { return c.cfg.history }

// Close releases everything: connection, audio sink worker, playback engine,
// and the event dispatcher. The client is unusable afterwards.
func (c *Client) Close() error {
	err := c.sess.disconnect()
	c.sess.close()
	c.sink.Close()

	playersMu.Lock()
	initialized := initializedPlayers[c.cfg.player]
	delete(initializedPlayers, c.cfg.player)
	playersMu.Unlock()
	if initialized {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if terr := c.cfg.player.Terminate(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// ensurePlayer runs the playback engine's one-time native setup. Concurrent
// callers serialize; only the first performs the work.
func (c *Client) ensurePlayer(ctx context.Context) error {
	playersMu.Lock()
	defer playersMu.Unlock()
	if initializedPlayers[c.cfg.player] {
		return nil
	}
	if err := c.cfg.player.Initialize(ctx, c.cfg.playerConfig); err != nil {
		return fmt.Errorf("concierge: initialize player: %w", err)
	}
	if err := c.cfg.player.Start(ctx); err != nil {
		return fmt.Errorf("concierge: start player: %w", err)
	}
	initializedPlayers[c.cfg.player] = true
	return nil
}
