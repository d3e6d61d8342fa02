package audiosink

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// writeTimeout bounds a single frame submission so one stuck write cannot
// stall the rest of the response.
const writeTimeout = 30 * time.Second

// Sink is a strictly ordered asynchronous delivery queue in front of a
// Player. Enqueue never blocks; a single worker goroutine submits frames one
// at a time, each submission starting only after the previous one returned.
//
// A failed submission is logged and swallowed: one corrupt frame must not
// silence the rest of the response.
type Sink struct {
	player Player
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	busy   bool
	closed bool
}

// New creates a Sink and starts its worker. Close must be called to release
// the worker. If logger is nil, slog.Default() is used.
func New(player Player, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		player: player,
		logger: logger,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Enqueue appends a frame for playback. Frames reach the player in Enqueue
// order regardless of individual submission latency. Enqueue after Close is
// a no-op.
func (s *Sink) Enqueue(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, frame)
	s.cond.Broadcast()
}

// Reset discards all frames that have not started submission yet. A frame
// already handed to the player is not recalled.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.cond.Broadcast()
}

// Flush blocks until every enqueued frame has been submitted (successfully
// or not), or ctx is done.
func (s *Sink) Flush(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for (len(s.queue) > 0 || s.busy) && !s.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return nil
}

// Pending reports the number of frames waiting for submission.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close discards pending frames and stops the worker after any in-flight
// submission completes.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
}

func (s *Sink) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		frame := s.queue[0]
		s.queue = s.queue[1:]
		s.busy = true
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.player.WriteFrame(ctx, frame); err != nil {
			s.logger.Warn("audiosink: frame submission failed",
				"size", len(frame), "err", err)
		}
		cancel()

		s.mu.Lock()
		s.busy = false
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}
