package audiosink

import (
	"context"
	"io"
	"sync"
)

// FilePlayer is a Player that appends every frame to an io.Writer. The CLI
// uses it to capture a response's audio to a file instead of a speaker.
type FilePlayer struct {
	mu      sync.Mutex
	w       io.Writer
	started bool
	written int64
}

// NewFilePlayer creates a FilePlayer writing to w.
func NewFilePlayer(w io.Writer) *FilePlayer {
	return &FilePlayer{w: w}
}

func (p *FilePlayer) Initialize(ctx context.Context, cfg Config) error { return nil }

func (p *FilePlayer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
	return nil
}

func (p *FilePlayer) WriteFrame(ctx context.Context, frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.w.Write(frame)
	p.written += int64(n)
	return err
}

func (p *FilePlayer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	return nil
}

func (p *FilePlayer) Terminate(ctx context.Context) error { return nil }

// Written returns the total number of bytes written so far.
func (p *FilePlayer) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// DiscardPlayer is a Player that drops every frame. It stands in when a
// client runs text-only.
type DiscardPlayer struct{}

func (DiscardPlayer) Initialize(ctx context.Context, cfg Config) error { return nil }
func (DiscardPlayer) Start(ctx context.Context) error                  { return nil }
func (DiscardPlayer) WriteFrame(ctx context.Context, frame []byte) error {
	return nil
}
func (DiscardPlayer) Stop(ctx context.Context) error      { return nil }
func (DiscardPlayer) Terminate(ctx context.Context) error { return nil }
