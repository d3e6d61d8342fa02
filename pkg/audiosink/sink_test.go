package audiosink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockPlayer records submitted frames and lets tests vary per-frame latency
// and inject failures.
type mockPlayer struct {
	mu       sync.Mutex
	frames   [][]byte
	delays   map[int]time.Duration // by submission index
	failures map[int]bool
	calls    int
}

func newMockPlayer() *mockPlayer {
	return &mockPlayer{
		delays:   map[int]time.Duration{},
		failures: map[int]bool{},
	}
}

func (m *mockPlayer) Initialize(ctx context.Context, cfg Config) error { return nil }
func (m *mockPlayer) Start(ctx context.Context) error                  { return nil }
func (m *mockPlayer) Stop(ctx context.Context) error                   { return nil }
func (m *mockPlayer) Terminate(ctx context.Context) error              { return nil }

func (m *mockPlayer) WriteFrame(ctx context.Context, frame []byte) error {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	delay := m.delays[idx]
	fail := m.failures[idx]
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return errors.New("mock submission failure")
	}

	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()
	return nil
}

func (m *mockPlayer) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	copy(out, m.frames)
	return out
}

func TestSink_OrderPreservedUnderVariableLatency(t *testing.T) {
	player := newMockPlayer()
	player.delays[1] = 50 * time.Millisecond // F2 slower than F1 and F3

	sink := New(player, nil)
	defer sink.Close()

	f1, f2, f3 := []byte{1}, []byte{2}, []byte{3}
	sink.Enqueue(f1)
	sink.Enqueue(f2)
	sink.Enqueue(f3)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := player.received()
	if len(got) != 3 {
		t.Fatalf("player received %d frames, want 3", len(got))
	}
	for i, want := range [][]byte{f1, f2, f3} {
		if !bytes.Equal(got[i], want) {
			t.Fatalf("frame %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestSink_FailureDoesNotBlockQueue(t *testing.T) {
	player := newMockPlayer()
	player.failures[1] = true // F2 fails

	sink := New(player, nil)
	defer sink.Close()

	sink.Enqueue([]byte{1})
	sink.Enqueue([]byte{2})
	sink.Enqueue([]byte{3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := player.received()
	want := [][]byte{{1}, {3}}
	if len(got) != len(want) {
		t.Fatalf("player received %v, want %v", got, want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("player received %v, want %v", got, want)
		}
	}
}

func TestSink_ResetDiscardsPending(t *testing.T) {
	player := newMockPlayer()
	player.delays[0] = 100 * time.Millisecond

	sink := New(player, nil)
	defer sink.Close()

	sink.Enqueue([]byte{1}) // starts submitting, slowly
	time.Sleep(20 * time.Millisecond)
	sink.Enqueue([]byte{2})
	sink.Enqueue([]byte{3})
	sink.Reset()
	sink.Enqueue([]byte{4})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := player.received()
	want := [][]byte{{1}, {4}}
	if len(got) != len(want) {
		t.Fatalf("player received %v, want %v", got, want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("player received %v, want %v", got, want)
		}
	}
}

func TestSink_FlushContextCancel(t *testing.T) {
	player := newMockPlayer()
	player.delays[0] = 500 * time.Millisecond

	sink := New(player, nil)
	defer sink.Close()

	sink.Enqueue([]byte{1})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sink.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Flush = %v, want deadline exceeded", err)
	}
}

func TestSink_EnqueueAfterClose(t *testing.T) {
	player := newMockPlayer()
	sink := New(player, nil)
	sink.Close()

	sink.Enqueue([]byte{1})
	if n := sink.Pending(); n != 0 {
		t.Fatalf("Pending = %d after Close", n)
	}
}

func TestSink_ManyFramesStayOrdered(t *testing.T) {
	player := newMockPlayer()
	sink := New(player, nil)
	defer sink.Close()

	const n = 200
	for i := 0; i < n; i++ {
		sink.Enqueue([]byte(fmt.Sprintf("frame-%03d", i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := player.received()
	if len(got) != n {
		t.Fatalf("received %d frames, want %d", len(got), n)
	}
	for i, f := range got {
		if want := fmt.Sprintf("frame-%03d", i); string(f) != want {
			t.Fatalf("frame %d = %q, want %q", i, f, want)
		}
	}
}
