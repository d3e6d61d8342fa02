// Package history stores the conversation transcript that accompanies every
// outgoing query.
//
// The session appends one user message per query and one assistant message
// per completed turn; the full recent transcript is embedded in the next
// query payload so the server answers with conversational context.
//
// Two backends are provided: MemoryStore for ephemeral sessions and tests,
// and BadgerStore for on-device persistence across app restarts.
package history

import (
	"context"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    string    `json:"role" msgpack:"role"`
	Content string    `json:"content" msgpack:"content"`
	Time    time.Time `json:"time" msgpack:"time"`
}

// Store is the conversation history collaborator.
type Store interface {
	// Append adds a message to the transcript.
	Append(ctx context.Context, msg Message) error

	// Recent returns up to n most recent messages, oldest first.
	// n <= 0 returns the full transcript.
	Recent(ctx context.Context, n int) ([]Message, error)

	// Clear removes all messages.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// MemoryStore keeps the transcript in memory.
type MemoryStore struct {
	mu   sync.Mutex
	msgs []Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, n int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if n > 0 && len(s.msgs) > n {
		start = len(s.msgs) - n
	}
	out := make([]Message, len(s.msgs)-start)
	copy(out, s.msgs[start:])
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
