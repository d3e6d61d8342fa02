package history

import (
	"context"
	"testing"
	"time"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	msgs := []Message{
		{Role: RoleUser, Content: "hello", Time: base},
		{Role: RoleAssistant, Content: "hi there", Time: base.Add(time.Second)},
		{Role: RoleUser, Content: "what's the weather", Time: base.Add(2 * time.Second)},
		{Role: RoleAssistant, Content: "sunny", Time: base.Add(3 * time.Second)},
	}
	for _, m := range msgs {
		if err := store.Append(ctx, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != len(msgs) {
		t.Fatalf("Recent(0) returned %d messages, want %d", len(all), len(msgs))
	}
	for i, m := range all {
		if m.Role != msgs[i].Role || m.Content != msgs[i].Content {
			t.Fatalf("message %d = %+v, want %+v", i, m, msgs[i])
		}
	}

	last, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent(2): %v", err)
	}
	if len(last) != 2 || last[0].Content != "what's the weather" || last[1].Content != "sunny" {
		t.Fatalf("Recent(2) = %+v", last)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	empty, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent after Clear: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Recent after Clear = %+v", empty)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	testStore(t, store)
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadger(BadgerOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer store.Close()
	testStore(t, store)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadger(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := store.Append(ctx, Message{Role: RoleUser, Content: "persisted"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = OpenBadger(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	msgs, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persisted" {
		t.Fatalf("Recent after reopen = %+v", msgs)
	}
}

func TestMemoryStore_FillsTimestamp(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	if err := store.Append(context.Background(), Message{Role: RoleUser, Content: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	msgs, _ := store.Recent(context.Background(), 0)
	if len(msgs) != 1 || msgs[0].Time.IsZero() {
		t.Fatalf("timestamp not filled: %+v", msgs)
	}
}
