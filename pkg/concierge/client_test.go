package concierge

import (
	"strings"
	"testing"
	"time"

	"github.com/lumenkind/sona/pkg/history"
)

func TestBackoffPolicy_Delay(t *testing.T) {
	p := BackoffPolicy{Base: 100 * time.Millisecond, Max: time.Second}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBuildQueryRequest(t *testing.T) {
	cfg := &clientConfig{
		conciergeName: "atlas",
		userID:        "u-1",
		mode:          "voice",
	}
	hist := []history.Message{
		{Role: history.RoleUser, Content: "hi"},
		{Role: history.RoleAssistant, Content: "hello"},
	}
	req, err := buildQueryRequest(cfg, "s-1", "r-1", "what now?", hist, 3, "tok")
	if err != nil {
		t.Fatalf("buildQueryRequest: %v", err)
	}
	if req["concierge_name"] != "atlas" || req["request_id"] != "r-1" {
		t.Fatalf("identity fields wrong: %v", req)
	}
	if req["session_id"] != "s-1" || req["query_number"] != 3 || req["resumption_token"] != "tok" {
		t.Fatalf("session fields wrong: %v", req)
	}
	args := req["agent_arguments"].(map[string]any)
	if args["user_query"] != "what now?" {
		t.Fatalf("user_query = %v", args["user_query"])
	}
	chat := req["chat_history"].([]map[string]string)
	if len(chat) != 2 || chat[0]["role"] != history.RoleUser || chat[1]["content"] != "hello" {
		t.Fatalf("chat_history = %v", chat)
	}
	meta := req["metadata"].(string)
	for _, frag := range []string{`"user_id":"u-1"`, `"session_id":"s-1"`, `"mode":"voice"`} {
		if !strings.Contains(meta, frag) {
			t.Errorf("metadata %q missing %q", meta, frag)
		}
	}
}

func TestUnmarshalText_RepairsTrailingComma(t *testing.T) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := unmarshalText([]byte(`{"type": "stream_started",}`), &msg); err != nil {
		t.Fatalf("unmarshalText: %v", err)
	}
	if msg.Type != "stream_started" {
		t.Fatalf("type = %q", msg.Type)
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("empty endpoint accepted")
	}
	if _, err := NewClientWithID("ws://example.test", ""); err == nil {
		t.Fatal("empty session id accepted")
	}
	c, err := NewClientWithID("ws://example.test/session/", "s-9")
	if err != nil {
		t.Fatalf("NewClientWithID: %v", err)
	}
	defer c.Close()
	if c.SessionID() != "s-9" {
		t.Fatalf("SessionID = %q", c.SessionID())
	}
}
