package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := Output(map[string]any{"name": "sona", "count": 2}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if got["name"] != "sona" || got["count"] != float64(2) {
		t.Fatalf("got %v", got)
	}
}

func TestOutput_YAMLDefault(t *testing.T) {
	var buf bytes.Buffer
	err := Output(map[string]string{"endpoint": "wss://example.test"}, OutputOptions{
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if !strings.Contains(buf.String(), "endpoint: wss://example.test") {
		t.Fatalf("yaml output = %q", buf.String())
	}
}

func TestOutput_Raw(t *testing.T) {
	var buf bytes.Buffer
	err := Output([]byte{0x01, 0x02}, OutputOptions{Format: FormatRaw, Writer: &buf})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x01, 0x02}) {
		t.Fatalf("raw output = %v", buf.Bytes())
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	err := Output("x", OutputOptions{Format: "xml", Writer: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestOutput_JQFilter(t *testing.T) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	msgs := []msg{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}

	var buf bytes.Buffer
	err := Output(msgs, OutputOptions{
		Format: FormatJSON,
		Filter: ".[] | select(.role == \"assistant\") | .content",
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `"hello"` {
		t.Fatalf("filtered output = %q", got)
	}
}

func TestOutput_JQFilterMultipleResults(t *testing.T) {
	var buf bytes.Buffer
	err := Output([]int{1, 2, 3}, OutputOptions{
		Format: FormatJSON,
		Filter: ".[] | . * 2",
		Writer: &buf,
	})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	var got []float64
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(got) != 3 || got[0] != 2 || got[2] != 6 {
		t.Fatalf("got %v", got)
	}
}

func TestOutput_InvalidJQFilter(t *testing.T) {
	err := Output("x", OutputOptions{Filter: ".[unclosed", Writer: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected error for invalid filter")
	}
}
