package concierge

import (
	"encoding/json"
	"strings"
)

// internalMarkers flag fragments of the model's internal reasoning that must
// never reach the UI.
var internalMarkers = []string{
	"<|",
	"|>",
	"<thinking",
	"</thinking",
	"[[internal",
}

// displayableTranscription reports whether a transcription fragment should be
// surfaced. Raw structured payloads that leak onto the text channel and
// fragments carrying internal tag markers are rejected.
func displayableTranscription(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	if (strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) ||
		(strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")) {
		if json.Valid([]byte(t)) {
			return false
		}
	}
	for _, marker := range internalMarkers {
		if strings.Contains(t, marker) {
			return false
		}
	}
	return true
}
