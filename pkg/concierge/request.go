package concierge

import (
	"encoding/json"
	"fmt"

	"github.com/lumenkind/sona/pkg/history"
)

// Outbound control messages. Each is one JSON object per websocket message.

func endStreamMessage() map[string]any {
	return map[string]any{"end_current_query_stream": true}
}

func ackMessage(token string) map[string]any {
	return map[string]any{"ack": token}
}

func pingMessage() map[string]any {
	return map[string]any{"ping": true}
}

// queryMetadata is serialized to a JSON string and embedded in the query
// payload's metadata field.
type queryMetadata struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// buildQueryRequest assembles the full query payload. The resumption token is
// empty for a fresh query; on resend after a reconnect the stored payload is
// reused with the latest acknowledged token patched in.
func buildQueryRequest(cfg *clientConfig, sessionID, requestID, text string, hist []history.Message, queryNumber int, token string) (map[string]any, error) {
	meta, err := json.Marshal(queryMetadata{
		UserID:    cfg.userID,
		SessionID: sessionID,
		Mode:      cfg.mode,
	})
	if err != nil {
		return nil, fmt.Errorf("concierge: marshal metadata: %w", err)
	}

	chat := make([]map[string]string, 0, len(hist))
	for _, m := range hist {
		chat = append(chat, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	return map[string]any{
		"concierge_name":   cfg.conciergeName,
		"request_id":       requestID,
		"agent_arguments":  map[string]any{"user_query": text},
		"chat_history":     chat,
		"metadata":         string(meta),
		"session_id":       sessionID,
		"query_number":     queryNumber,
		"resumption_token": token,
	}, nil
}
