package envelope

// Envelope is one decoded binary message: a two-element pair of resumption
// token and payload map. The token is the message's sequence identity and is
// echoed back to the server as an acknowledgement; the payload carries the
// optional recognized fields below.
type Envelope struct {
	// Token is the opaque resumption token carried by this message.
	// Empty when the server sent none.
	Token string

	// ChunkNumber is the server-side chunk sequence number.
	ChunkNumber int

	// IsEnd marks the final chunk of an assistant turn.
	IsEnd bool

	// HeaderMessage is a short status line shown while the answer streams.
	HeaderMessage string

	// Transcription is an incremental fragment of the assistant's answer.
	Transcription string

	// AudioData is the raw audio payload in whatever shape the server (or
	// the host bridging layer) delivered it. Use ExtractFrames to normalize
	// it into an ordered list of encoded frames.
	AudioData any
}

// DecodeMessage decodes one complete inbound binary message. The message must
// be fully self-contained; decoding always starts at offset 0.
func DecodeMessage(data []byte) (*Envelope, error) {
	v, _, err := Decode(data, 0)
	if err != nil {
		return nil, err
	}
	return Parse(v)
}

// Parse interprets a decoded value as an envelope pair.
func Parse(v any) (*Envelope, error) {
	pair, ok := v.([]any)
	if !ok {
		return nil, formatErrf(0, "envelope is %T, want 2-element array", v)
	}
	if len(pair) != 2 {
		return nil, formatErrf(0, "envelope has %d elements, want 2", len(pair))
	}

	env := &Envelope{}

	switch t := pair[0].(type) {
	case nil:
	case string:
		env.Token = t
	case []byte:
		env.Token = string(t)
	default:
		return nil, formatErrf(0, "envelope token is %T, want string or binary", t)
	}

	payload, ok := pair[1].(map[string]any)
	if !ok {
		return nil, formatErrf(0, "envelope payload is %T, want map", pair[1])
	}

	if n, ok := asInt(payload["chunk_number"]); ok {
		env.ChunkNumber = n
	}
	if b, ok := payload["isEnd"].(bool); ok {
		env.IsEnd = b
	}
	env.HeaderMessage = asString(payload["header_message"])
	env.Transcription = asString(payload["transcription"])
	env.AudioData = payload["audio_data"]

	return env, nil
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}
