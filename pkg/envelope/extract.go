package envelope

import (
	"encoding/base64"
	"strconv"
)

// ExtractFrames normalizes an audio_data payload into an ordered list of
// encoded audio frames.
//
// The server sends an array of binary blobs, but depending on the bridging
// layer between the server's serializer and the client runtime the same
// logical value can arrive as a single blob, a base64 string, a flat array
// of byte values, an array of blobs, or a map with numeric string keys.
// ExtractFrames resolves all of these; everything downstream only ever sees
// [][]byte.
//
// Unrecognized or empty input yields an empty list — never an error. The
// caller treats such an envelope as audio-free.
func ExtractFrames(v any) [][]byte {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		if len(t) == 0 {
			return nil
		}
		return [][]byte{t}
	case string:
		return base64Frame(t)
	case []any:
		return framesFromList(t)
	case map[string]any:
		elems, ok := numericKeyList(t)
		if !ok {
			return nil
		}
		return framesFromList(elems)
	}
	return nil
}

// framesFromList handles the two array shapes: a flat list of byte values
// (one frame) or a list of binary-like elements (one frame each, order kept).
func framesFromList(elems []any) [][]byte {
	if len(elems) == 0 {
		return nil
	}
	if _, ok := asInt(elems[0]); ok {
		buf := make([]byte, 0, len(elems))
		for _, e := range elems {
			n, ok := asInt(e)
			if !ok {
				return nil
			}
			buf = append(buf, byte(n))
		}
		return [][]byte{buf}
	}

	var frames [][]byte
	for _, e := range elems {
		frames = append(frames, ExtractFrames(e)...)
	}
	return frames
}

// numericKeyList reconstructs an array that degraded into a map with
// stringified numeric keys "0".."n-1".
func numericKeyList(m map[string]any) ([]any, bool) {
	if len(m) == 0 {
		return nil, false
	}
	elems := make([]any, len(m))
	seen := make([]bool, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || seen[i] {
			return nil, false
		}
		seen[i] = true
		elems[i] = v
	}
	return elems, true
}

func base64Frame(s string) [][]byte {
	if s == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil
		}
	}
	if len(b) == 0 {
		return nil
	}
	return [][]byte{b}
}
