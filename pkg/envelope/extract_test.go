package envelope

import (
	"bytes"
	"encoding/base64"
	"reflect"
	"strconv"
	"testing"
)

func TestExtractFrames_SingleBlob(t *testing.T) {
	blob := bytes.Repeat([]byte{0xab}, 100)
	frames := ExtractFrames(blob)
	if len(frames) != 1 || !bytes.Equal(frames[0], blob) {
		t.Fatalf("frames = %v", frames)
	}
}

func TestExtractFrames_Base64String(t *testing.T) {
	blob := []byte{1, 2, 3, 4, 5}
	frames := ExtractFrames(base64.StdEncoding.EncodeToString(blob))
	if len(frames) != 1 || !bytes.Equal(frames[0], blob) {
		t.Fatalf("frames = %v", frames)
	}

	// Unpadded form is also accepted.
	frames = ExtractFrames(base64.RawStdEncoding.EncodeToString(blob))
	if len(frames) != 1 || !bytes.Equal(frames[0], blob) {
		t.Fatalf("raw frames = %v", frames)
	}

	if got := ExtractFrames("!!! not base64 !!!"); len(got) != 0 {
		t.Fatalf("junk string produced frames: %v", got)
	}
}

func TestExtractFrames_FlatNumberList(t *testing.T) {
	elems := make([]any, 50)
	want := make([]byte, 50)
	for i := range elems {
		elems[i] = int64(i * 3 % 256)
		want[i] = byte(i * 3 % 256)
	}
	frames := ExtractFrames(elems)
	if len(frames) != 1 || !bytes.Equal(frames[0], want) {
		t.Fatalf("frames = %v", frames)
	}
}

func TestExtractFrames_NestedBlobList(t *testing.T) {
	in := []any{[]byte{1, 2}, []byte{3}, []byte{4, 5, 6}}
	frames := ExtractFrames(in)
	want := [][]byte{{1, 2}, {3}, {4, 5, 6}}
	if !reflect.DeepEqual(frames, want) {
		t.Fatalf("frames = %v, want %v", frames, want)
	}
}

func TestExtractFrames_NumericKeyMap(t *testing.T) {
	// Byte-valued map of 50 entries reconstructs to one 50-byte frame.
	m := map[string]any{}
	want := make([]byte, 50)
	for i := 0; i < 50; i++ {
		m[strconv.Itoa(i)] = int64(i)
		want[i] = byte(i)
	}
	frames := ExtractFrames(m)
	if len(frames) != 1 || !bytes.Equal(frames[0], want) {
		t.Fatalf("frames = %v", frames)
	}

	// Blob-valued map reconstructs to one frame per entry, key order.
	m2 := map[string]any{
		"1": []byte{0xbb},
		"0": []byte{0xaa},
		"2": []byte{0xcc},
	}
	got := ExtractFrames(m2)
	wantFrames := [][]byte{{0xaa}, {0xbb}, {0xcc}}
	if !reflect.DeepEqual(got, wantFrames) {
		t.Fatalf("frames = %v, want %v", got, wantFrames)
	}
}

// The same 6 logical bytes in three degraded shapes extract to the same data.
func TestExtractFrames_ShapeEquivalence(t *testing.T) {
	want := []byte{10, 20, 30, 40, 50, 60}

	shapes := map[string]any{
		"blob":        append([]byte{}, want...),
		"number list": []any{int64(10), int64(20), int64(30), int64(40), int64(50), int64(60)},
		"numeric map": map[string]any{
			"0": int64(10), "1": int64(20), "2": int64(30),
			"3": int64(40), "4": int64(50), "5": int64(60),
		},
	}

	for name, shape := range shapes {
		frames := ExtractFrames(shape)
		var flat []byte
		for _, f := range frames {
			flat = append(flat, f...)
		}
		if !bytes.Equal(flat, want) {
			t.Errorf("%s: extracted %v, want %v", name, flat, want)
		}
	}
}

func TestExtractFrames_Unrecognized(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"empty blob", []byte{}},
		{"empty list", []any{}},
		{"empty string", ""},
		{"bool", true},
		{"mixed number list", []any{int64(1), "x"}},
		{"non-numeric map keys", map[string]any{"a": []byte{1}}},
		{"gap in map keys", map[string]any{"0": []byte{1}, "2": []byte{2}}},
		{"list of bools", []any{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFrames(tt.in); len(got) != 0 {
				t.Fatalf("ExtractFrames = %v, want empty", got)
			}
		})
	}
}
