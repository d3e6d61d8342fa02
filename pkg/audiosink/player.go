// Package audiosink delivers decoded audio frames to an external playback
// engine in strict arrival order.
//
// The playback engine itself (codec, buffering, speaker path) lives outside
// this module; it is reached only through the Player interface. The Sink's
// job is ordering: each frame submission is an independent, variable-latency
// call, and frames must still reach the player exactly in the order they
// were enqueued.
package audiosink

import "context"

// Config is the playback engine configuration passed to Initialize.
type Config struct {
	// SampleRate of the encoded stream, in Hz.
	SampleRate int

	// Channels is the channel count (1 = mono).
	Channels int

	// Format names the frame encoding, e.g. "pcm" or "opus".
	Format string
}

// Player is the external playback collaborator. Implementations wrap a
// platform audio engine whose native setup must happen exactly once per
// process; callers use Initialize and Terminate for that lifecycle.
//
// WriteFrame accepts one encoded frame, plays or queues it, and returns once
// the engine has taken ownership of the frame.
type Player interface {
	Initialize(ctx context.Context, cfg Config) error
	Start(ctx context.Context) error
	WriteFrame(ctx context.Context, frame []byte) error
	Stop(ctx context.Context) error
	Terminate(ctx context.Context) error
}
