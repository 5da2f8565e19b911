// Package speech manages one in-flight synthesis and playback job at a time.
package speech

import (
	"context"
	"time"
)

// WordTiming is one timed token reported by the synthesis backend,
// in playback order.
type WordTiming struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
}

// End returns the offset at which the word finishes.
func (w WordTiming) End() time.Duration {
	return w.Start + w.Duration
}

// Clip is the result of one synthesis request: raw PCM16 mono audio plus
// the per-word timing table for it.
type Clip struct {
	Audio      []byte
	SampleRate int
	Timings    []WordTiming
}

// Duration returns the clip length derived from the PCM sample count.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.Audio) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Synthesizer converts plain text into audio with word timings.
type Synthesizer interface {
	// Synthesize generates audio for text spoken by voice at rate.
	Synthesize(ctx context.Context, text, voice string, rate float64) (*Clip, error)

	// Prepare performs the same synthesis without returning audio so the
	// backend can warm its cache. articleID keys the backend's cache.
	Prepare(ctx context.Context, articleID, text, voice string, rate float64) error
}

// Player plays raw PCM16 audio. Implementations live in internal/audio.
type Player interface {
	// Play starts playback of the given PCM16 data from the beginning.
	Play(pcm []byte) error

	// Pause temporarily stops playback.
	Pause() error

	// Resume continues playback from the paused position.
	Resume() error

	// Stop halts playback and releases the current stream.
	Stop() error

	// Seek moves the playhead to the given offset.
	Seek(offset time.Duration) error

	// Position returns the current playback position.
	Position() time.Duration

	// IsPlaying reports whether audio is currently sounding.
	IsPlaying() bool
}

// Voice identifies a narration persona offered by the synthesis backend.
type Voice struct {
	ID   string
	Name string
}
