// Package audio provides cross-platform PCM playback for the listening
// engine, backed by oto.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// PlayerState tracks what the player is doing with the audio device.
type PlayerState int32

const (
	// StateStopped means no stream is loaded.
	StateStopped PlayerState = iota
	// StatePlaying means audio is sounding.
	StatePlaying
	// StatePaused means a stream is loaded but suspended.
	StatePaused
	// StateClosed means the player has released the device.
	StateClosed
)

// String returns the string representation of the player state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the PCM format the player expects.
type Config struct {
	SampleRate int // 44100 or 48000 Hz
	Channels   int // 1 = mono, 2 = stereo
}

// DefaultConfig returns mono CD-quality settings, the format the
// synthesis backend produces.
func DefaultConfig() Config {
	return Config{SampleRate: 44100, Channels: 1}
}

// Player plays PCM16 audio through oto. The active stream's backing slice
// is held on the struct so it stays reachable for the whole playback.
type Player struct {
	context *oto.Context

	mu         sync.Mutex
	state      PlayerState
	player     *oto.Player
	data       []byte
	reader     *bytes.Reader
	sampleRate int
	channels   int

	startTime time.Time
	seekBase  time.Duration
	pausedAt  time.Duration
}

// NewPlayer opens the audio device with the given format.
func NewPlayer(config Config) (*Player, error) {
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return nil, fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", config.Channels)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	<-ready

	return &Player{
		context:    ctx,
		state:      StateStopped,
		sampleRate: config.SampleRate,
		channels:   config.Channels,
	}, nil
}

// Play starts playback of pcm from the beginning, replacing any current
// stream.
func (p *Player) Play(pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return errors.New("player is closed")
	}
	p.stopLocked()

	// Copy so the caller cannot mutate the stream under the device.
	p.data = make([]byte, len(pcm))
	copy(p.data, pcm)
	p.reader = bytes.NewReader(p.data)
	p.player = p.context.NewPlayer(p.reader)
	p.startTime = time.Now()
	p.seekBase = 0
	p.pausedAt = 0

	p.player.Play()
	p.state = StatePlaying
	return nil
}

// Pause suspends playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", p.state)
	}
	p.pausedAt = p.positionLocked()
	p.player.Pause()
	p.state = StatePaused
	return nil
}

// Resume continues playback from the paused position.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused {
		return fmt.Errorf("cannot resume: player is %s", p.state)
	}
	p.seekBase = p.pausedAt
	p.startTime = time.Now()
	p.player.Play()
	p.state = StatePlaying
	return nil
}

// Stop halts playback and releases the stream.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if p.player != nil {
		p.player.Pause()
		p.player.Close() //nolint:errcheck
		p.player = nil
	}
	p.data = nil
	p.reader = nil
	p.seekBase = 0
	p.pausedAt = 0
	if p.state != StateClosed {
		p.state = StateStopped
	}
}

// Seek moves the playhead to offset, aligned down to a whole frame.
func (p *Player) Seek(offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil {
		return errors.New("no stream loaded")
	}
	if offset < 0 {
		offset = 0
	}
	if max := p.durationLocked(); offset > max {
		offset = max
	}

	frame := int64(2 * p.channels)
	byteOffset := int64(offset.Seconds()*float64(p.sampleRate)) * frame
	if _, err := p.player.Seek(byteOffset, 0); err != nil {
		return fmt.Errorf("seeking stream: %w", err)
	}

	p.seekBase = offset
	p.startTime = time.Now()
	if p.state == StatePaused {
		p.pausedAt = offset
	}
	return nil
}

// Position returns the current playhead offset, clamped to the stream
// duration.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	switch p.state {
	case StatePlaying:
		pos := p.seekBase + time.Since(p.startTime)
		if max := p.durationLocked(); pos > max {
			pos = max
		}
		return pos
	case StatePaused:
		return p.pausedAt
	default:
		return 0
	}
}

func (p *Player) durationLocked() time.Duration {
	if len(p.data) == 0 || p.sampleRate == 0 {
		return 0
	}
	samples := len(p.data) / (2 * p.channels)
	return time.Duration(samples) * time.Second / time.Duration(p.sampleRate)
}

// IsPlaying reports whether audio is currently sounding.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StatePlaying
}

// State returns the current player state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Context exposes the underlying oto context so other components (the
// keepalive bed) can share the device; oto allows one context per
// process.
func (p *Player) Context() *oto.Context {
	return p.context
}

// Close stops playback and retires the player. The oto context itself has
// no close in v3; it is reclaimed with the process.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.state = StateClosed
	return nil
}
