package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockPlayer implements speech.Player without touching the audio device.
// The playhead advances with the wall clock, so tests using short clips
// observe natural playback completion.
type MockPlayer struct {
	mu sync.Mutex

	// SampleRate is used to derive stream duration from PCM length.
	SampleRate int

	state     PlayerState
	data      []byte
	startTime time.Time
	seekBase  time.Duration
	pausedAt  time.Duration

	playCalls  int
	stopCalls  int
	pauseCalls int
	seekCalls  int
}

// NewMockPlayer creates a mock player for 8kHz mono PCM16, matching the
// mock synthesizer's output.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{SampleRate: 8000, state: StateStopped}
}

// Play loads pcm and starts the synthetic playhead.
func (m *MockPlayer) Play(pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	m.data = pcm
	m.startTime = time.Now()
	m.seekBase = 0
	m.pausedAt = 0
	m.state = StatePlaying
	return nil
}

// Pause suspends the synthetic playhead.
func (m *MockPlayer) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", m.state)
	}
	m.pauseCalls++
	m.pausedAt = m.positionLocked()
	m.state = StatePaused
	return nil
}

// Resume continues from the paused position.
func (m *MockPlayer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePaused {
		return fmt.Errorf("cannot resume: player is %s", m.state)
	}
	m.seekBase = m.pausedAt
	m.startTime = time.Now()
	m.state = StatePlaying
	return nil
}

// Stop unloads the stream.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.data = nil
	m.seekBase = 0
	m.pausedAt = 0
	m.state = StateStopped
	return nil
}

// Seek moves the synthetic playhead.
func (m *MockPlayer) Seek(offset time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return errors.New("no stream loaded")
	}
	m.seekCalls++
	if offset < 0 {
		offset = 0
	}
	m.seekBase = offset
	m.startTime = time.Now()
	if m.state == StatePaused {
		m.pausedAt = offset
	}
	return nil
}

// Position returns the synthetic playhead offset.
func (m *MockPlayer) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

func (m *MockPlayer) positionLocked() time.Duration {
	switch m.state {
	case StatePlaying:
		pos := m.seekBase + time.Since(m.startTime)
		if max := m.durationLocked(); pos > max {
			pos = max
		}
		return pos
	case StatePaused:
		return m.pausedAt
	default:
		return 0
	}
}

func (m *MockPlayer) durationLocked() time.Duration {
	if len(m.data) == 0 || m.SampleRate == 0 {
		return 0
	}
	samples := len(m.data) / 2
	return time.Duration(samples) * time.Second / time.Duration(m.SampleRate)
}

// IsPlaying reports whether the synthetic playhead is advancing.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StatePlaying
}

// State returns the current mock state.
func (m *MockPlayer) State() PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Calls reports how many times each operation ran.
func (m *MockPlayer) Calls() (play, pause, stop, seek int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls, m.pauseCalls, m.stopCalls, m.seekCalls
}
