package keepalive

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// silentLoop is an endless PCM16 source of near-silent samples. True
// digital silence lets some hosts reclaim the device anyway, so it emits
// the smallest non-zero amplitude instead.
type silentLoop struct{}

func (silentLoop) Read(p []byte) (int, error) {
	for i := 0; i+1 < len(p); i += 2 {
		p[i] = 1 // amplitude 1 of 32767, inaudible
		p[i+1] = 0
	}
	return len(p) &^ 1, nil
}

// OtoBed plays the silent loop through an existing oto context. The
// context is shared with the real player; oto allows only one per
// process.
type OtoBed struct {
	mu     sync.Mutex
	player *oto.Player
	closed bool
}

// NewOtoBed creates the silent bed on ctx. A nil context yields a nil
// bed, which the guard treats as "no bed available".
func NewOtoBed(ctx *oto.Context) *OtoBed {
	if ctx == nil {
		return nil
	}
	return &OtoBed{player: ctx.NewPlayer(silentLoop{})}
}

// Play starts the silent loop if it is not already sounding.
func (b *OtoBed) Play() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.player.IsPlaying() {
		return
	}
	b.player.Play()
}

// Pause suspends the silent loop.
func (b *OtoBed) Pause() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.player.Pause()
}

// Close retires the bed.
func (b *OtoBed) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.player.Close() //nolint:errcheck
}
