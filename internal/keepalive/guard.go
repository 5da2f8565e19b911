// Package keepalive keeps the host from suspending the process while a
// listening session is active. It has no effect on correctness, only on
// platform survivability, and every acquisition failure is non-fatal.
package keepalive

import (
	"sync"

	"github.com/charmbracelet/log"
)

// WakeSignal is the platform "stay awake" port. The host may revoke the
// signal unilaterally while the view is hidden; the guard re-acquires it
// on visibility transitions.
type WakeSignal interface {
	Acquire() error
	Release()
}

// Bed is the near-silent looping audio source that marks the process as
// active media during gaps between articles.
type Bed interface {
	Play()
	Pause()
	Close()
}

// Guard owns the wake signal and the silent bed. Callers report playlist
// activity and whether real speech audio is sounding; the guard toggles
// its resources accordingly.
type Guard struct {
	mu      sync.Mutex
	signal  WakeSignal
	bed     Bed
	held    bool
	active  bool
	audible bool
	visible bool
}

// NewGuard creates a guard over the given signal and bed. Either may be
// nil, which disables that resource.
func NewGuard(signal WakeSignal, bed Bed) *Guard {
	return &Guard{signal: signal, bed: bed, visible: true}
}

// Update reports the playlist state: active while a playlist is driving
// playback, audible while real speech audio is sounding. The wake signal
// is held while active; the bed plays only during active gaps.
func (g *Guard) Update(active, audible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = active
	g.audible = audible
	g.apply()
}

// SetVisible reports foreground visibility. Regaining visibility while
// active re-acquires the signal the host revoked.
func (g *Guard) SetVisible(visible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasVisible := g.visible
	g.visible = visible
	if visible && !wasVisible && g.active {
		g.held = false // the host dropped it while hidden
	}
	g.apply()
}

// Close releases everything the guard holds.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	g.audible = false
	g.apply()
	if g.bed != nil {
		g.bed.Close()
	}
}

// apply reconciles held resources with the reported state. Callers hold
// the mutex.
func (g *Guard) apply() {
	if g.signal != nil {
		switch {
		case g.active && !g.held:
			if err := g.signal.Acquire(); err != nil {
				log.Debug("wake signal unavailable", "error", err)
			} else {
				g.held = true
			}
		case !g.active && g.held:
			g.signal.Release()
			g.held = false
		}
	}

	if g.bed != nil {
		if g.active && !g.audible {
			g.bed.Play()
		} else {
			g.bed.Pause()
		}
	}
}

// NoopSignal is the wake signal used on platforms with no native
// inhibition mechanism.
type NoopSignal struct{}

// Acquire does nothing.
func (NoopSignal) Acquire() error { return nil }

// Release does nothing.
func (NoopSignal) Release() {}
