package playlist

import (
	"sync"
	"time"
)

// Named timer slots used by the controller. Scheduling a slot replaces
// any pending timer in it, so a stale transition can never fire against a
// no-longer-current article.
const (
	timerAdvance = "advance"
	timerRetry   = "retry"
	timerSkip    = "skip"
)

// timerSet owns the controller's cancellable timers, keyed by slot name.
type timerSet struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[string]*time.Timer)}
}

// schedule arms slot to run fn after d, replacing any pending timer in
// the same slot.
func (t *timerSet) schedule(slot string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[slot]; ok {
		old.Stop()
	}
	t.timers[slot] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, slot)
		t.mu.Unlock()
		fn()
	})
}

// cancel disarms one slot.
func (t *timerSet) cancel(slot string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[slot]; ok {
		old.Stop()
		delete(t.timers, slot)
	}
}

// cancelAll disarms every slot.
func (t *timerSet) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for slot, timer := range t.timers {
		timer.Stop()
		delete(t.timers, slot)
	}
}
