package playlist

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Exclusive coordinates media sources so at most one is audible at a
// time. Every player in the host application registers a stop callback;
// a source about to start calls StopOthers first.
type Exclusive struct {
	mu    sync.Mutex
	stops map[string]func()
}

// NewExclusive creates an empty coordinator.
func NewExclusive() *Exclusive {
	return &Exclusive{stops: make(map[string]func())}
}

// Register adds or replaces the stop callback for a named source.
func (e *Exclusive) Register(name string, stop func()) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops[name] = stop
}

// Unregister removes a named source.
func (e *Exclusive) Unregister(name string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.stops, name)
}

// StopOthers stops every registered source except the caller. Callbacks
// run outside the coordinator lock.
func (e *Exclusive) StopOthers(caller string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	var stops []func()
	for name, stop := range e.stops {
		if name != caller && stop != nil {
			stops = append(stops, stop)
		}
	}
	e.mu.Unlock()

	for _, stop := range stops {
		log.Debug("stopping competing media source", "caller", caller)
		stop()
	}
}
