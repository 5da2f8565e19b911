package playlist

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateLoading, "loading"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateAdvancing, "advancing"},
		{StateRetrying, "retrying"},
		{StateSkipping, "skipping"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		from State
		to   State
		want bool
	}{
		{"idle to loading", nil, StateIdle, StateLoading, true},
		{"idle straight to playing", nil, StateIdle, StatePlaying, false},
		{"loading to playing", []State{StateLoading}, StateLoading, StatePlaying, true},
		{"loading restarted", []State{StateLoading}, StateLoading, StateLoading, true},
		{"playing to paused", []State{StateLoading, StatePlaying}, StatePlaying, StatePaused, true},
		{"paused resumes", []State{StateLoading, StatePlaying, StatePaused}, StatePaused, StatePlaying, true},
		{"paused cannot advance", []State{StateLoading, StatePlaying, StatePaused}, StatePaused, StateAdvancing, false},
		{"retry leads to loading", []State{StateLoading, StateRetrying}, StateRetrying, StateLoading, true},
		{"retry escalates to skip", []State{StateLoading, StateRetrying}, StateRetrying, StateSkipping, true},
		{"skip advances", []State{StateLoading, StateSkipping}, StateSkipping, StateAdvancing, true},
		{"advancing drains to idle", []State{StateLoading, StatePlaying, StateAdvancing}, StateAdvancing, StateIdle, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateMachine()
			for _, s := range tt.path {
				if !m.Transition(s) {
					t.Fatalf("setup transition to %v failed from %v", s, m.Current())
				}
			}
			if got := m.Transition(tt.to); got != tt.want {
				t.Errorf("Transition(%v) from %v = %v, want %v", tt.to, tt.from, got, tt.want)
			}
			if tt.want && m.Current() != tt.to {
				t.Errorf("Current() = %v, want %v", m.Current(), tt.to)
			}
			if !tt.want && m.Current() != tt.from {
				t.Errorf("Current() = %v after refused transition, want %v", m.Current(), tt.from)
			}
		})
	}
}

func TestStateMachineEveryStateReachesLoadingAndIdle(t *testing.T) {
	paths := map[State][]State{
		StateIdle:      nil,
		StateLoading:   {StateLoading},
		StatePlaying:   {StateLoading, StatePlaying},
		StatePaused:    {StateLoading, StatePlaying, StatePaused},
		StateAdvancing: {StateLoading, StatePlaying, StateAdvancing},
		StateRetrying:  {StateLoading, StateRetrying},
		StateSkipping:  {StateLoading, StateSkipping},
	}
	for state, path := range paths {
		m := NewStateMachine()
		for _, s := range path {
			if !m.Transition(s) {
				t.Fatalf("setup transition to %v failed", s)
			}
		}
		if !m.Transition(StateLoading) {
			t.Errorf("manual navigation from %v refused", state)
		}

		m = NewStateMachine()
		for _, s := range path {
			m.Transition(s)
		}
		if state != StateIdle && !m.Transition(StateIdle) {
			t.Errorf("stop from %v refused", state)
		}
	}
}

func TestStateMachineOnEnter(t *testing.T) {
	m := NewStateMachine()
	var entered []State
	var froms []State
	m.OnEnter(StatePlaying, func(from State) {
		entered = append(entered, StatePlaying)
		froms = append(froms, from)
	})

	m.Transition(StateLoading)
	m.Transition(StatePlaying)
	if len(entered) != 1 || froms[0] != StateLoading {
		t.Errorf("OnEnter fired %d times from %v, want once from loading", len(entered), froms)
	}

	// Refused transitions never fire callbacks.
	m.Transition(StatePlaying)
	m2 := NewStateMachine()
	m2.OnEnter(StatePlaying, func(State) { t.Error("callback fired on refused transition") })
	m2.Transition(StatePlaying)
}
