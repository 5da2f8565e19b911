package playlist

// State represents what the playlist controller is doing.
type State int

const (
	// StateIdle indicates no playlist is driving playback.
	StateIdle State = iota
	// StateLoading indicates content fetch or synthesis is in flight for
	// the current article.
	StateLoading
	// StatePlaying indicates the current article is being narrated.
	StatePlaying
	// StatePaused indicates the listener paused narration.
	StatePaused
	// StateAdvancing indicates a terminal state was reached and the next
	// step is being decided.
	StateAdvancing
	// StateRetrying indicates the first failure for this article; a
	// single retry is scheduled.
	StateRetrying
	// StateSkipping indicates the second failure; the article is flagged
	// and will be skipped regardless of the continuous-play setting.
	StateSkipping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateAdvancing:
		return "advancing"
	case StateRetrying:
		return "retrying"
	case StateSkipping:
		return "skipping"
	default:
		return "unknown"
	}
}

// StateMachine holds the controller state and its legal transitions.
// Every state may jump to Loading (manual navigation is always legal) and
// drain to Idle.
type StateMachine struct {
	current     State
	transitions map[State][]State
	onEnter     map[State]func(State)
}

// NewStateMachine creates a machine starting at Idle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:      {StateLoading},
			StateLoading:   {StateLoading, StatePlaying, StateRetrying, StateSkipping, StateAdvancing, StateIdle},
			StatePlaying:   {StateLoading, StatePaused, StateAdvancing, StateRetrying, StateSkipping, StateIdle},
			StatePaused:    {StateLoading, StatePlaying, StateIdle},
			StateAdvancing: {StateLoading, StateIdle},
			StateRetrying:  {StateLoading, StateSkipping, StateIdle},
			StateSkipping:  {StateLoading, StateAdvancing, StateIdle},
		},
		onEnter: make(map[State]func(State)),
	}
}

// Transition moves to the requested state if the edge is legal and
// reports whether it happened.
func (m *StateMachine) Transition(to State) bool {
	allowed, ok := m.transitions[m.current]
	if !ok {
		return false
	}
	legal := false
	for _, s := range allowed {
		if s == to {
			legal = true
			break
		}
	}
	if !legal {
		return false
	}
	from := m.current
	m.current = to
	if fn := m.onEnter[to]; fn != nil {
		fn(from)
	}
	return true
}

// Current returns the current state.
func (m *StateMachine) Current() State {
	return m.current
}

// OnEnter registers a callback invoked after entering state, receiving
// the state that was left.
func (m *StateMachine) OnEnter(state State, fn func(from State)) {
	m.onEnter[state] = fn
}
