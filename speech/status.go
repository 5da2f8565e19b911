package speech

// Status represents the lifecycle state of a Session.
type Status int

const (
	// StatusIdle indicates no job has been loaded.
	StatusIdle Status = iota
	// StatusLoading indicates synthesis is in flight.
	StatusLoading
	// StatusReady indicates audio is synthesized but not yet playing.
	StatusReady
	// StatusPlaying indicates audio is sounding.
	StatusPlaying
	// StatusPaused indicates playback is paused.
	StatusPaused
	// StatusEnded indicates playback reached the end of the clip.
	StatusEnded
	// StatusError indicates the job failed.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusError
}

// Active reports whether the session holds the audio device.
func (s Status) Active() bool {
	return s == StatusPlaying || s == StatusPaused
}

// Settled reports whether the session is fully idle: not loading, not
// playing, not paused and not merely ready to start.
func (s Status) Settled() bool {
	return s == StatusIdle || s == StatusEnded || s == StatusError
}
