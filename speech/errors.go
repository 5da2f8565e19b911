package speech

import "errors"

// Common errors for speech sessions.
var (
	ErrNoClip         = errors.New("no audio loaded")
	ErrNotPlaying     = errors.New("no audio is playing")
	ErrNotPaused      = errors.New("audio is not paused")
	ErrAlreadyLoaded  = errors.New("session already carries a job")
	ErrSessionStopped = errors.New("session has been stopped")
	ErrWordOutOfRange = errors.New("word index out of range")
	ErrEmptyText      = errors.New("empty text provided")
)
