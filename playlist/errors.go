package playlist

import "errors"

// Common errors for the playlist controller.
var (
	ErrNoArticles      = errors.New("no articles in playlist")
	ErrNoActiveSession = errors.New("no active speech session")
	ErrContentMissing  = errors.New("article has no content or summary")
)
