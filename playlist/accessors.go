package playlist

import (
	"time"

	"github.com/coinscope/readaloud/align"
	"github.com/coinscope/readaloud/speech"
)

// Articles returns a copy of the queue.
func (c *Controller) Articles() []Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Article, len(c.articles))
	copy(out, c.articles)
	return out
}

// Index returns the current queue position.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// IsPlaying reports the session-level playing flag, which stays true
// through loading and retries.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Continuous reports whether continuous play is on.
func (c *Controller) Continuous() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.continuous
}

// SpeakText returns the plain text handed to the active session.
func (c *Controller) SpeakText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speakText
}

// Alignment returns the word alignment for the active session, nil until
// timings arrive.
func (c *Controller) Alignment() *align.Map {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alignMap
}

// Highlight returns the byte span of the text word being spoken: the
// text word whose inverse set contains the active spoken index.
func (c *Controller) Highlight() (start, end int, ok bool) {
	c.mu.Lock()
	sess := c.session
	amap := c.alignMap
	c.mu.Unlock()
	if sess == nil || amap == nil {
		return 0, 0, false
	}
	spoken := sess.CurrentWord()
	if spoken < 0 {
		return 0, 0, false
	}
	token, ok := amap.TokenFor(spoken)
	if !ok {
		return 0, 0, false
	}
	return token.Start, token.End, true
}

// Progress returns the playhead offset and total duration of the active
// session.
func (c *Controller) Progress() (pos, total time.Duration) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return 0, 0
	}
	return sess.Position()
}

// SessionStatus returns the active session's status, StatusIdle when
// none exists.
func (c *Controller) SessionStatus() speech.Status {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return speech.StatusIdle
	}
	return sess.Status()
}

// SeekToken seeks playback to a clicked text word, using the smallest
// spoken index that resolved to it as the target.
func (c *Controller) SeekToken(textIdx int) error {
	c.mu.Lock()
	sess := c.session
	amap := c.alignMap
	c.mu.Unlock()
	if sess == nil || amap == nil {
		return ErrNoActiveSession
	}
	anchor, ok := amap.Anchor(textIdx)
	if !ok {
		return nil // unspoken span, nothing to seek to
	}
	return sess.SeekWord(anchor)
}

// SeekWords nudges the playhead by delta spoken words, clamped to the
// timing table.
func (c *Controller) SeekWords(delta int) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrNoActiveSession
	}
	target := sess.CurrentWord() + delta
	if target < 0 {
		target = 0
	}
	if n := sess.TimingCount(); target >= n {
		if n == 0 {
			return nil
		}
		target = n - 1
	}
	return sess.SeekWord(target)
}
