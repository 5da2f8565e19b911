package speech

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// watchInterval is how often the session polls the player position to
// update the current word and detect the end of the clip.
const watchInterval = 60 * time.Millisecond

// Session wraps one synthesis+playback job for one article. A session is
// single-use: Load it once, drive it with Play/Pause/Resume/Stop and the
// seek operations, then discard it. Status and word changes are reported
// through the registered callbacks.
type Session struct {
	synth  Synthesizer
	player Player

	mu       sync.Mutex
	status   Status
	err      error
	clip     *Clip
	text     string
	voice    string
	rate     float64
	started  bool // reached playing at least once
	stopped  bool
	lastWord int
	stopCh   chan struct{}
	watching bool
	cancel   context.CancelFunc

	onStatus func(Status)
	onWord   func(int)
}

// NewSession creates a session over the given synthesizer and player.
func NewSession(synth Synthesizer, player Player) *Session {
	return &Session{
		synth:    synth,
		player:   player,
		status:   StatusIdle,
		lastWord: -1,
	}
}

// OnStatus registers a callback invoked on every status change.
// It must be set before Load.
func (s *Session) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// OnWord registers a callback invoked when the active spoken word changes.
// It must be set before Play.
func (s *Session) OnWord(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWord = fn
}

// Load synthesizes the given text and leaves the session ready to play.
// It blocks until the backend answers or ctx is canceled.
func (s *Session) Load(ctx context.Context, text, voice string, rate float64) error {
	if text == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	if s.status != StatusIdle && s.status != StatusError && s.status != StatusEnded {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.text = text
	s.voice = voice
	s.rate = rate
	s.mu.Unlock()

	s.setStatus(StatusLoading)

	clip, err := s.synth.Synthesize(loadCtx, text, voice, rate)
	if err != nil {
		s.mu.Lock()
		stopped := s.stopped
		s.err = err
		s.mu.Unlock()
		if stopped {
			return ErrSessionStopped
		}
		s.setStatus(StatusError)
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	s.clip = clip
	s.mu.Unlock()

	s.setStatus(StatusReady)
	return nil
}

// Play starts playback of the loaded clip from the beginning.
func (s *Session) Play() error {
	s.mu.Lock()
	if s.clip == nil {
		s.mu.Unlock()
		return ErrNoClip
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	audio := s.clip.Audio
	s.mu.Unlock()

	if err := s.player.Play(audio); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.setStatus(StatusError)
		return err
	}

	s.mu.Lock()
	s.started = true
	s.lastWord = -1
	if !s.watching {
		s.watching = true
		s.stopCh = make(chan struct{})
		go s.watch(s.stopCh)
	}
	s.mu.Unlock()

	s.setStatus(StatusPlaying)
	return nil
}

// Pause temporarily stops playback.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.status != StatusPlaying {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	s.mu.Unlock()

	if err := s.player.Pause(); err != nil {
		return err
	}
	s.setStatus(StatusPaused)
	return nil
}

// Resume continues playback from the paused position.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.status != StatusPaused {
		s.mu.Unlock()
		return ErrNotPaused
	}
	s.mu.Unlock()

	if err := s.player.Resume(); err != nil {
		return err
	}
	s.setStatus(StatusPlaying)
	return nil
}

// Stop cancels any in-flight synthesis, halts playback and retires the
// session. The timing table, if one was obtained, stays readable.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.watching {
		close(s.stopCh)
		s.watching = false
	}
	s.mu.Unlock()

	if err := s.player.Stop(); err != nil {
		log.Debug("player stop failed", "error", err)
	}
	s.setStatus(StatusIdle)
}

// SeekWord moves the playhead to the start of the given spoken word.
func (s *Session) SeekWord(index int) error {
	s.mu.Lock()
	if s.clip == nil {
		s.mu.Unlock()
		return ErrNoClip
	}
	if index < 0 || index >= len(s.clip.Timings) {
		s.mu.Unlock()
		return ErrWordOutOfRange
	}
	offset := s.clip.Timings[index].Start
	s.mu.Unlock()
	return s.SeekTime(offset)
}

// SeekTime moves the playhead to the given offset.
func (s *Session) SeekTime(offset time.Duration) error {
	s.mu.Lock()
	if s.clip == nil {
		s.mu.Unlock()
		return ErrNoClip
	}
	s.mu.Unlock()
	return s.player.Seek(offset)
}

// SetVoice switches the narration voice, re-synthesizing the current text
// and restoring the playhead to the word that was active.
func (s *Session) SetVoice(ctx context.Context, voice string) error {
	return s.reload(ctx, voice, s.currentRate())
}

// SetRate switches the speech rate, re-synthesizing the current text and
// restoring the playhead to the word that was active.
func (s *Session) SetRate(ctx context.Context, rate float64) error {
	return s.reload(ctx, s.currentVoice(), rate)
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the last error the session encountered.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Started reports whether playback ever began for this session.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Timings returns a copy of the word timing table, nil until loaded.
func (s *Session) Timings() []WordTiming {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return nil
	}
	out := make([]WordTiming, len(s.clip.Timings))
	copy(out, s.clip.Timings)
	return out
}

// TimingCount returns the number of word timings obtained so far.
func (s *Session) TimingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return 0
	}
	return len(s.clip.Timings)
}

// CurrentWord returns the index of the word under the playhead, or -1
// before playback begins.
func (s *Session) CurrentWord() int {
	s.mu.Lock()
	clip := s.clip
	s.mu.Unlock()
	if clip == nil {
		return -1
	}
	return wordAt(clip.Timings, s.player.Position())
}

// Position returns the playhead offset and the total clip duration.
func (s *Session) Position() (pos, total time.Duration) {
	s.mu.Lock()
	clip := s.clip
	s.mu.Unlock()
	if clip == nil {
		return 0, 0
	}
	return s.player.Position(), clipEnd(clip)
}

func (s *Session) currentVoice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

func (s *Session) currentRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// reload re-synthesizes the current text with new parameters, keeping the
// playhead on the word that was active.
func (s *Session) reload(ctx context.Context, voice string, rate float64) error {
	s.mu.Lock()
	if s.clip == nil {
		s.mu.Unlock()
		return ErrNoClip
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	wasPlaying := s.status == StatusPlaying
	word := wordAt(s.clip.Timings, s.player.Position())
	text := s.text
	s.mu.Unlock()

	if err := s.player.Stop(); err != nil {
		log.Debug("player stop failed during reload", "error", err)
	}

	s.setStatus(StatusLoading)
	clip, err := s.synth.Synthesize(ctx, text, voice, rate)
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.setStatus(StatusError)
		return err
	}

	s.mu.Lock()
	s.clip = clip
	s.voice = voice
	s.rate = rate
	s.lastWord = -1
	s.mu.Unlock()
	s.setStatus(StatusReady)

	if !wasPlaying {
		return nil
	}
	if err := s.Play(); err != nil {
		return err
	}
	if word > 0 && word < len(clip.Timings) {
		return s.SeekWord(word)
	}
	return nil
}

// watch polls the player to report word changes and detect the natural end
// of the clip.
func (s *Session) watch(stop <-chan struct{}) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			status := s.status
			clip := s.clip
			s.mu.Unlock()

			if clip == nil || status != StatusPlaying {
				if status.Terminal() {
					return
				}
				continue
			}

			pos := s.player.Position()
			if word := wordAt(clip.Timings, pos); word >= 0 {
				s.mu.Lock()
				changed := word != s.lastWord
				s.lastWord = word
				fn := s.onWord
				s.mu.Unlock()
				if changed && fn != nil {
					fn(word)
				}
			}

			if pos >= clipEnd(clip) {
				s.mu.Lock()
				// Stop may have raced this tick; a retired session must
				// not touch the player again.
				if s.status != StatusPlaying || s.stopped {
					s.mu.Unlock()
					continue
				}
				s.watching = false
				s.mu.Unlock()
				if err := s.player.Stop(); err != nil {
					log.Debug("player stop failed at clip end", "error", err)
				}
				s.setStatus(StatusEnded)
				return
			}
		}
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// wordAt returns the index of the last timing whose start is at or before
// pos, or -1 if pos precedes the first word.
func wordAt(timings []WordTiming, pos time.Duration) int {
	lo, hi := 0, len(timings)
	for lo < hi {
		mid := (lo + hi) / 2
		if timings[mid].Start <= pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// clipEnd returns the position at which playback is finished. The player
// clamps its reported position to the PCM duration, so a timing table
// that outruns the audio must not push the end past it; the last word's
// end is used only when the clip carries no audio at all.
func clipEnd(c *Clip) time.Duration {
	if end := c.Duration(); end > 0 {
		return end
	}
	if n := len(c.Timings); n > 0 {
		return c.Timings[n-1].End()
	}
	return 0
}
