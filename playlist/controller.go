package playlist

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/coinscope/readaloud/align"
	"github.com/coinscope/readaloud/filter"
	"github.com/coinscope/readaloud/internal/content"
	"github.com/coinscope/readaloud/internal/store"
	"github.com/coinscope/readaloud/speech"
)

// SourceName is this engine's identity with the mutual-exclusion
// coordinator.
const SourceName = "article-listening"

// ContentFetcher resolves an article URL into markdown or plain text.
type ContentFetcher interface {
	Fetch(ctx context.Context, articleURL string) (string, error)
}

// Bookkeeper receives fire-and-forget seen/issue notifications.
type Bookkeeper interface {
	MarkSeen(articleURL string)
	FlagIssue(articleURL string)
}

// Guard is the platform-survivability port (wake signal + silent bed).
type Guard interface {
	Update(active, audible bool)
}

// SessionFactory creates a fresh speech session; the controller never
// reuses one across articles.
type SessionFactory func() *speech.Session

// Config holds the controller's tunables. The delays exist so tests can
// collapse them; production uses the defaults.
type Config struct {
	Voices         []string      // cycling rotation
	Voice          string        // explicit voice while cycling is off
	Rate           float64       // speech rate multiplier
	RetryDelay     time.Duration // backoff before the single synthesis retry
	SkipDelay      time.Duration // delay before a force-skip
	AdvanceGrace   time.Duration // grace before auto-advance fires
	ContentRetry   time.Duration // backoff before the single content re-fetch
	PrefetchSettle time.Duration // settle before prefetching the next article
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Voices:         DefaultVoices,
		Voice:          DefaultVoice,
		Rate:           1.0,
		RetryDelay:     2 * time.Second,
		SkipDelay:      750 * time.Millisecond,
		AdvanceGrace:   500 * time.Millisecond,
		ContentRetry:   1500 * time.Millisecond,
		PrefetchSettle: 3 * time.Second,
	}
}

// Controller owns the article queue and drives one speech session at a
// time through it. All mutable playlist state lives behind one mutex;
// scheduled transitions live in named timer slots and every asynchronous
// completion carries the generation it belongs to, so work outlived by a
// navigation simply drops out.
type Controller struct {
	cfg        Config
	newSession SessionFactory
	fetcher    ContentFetcher
	book       Bookkeeper
	sessions   *store.SessionStore
	kv         store.KV
	guard      Guard
	excl       *Exclusive
	prefetch   *Prefetcher
	timers     *timerSet

	mu          sync.Mutex
	machine     *StateMachine
	articles    []Article
	index       int
	continuous  bool
	cycleVoices bool
	playing     bool // session-level flag, distinct from speech status
	voice       string
	session     *speech.Session
	alignMap    *align.Map
	speakText   string
	voiceCache  map[string]string
	errCount    map[string]int
	errGen      int // last generation handleSpeechError acted on
	generation  int
	ctx         context.Context
	cancelGen   context.CancelFunc
	onChange    func()
}

// Options carries the controller's collaborators. Nil fields disable the
// corresponding feature rather than failing.
type Options struct {
	Config    Config
	Sessions  SessionFactory
	Fetcher   ContentFetcher
	Book      Bookkeeper
	Store     *store.SessionStore
	KV        store.KV
	Guard     Guard
	Exclusive *Exclusive
	Prefetch  *Prefetcher
}

// NewController wires a controller from its collaborators and registers
// it with the mutual-exclusion coordinator.
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if len(cfg.Voices) == 0 {
		cfg.Voices = DefaultVoices
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Rate == 0 {
		cfg.Rate = 1.0
	}

	c := &Controller{
		cfg:        cfg,
		newSession: opts.Sessions,
		fetcher:    opts.Fetcher,
		book:       opts.Book,
		sessions:   opts.Store,
		kv:         opts.KV,
		guard:      opts.Guard,
		excl:       opts.Exclusive,
		prefetch:   opts.Prefetch,
		timers:     newTimerSet(),
		machine:    NewStateMachine(),
		voice:      cfg.Voice,
		voiceCache: make(map[string]string),
		errCount:   make(map[string]int),
	}
	c.loadVoiceState()

	if c.prefetch != nil {
		c.prefetch.voices = cfg.Voices
	}

	c.machine.OnEnter(StateIdle, func(from State) {
		log.Debug("playlist idle", "from", from)
	})

	if c.excl != nil {
		c.excl.Register(SourceName, func() { c.Stop() })
	}
	return c
}

// OnChange registers a callback fired after observable state changes,
// for rendering consumers.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// StartPlaylist replaces the queue atomically and begins playback at
// startIndex, which is clamped into range. Any running session and any
// other registered media source are stopped first.
func (c *Controller) StartPlaylist(articles []Article, startIndex int, continuous bool) error {
	if len(articles) == 0 {
		return ErrNoArticles
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(articles) {
		startIndex = len(articles) - 1
	}

	if c.excl != nil {
		c.excl.StopOthers(SourceName)
	}

	c.mu.Lock()
	c.articles = append([]Article(nil), articles...)
	c.continuous = continuous
	c.playing = true
	gen, ctx := c.beginLoadLocked(startIndex)
	c.mu.Unlock()

	c.persist()
	c.notifyChange()
	go c.load(ctx, gen, startIndex)
	return nil
}

// Enqueue appends articles to the queue without touching playback.
// Entries whose URL is already queued are dropped, so re-reading a
// watched playlist file is idempotent.
func (c *Controller) Enqueue(articles ...Article) int {
	c.mu.Lock()
	seen := make(map[string]bool, len(c.articles))
	for _, a := range c.articles {
		seen[a.URL] = true
	}
	added := 0
	for _, a := range articles {
		if a.URL != "" && seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		c.articles = append(c.articles, a)
		added++
	}
	playing := c.playing
	c.mu.Unlock()

	if added > 0 {
		if playing {
			c.persist()
		}
		c.notifyChange()
		log.Debug("articles enqueued", "added", added)
	}
	return added
}

// Resume restarts playback from a persisted snapshot the user accepted.
func (c *Controller) Resume(snap store.Snapshot) error {
	return c.StartPlaylist(FromSaved(snap.Articles), snap.Index, snap.Continuous)
}

// PlayArticle jumps to the article at index. Out-of-range indices are a
// no-op: manual jumps and programmatic skips share this entry point and
// neither wants an error surfaced.
func (c *Controller) PlayArticle(index int) {
	c.mu.Lock()
	if index < 0 || index >= len(c.articles) {
		c.mu.Unlock()
		return
	}
	c.playing = true
	gen, ctx := c.beginLoadLocked(index)
	c.mu.Unlock()

	if c.excl != nil {
		c.excl.StopOthers(SourceName)
	}
	c.persist()
	c.notifyChange()
	go c.load(ctx, gen, index)
}

// Next applies the continuous-play policy: advance and play when
// continuous, otherwise stop audio while keeping the queue addressable.
// Terminal-error skips bypass this through forceAdvance.
func (c *Controller) Next() {
	c.mu.Lock()
	if len(c.articles) == 0 {
		c.mu.Unlock()
		return
	}
	continuous := c.continuous
	last := c.index >= len(c.articles)-1
	c.mu.Unlock()

	switch {
	case continuous && last:
		c.finish(true)
	case continuous:
		c.PlayArticle(c.Index() + 1)
	default:
		c.finish(false)
	}
}

// Previous jumps to the preceding article; at index 0 it is a no-op.
func (c *Controller) Previous() {
	c.mu.Lock()
	index := c.index
	c.mu.Unlock()
	if index <= 0 {
		return
	}
	c.PlayArticle(index - 1)
}

// Stop cancels the session, clears displayed content and the persisted
// record, and leaves the queue position for inspection.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.playing = false
	c.retireLocked()
	c.speakText = ""
	c.machine.Transition(StateIdle)
	c.mu.Unlock()

	if c.sessions != nil {
		c.sessions.Clear()
	}
	if c.guard != nil {
		c.guard.Update(false, false)
	}
	c.notifyChange()
}

// TogglePause pauses a playing session or resumes a paused one.
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrNoActiveSession
	}

	switch sess.Status() {
	case speech.StatusPlaying:
		if err := sess.Pause(); err != nil {
			return err
		}
		c.mu.Lock()
		c.machine.Transition(StatePaused)
		c.mu.Unlock()
		if c.prefetch != nil {
			c.prefetch.Cancel()
		}
		if c.guard != nil {
			c.guard.Update(true, false)
		}
	case speech.StatusPaused:
		if err := sess.Resume(); err != nil {
			return err
		}
		c.mu.Lock()
		c.machine.Transition(StatePlaying)
		index := c.index
		c.mu.Unlock()
		if c.guard != nil {
			c.guard.Update(true, true)
		}
		c.schedulePrefetch(index)
	default:
		return ErrNoActiveSession
	}

	c.persist()
	c.notifyChange()
	return nil
}

// SetContinuous toggles continuous play.
func (c *Controller) SetContinuous(enabled bool) {
	c.mu.Lock()
	c.continuous = enabled
	c.mu.Unlock()
	c.persist()
	c.notifyChange()
}

// beginLoadLocked supersedes whatever the controller was doing and aims
// it at index. Callers hold the mutex. The returned generation guards
// every asynchronous completion spawned for this load.
func (c *Controller) beginLoadLocked(index int) (int, context.Context) {
	c.retireLocked()
	c.index = index
	c.generation++
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx = ctx
	c.cancelGen = cancel
	c.machine.Transition(StateLoading)
	// The playlist is active but no speech is sounding yet; the guard
	// bridges the gap with its silent bed.
	if c.guard != nil {
		c.guard.Update(true, false)
	}
	return c.generation, ctx
}

// retireLocked cancels timers, in-flight work, prefetching and the
// current session. Callers hold the mutex.
func (c *Controller) retireLocked() {
	c.timers.cancelAll()
	if c.cancelGen != nil {
		c.cancelGen()
		c.cancelGen = nil
	}
	if c.prefetch != nil {
		c.prefetch.Cancel()
	}
	// The outgoing session must be fully stopped before the next one may
	// touch the player: production shares one audio device across
	// sessions, and a stale Stop landing after the next Play would kill
	// its audio. Stop's status callback dispatches on a fresh goroutine,
	// so no lock cycle forms.
	if old := c.session; old != nil {
		c.session = nil
		old.Stop()
	}
	c.alignMap = nil
	c.generation++ // orphan any completion still in flight
}

// load resolves the article at index and hands it to a fresh session.
// It runs outside the lock; every step re-checks its generation.
func (c *Controller) load(ctx context.Context, gen int, index int) {
	c.mu.Lock()
	if gen != c.generation || index >= len(c.articles) {
		c.mu.Unlock()
		return
	}
	article := c.articles[index]
	cycling := c.cycleVoices
	explicit := c.voice
	c.mu.Unlock()

	// A previously flagged article is skipped outright, after a short
	// delay so rapid navigation stays legible.
	if article.HasIssue {
		c.mu.Lock()
		if gen == c.generation {
			c.machine.Transition(StateSkipping)
			c.timers.schedule(timerSkip, c.cfg.SkipDelay, func() {
				c.forceAdvance(gen, index)
			})
		}
		c.mu.Unlock()
		c.notifyChange()
		return
	}

	voice := explicit
	if cycling {
		voice = cycleVoice(c.cfg.Voices, index)
	}

	text := article.Content
	if text == "" {
		fetched, err := c.fetchWithRetry(ctx, article.URL)
		if err == nil {
			text = fetched
			c.mu.Lock()
			if gen == c.generation && index < len(c.articles) {
				c.articles[index].Content = fetched
			}
			c.mu.Unlock()
		} else if ctx.Err() != nil {
			return // superseded, not a content failure
		}
	}
	if text == "" {
		text = article.Summary
	}

	speak := content.ToSpeakable(text)
	if speak == "" {
		c.flagContentMissing(gen, index, article.URL)
		return
	}

	// A child persona must never narrate restricted content.
	voice = filter.SafeVoice(voice, speak, c.cfg.Voices, DefaultVoice)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.voiceCache[article.URL] = voice
	c.mu.Unlock()
	c.saveVoiceCache()
	if c.book != nil {
		c.book.MarkSeen(article.URL)
	}

	sess := c.newSession()
	sess.OnStatus(func(st speech.Status) {
		go c.handleStatus(gen, index, st)
	})
	sess.OnWord(func(int) {
		c.notifyChange()
	})

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		go sess.Stop()
		return
	}
	c.session = sess
	c.speakText = speak
	c.mu.Unlock()
	c.notifyChange()

	if err := sess.Load(ctx, speak, voice, c.cfg.Rate); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Debug("synthesis failed", "url", article.URL, "error", err)
		c.handleSpeechError(gen, index)
		return
	}

	amap := align.Align(sess.Timings(), speak)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		go sess.Stop()
		return
	}
	c.alignMap = amap
	c.mu.Unlock()

	if err := sess.Play(); err != nil {
		c.handleSpeechError(gen, index)
		return
	}

	c.mu.Lock()
	if gen == c.generation {
		c.machine.Transition(StatePlaying)
		delete(c.errCount, article.URL) // the retry, if any, succeeded
	}
	c.mu.Unlock()

	if c.guard != nil {
		c.guard.Update(true, true)
	}
	c.persist()
	c.schedulePrefetch(index)
	c.notifyChange()
}

// fetchWithRetry asks the content backend once, and once more after a
// fixed backoff if the first attempt fails.
func (c *Controller) fetchWithRetry(ctx context.Context, articleURL string) (string, error) {
	if c.fetcher == nil {
		return "", ErrContentMissing
	}
	text, err := c.fetcher.Fetch(ctx, articleURL)
	if err == nil {
		return text, nil
	}
	log.Debug("content fetch failed, retrying once", "url", articleURL, "error", err)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.cfg.ContentRetry):
	}
	return c.fetcher.Fetch(ctx, articleURL)
}

// flagContentMissing marks an article unreadable, reports it, and
// advances past it regardless of the continuous-play setting.
func (c *Controller) flagContentMissing(gen, index int, articleURL string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	if index < len(c.articles) {
		c.articles[index].HasIssue = true
	}
	c.machine.Transition(StateSkipping)
	c.timers.schedule(timerSkip, c.cfg.SkipDelay, func() {
		c.forceAdvance(gen, index)
	})
	c.mu.Unlock()

	if c.book != nil {
		c.book.FlagIssue(articleURL)
	}
	c.persist()
	c.notifyChange()
}

// handleStatus reacts to session transitions belonging to generation gen.
func (c *Controller) handleStatus(gen, index int, st speech.Status) {
	c.mu.Lock()
	current := gen == c.generation
	c.mu.Unlock()
	if !current {
		return
	}

	switch st {
	case speech.StatusError:
		c.handleSpeechError(gen, index)
	case speech.StatusEnded:
		c.maybeAutoAdvance(gen)
	}
	c.notifyChange()
}

// handleSpeechError implements retry-then-skip: the first synthesis
// failure for an article schedules exactly one retry of the same index;
// the second flags the article and force-skips so the queue never stalls
// on one bad entry.
func (c *Controller) handleSpeechError(gen, index int) {
	c.mu.Lock()
	if gen != c.generation || index >= len(c.articles) {
		c.mu.Unlock()
		return
	}
	// The load path and the session's status callback both report the
	// same failure; only the first report for a generation counts.
	if c.errGen == gen {
		c.mu.Unlock()
		return
	}
	c.errGen = gen
	url := c.articles[index].URL
	c.errCount[url]++
	failures := c.errCount[url]

	if failures == 1 {
		c.machine.Transition(StateRetrying)
		c.timers.schedule(timerRetry, c.cfg.RetryDelay, func() {
			c.retry(gen, index)
		})
		c.mu.Unlock()
		log.Debug("speech error, retrying article", "url", url)
		if c.guard != nil {
			c.guard.Update(true, false)
		}
		c.persist()
		c.notifyChange()
		return
	}

	c.articles[index].HasIssue = true
	c.machine.Transition(StateSkipping)
	c.timers.schedule(timerSkip, c.cfg.SkipDelay, func() {
		c.forceAdvance(gen, index)
	})
	c.mu.Unlock()

	log.Debug("speech error repeated, flagging article", "url", url)
	if c.guard != nil {
		c.guard.Update(true, false)
	}
	if c.book != nil {
		c.book.FlagIssue(url)
	}
	c.persist()
	c.notifyChange()
}

// retry restarts the same article after the backoff.
func (c *Controller) retry(gen, index int) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	nextGen, ctx := c.beginLoadLocked(index)
	c.mu.Unlock()
	c.notifyChange()
	c.load(ctx, nextGen, index)
}

// maybeAutoAdvance decides whether a terminal session state means "the
// article finished". All gate conditions must hold: the controller
// believes it is playing, audio actually began at least once, at least
// one word timing was obtained, and the session has settled. The advance
// itself waits out a short grace period so mid-transition states never
// trigger it.
func (c *Controller) maybeAutoAdvance(gen int) {
	c.mu.Lock()
	sess := c.session
	playing := c.playing
	if gen != c.generation || sess == nil || !playing {
		c.mu.Unlock()
		return
	}
	if !sess.Started() || sess.TimingCount() == 0 || !sess.Status().Settled() {
		c.mu.Unlock()
		return
	}
	c.machine.Transition(StateAdvancing)
	c.timers.schedule(timerAdvance, c.cfg.AdvanceGrace, func() {
		c.mu.Lock()
		stale := gen != c.generation
		c.mu.Unlock()
		if !stale {
			c.Next()
		}
	})
	c.mu.Unlock()
	// Speech finished; the bed covers the grace period.
	if c.guard != nil {
		c.guard.Update(true, false)
	}
	c.notifyChange()
}

// forceAdvance moves past index unconditionally. This is the
// terminal-error path, which ignores the continuous-play gate.
func (c *Controller) forceAdvance(gen, index int) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	last := index >= len(c.articles)-1
	c.mu.Unlock()

	if last {
		c.finish(true)
		return
	}
	c.PlayArticle(index + 1)
}

// finish drains playback to Idle. When the queue ended naturally the
// persisted record is cleared; a plain audio stop keeps it so a reload
// within the horizon can still offer resumption.
func (c *Controller) finish(queueEnded bool) {
	c.mu.Lock()
	c.playing = false
	c.retireLocked()
	c.machine.Transition(StateIdle)
	c.mu.Unlock()

	if queueEnded && c.sessions != nil {
		c.sessions.Clear()
	}
	if c.guard != nil {
		c.guard.Update(false, false)
	}
	c.notifyChange()
}

// schedulePrefetch warms the article after index while it plays.
func (c *Controller) schedulePrefetch(index int) {
	if c.prefetch == nil {
		return
	}
	c.mu.Lock()
	if !c.playing || index+1 >= len(c.articles) {
		c.mu.Unlock()
		return
	}
	next := c.articles[index+1]
	voice := c.voice
	if c.cycleVoices {
		voice = cycleVoice(c.cfg.Voices, index+1)
	}
	gen := c.generation
	c.mu.Unlock()

	c.prefetch.Schedule(c.cfg.PrefetchSettle, next, voice, c.cfg.Rate, func(fetched string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation {
			return
		}
		for i := range c.articles {
			if c.articles[i].URL == next.URL && c.articles[i].Content == "" {
				c.articles[i].Content = fetched
			}
		}
	})
}

// persist mirrors the playlist state into the session store. Only a
// playing controller writes; stopped state is represented by absence.
func (c *Controller) persist() {
	if c.sessions == nil {
		return
	}
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	snap := store.Snapshot{
		Articles:   make([]store.SavedArticle, 0, len(c.articles)),
		Index:      c.index,
		Continuous: c.continuous,
	}
	for _, a := range c.articles {
		snap.Articles = append(snap.Articles, a.saved())
	}
	c.mu.Unlock()
	c.sessions.Save(snap)
}

func (c *Controller) notifyChange() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
