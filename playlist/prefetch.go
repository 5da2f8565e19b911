package playlist

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/coinscope/readaloud/filter"
	"github.com/coinscope/readaloud/internal/content"
)

// Preparer is the cache-warming half of the synthesis backend.
type Preparer interface {
	Prepare(ctx context.Context, articleID, text, voice string, rate float64) error
}

// Prefetcher warms the next article while the current one plays: fetch
// its content if missing, hand the resolved text to the synthesis
// backend's prepare endpoint. It writes only to a side cache, never to
// playback state, and every failure is swallowed; prefetching is purely
// an optimization.
type Prefetcher struct {
	fetcher ContentFetcher
	prep    Preparer
	voices  []string // cycle for child-voice substitution

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
}

// NewPrefetcher creates a prefetcher over the given backends.
func NewPrefetcher(fetcher ContentFetcher, prep Preparer) *Prefetcher {
	return &Prefetcher{fetcher: fetcher, prep: prep, voices: DefaultVoices}
}

// Schedule arms a prefetch of next after the settle delay, replacing any
// pending or in-flight prefetch. setContent receives fetched content so
// the queue item can be reused when playback reaches it.
func (p *Prefetcher) Schedule(settle time.Duration, next Article, voice string, rate float64, setContent func(string)) {
	if p == nil {
		return
	}
	if next.URL == "" {
		return
	}
	p.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.timer = time.AfterFunc(settle, func() {
		p.run(ctx, next, voice, rate, setContent)
	})
	p.mu.Unlock()
}

// Cancel aborts any pending timer and any in-flight request. Switching
// articles, pausing, or stopping must call this so stale work cannot
// pollute the cache.
func (p *Prefetcher) Cancel() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Prefetcher) run(ctx context.Context, next Article, voice string, rate float64, setContent func(string)) {
	text := next.Content
	if text == "" && p.fetcher != nil {
		fetched, err := p.fetcher.Fetch(ctx, next.URL)
		if err != nil {
			log.Debug("prefetch fetch dropped", "url", next.URL, "error", err)
			return
		}
		text = fetched
		if setContent != nil {
			setContent(fetched)
		}
	}
	if text == "" {
		text = next.Summary
	}

	speak := content.ToSpeakable(text)
	if speak == "" || p.prep == nil {
		return
	}

	// Warm the voice playback will actually use: a child persona over
	// restricted content gets substituted at load time too.
	voice = filter.SafeVoice(voice, speak, p.voices, DefaultVoice)

	id := next.ID
	if id == "" {
		id = next.URL
	}
	if err := p.prep.Prepare(ctx, id, speak, voice, rate); err != nil {
		log.Debug("prefetch prepare dropped", "url", next.URL, "error", err)
	}
}
