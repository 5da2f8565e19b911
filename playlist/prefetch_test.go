package playlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu      sync.Mutex
	content map[string]string
	err     error
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, articleURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, articleURL)
	if f.err != nil {
		return "", f.err
	}
	return f.content[articleURL], nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePreparer struct {
	mu    sync.Mutex
	calls []prepareCall
}

type prepareCall struct {
	id    string
	text  string
	voice string
	rate  float64
}

func (p *fakePreparer) Prepare(ctx context.Context, articleID, text, voice string, rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, prepareCall{id: articleID, text: text, voice: voice, rate: rate})
	return nil
}

func (p *fakePreparer) prepared() []prepareCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]prepareCall, len(p.calls))
	copy(out, p.calls)
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPrefetcherWarmsNextArticle(t *testing.T) {
	fetcher := &fakeFetcher{content: map[string]string{
		"https://example.com/next": "Deep **dive** into stablecoins.",
	}}
	prep := &fakePreparer{}
	p := NewPrefetcher(fetcher, prep)

	var mu sync.Mutex
	var cached string
	p.Schedule(5*time.Millisecond, Article{URL: "https://example.com/next"}, "liam", 1.25, func(fetched string) {
		mu.Lock()
		cached = fetched
		mu.Unlock()
	})

	waitUntil(t, 2*time.Second, func() bool { return len(prep.prepared()) == 1 }, "prepare never ran")

	call := prep.prepared()[0]
	if call.id != "https://example.com/next" {
		t.Errorf("prepare id = %q, want the URL fallback", call.id)
	}
	if call.text != "Deep dive into stablecoins." {
		t.Errorf("prepare text = %q, want speakable text", call.text)
	}
	if call.voice != "liam" || call.rate != 1.25 {
		t.Errorf("prepare voice/rate = %q/%v, want liam/1.25", call.voice, call.rate)
	}
	mu.Lock()
	defer mu.Unlock()
	if cached != "Deep **dive** into stablecoins." {
		t.Errorf("setContent got %q, want raw fetched markdown", cached)
	}
}

func TestPrefetcherSkipsFetchWhenContentPresent(t *testing.T) {
	fetcher := &fakeFetcher{}
	prep := &fakePreparer{}
	p := NewPrefetcher(fetcher, prep)

	next := Article{URL: "https://example.com/a", ID: "a-1", Content: "Already here."}
	p.Schedule(5*time.Millisecond, next, "emma", 1.0, nil)

	waitUntil(t, 2*time.Second, func() bool { return len(prep.prepared()) == 1 }, "prepare never ran")

	if fetcher.fetchCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.fetchCount())
	}
	if got := prep.prepared()[0].id; got != "a-1" {
		t.Errorf("prepare id = %q, want the article ID", got)
	}
}

func TestPrefetcherCancel(t *testing.T) {
	fetcher := &fakeFetcher{content: map[string]string{"https://example.com/a": "text"}}
	prep := &fakePreparer{}
	p := NewPrefetcher(fetcher, prep)

	p.Schedule(20*time.Millisecond, Article{URL: "https://example.com/a"}, "emma", 1.0, nil)
	p.Cancel()

	time.Sleep(100 * time.Millisecond)
	if fetcher.fetchCount() != 0 || len(prep.prepared()) != 0 {
		t.Error("canceled prefetch still ran")
	}
}

func TestPrefetcherScheduleReplaces(t *testing.T) {
	fetcher := &fakeFetcher{content: map[string]string{
		"https://example.com/a": "alpha text",
		"https://example.com/b": "beta text",
	}}
	prep := &fakePreparer{}
	p := NewPrefetcher(fetcher, prep)

	p.Schedule(20*time.Millisecond, Article{URL: "https://example.com/a"}, "emma", 1.0, nil)
	p.Schedule(5*time.Millisecond, Article{URL: "https://example.com/b"}, "emma", 1.0, nil)

	waitUntil(t, 2*time.Second, func() bool { return len(prep.prepared()) >= 1 }, "prepare never ran")
	time.Sleep(100 * time.Millisecond)

	calls := prep.prepared()
	if len(calls) != 1 {
		t.Fatalf("prepare calls = %d, want 1", len(calls))
	}
	if calls[0].text != "beta text" {
		t.Errorf("prepare text = %q, want replacement article", calls[0].text)
	}
}

func TestPrefetcherFetchFailureSwallowed(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("backend down")}
	prep := &fakePreparer{}
	p := NewPrefetcher(fetcher, prep)

	p.Schedule(5*time.Millisecond, Article{URL: "https://example.com/a"}, "emma", 1.0, nil)

	waitUntil(t, 2*time.Second, func() bool { return fetcher.fetchCount() == 1 }, "fetch never ran")
	time.Sleep(50 * time.Millisecond)
	if len(prep.prepared()) != 0 {
		t.Error("prepare ran despite fetch failure")
	}
}

func TestPrefetcherNoURL(t *testing.T) {
	prep := &fakePreparer{}
	p := NewPrefetcher(&fakeFetcher{}, prep)
	p.Schedule(time.Millisecond, Article{}, "emma", 1.0, nil)
	time.Sleep(50 * time.Millisecond)
	if len(prep.prepared()) != 0 {
		t.Error("prefetch ran for an article without a URL")
	}
	var nilP *Prefetcher
	nilP.Schedule(time.Millisecond, Article{URL: "x"}, "emma", 1.0, nil)
	nilP.Cancel()
}

func TestPrefetcherSubstitutesChildVoice(t *testing.T) {
	prep := &fakePreparer{}
	p := NewPrefetcher(nil, prep)

	restricted := Article{
		URL:     "https://example.com/grim",
		Content: "Reports describe the massacre in detail.",
	}
	p.Schedule(5*time.Millisecond, restricted, "peanut", 1.0, nil)

	waitUntil(t, 2*time.Second, func() bool { return len(prep.prepared()) == 1 }, "prepare never ran")

	// The warm must hit the cache entry playback will use, which is the
	// substituted voice, not the child persona.
	if got := prep.prepared()[0].voice; got != "emma" {
		t.Errorf("prepare voice = %q, want %q", got, "emma")
	}
}

func TestPrefetcherKeepsChildVoiceForCleanContent(t *testing.T) {
	prep := &fakePreparer{}
	p := NewPrefetcher(nil, prep)

	p.Schedule(5*time.Millisecond, Article{
		URL:     "https://example.com/sunny",
		Content: "Markets rose gently this morning.",
	}, "peanut", 1.0, nil)

	waitUntil(t, 2*time.Second, func() bool { return len(prep.prepared()) == 1 }, "prepare never ran")

	if got := prep.prepared()[0].voice; got != "peanut" {
		t.Errorf("prepare voice = %q, want %q", got, "peanut")
	}
}
