package synthesis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCachedSynthesizeHitsDisk(t *testing.T) {
	mock := NewMock()
	c, err := NewCached(mock, t.TempDir())
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}

	first, err := c.Synthesize(context.Background(), "hello world", "emma", 1.0)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	second, err := c.Synthesize(context.Background(), "hello world", "emma", 1.0)
	if err != nil {
		t.Fatalf("second Synthesize() error = %v", err)
	}

	if got := len(mock.SynthesizeCalls()); got != 1 {
		t.Errorf("backend calls = %d, want 1 (second call served from cache)", got)
	}
	if len(second.Audio) != len(first.Audio) {
		t.Errorf("cached audio length = %d, want %d", len(second.Audio), len(first.Audio))
	}
	if len(second.Timings) != len(first.Timings) {
		t.Errorf("cached timing count = %d, want %d", len(second.Timings), len(first.Timings))
	}
	if second.SampleRate != first.SampleRate {
		t.Errorf("cached sample rate = %d, want %d", second.SampleRate, first.SampleRate)
	}
}

func TestCachedKeySeparatesVoiceAndRate(t *testing.T) {
	mock := NewMock()
	c, err := NewCached(mock, t.TempDir())
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}

	ctx := context.Background()
	c.Synthesize(ctx, "hello", "emma", 1.0)
	c.Synthesize(ctx, "hello", "liam", 1.0)
	c.Synthesize(ctx, "hello", "emma", 1.5)

	if got := len(mock.SynthesizeCalls()); got != 3 {
		t.Errorf("backend calls = %d, want 3 (distinct cache keys)", got)
	}
}

func TestCachedEvictsExpired(t *testing.T) {
	dir := t.TempDir()
	mock := NewMock()
	c, err := NewCached(mock, dir)
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}

	ctx := context.Background()
	if _, err := c.Synthesize(ctx, "hello", "emma", 1.0); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	// Age the metadata past the TTL.
	key := cacheKey("hello", "emma", 1.0)
	metaPath := filepath.Join(dir, key+".json")
	aged := time.Now().Add(-cacheTTL - time.Hour).Format(time.RFC3339Nano)
	if err := os.WriteFile(metaPath, []byte(`{"sampleRate":8000,"timings":[],"savedAt":"`+aged+`"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := c.Synthesize(ctx, "hello", "emma", 1.0); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got := len(mock.SynthesizeCalls()); got != 2 {
		t.Errorf("backend calls = %d, want 2 (expired entry refetched)", got)
	}
}

func TestCachedCorruptAudioFallsThrough(t *testing.T) {
	dir := t.TempDir()
	mock := NewMock()
	c, err := NewCached(mock, dir)
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}

	ctx := context.Background()
	if _, err := c.Synthesize(ctx, "hello", "emma", 1.0); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	key := cacheKey("hello", "emma", 1.0)
	if err := os.WriteFile(filepath.Join(dir, key+".pcm.gz"), []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := c.Synthesize(ctx, "hello", "emma", 1.0); err != nil {
		t.Fatalf("Synthesize() over corrupt cache error = %v", err)
	}
	if got := len(mock.SynthesizeCalls()); got != 2 {
		t.Errorf("backend calls = %d, want 2 (corrupt entry refetched)", got)
	}
}

func TestCachedPrepareWarmsLocalCache(t *testing.T) {
	mock := NewMock()
	c, err := NewCached(mock, t.TempDir())
	if err != nil {
		t.Fatalf("NewCached() error = %v", err)
	}

	ctx := context.Background()
	if err := c.Prepare(ctx, "article-1", "hello world", "emma", 1.0); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if got := len(mock.PrepareCalls()); got != 1 {
		t.Errorf("prepare calls = %d, want 1", got)
	}

	// Playback after a warm-up needs no further backend round trip.
	before := len(mock.SynthesizeCalls())
	if _, err := c.Synthesize(ctx, "hello world", "emma", 1.0); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got := len(mock.SynthesizeCalls()); got != before {
		t.Errorf("backend calls = %d after warm-up, want %d", got, before)
	}

	// A second Prepare for the same key is a no-op.
	if err := c.Prepare(ctx, "article-1", "hello world", "emma", 1.0); err != nil {
		t.Fatalf("second Prepare() error = %v", err)
	}
	if got := len(mock.PrepareCalls()); got != 1 {
		t.Errorf("prepare calls = %d after cached Prepare, want 1", got)
	}
}
