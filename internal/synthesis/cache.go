package synthesis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/coinscope/readaloud/speech"
)

// cacheTTL is how long a cached clip stays valid on disk.
const cacheTTL = 7 * 24 * time.Hour

// Cached wraps a Synthesizer with an on-disk clip cache keyed on
// (text, voice, rate). Cache failures fall through to the backend.
type Cached struct {
	inner speech.Synthesizer
	dir   string
}

// clipMeta sits alongside the compressed audio payload.
type clipMeta struct {
	SampleRate int                 `json:"sampleRate"`
	Timings    []speech.WordTiming `json:"timings"`
	SavedAt    time.Time           `json:"savedAt"`
}

// NewCached creates a caching synthesizer rooted at dir.
func NewCached(inner speech.Synthesizer, dir string) (*Cached, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cached{inner: inner, dir: dir}, nil
}

// Synthesize returns a cached clip when one is fresh, otherwise asks the
// backend and stores the answer.
func (c *Cached) Synthesize(ctx context.Context, text, voice string, rate float64) (*speech.Clip, error) {
	key := cacheKey(text, voice, rate)
	if clip, ok := c.load(key); ok {
		log.Debug("synthesis cache hit", "voice", voice, "key", key[:12])
		return clip, nil
	}

	clip, err := c.inner.Synthesize(ctx, text, voice, rate)
	if err != nil {
		return nil, err
	}
	c.save(key, clip)
	return clip, nil
}

// Prepare warms the local cache as well as the backend's.
func (c *Cached) Prepare(ctx context.Context, articleID, text, voice string, rate float64) error {
	key := cacheKey(text, voice, rate)
	if _, ok := c.load(key); ok {
		return nil
	}
	if err := c.inner.Prepare(ctx, articleID, text, voice, rate); err != nil {
		return err
	}
	// Pull the prepared audio into the local cache so playback needs no
	// further round trip.
	clip, err := c.inner.Synthesize(ctx, text, voice, rate)
	if err != nil {
		return err
	}
	c.save(key, clip)
	return nil
}

func cacheKey(text, voice string, rate float64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.3f", text, voice, rate)))
	return hex.EncodeToString(h[:])
}

func (c *Cached) audioPath(key string) string {
	return filepath.Join(c.dir, key+".pcm.gz")
}

func (c *Cached) metaPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cached) load(key string) (*speech.Clip, bool) {
	rawMeta, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return nil, false
	}
	var meta clipMeta
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		c.evict(key)
		return nil, false
	}
	if time.Since(meta.SavedAt) > cacheTTL {
		c.evict(key)
		return nil, false
	}

	raw, err := os.ReadFile(c.audioPath(key))
	if err != nil {
		c.evict(key)
		return nil, false
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		c.evict(key)
		return nil, false
	}
	defer zr.Close() //nolint:errcheck
	audio, err := io.ReadAll(zr)
	if err != nil || len(audio) == 0 {
		c.evict(key)
		return nil, false
	}

	return &speech.Clip{
		Audio:      audio,
		SampleRate: meta.SampleRate,
		Timings:    meta.Timings,
	}, true
}

func (c *Cached) save(key string, clip *speech.Clip) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(clip.Audio); err != nil {
		log.Debug("clip cache write skipped", "error", err)
		return
	}
	if err := zw.Close(); err != nil {
		log.Debug("clip cache write skipped", "error", err)
		return
	}
	if err := os.WriteFile(c.audioPath(key), buf.Bytes(), 0o644); err != nil {
		log.Debug("clip cache write skipped", "error", err)
		return
	}

	meta := clipMeta{
		SampleRate: clip.SampleRate,
		Timings:    clip.Timings,
		SavedAt:    time.Now(),
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		c.evict(key)
		return
	}
	if err := os.WriteFile(c.metaPath(key), rawMeta, 0o644); err != nil {
		c.evict(key)
	}
}

func (c *Cached) evict(key string) {
	os.Remove(c.audioPath(key)) //nolint:errcheck
	os.Remove(c.metaPath(key))  //nolint:errcheck
}
