// Package synthesis talks to the speech-synthesis backend and caches its
// answers on disk.
package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/coinscope/readaloud/speech"
)

// Errors returned by the synthesis client.
var (
	ErrBackendUnavailable = errors.New("synthesis backend unavailable")
	ErrEmptyAudio         = errors.New("backend returned no audio")
)

// Client implements speech.Synthesizer over the backend's HTTP API.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a synthesis client for the backend at base. Requests
// are rate limited so prefetch warm-ups cannot starve live synthesis.
func NewClient(base string) *Client {
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: 2 * time.Minute},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 4),
	}
}

type synthesizeRequest struct {
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Rate      float64 `json:"rate"`
	ArticleID string  `json:"articleId,omitempty"`
}

type synthesizeResponse struct {
	Audio      string      `json:"audio"` // base64 PCM16 mono
	SampleRate int         `json:"sampleRate"`
	Words      []wordEntry `json:"words"`
}

type wordEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"startOffsetSeconds"`
	Duration float64 `json:"durationSeconds"`
}

// Synthesize requests audio plus word timings for text.
func (c *Client) Synthesize(ctx context.Context, text, voice string, rateVal float64) (*speech.Clip, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.post(ctx, "/synthesize", synthesizeRequest{
		Text:  text,
		Voice: voice,
		Rate:  rateVal,
	})
	if err != nil {
		return nil, err
	}

	var sr synthesizeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decoding synthesis response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(sr.Audio)
	if err != nil {
		return nil, fmt.Errorf("decoding synthesis audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	clip := &speech.Clip{
		Audio:      audio,
		SampleRate: sr.SampleRate,
		Timings:    make([]speech.WordTiming, 0, len(sr.Words)),
	}
	if clip.SampleRate == 0 {
		clip.SampleRate = 44100
	}
	for _, w := range sr.Words {
		clip.Timings = append(clip.Timings, speech.WordTiming{
			Text:     w.Text,
			Start:    time.Duration(w.Start * float64(time.Second)),
			Duration: time.Duration(w.Duration * float64(time.Second)),
		})
	}
	return clip, nil
}

// Prepare asks the backend to synthesize and cache without returning
// audio. It is a pure optimization; callers swallow its errors.
func (c *Client) Prepare(ctx context.Context, articleID, text, voice string, rateVal float64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.post(ctx, "/prepare", synthesizeRequest{
		Text:      text,
		Voice:     voice,
		Rate:      rateVal,
		ArticleID: articleID,
	})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	log.Debug("synthesis call", "path", path, "bytes", buf.Len())
	return buf.Bytes(), nil
}
