package content

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Bookkeeper sends fire-and-forget seen/flag notifications to the
// platform's bookkeeping endpoint. Failures are never retried and never
// surfaced; a nil or endpoint-less Bookkeeper is a no-op.
type Bookkeeper struct {
	Endpoint string
	HTTP     *http.Client
}

// NewBookkeeper creates a bookkeeping client for the given endpoint.
func NewBookkeeper(endpoint string) *Bookkeeper {
	return &Bookkeeper{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

// MarkSeen records that an article was presented to the listener.
func (b *Bookkeeper) MarkSeen(articleURL string) {
	b.post("seen", articleURL)
}

// FlagIssue records that an article failed playback terminally.
func (b *Bookkeeper) FlagIssue(articleURL string) {
	b.post("issue", articleURL)
}

func (b *Bookkeeper) post(event, articleURL string) {
	if b == nil || b.Endpoint == "" {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"event": event,
		"url":   articleURL,
	})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := b.HTTP.Do(req)
		if err != nil {
			log.Debug("bookkeeping call dropped", "event", event, "error", err)
			return
		}
		resp.Body.Close() //nolint:errcheck
	}()
}
