// Package content resolves article URLs into speakable text and hosts the
// fire-and-forget seen/flag bookkeeping client.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Errors returned by the content client.
var (
	ErrNoContent   = errors.New("no readable content found")
	ErrFetchFailed = errors.New("content fetch failed")
)

// Fetcher resolves an article URL into markdown or plain article text.
type Fetcher interface {
	Fetch(ctx context.Context, articleURL string) (string, error)
}

// Client fetches article content. When Endpoint is set it asks the
// platform's content backend; otherwise it fetches the page directly and
// extracts the article body itself.
type Client struct {
	// Endpoint is the optional content-backend URL. The backend answers
	// {"success": bool, "content": "..."} for a given article URL.
	Endpoint string

	// HTTP is the client used for all requests.
	HTTP *http.Client
}

// NewClient creates a content client with a sane default HTTP timeout.
func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch resolves the article at articleURL to text. One attempt only; the
// retry policy belongs to the caller.
func (c *Client) Fetch(ctx context.Context, articleURL string) (string, error) {
	if c.Endpoint != "" {
		return c.fetchBackend(ctx, articleURL)
	}
	return c.fetchDirect(ctx, articleURL)
}

type backendResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) fetchBackend(ctx context.Context, articleURL string) (string, error) {
	u := c.Endpoint + "?url=" + url.QueryEscape(articleURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}
	var br backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if !br.Success || br.Content == "" {
		return "", ErrNoContent
	}
	return br.Content, nil
}

func (c *Client) fetchDirect(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "readaloud/1.0")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	text := extractArticle(doc)
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// extractArticle pulls the readable article body out of a parsed page.
// It prefers semantic containers and falls back to every paragraph on the
// page.
func extractArticle(doc *goquery.Document) string {
	doc.Find("script, style, nav, aside, footer, header, form").Remove()

	for _, selector := range []string{"article", "main", "[role=main]"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := paragraphText(sel); text != "" {
				return text
			}
		}
	}
	return paragraphText(doc.Selection)
}

func paragraphText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("h1, h2, h3, p, li").Each(func(_ int, node *goquery.Selection) {
		text := strings.TrimSpace(node.Text())
		if len(text) > 0 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
