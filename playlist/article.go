// Package playlist drives a queue of articles through one speech session
// at a time: ordering, voice assignment, retries, skips, auto-advance and
// session persistence.
package playlist

import (
	"time"

	"github.com/coinscope/readaloud/internal/store"
)

// Article is one queue entry. The URL is its identity: two entries with
// the same URL are the same article for seek and navigation purposes.
// Entries are immutable once enqueued except that Content may be filled
// in lazily and HasIssue may be set after a terminal playback failure.
type Article struct {
	ID          string
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Summary     string
	Content     string // markdown, cached on first fetch
	HasIssue    bool
}

// saved converts the article to its persisted form, content stripped.
func (a Article) saved() store.SavedArticle {
	return store.SavedArticle{
		ID:          a.ID,
		Title:       a.Title,
		URL:         a.URL,
		Source:      a.Source,
		PublishedAt: a.PublishedAt,
		Summary:     a.Summary,
		HasIssue:    a.HasIssue,
	}
}

// FromSaved rebuilds queue entries from a persisted snapshot.
func FromSaved(saved []store.SavedArticle) []Article {
	articles := make([]Article, 0, len(saved))
	for _, s := range saved {
		articles = append(articles, Article{
			ID:          s.ID,
			Title:       s.Title,
			URL:         s.URL,
			Source:      s.Source,
			PublishedAt: s.PublishedAt,
			Summary:     s.Summary,
			HasIssue:    s.HasIssue,
		})
	}
	return articles
}
