package store

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
)

// SessionKey is the KV key holding the persisted listening session.
const SessionKey = "listening-session"

// StaleHorizon is the age past which a persisted session is discarded
// instead of being offered for resumption.
const StaleHorizon = 10 * time.Minute

// SavedArticle is one queue entry inside a snapshot. Content is stripped
// before saving to keep the record small; it is re-fetched on resume.
type SavedArticle struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	HasIssue    bool      `json:"hasIssue,omitempty"`
}

// Snapshot is the serializable mirror of the playlist state, overwritten
// on every transition while playing.
type Snapshot struct {
	Articles   []SavedArticle `json:"articles"`
	Index      int            `json:"currentIndex"`
	Continuous bool           `json:"continuousPlay"`
	SavedAt    time.Time      `json:"savedAt"`
}

// SessionStore persists the listening session through a KV.
type SessionStore struct {
	kv      KV
	horizon time.Duration
	now     func() time.Time
}

// NewSessionStore creates a session store over kv with the default
// staleness horizon.
func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv, horizon: StaleHorizon, now: time.Now}
}

// Save overwrites the persisted session record. Persistence errors are
// logged and swallowed; the feature degrades to non-persistent.
func (s *SessionStore) Save(snap Snapshot) {
	snap.SavedAt = s.now()
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Debug("session snapshot marshal failed", "error", err)
		return
	}
	if err := s.kv.Set(SessionKey, string(raw)); err != nil {
		log.Debug("session snapshot write failed", "error", err)
	}
}

// Clear removes the persisted session record.
func (s *SessionStore) Clear() {
	if err := s.kv.Delete(SessionKey); err != nil {
		log.Debug("session snapshot delete failed", "error", err)
	}
}

// Take reads the persisted session and deletes it immediately, so a crash
// loop never replays the same broken resume. It returns the snapshot only
// if it is fresh and carries a non-empty queue; the caller must still ask
// the user before resuming.
func (s *SessionStore) Take() (Snapshot, bool) {
	raw, ok := s.kv.Get(SessionKey)
	if !ok {
		return Snapshot{}, false
	}
	s.Clear()

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Debug("discarding corrupt session snapshot", "error", err)
		return Snapshot{}, false
	}
	if len(snap.Articles) == 0 {
		return Snapshot{}, false
	}
	if snap.Index < 0 || snap.Index >= len(snap.Articles) {
		snap.Index = 0
	}
	if s.now().Sub(snap.SavedAt) > s.horizon {
		log.Debug("discarding stale session snapshot", "savedAt", snap.SavedAt)
		return Snapshot{}, false
	}
	return snap, true
}
