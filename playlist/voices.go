package playlist

import (
	"encoding/json"

	"github.com/charmbracelet/log"
)

// KV keys for voice bookkeeping.
const (
	voiceCacheKey = "voice-assignments"
	voiceCycleKey = "voice-cycle-enabled"
)

// DefaultVoices is the narration rotation used when voice cycling is
// enabled. It deliberately includes a child persona; the content filter
// substitutes it on restricted articles.
var DefaultVoices = []string{"emma", "liam", "peanut", "ava", "sofia"}

// DefaultVoice is the explicit voice used when cycling is disabled and
// the adult fallback for child-voice substitution.
const DefaultVoice = "emma"

// cycleVoice picks the rotation voice for a queue position.
func cycleVoice(cycle []string, index int) string {
	if len(cycle) == 0 {
		return DefaultVoice
	}
	return cycle[index%len(cycle)]
}

// VoiceFor returns the voice that narrated (or will narrate) the article,
// for display purposes only.
func (c *Controller) VoiceFor(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.voiceCache[url]
	return v, ok
}

// SetVoice records an explicit voice choice. It is authoritative while
// cycling is disabled and applies to the active session immediately.
func (c *Controller) SetVoice(voice string) {
	c.mu.Lock()
	c.voice = voice
	sess := c.session
	ctx := c.ctx
	c.mu.Unlock()

	if sess != nil && ctx != nil {
		go func() {
			if err := sess.SetVoice(ctx, voice); err != nil {
				log.Debug("voice change deferred to next article", "voice", voice, "error", err)
			}
		}()
	}
}

// CycleEnabled reports whether voice cycling is on.
func (c *Controller) CycleEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycleVoices
}

// SetCycleEnabled toggles voice cycling and persists the choice.
func (c *Controller) SetCycleEnabled(enabled bool) {
	c.mu.Lock()
	c.cycleVoices = enabled
	c.mu.Unlock()

	if c.kv == nil {
		return
	}
	value := "false"
	if enabled {
		value = "true"
	}
	if err := c.kv.Set(voiceCycleKey, value); err != nil {
		log.Debug("voice cycle flag not persisted", "error", err)
	}
}

// loadVoiceState restores the cycle flag and assignment cache from the
// KV. Missing or corrupt values fall back to defaults.
func (c *Controller) loadVoiceState() {
	if c.kv == nil {
		return
	}
	if v, ok := c.kv.Get(voiceCycleKey); ok {
		c.cycleVoices = v == "true"
	}
	if raw, ok := c.kv.Get(voiceCacheKey); ok {
		cache := make(map[string]string)
		if err := json.Unmarshal([]byte(raw), &cache); err == nil {
			c.voiceCache = cache
		}
	}
}

// saveVoiceCache persists the display cache of voice assignments.
func (c *Controller) saveVoiceCache() {
	if c.kv == nil {
		return
	}
	c.mu.Lock()
	raw, err := json.Marshal(c.voiceCache)
	c.mu.Unlock()
	if err != nil {
		return
	}
	if err := c.kv.Set(voiceCacheKey, string(raw)); err != nil {
		log.Debug("voice cache not persisted", "error", err)
	}
}
