package playlist

import (
	"testing"

	"github.com/coinscope/readaloud/internal/store"
)

func TestCycleVoice(t *testing.T) {
	cycle := []string{"emma", "liam", "peanut"}
	tests := []struct {
		index int
		want  string
	}{
		{0, "emma"},
		{1, "liam"},
		{2, "peanut"},
		{3, "emma"},
		{7, "liam"},
	}
	for _, tt := range tests {
		if got := cycleVoice(cycle, tt.index); got != tt.want {
			t.Errorf("cycleVoice(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}

	if got := cycleVoice(nil, 2); got != DefaultVoice {
		t.Errorf("cycleVoice(nil, 2) = %q, want default %q", got, DefaultVoice)
	}
}

func TestCycleFlagPersists(t *testing.T) {
	kv := store.NewMemKV()

	c := NewController(Options{KV: kv})
	if c.CycleEnabled() {
		t.Error("CycleEnabled() = true by default, want false")
	}

	c.SetCycleEnabled(true)

	// A fresh controller over the same KV restores the flag.
	c2 := NewController(Options{KV: kv})
	if !c2.CycleEnabled() {
		t.Error("CycleEnabled() = false after restart, want true")
	}

	c2.SetCycleEnabled(false)
	c3 := NewController(Options{KV: kv})
	if c3.CycleEnabled() {
		t.Error("CycleEnabled() = true after disable and restart, want false")
	}
}

func TestVoiceCachePersists(t *testing.T) {
	kv := store.NewMemKV()

	c := NewController(Options{KV: kv})
	c.mu.Lock()
	c.voiceCache["https://example.com/a"] = "liam"
	c.mu.Unlock()
	c.saveVoiceCache()

	c2 := NewController(Options{KV: kv})
	if v, ok := c2.VoiceFor("https://example.com/a"); !ok || v != "liam" {
		t.Errorf("VoiceFor() = %q, %v after restart, want %q, true", v, ok, "liam")
	}
	if _, ok := c2.VoiceFor("https://example.com/unknown"); ok {
		t.Error("VoiceFor(unknown) ok = true, want false")
	}
}

func TestVoiceStateCorruptCacheFallsBack(t *testing.T) {
	kv := store.NewMemKV()
	kv.Set(voiceCacheKey, "{broken")
	kv.Set(voiceCycleKey, "not-a-bool")

	c := NewController(Options{KV: kv})
	if c.CycleEnabled() {
		t.Error("CycleEnabled() = true from corrupt flag, want false")
	}
	if _, ok := c.VoiceFor("anything"); ok {
		t.Error("VoiceFor() ok = true from corrupt cache, want false")
	}
}
