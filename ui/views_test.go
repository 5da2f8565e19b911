package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/muesli/reflow/ansi"
)

func TestFormatDuration(t *testing.T) {
	for _, tt := range []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{7 * time.Second, "0:07"},
		{59*time.Second + 600*time.Millisecond, "1:00"},
		{time.Minute + 5*time.Second, "1:05"},
		{61 * time.Minute, "61:00"},
	} {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPadLine(t *testing.T) {
	got := padLine("abc", 6)
	if got != "abc   " {
		t.Errorf("padLine(abc, 6) = %q, want %q", got, "abc   ")
	}
	if got := padLine("abcdef", 3); got != "abcdef" {
		t.Errorf("padLine should not truncate, got %q", got)
	}
}

func TestOnOff(t *testing.T) {
	if got := onOff("continuous", true); got != "continuous on" {
		t.Errorf("onOff(true) = %q", got)
	}
	if got := onOff("continuous", false); got != "continuous off" {
		t.Errorf("onOff(false) = %q", got)
	}
}

func TestRenderHighlightedNoSpan(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	got := renderHighlighted(text, 0, 0, false, "170", 16)
	for _, line := range strings.Split(got, "\n") {
		if w := ansi.PrintableRuneWidth(line); w > 16 {
			t.Errorf("line %q is %d columns wide, want <= 16", line, w)
		}
	}
	if plain := strings.ReplaceAll(got, "\n", " "); plain != text {
		t.Errorf("unstyled render changed the text: %q", plain)
	}
}

func TestRenderHighlightedSpan(t *testing.T) {
	text := "bitcoin climbed sharply this morning"
	start := strings.Index(text, "sharply")
	end := start + len("sharply")

	got := renderHighlighted(text, start, end, true, "170", 80)
	if !strings.Contains(got, "sharply") {
		t.Errorf("highlighted render lost the span: %q", got)
	}
	if !strings.HasPrefix(got, "bitcoin climbed ") {
		t.Errorf("text before the span changed: %q", got)
	}
}

func TestRenderHighlightedBadSpan(t *testing.T) {
	text := "short"
	// spans outside the text must not panic or corrupt output
	for _, span := range [][2]int{{-1, 3}, {2, 99}, {4, 2}} {
		got := renderHighlighted(text, span[0], span[1], true, "170", 80)
		if !strings.Contains(got, "short") {
			t.Errorf("renderHighlighted(%v) = %q, want text preserved", span, got)
		}
	}
}
