package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/coinscope/readaloud/playlist"
)

const (
	minReadingWidth = 24
	chromeHeight    = 4 // title bar, blank line, status bar, help line
)

func (m model) readingWidth() int {
	w := m.width - 2
	if m.cfg.MaxWidth > 0 && w > int(m.cfg.MaxWidth) {
		w = int(m.cfg.MaxWidth)
	}
	if w < minReadingWidth {
		w = minReadingWidth
	}
	return w
}

func (m model) readingHeight() int {
	h := m.height - chromeHeight
	if h < 1 {
		h = 1
	}
	return h
}

// syncReading rebuilds the viewport content from the controller's
// current text and highlight span and keeps the spoken word in view.
func (m *model) syncReading() {
	text := m.ctrl.SpeakText()
	if text == "" {
		m.viewport.SetContent("")
		return
	}

	w := m.readingWidth()
	m.viewport.Width = w
	m.viewport.Height = m.readingHeight()

	start, end, ok := m.ctrl.Highlight()
	m.viewport.SetContent(renderHighlighted(text, start, end, ok, m.cfg.HighlightColor, w))

	if ok {
		// wordwrap is ANSI aware, so wrapping the styled text and the
		// plain prefix give the same line breaks.
		line := strings.Count(wordwrap.String(text[:start], w), "\n")
		if line < m.viewport.YOffset || line >= m.viewport.YOffset+m.viewport.Height {
			offset := line - m.viewport.Height/2
			if offset < 0 {
				offset = 0
			}
			m.viewport.SetYOffset(offset)
		}
	}
}

// renderHighlighted styles the byte span [start, end) of text and wraps
// the result to width columns.
func renderHighlighted(text string, start, end int, ok bool, color string, width int) string {
	if ok && start >= 0 && end <= len(text) && start < end {
		text = text[:start] + highlightStyle(color).Render(text[start:end]) + text[end:]
	}
	return wordwrap.String(text, width)
}

func (m model) queueView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("readaloud"))
	b.WriteString("\n\n")

	articles := m.ctrl.Articles()
	if len(articles) == 0 {
		b.WriteString(subtleStyle.Render("  no articles in the queue"))
		b.WriteString("\n")
	}
	for i, a := range articles {
		b.WriteString(queueLine(a, i == m.cursor, i == m.ctrl.Index() && m.ctrl.IsPlaying(), m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.queueStatusBar())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: listen • c: continuous • v: cycle voices • q: quit"))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(issueStyle.Render(m.err.Error()))
	}
	return b.String()
}

// queueLine renders one queue row: marker, title, source and age.
func queueLine(a playlist.Article, selected, playing bool, width int) string {
	marker := "  "
	switch {
	case playing:
		marker = "▶ "
	case selected:
		marker = "> "
	}

	title := a.Title
	if a.HasIssue {
		title = issueStyle.Render(title + " (unplayable)")
	} else if selected {
		title = selectedStyle.Render(title)
	}

	meta := a.Source
	if !a.PublishedAt.IsZero() {
		meta += ", " + humanize.Time(a.PublishedAt)
	}
	line := marker + title + subtleStyle.Render("  "+meta)

	if width > 4 {
		line = truncate.StringWithTail(line, uint(width-2), "…")
	}
	return line
}

func (m model) queueStatusBar() string {
	parts := []string{
		fmt.Sprintf("%d articles", len(m.ctrl.Articles())),
		onOff("continuous", m.ctrl.Continuous()),
		onOff("cycle voices", m.ctrl.CycleEnabled()),
	}
	return statusBarStyle.Render(padLine(strings.Join(parts, " • "), m.width))
}

func (m model) readingView() string {
	articles := m.ctrl.Articles()
	idx := m.ctrl.Index()

	title := "listening"
	if idx >= 0 && idx < len(articles) {
		title = articles[idx].Title
	}
	header := titleStyle.Render(runewidth.Truncate(title, m.readingWidth(), "…"))

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.readingStatusBar())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space: pause • n/p: next/prev • ←/→: seek • esc: queue • q: quit"))
	return b.String()
}

func (m model) readingStatusBar() string {
	st := m.ctrl.State()
	label := st.String()
	if st == playlist.StateLoading {
		label = m.spinner.View() + " " + label
	}

	pos, total := m.ctrl.Progress()
	idx := m.ctrl.Index()
	count := len(m.ctrl.Articles())

	voice := ""
	if idx >= 0 && idx < count {
		if v, ok := m.ctrl.VoiceFor(m.ctrl.Articles()[idx].URL); ok {
			voice = v
		}
	}

	parts := []string{
		statusStateStyle.Render(label),
		fmt.Sprintf("%d/%d", idx+1, count),
		fmt.Sprintf("%s / %s", formatDuration(pos), formatDuration(total)),
	}
	if voice != "" {
		parts = append(parts, voice)
	}
	if m.ctrl.Continuous() {
		parts = append(parts, "continuous")
	}
	return statusBarStyle.Render(padLine(strings.Join(parts, " • "), m.width))
}

func onOff(name string, on bool) string {
	if on {
		return name + " on"
	}
	return name + " off"
}

// padLine pads s with spaces to width columns so the status bar's
// background spans the whole row.
func padLine(s string, width int) string {
	if w := ansi.PrintableRuneWidth(s); width > w {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
