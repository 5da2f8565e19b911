// Package ui provides the terminal UI for the article listening engine:
// a queue picker and a reading view that follows narration word by word.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/coinscope/readaloud/playlist"
)

// tickInterval drives progress and highlight refreshes while narration
// is active.
const tickInterval = 100 * time.Millisecond

// state is the top-level application state.
type state int

const (
	stateQueue state = iota
	stateReading
)

func (s state) String() string {
	return map[state]string{
		stateQueue:   "showing queue",
		stateReading: "showing article",
	}[s]
}

type (
	tickMsg    time.Time
	refreshMsg struct{}
	errMsg     struct{ err error }
)

func (e errMsg) Error() string { return e.err.Error() }

type model struct {
	cfg  Config
	ctrl *playlist.Controller

	state    state
	cursor   int
	width    int
	height   int
	spinner  spinner.Model
	viewport viewport.Model
	err      error
}

// NewProgram returns a new Tea program over the playlist controller. The
// controller's change callback is wired to the program so engine events
// repaint without polling alone.
func NewProgram(cfg Config, ctrl *playlist.Controller) *tea.Program {
	log.Debug("starting ui", "articles", len(ctrl.Articles()))

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		cfg:     cfg,
		ctrl:    ctrl,
		state:   stateQueue,
		cursor:  ctrl.Index(),
		spinner: sp,
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)

	ctrl.OnChange(func() {
		p.Send(refreshMsg{})
	})
	return p
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.readingWidth()
		m.viewport.Height = m.readingHeight()
		m.syncReading()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if m.state == stateReading {
			m.syncReading()
		}
		return m, tick()

	case refreshMsg:
		if m.ctrl.IsPlaying() && m.state == stateQueue {
			m.state = stateReading
		}
		m.syncReading()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.ctrl.Stop()
		return m, tea.Quit
	}

	switch m.state {
	case stateQueue:
		return m.handleQueueKey(msg)
	case stateReading:
		return m.handleReadingKey(msg)
	}
	return m, nil
}

func (m model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	articles := m.ctrl.Articles()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(articles)-1 {
			m.cursor++
		}
	case "enter":
		if len(articles) == 0 {
			return m, nil
		}
		if err := m.ctrl.StartPlaylist(articles, m.cursor, m.ctrl.Continuous()); err != nil {
			m.err = err
			return m, nil
		}
		m.state = stateReading
		m.syncReading()
	case "c":
		m.ctrl.SetContinuous(!m.ctrl.Continuous())
	case "v":
		m.ctrl.SetCycleEnabled(!m.ctrl.CycleEnabled())
	}
	return m, nil
}

func (m model) handleReadingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateQueue
		m.cursor = m.ctrl.Index()
	case " ":
		if err := m.ctrl.TogglePause(); err != nil {
			log.Debug("pause ignored", "error", err)
		}
	case "n":
		m.ctrl.PlayArticle(m.ctrl.Index() + 1)
	case "p":
		m.ctrl.Previous()
	case "left":
		if err := m.ctrl.SeekWords(-5); err != nil {
			log.Debug("seek ignored", "error", err)
		}
	case "right":
		if err := m.ctrl.SeekWords(5); err != nil {
			log.Debug("seek ignored", "error", err)
		}
	case "c":
		m.ctrl.SetContinuous(!m.ctrl.Continuous())
	case "s":
		m.ctrl.Stop()
		m.state = stateQueue
		m.cursor = m.ctrl.Index()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.syncReading()
	return m, nil
}

func (m model) View() string {
	switch m.state {
	case stateReading:
		return m.readingView()
	default:
		return m.queueView()
	}
}
