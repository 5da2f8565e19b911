// Package main provides the readaloud CLI: continuous article listening
// from the terminal.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/coinscope/readaloud/internal/audio"
	"github.com/coinscope/readaloud/internal/content"
	"github.com/coinscope/readaloud/internal/keepalive"
	"github.com/coinscope/readaloud/internal/store"
	"github.com/coinscope/readaloud/internal/synthesis"
	"github.com/coinscope/readaloud/playlist"
	"github.com/coinscope/readaloud/speech"
	"github.com/coinscope/readaloud/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	voice       string
	rate        float64
	continuous  bool
	cycleVoices bool
	watch       bool
	startIndex  int
	width       uint
	mouse       bool
	noResume    bool

	rootCmd = &cobra.Command{
		Use:   "readaloud [PLAYLIST]",
		Short: "Listen to articles from the command line",
		Long: paragraph(
			fmt.Sprintf("\nTurn a playlist of articles into %s, with the spoken word highlighted as you listen.", keyword("continuous narration")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

var (
	keyword = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Render
	subtle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render
)

func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(s)
}

func validateOptions(cmd *cobra.Command) error {
	voice = viper.GetString("voice")
	rate = viper.GetFloat64("rate")
	continuous = viper.GetBool("continuous")
	cycleVoices = viper.GetBool("cycleVoices")
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	if rate < 0.5 || rate > 2.0 {
		return fmt.Errorf("rate must be between 0.5 and 2.0, got %.2f", rate)
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// playlistEntry is one item in a JSON playlist file.
type playlistEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
}

func (e playlistEntry) article() playlist.Article {
	title := e.Title
	if title == "" {
		title = titleFromURL(e.URL)
	}
	return playlist.Article{
		ID:          e.ID,
		Title:       title,
		URL:         e.URL,
		Source:      e.Source,
		PublishedAt: e.PublishedAt,
		Summary:     e.Summary,
		Content:     e.Content,
	}
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	base := strings.Trim(filepath.Base(u.Path), "/")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return rawURL
	}
	return strings.ReplaceAll(strings.ReplaceAll(base, "-", " "), "_", " ")
}

// loadPlaylist reads a playlist file: a JSON array of article entries,
// or a plain text file with one article URL per line.
func loadPlaylist(path string) ([]playlist.Article, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path: %w", err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("unable to read playlist: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []playlistEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("unable to parse playlist: %w", err)
		}
		articles := make([]playlist.Article, 0, len(entries))
		for _, e := range entries {
			if e.URL == "" && e.Content == "" {
				continue
			}
			articles = append(articles, e.article())
		}
		return articles, nil
	}

	var articles []playlist.Article
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		articles = append(articles, playlist.Article{
			Title: titleFromURL(line),
			URL:   line,
		})
	}
	return articles, nil
}

// components holds everything main wires together, so teardown happens
// in one place.
type components struct {
	ctrl     *playlist.Controller
	sessions *store.SessionStore
	player   *audio.Player
	guard    *keepalive.Guard
}

func (c *components) close() {
	c.ctrl.Stop()
	if c.guard != nil {
		c.guard.Close()
	}
	if c.player != nil {
		_ = c.player.Close()
	}
}

func buildComponents() (*components, error) {
	scope := gap.NewScope(gap.User, "readaloud")

	var kv store.KV
	dataDirs, err := scope.DataDirs()
	if err == nil && len(dataDirs) > 0 {
		fileKV, err := store.NewFileKV(filepath.Join(dataDirs[0], "state"))
		if err != nil {
			log.Warn("state directory unavailable, session persistence disabled", "error", err)
			kv = store.NewMemKV()
		} else {
			kv = fileKV
		}
	} else {
		kv = store.NewMemKV()
	}
	sessions := store.NewSessionStore(kv)

	var synth speech.Synthesizer = synthesis.NewClient(viper.GetString("synthesis.url"))
	if cacheDir, err := scope.CacheDir(); err == nil {
		cached, err := synthesis.NewCached(synth, filepath.Join(cacheDir, "audio"))
		if err != nil {
			log.Warn("audio cache unavailable", "error", err)
		} else {
			synth = cached
		}
	}

	var player *audio.Player
	sessionFactory := func() *speech.Session {
		return speech.NewSession(synth, audio.NewMockPlayer())
	}
	player, err = audio.NewPlayer(audio.DefaultConfig())
	if err != nil {
		log.Warn("audio device unavailable, running silent", "error", err)
		player = nil
	} else {
		sessionFactory = func() *speech.Session {
			return speech.NewSession(synth, player)
		}
	}

	var guard *keepalive.Guard
	if player != nil {
		guard = keepalive.NewGuard(nil, keepalive.NewOtoBed(player.Context()))
	} else {
		guard = keepalive.NewGuard(nil, nil)
	}

	fetcher := content.NewClient(viper.GetString("content.url"))
	book := content.NewBookkeeper(viper.GetString("bookkeeping.url"))

	ctrl := playlist.NewController(playlist.Options{
		Config: playlist.Config{
			Voice:          voice,
			Rate:           rate,
			RetryDelay:     2 * time.Second,
			SkipDelay:      750 * time.Millisecond,
			AdvanceGrace:   500 * time.Millisecond,
			ContentRetry:   1500 * time.Millisecond,
			PrefetchSettle: 3 * time.Second,
		},
		Sessions:  sessionFactory,
		Fetcher:   fetcher,
		Book:      book,
		Store:     sessions,
		KV:        kv,
		Guard:     guard,
		Exclusive: playlist.NewExclusive(),
		Prefetch:  playlist.NewPrefetcher(fetcher, synth),
	})
	ctrl.SetCycleEnabled(cycleVoices)

	return &components{ctrl: ctrl, sessions: sessions, player: player, guard: guard}, nil
}

// offerResume asks the user about a persisted session. The record was
// already consumed by Take, so declining discards it.
func offerResume(sessions *store.SessionStore) (store.Snapshot, bool) {
	snap, ok := sessions.Take()
	if !ok {
		return store.Snapshot{}, false
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return store.Snapshot{}, false
	}

	age := time.Since(snap.SavedAt).Round(time.Second)
	fmt.Printf("Resume previous session? %s [y/N] ",
		subtle(fmt.Sprintf("(%d articles, saved %s ago)", len(snap.Articles), age)))

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return store.Snapshot{}, false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return snap, answer == "y" || answer == "yes"
}

// watchPlaylist re-reads the playlist file on writes and enqueues any
// new entries.
func watchPlaylist(path string, ctrl *playlist.Controller) (*fsnotify.Watcher, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(expanded); err != nil {
		watcher.Close() //nolint:errcheck,gosec
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				articles, err := loadPlaylist(expanded)
				if err != nil {
					log.Debug("playlist re-read failed", "error", err)
					continue
				}
				if added := ctrl.Enqueue(articles...); added > 0 {
					log.Info("playlist updated", "added", added)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("playlist watch error", "error", err)
			}
		}
	}()
	return watcher, nil
}

func execute(_ *cobra.Command, args []string) error {
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	cfg.MaxWidth = width
	cfg.EnableMouse = mouse

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	var articles []playlist.Article
	if len(args) == 1 {
		articles, err = loadPlaylist(args[0])
		if err != nil {
			return err
		}
	}

	// A persisted session is offered, never auto-resumed. Take consumes
	// the record either way.
	resumed := false
	if noResume {
		comps.sessions.Clear()
	} else {
		if snap, accept := offerResume(comps.sessions); accept {
			if err := comps.ctrl.Resume(snap); err != nil {
				log.Warn("unable to resume session", "error", err)
			} else {
				resumed = true
			}
		}
	}

	if !resumed {
		if len(articles) == 0 {
			return fmt.Errorf("no playlist given and no session to resume")
		}
		if err := comps.ctrl.StartPlaylist(articles, startIndex, continuous); err != nil {
			return err
		}
	} else if len(articles) > 0 {
		comps.ctrl.Enqueue(articles...)
	}

	if watch && len(args) == 1 {
		watcher, err := watchPlaylist(args[0], comps.ctrl)
		if err != nil {
			log.Warn("playlist watch unavailable", "error", err)
		} else {
			defer watcher.Close() //nolint:errcheck
		}
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		if _, err := ui.NewProgram(cfg, comps.ctrl).Run(); err != nil {
			return fmt.Errorf("unable to run program: %w", err)
		}
		return nil
	}
	return runHeadless(comps.ctrl)
}

// runHeadless plays the queue without a TUI, for piped or scripted use.
func runHeadless(ctrl *playlist.Controller) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	lastIndex := -1
	for range ticker.C {
		if idx := ctrl.Index(); idx != lastIndex && ctrl.IsPlaying() {
			lastIndex = idx
			if articles := ctrl.Articles(); idx < len(articles) {
				fmt.Printf("now playing %d/%d: %s\n", idx+1, len(articles), articles[idx].Title)
			}
		}
		if !ctrl.IsPlaying() && ctrl.State() == playlist.StateIdle {
			return nil
		}
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

// setupLog routes logging to READALOUD_LOGFILE at debug level when set,
// and silences everything below warn otherwise so the TUI stays clean.
func setupLog() (func() error, error) {
	if path := os.Getenv("READALOUD_LOGFILE"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		return f.Close, nil
	}
	log.SetLevel(log.WarnLevel)
	return func() error { return nil }, nil
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVar(&voice, "voice", "", "voice for narration")
	rootCmd.Flags().Float64VarP(&rate, "rate", "r", 1.0, "speech rate (0.5 to 2.0)")
	rootCmd.Flags().BoolVarP(&continuous, "continuous", "c", true, "advance through the queue automatically")
	rootCmd.Flags().BoolVar(&cycleVoices, "cycle-voices", false, "rotate voices across articles")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "watch the playlist file and enqueue new entries")
	rootCmd.Flags().IntVarP(&startIndex, "index", "i", 0, "article to start at")
	rootCmd.Flags().UintVar(&width, "width", 0, "word-wrap at width (set to 0 to fit the terminal)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel scrolling")
	_ = rootCmd.Flags().MarkHidden("mouse")
	rootCmd.Flags().BoolVar(&noResume, "no-resume", false, "discard any persisted session without asking")

	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("continuous", rootCmd.Flags().Lookup("continuous"))
	_ = viper.BindPFlag("cycleVoices", rootCmd.Flags().Lookup("cycle-voices"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("voice", "")
	viper.SetDefault("rate", 1.0)
	viper.SetDefault("continuous", true)
	viper.SetDefault("cycleVoices", false)
	viper.SetDefault("width", 0)
	viper.SetDefault("synthesis.url", "http://localhost:5002")
	viper.SetDefault("content.url", "")
	viper.SetDefault("bookkeeping.url", "")

	rootCmd.AddCommand(configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readaloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find the configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readaloud")}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readaloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readaloud.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
