// Package app runs a session on a full screen terminal UI or as a line
// oriented stream
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"spark-terminal/pkg/history"
	"spark-terminal/pkg/logging"
	"spark-terminal/pkg/menu"
	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
	"spark-terminal/pkg/ui"
)

// Options are the per-run choices of the boundary
type Options struct {
	SendAsHex  bool
	LineEnding session.LineEnding
	// LogFile starts logging right after connecting; AutoLog picks a
	// timestamped file in the log directory instead
	LogFile string
	AutoLog bool
	// TranscriptDir is where F9 saves the session transcript
	TranscriptDir string
}

var helpLines = []string{
	"Enter send   Up/Down history   PgUp/PgDn scroll",
	"F1 help      F2 saved commands  F3 hex view",
	"F4 timestamps  F5 send as hex   F6 line ending",
	"F7 logging   F8 connect/disconnect  F9 save transcript",
	"Ctrl+L clear  Ctrl+Q quit",
}

type quitSignal struct{}

// App is the full screen terminal. It is the display sink of its session.
type App struct {
	screen   tcell.Screen
	ctl      *session.Controller
	settings serial.ConnectionSettings
	opts     Options
	log      *logrus.Entry

	view   *ui.Scrollback
	input  ui.InputLine
	picker *menu.Picker

	mu        sync.Mutex
	sendHex   bool
	ending    session.LineEnding
	notice    string
	noticeErr bool
	histIdx   int
	draft     string
	showHelp  bool

	running atomic.Bool
	now     func() time.Time
}

// New creates the app and its session controller from cfg. The screen must
// not be initialized yet when Run is used.
func New(screen tcell.Screen, settings serial.ConnectionSettings, cfg session.Config, opts Options) *App {
	a := &App{
		screen:   screen,
		settings: settings,
		opts:     opts,
		log:      logging.For(cfg.Log, "ui"),
		view:     ui.NewScrollback(ui.DefaultScrollbackLines),
		sendHex:  opts.SendAsHex,
		ending:   opts.LineEnding,
		histIdx:  -1,
		now:      time.Now,
	}
	if a.opts.TranscriptDir == "" {
		a.opts.TranscriptDir = "."
	}

	cfg.Sink = a
	a.ctl = session.NewController(cfg)

	a.picker = menu.New("Saved commands", screen)
	a.picker.SetEmptyText("No saved commands")
	a.picker.SetOnSelect(a.sendShortcut)
	return a
}

// Controller returns the session driven by the app
func (a *App) Controller() *session.Controller {
	return a.ctl
}

// Display implements session.DisplaySink
func (a *App) Display(text string) {
	a.view.Append(text)
	a.redraw()
}

// Status implements session.DisplaySink
func (a *App) Status(_ bool, message string) {
	a.setNotice(message, false)
	a.redraw()
}

// Error implements session.DisplaySink
func (a *App) Error(message string) {
	a.setNotice(message, true)
	a.redraw()
}

func (a *App) setNotice(message string, isErr bool) {
	a.mu.Lock()
	a.notice, a.noticeErr = message, isErr
	a.mu.Unlock()
}

// redraw wakes the event loop; it is a no-op before Run
func (a *App) redraw() {
	if a.running.Load() {
		a.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}
}

// Run initializes the screen, connects and processes events until the user
// quits or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	if err := a.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer a.screen.Fini()

	a.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	a.screen.Clear()

	if err := a.Start(); err != nil {
		return err
	}
	defer a.ctl.Close()

	a.running.Store(true)
	defer a.running.Store(false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			a.screen.PostEvent(tcell.NewEventInterrupt(quitSignal{}))
		case <-done:
		}
	}()

	a.Draw()
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if !a.HandleEvent(ev) {
			a.log.Debug("quit requested")
			return nil
		}
		a.Draw()
	}
}

// Start connects and begins logging when asked to
func (a *App) Start() error {
	if err := a.ctl.Connect(a.settings); err != nil {
		return err
	}
	a.setNotice(fmt.Sprintf("Connecting to %s...", a.settings.Port), false)

	if a.opts.LogFile != "" || a.opts.AutoLog {
		path, err := a.ctl.StartLogging(a.opts.LogFile)
		if err != nil {
			a.setNotice(err.Error(), true)
			return nil
		}
		a.setNotice("Logging to "+path, false)
	}
	return nil
}

// HandleEvent processes one screen event and reports whether to keep running
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev)
	case *tcell.EventResize:
		a.screen.Sync()
	case *tcell.EventInterrupt:
		if _, quit := ev.Data().(quitSignal); quit {
			return false
		}
	}
	return true
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	if a.picker.IsVisible() {
		a.picker.HandleKey(ev)
		return true
	}

	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		return false
	case tcell.KeyEnter:
		a.submit()
	case tcell.KeyUp:
		a.historyStep(1)
	case tcell.KeyDown:
		a.historyStep(-1)
	case tcell.KeyLeft:
		a.input.Left()
	case tcell.KeyRight:
		a.input.Right()
	case tcell.KeyHome:
		a.input.Home()
	case tcell.KeyEnd:
		a.input.End()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		a.input.Backspace()
	case tcell.KeyDelete:
		a.input.Delete()
	case tcell.KeyPgUp:
		a.view.Scroll(a.pageSize())
	case tcell.KeyPgDn:
		a.view.Scroll(-a.pageSize())
	case tcell.KeyF1:
		a.mu.Lock()
		a.showHelp = !a.showHelp
		a.mu.Unlock()
	case tcell.KeyF2:
		a.openPicker()
	case tcell.KeyF3:
		on := !a.ctl.Options().HexView
		a.ctl.SetHexView(on)
		a.setNotice("Hex view "+onOff(on), false)
	case tcell.KeyF4:
		on := !a.ctl.Options().Timestamps
		a.ctl.SetTimestamps(on)
		a.setNotice("Timestamps "+onOff(on), false)
	case tcell.KeyF5:
		a.mu.Lock()
		a.sendHex = !a.sendHex
		on := a.sendHex
		a.mu.Unlock()
		a.setNotice("Send as hex "+onOff(on), false)
	case tcell.KeyF6:
		a.mu.Lock()
		a.ending = a.ending.Next()
		ending := a.ending
		a.mu.Unlock()
		a.setNotice("Line ending "+ending.String(), false)
	case tcell.KeyF7:
		a.toggleLogging()
	case tcell.KeyF8:
		a.toggleConnection()
	case tcell.KeyF9:
		a.saveTranscript()
	case tcell.KeyCtrlL:
		a.view.Clear()
		a.ctl.Clear()
	case tcell.KeyRune:
		a.input.Insert(ev.Rune())
	}
	return true
}

// submit sends the input line; on failure the text stays for editing
func (a *App) submit() {
	a.mu.Lock()
	asHex, ending := a.sendHex, a.ending
	a.mu.Unlock()

	if err := a.ctl.Send(a.input.Text(), asHex, ending); err != nil {
		a.setNotice(err.Error(), true)
		return
	}

	a.input.Clear()
	a.mu.Lock()
	a.histIdx, a.draft = -1, ""
	a.mu.Unlock()
}

// historyStep walks the command history; 1 goes to older entries and -1
// back towards the unsent draft
func (a *App) historyStep(delta int) {
	entries := a.ctl.History().Entries()

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	if a.histIdx == -1 {
		a.draft = a.input.Text()
	}

	a.histIdx = min(max(a.histIdx+delta, -1), len(entries)-1)
	if a.histIdx == -1 {
		a.input.Set(a.draft)
		return
	}
	a.input.Set(entries[a.histIdx])
}

func (a *App) openPicker() {
	store := a.ctl.Store()
	if store == nil {
		a.setNotice("No command store available", true)
		return
	}
	a.picker.SetItems(menu.FromCommands(store.Commands()))
	a.picker.Show()
}

func (a *App) sendShortcut(index int) {
	a.mu.Lock()
	ending := a.ending
	a.mu.Unlock()

	if err := a.ctl.SendShortcut(index, ending); err != nil {
		a.setNotice(err.Error(), true)
		return
	}
	if entry, ok := a.ctl.Store().Get(index); ok {
		a.setNotice("Sent "+entry.Name, false)
	}
}

func (a *App) toggleLogging() {
	if path := a.ctl.LogPath(); path != "" {
		a.ctl.StopLogging()
		a.setNotice("Logging stopped: "+path, false)
		return
	}

	path, err := a.ctl.StartLogging("")
	if err != nil {
		a.setNotice(err.Error(), true)
		return
	}
	a.setNotice("Logging to "+path, false)
}

func (a *App) toggleConnection() {
	if a.ctl.State() != session.StateIdle {
		a.ctl.Disconnect()
		return
	}
	if err := a.ctl.Connect(a.settings); err != nil {
		a.setNotice(err.Error(), true)
		return
	}
	a.setNotice(fmt.Sprintf("Connecting to %s...", a.settings.Port), false)
}

func (a *App) saveTranscript() {
	name := "transcript_" + a.now().Format("20060102_150405") + ".txt"
	path := filepath.Join(a.opts.TranscriptDir, name)

	if err := a.ctl.Transcript().SaveToFile(path, history.FormatTimestamped); err != nil {
		a.log.WithError(err).Error("failed to save transcript")
		a.setNotice(fmt.Sprintf("Failed to save transcript: %v", err), true)
		return
	}
	a.setNotice("Transcript saved to "+path, false)
}

func (a *App) pageSize() int {
	_, h := a.screen.Size()
	return max(h-3, 1)
}

// Draw renders the output area, the status bar and the input line
func (a *App) Draw() {
	width, height := a.screen.Size()
	a.screen.Clear()
	if width <= 0 || height < 3 {
		a.screen.Show()
		return
	}

	outputStyle := tcell.StyleDefault
	viewHeight := height - 2
	for y, row := range a.view.Rows(width, viewHeight) {
		ui.DrawText(a.screen, 0, y, width, row, outputStyle)
	}

	a.mu.Lock()
	showHelp, noticeErr := a.showHelp, a.noticeErr
	prompt := "> "
	if a.sendHex {
		prompt = "HEX> "
	}
	a.mu.Unlock()

	statusStyle := tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	if noticeErr {
		statusStyle = tcell.StyleDefault.Background(tcell.ColorDarkRed).Foreground(tcell.ColorWhite)
	}
	ui.DrawText(a.screen, 0, height-2, width, a.StatusLine(), statusStyle)

	used := ui.DrawText(a.screen, 0, height-1, width, prompt, outputStyle.Bold(true))
	text, col := a.input.View(width - used)
	ui.DrawText(a.screen, used, height-1, width-used, text, outputStyle)
	a.screen.ShowCursor(used+col, height-1)

	if showHelp {
		helpStyle := tcell.StyleDefault.Background(tcell.ColorDarkGreen).Foreground(tcell.ColorWhite)
		top := max(viewHeight-len(helpLines), 0)
		for i, line := range helpLines {
			if top+i < viewHeight {
				ui.DrawText(a.screen, 0, top+i, width, " "+line, helpStyle)
			}
		}
	}

	a.picker.Draw()
	a.screen.Show()
}

// StatusLine describes the connection, the toggles and the last notice
func (a *App) StatusLine() string {
	stats := a.ctl.Stats()
	opts := a.ctl.Options()

	var parts []string
	switch stats.State {
	case session.StateConnected:
		parts = append(parts, fmt.Sprintf("%s %s", stats.Port, a.ctl.Settings().Summary()))
	case session.StateConnecting:
		parts = append(parts, "Connecting "+stats.Port)
	default:
		parts = append(parts, "Disconnected")
	}

	a.mu.Lock()
	sendHex, ending, notice := a.sendHex, a.ending, a.notice
	a.mu.Unlock()

	view := "TEXT"
	if opts.HexView {
		view = "HEX"
	}
	send := "TEXT"
	if sendHex {
		send = "HEX"
	}
	parts = append(parts,
		"View:"+view,
		"TS:"+onOff(opts.Timestamps),
		"Send:"+send,
		"EOL:"+ending.String(),
	)
	if stats.LogFile != "" {
		parts = append(parts, "LOG:"+filepath.Base(stats.LogFile))
	}
	parts = append(parts, fmt.Sprintf("RX:%d TX:%d", stats.BytesIn, stats.BytesOut))
	if notice != "" {
		parts = append(parts, notice)
	}

	return " " + strings.Join(parts, " | ")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
