// Package session ties a serial channel to the terminal pipeline and the
// user facing display
package session

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"spark-terminal/pkg/apperror"
	"spark-terminal/pkg/commands"
	"spark-terminal/pkg/history"
	"spark-terminal/pkg/logging"
	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/terminal"
)

// State is the connection state seen by the user
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// DisplaySink receives everything the session wants to show. Calls come from
// the event goroutine, one at a time.
type DisplaySink interface {
	Display(text string)
	Status(connected bool, message string)
	Error(message string)
}

// Options are the display and logging toggles of a session
type Options struct {
	HexView    bool
	Timestamps bool
	LogSent    bool
	// LogDir is where StartLogging puts files when no path is given
	LogDir string
}

// DefaultOptions returns the toggles a new session starts with
func DefaultOptions() Options {
	return Options{LogSent: true, LogDir: "logs"}
}

// Stats describes the running session
type Stats struct {
	ID         string
	Started    time.Time
	State      State
	Port       string
	BytesIn    uint64
	BytesOut   uint64
	LogFile    string
	History    int
	Transcript history.Stats
}

// Controller drives one serial connection at a time on behalf of the user
type Controller struct {
	manager    *serial.Manager
	pipeline   *terminal.Pipeline
	history    *history.CommandHistory
	transcript *history.Transcript
	store      *commands.Store
	sink       DisplaySink
	log        *logrus.Entry
	now        func() time.Time

	mu       sync.Mutex
	state    State
	channel  *serial.Channel
	settings serial.ConnectionSettings
	opts     Options
	logFile  *terminal.LogFile

	id       string
	started  time.Time
	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
	pumps    sync.WaitGroup
}

// Config holds the collaborators of a Controller. Pipeline, History and
// Transcript are created when nil; Store may stay nil.
type Config struct {
	Manager    *serial.Manager
	Pipeline   *terminal.Pipeline
	History    *history.CommandHistory
	Transcript *history.Transcript
	Store      *commands.Store
	Sink       DisplaySink
	Options    Options
	Log        *logrus.Entry
}

// NewController creates an idle controller
func NewController(cfg Config) *Controller {
	if cfg.Pipeline == nil {
		cfg.Pipeline = terminal.NewPipeline()
	}
	if cfg.History == nil {
		cfg.History = history.NewCommandHistory(history.DefaultCommandLimit)
	}
	if cfg.Transcript == nil {
		cfg.Transcript = history.NewTranscript(history.DefaultTranscriptSize)
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	log := logging.For(cfg.Log, "session")
	if cfg.Manager == nil {
		cfg.Manager = serial.NewManager(cfg.Log)
	}

	return &Controller{
		manager:    cfg.Manager,
		pipeline:   cfg.Pipeline,
		history:    cfg.History,
		transcript: cfg.Transcript,
		store:      cfg.Store,
		sink:       cfg.Sink,
		log:        log,
		now:        time.Now,
		opts:       cfg.Options,
		id:         uuid.NewString(),
		started:    time.Now(),
	}
}

// State returns the connection state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settings returns the settings of the last connection attempt
func (c *Controller) Settings() serial.ConnectionSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// History returns the sent command history
func (c *Controller) History() *history.CommandHistory {
	return c.history
}

// Transcript returns the raw traffic of the session
func (c *Controller) Transcript() *history.Transcript {
	return c.transcript
}

// Store returns the shortcut store, which may be nil
func (c *Controller) Store() *commands.Store {
	return c.store
}

// Connect opens a channel for settings. It does nothing while a connection
// is being made or is up. An open failure is reported through the sink.
func (c *Controller) Connect(settings serial.ConnectionSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return nil
	}

	ch, err := c.manager.Open(settings)
	if err != nil {
		return err
	}

	c.state = StateConnecting
	c.channel = ch
	c.settings = settings
	c.log.WithField("port", settings.Port).Info("connecting")

	c.pumps.Add(1)
	go c.pump(ch)
	return nil
}

// Disconnect closes the connection, if any, and waits for the port to be
// released
func (c *Controller) Disconnect() {
	c.mu.Lock()
	ch := c.channel
	if ch == nil {
		c.mu.Unlock()
		return
	}
	stamped := c.opts.Timestamps
	c.releaseLocked()
	c.mu.Unlock()

	c.flushDisplay(stamped)
	c.sink.Status(false, "Disconnected")
}

// Close disconnects, stops logging and waits for the event goroutines
func (c *Controller) Close() {
	c.Disconnect()
	c.pumps.Wait()
	c.StopLogging()
}

// releaseLocked stops the current channel. c.mu must be held; the reader
// goroutine never takes it.
func (c *Controller) releaseLocked() {
	if c.channel != nil {
		c.channel.Close()
	}
	c.channel = nil
	c.state = StateIdle
}

// pump delivers the events of one channel. Events of a channel that is no
// longer current are dropped.
func (c *Controller) pump(ch *serial.Channel) {
	defer c.pumps.Done()

	for ev := range ch.Events() {
		c.handle(ch, ev)
	}
}

func (c *Controller) handle(ch *serial.Channel, ev serial.Event) {
	c.mu.Lock()
	if c.channel != ch {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case serial.EventData:
		opts, logFile := c.opts, c.logFile
		c.mu.Unlock()
		c.received(ev.Data, opts, logFile)

	case serial.EventStatus:
		if ev.Open {
			c.state = StateConnected
			msg := fmt.Sprintf("Connected to %s at %s", ch.Settings().Port, ch.Settings().Summary())
			c.mu.Unlock()
			c.log.Info(msg)
			c.sink.Status(true, msg)
			return
		}
		stamped := c.opts.Timestamps
		c.releaseLocked()
		c.mu.Unlock()
		c.flushDisplay(stamped)
		c.log.Info("disconnected")
		c.sink.Status(false, "Disconnected")

	case serial.EventError:
		stamped := c.opts.Timestamps
		c.releaseLocked()
		c.mu.Unlock()
		c.flushDisplay(stamped)
		c.log.WithError(ev.Err).Warn("connection lost")
		c.sink.Error(ev.Message())
		c.sink.Status(false, "Disconnected")

	default:
		c.mu.Unlock()
	}
}

func (c *Controller) received(data []byte, opts Options, logFile *terminal.LogFile) {
	c.bytesIn.Add(uint64(len(data)))
	c.transcript.Write(data, history.DirectionReceived)

	if logFile != nil {
		c.writeLog(logFile, c.pipeline.LogChunk(data, terminal.DirectionRX))
	}

	mode := terminal.ViewText
	if opts.HexView {
		mode = terminal.ViewHex
	}
	if out := c.pipeline.Render(data, mode, opts.Timestamps); out.Display {
		c.sink.Display(out.Text)
	}
}

// flushDisplay shows bytes the pipeline holds back for a sequence that will
// not be completed
func (c *Controller) flushDisplay(withTimestamp bool) {
	if out := c.pipeline.Flush(withTimestamp); out.Display {
		c.sink.Display(out.Text)
	}
}

// Send encodes text, appends the line ending and writes it to the port.
// Every command that passes validation is recorded in the history, even if
// the write then fails.
func (c *Controller) Send(text string, asHex bool, ending LineEnding) error {
	c.mu.Lock()
	ch, state := c.channel, c.state
	opts, logFile := c.opts, c.logFile
	c.mu.Unlock()

	if state != StateConnected || ch == nil {
		return apperror.New(apperror.KindNotOpen, "send", "not connected")
	}

	payload, err := EncodePayload(text, asHex, ending)
	if err != nil {
		return err
	}

	c.history.Add(text)

	if err := ch.Send(payload); err != nil {
		return err
	}

	c.bytesOut.Add(uint64(len(payload)))
	c.transcript.Write(payload, history.DirectionSent)

	if logFile != nil && opts.LogSent {
		logged := text
		if asHex {
			logged = "HEX(" + text + ")"
		}
		c.writeLog(logFile, c.pipeline.Log(logged+"\n", terminal.DirectionTX))
	}
	return nil
}

// SendShortcut sends the stored command at index using its own hex flag
func (c *Controller) SendShortcut(index int, ending LineEnding) error {
	if c.store == nil {
		return apperror.New(apperror.KindValidation, "send shortcut", "no command store")
	}
	entry, ok := c.store.Get(index)
	if !ok {
		return apperror.Newf(apperror.KindValidation, "send shortcut", "no shortcut at index %d", index)
	}
	return c.Send(entry.Command, entry.IsHex, ending)
}

// Options returns the current toggles
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// SetHexView switches received data between text and hex rendering. Text
// held back for an unfinished sequence is shown before the switch.
func (c *Controller) SetHexView(on bool) {
	c.mu.Lock()
	changed := c.opts.HexView != on
	c.opts.HexView = on
	stamped := c.opts.Timestamps
	c.mu.Unlock()

	if changed && on {
		c.flushDisplay(stamped)
	}
}

// SetTimestamps switches display timestamps
func (c *Controller) SetTimestamps(on bool) {
	c.mu.Lock()
	c.opts.Timestamps = on
	c.mu.Unlock()
}

// SetLogSent selects whether sent commands go to the log file
func (c *Controller) SetLogSent(on bool) {
	c.mu.Lock()
	c.opts.LogSent = on
	c.mu.Unlock()
}

// Clear resets the display line tracking after the output was cleared
func (c *Controller) Clear() {
	c.pipeline.Clear()
}

// StartLogging appends traffic to path, or to a new timestamped file in the
// log directory when path is empty. A running log is closed first.
func (c *Controller) StartLogging(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path == "" {
		path = filepath.Join(c.opts.LogDir, terminal.DefaultLogFileName(c.now()))
	}

	lf, err := terminal.OpenLogFile(path)
	if err != nil {
		return "", apperror.Wrap(apperror.KindPersistence, "start logging", err)
	}

	if c.logFile != nil {
		c.logFile.Close()
	}
	c.logFile = lf
	c.pipeline.ResetLog()
	c.log.Infof("logging to %s", path)

	return path, nil
}

// StopLogging closes the log file, if any
func (c *Controller) StopLogging() {
	c.mu.Lock()
	lf := c.logFile
	c.logFile = nil
	c.mu.Unlock()

	if lf != nil {
		if err := lf.Close(); err != nil {
			c.log.WithError(err).Warn("failed to close log file")
		}
		c.log.Infof("stopped logging to %s", lf.Path())
	}
}

// LogPath returns the active log file, or "" when not logging
func (c *Controller) LogPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logFile == nil {
		return ""
	}
	return c.logFile.Path()
}

// writeLog appends text; a failing log file is closed and reported
func (c *Controller) writeLog(lf *terminal.LogFile, text string) {
	if text == "" {
		return
	}
	if err := lf.WriteString(text); err != nil {
		c.log.WithError(err).Error("log write failed")
		c.mu.Lock()
		if c.logFile == lf {
			c.logFile = nil
		}
		c.mu.Unlock()
		lf.Close()
		c.sink.Error(fmt.Sprintf("Logging stopped: %v", err))
	}
}

// Stats returns a snapshot of the session
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	state, port := c.state, c.settings.Port
	logPath := ""
	if c.logFile != nil {
		logPath = c.logFile.Path()
	}
	c.mu.Unlock()

	return Stats{
		ID:         c.id,
		Started:    c.started,
		State:      state,
		Port:       port,
		BytesIn:    c.bytesIn.Load(),
		BytesOut:   c.bytesOut.Load(),
		LogFile:    logPath,
		History:    c.history.Len(),
		Transcript: c.transcript.Stats(),
	}
}

type nopSink struct{}

func (nopSink) Display(string)      {}
func (nopSink) Status(bool, string) {}
func (nopSink) Error(string)        {}
