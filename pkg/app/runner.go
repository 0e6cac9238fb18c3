package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spark-terminal/pkg/logging"
	"spark-terminal/pkg/serial"
	"spark-terminal/pkg/session"
)

// DefaultConnectTimeout bounds the wait for a port to open
const DefaultConnectTimeout = 5 * time.Second

// lineSink writes session output to a stream. Notices go on their own line.
// connected and lost are closed by the first status of each kind.
type lineSink struct {
	mu          sync.Mutex
	out         io.Writer
	atLineStart bool

	connected     chan struct{}
	connectedOnce sync.Once
	lost          chan struct{}
	lostOnce      sync.Once
}

func newLineSink(out io.Writer) *lineSink {
	return &lineSink{
		out:         out,
		atLineStart: true,
		connected:   make(chan struct{}),
		lost:        make(chan struct{}),
	}
}

func (s *lineSink) Display(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.out, text)
	s.atLineStart = strings.HasSuffix(text, "\n")
}

func (s *lineSink) Status(connected bool, message string) {
	s.notice("***", message)
	if connected {
		s.connectedOnce.Do(func() { close(s.connected) })
	} else {
		s.lostOnce.Do(func() { close(s.lost) })
	}
}

func (s *lineSink) wasConnected() bool {
	select {
	case <-s.connected:
		return true
	default:
		return false
	}
}

func (s *lineSink) Error(message string) {
	s.notice("!!!", message)
}

func (s *lineSink) notice(tag, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.atLineStart {
		io.WriteString(s.out, "\n")
	}
	fmt.Fprintf(s.out, "%s %s\n", tag, message)
	s.atLineStart = true
}

// Headless drives a session from lines of input. Each line is sent with the
// configured encoding and line ending; "/N" sends saved command N (1-based)
// and "/quit" stops.
type Headless struct {
	ctl      *session.Controller
	settings serial.ConnectionSettings
	opts     Options
	in       io.Reader
	sink     *lineSink
	log      *logrus.Entry

	// ConnectTimeout bounds the wait for the port to open
	ConnectTimeout time.Duration
	// Linger keeps the session up after the input ends so replies are shown
	Linger time.Duration
}

// NewHeadless creates a headless session reading commands from in and
// writing everything shown to out
func NewHeadless(in io.Reader, out io.Writer, settings serial.ConnectionSettings, cfg session.Config, opts Options) *Headless {
	sink := newLineSink(out)
	cfg.Sink = sink

	return &Headless{
		ctl:            session.NewController(cfg),
		settings:       settings,
		opts:           opts,
		in:             in,
		sink:           sink,
		log:            logging.For(cfg.Log, "headless"),
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Controller returns the session driven by the runner
func (h *Headless) Controller() *session.Controller {
	return h.ctl
}

// Run connects, sends every input line and returns when the input ends, the
// connection is lost or ctx is cancelled
func (h *Headless) Run(ctx context.Context) error {
	if err := h.ctl.Connect(h.settings); err != nil {
		return err
	}
	defer h.ctl.Close()

	if err := h.waitConnected(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	if h.opts.LogFile != "" || h.opts.AutoLog {
		path, err := h.ctl.StartLogging(h.opts.LogFile)
		if err != nil {
			return err
		}
		h.sink.notice("***", "Logging to "+path)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(h.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			h.log.WithError(err).Warn("input read failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.sink.lost:
			return h.errLost()
		case line, ok := <-lines:
			if !ok {
				return h.linger(ctx)
			}
			if !h.handleLine(line) {
				return nil
			}
		}
	}
}

// handleLine sends one line and reports whether to keep going. Send
// failures are shown and do not stop the run.
func (h *Headless) handleLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}

	var err error
	if cmd, ok := strings.CutPrefix(line, "/"); ok {
		if cmd == "quit" {
			return false
		}
		n, convErr := strconv.Atoi(cmd)
		if convErr != nil {
			h.sink.Error(fmt.Sprintf("unknown command: %s", line))
			return true
		}
		err = h.ctl.SendShortcut(n-1, h.opts.LineEnding)
	} else {
		err = h.ctl.Send(line, h.opts.SendAsHex, h.opts.LineEnding)
	}

	if err != nil {
		h.sink.Error(err.Error())
	}
	return true
}

func (h *Headless) linger(ctx context.Context) error {
	if h.Linger <= 0 {
		return nil
	}

	timer := time.NewTimer(h.Linger)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-h.sink.lost:
	}
	return nil
}

// waitConnected blocks until the port reports open. Cancelling ctx once the
// connection is up is not an error.
func (h *Headless) waitConnected(ctx context.Context) error {
	timeout := h.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.sink.connected:
		return nil
	case <-h.sink.lost:
		if h.sink.wasConnected() {
			return h.errLost()
		}
		return fmt.Errorf("failed to connect to %s", h.settings.Port)
	case <-ctx.Done():
		if h.sink.wasConnected() || h.ctl.State() == session.StateConnected {
			return nil
		}
		h.ctl.Disconnect()
		return fmt.Errorf("connecting to %s cancelled: %w", h.settings.Port, ctx.Err())
	case <-timer.C:
		h.ctl.Disconnect()
		return fmt.Errorf("timed out connecting to %s", h.settings.Port)
	}
}

func (h *Headless) errLost() error {
	return fmt.Errorf("connection to %s lost", h.settings.Port)
}
