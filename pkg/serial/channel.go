package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spark-terminal/pkg/apperror"
)

const readBufferSize = 4096

// State is the lifecycle state of a Channel
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateFailed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Port is the subset of a go.bug.st/serial port used by a Channel
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens the device described by settings
type Opener func(settings ConnectionSettings) (Port, error)

// Channel owns one open port and the goroutine reading from it. A Channel is
// never reused: every Manager.Open that starts a connection creates a new one.
type Channel struct {
	settings ConnectionSettings
	opener   Opener
	log      *logrus.Entry

	mu    sync.Mutex
	state State
	port  Port

	// writes hold ioMu for reading; teardown takes it exclusively before
	// releasing the port so no write can race the close
	ioMu sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	events *eventQueue
}

func newChannel(settings ConnectionSettings, opener Opener, log *logrus.Entry) *Channel {
	return &Channel{
		settings: settings,
		opener:   opener,
		log:      log.WithField("port", settings.Port),
		state:    StateOpening,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		events:   newEventQueue(),
	}
}

// Settings returns the settings the channel was opened with
func (c *Channel) Settings() ConnectionSettings {
	return c.settings
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen returns true while the port is open and being read
func (c *Channel) IsOpen() bool {
	return c.State() == StateOpen
}

// Events returns the ordered event stream of this channel. It is closed after
// the final StatusChanged(false). The consumer must drain it until closed.
func (c *Channel) Events() <-chan Event {
	return c.events.out
}

// Done is closed once the reader has exited and the port has been released
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send writes data to the port. A write failure is returned and also
// reported as an error event; it does not close the channel.
func (c *Channel) Send(data []byte) error {
	c.ioMu.RLock()
	defer c.ioMu.RUnlock()

	c.mu.Lock()
	state, port := c.state, c.port
	c.mu.Unlock()

	if state != StateOpen || port == nil {
		return apperror.New(apperror.KindNotOpen, "send", "serial port is not open")
	}

	for len(data) > 0 {
		n, err := port.Write(data)
		if err == nil && n == 0 {
			err = io.ErrShortWrite
		}
		if err != nil {
			werr := apperror.Wrap(apperror.KindWriteFailed, "write "+c.settings.Port, err)
			c.log.WithError(err).Warn("write failed")
			c.events.push(errorEvent(werr))
			return werr
		}
		data = data[n:]
	}
	return nil
}

// Close stops the reader and waits until it has released the port. It is
// idempotent and may be called from any goroutine; once it returns the
// channel emits no further events. The channel reports StateClosing from the
// moment Close is called until the port is released.
func (c *Channel) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		if c.state == StateOpening || c.state == StateOpen {
			c.state = StateClosing
		}
		close(c.stop)
		c.mu.Unlock()
	})
	<-c.done
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Channel) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// run is the channel goroutine: open, read until stopped or failed, release
func (c *Channel) run() {
	defer close(c.done)
	defer c.events.close()

	if c.settings.FlowControl == FlowSoftwareXonXoff {
		c.log.Warn("software flow control is not supported by the driver, opening without it")
	}

	port, err := c.openPort()
	if err != nil {
		c.setState(StateFailed)
		c.log.WithError(err).Warn("open failed")
		c.events.push(errorEvent(apperror.Wrap(apperror.KindOpenFailed, "open "+c.settings.Port, err)))
		c.events.push(statusEvent(false))
		c.setState(StateClosed)
		return
	}

	// stop is closed under mu, so a Close racing the open either sees
	// StateOpen or prevents it
	c.mu.Lock()
	opened := !c.stopping()
	if opened {
		c.port = port
		c.state = StateOpen
	}
	c.mu.Unlock()

	if opened {
		c.events.push(statusEvent(true))
		c.log.WithField("settings", c.settings.Summary()).Info("port opened")

		c.readLoop(port)
	}

	c.release(port)
}

func (c *Channel) openPort() (Port, error) {
	port, err := c.opener(c.settings)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(c.settings.readTimeout()); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return port, nil
}

func (c *Channel) readLoop(port Port) {
	buf := make([]byte, readBufferSize)
	idle := time.NewTimer(c.settings.idleSleep())
	defer idle.Stop()

	for !c.stopping() {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.events.push(dataEvent(chunk))
		}

		if err != nil {
			if errors.Is(err, io.EOF) && c.stopping() {
				return
			}
			c.log.WithError(err).Warn("read failed")
			c.events.push(errorEvent(apperror.Wrap(apperror.KindReadFault, "read "+c.settings.Port, err)))
			return
		}

		if n == 0 {
			idle.Reset(c.settings.idleSleep())
			select {
			case <-c.stop:
				return
			case <-idle.C:
			}
		}
	}
}

// release closes the port once no write is in flight and reports the final
// closed status
func (c *Channel) release(port Port) {
	c.setState(StateClosing)

	c.ioMu.Lock()
	err := port.Close()
	c.mu.Lock()
	c.port = nil
	c.mu.Unlock()
	c.ioMu.Unlock()

	if err != nil {
		c.log.WithError(err).Debug("close reported an error")
	}
	c.log.Info("port closed")

	c.events.push(statusEvent(false))
	c.setState(StateClosed)
}
