package serial

import (
	"sync"

	"github.com/sirupsen/logrus"

	"spark-terminal/pkg/apperror"
	"spark-terminal/pkg/logging"
)

// ErrChannelBusy is returned by Open while the previous channel is still
// shutting down
var ErrChannelBusy = apperror.New(apperror.KindOpenFailed, "open", "previous connection is still closing")

// Manager hands out at most one active Channel at a time
type Manager struct {
	opener Opener
	log    *logrus.Entry

	mu      sync.Mutex
	current *Channel
}

// NewManager creates a manager that opens real devices
func NewManager(log *logrus.Entry) *Manager {
	return NewManagerWithOpener(openDevice, log)
}

// NewManagerWithOpener creates a manager using opener to reach the device
func NewManagerWithOpener(opener Opener, log *logrus.Entry) *Manager {
	return &Manager{
		opener: opener,
		log:    logging.For(log, "serial"),
	}
}

// Open starts a channel for settings. The device is opened on the channel
// goroutine: success arrives as StatusChanged(true), failure as an error
// event followed by StatusChanged(false). If a channel is already opening or
// open it is returned unchanged and no new events are produced.
func (m *Manager) Open(settings ConnectionSettings) (*Channel, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		switch m.current.State() {
		case StateOpening, StateOpen:
			m.log.WithField("port", m.current.settings.Port).Debug("channel already active")
			return m.current, nil
		case StateClosing, StateFailed:
			return nil, ErrChannelBusy
		}
	}

	ch := newChannel(settings, m.opener, m.log)
	m.current = ch
	go ch.run()

	return ch, nil
}

// Current returns the most recently opened channel, or nil
func (m *Manager) Current() *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the current channel, if any, and waits for it to finish
func (m *Manager) Close() {
	m.mu.Lock()
	ch := m.current
	m.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}
