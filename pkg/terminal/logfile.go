package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultLogFileName returns the suggested name of a log started at now
func DefaultLogFileName(now time.Time) string {
	return now.Format("serial_log_20060102_150405.txt")
}

// LogFile is an append-only session log flushed after every write
type LogFile struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenLogFile opens path for appending, creating its directory if needed
func OpenLogFile(path string) (*LogFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &LogFile{path: path, file: file}, nil
}

// Path returns the file path
func (l *LogFile) Path() string {
	return l.path
}

// WriteString appends text and flushes it to disk
func (l *LogFile) WriteString(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file %s is closed", l.path)
	}
	if _, err := l.file.WriteString(text); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush log file: %w", err)
	}
	return nil
}

// Close closes the file. Closing twice is a no-op.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
