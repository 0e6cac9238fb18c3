package history

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultTranscriptSize bounds the bytes kept by a transcript
const DefaultTranscriptSize = 4 * 1024 * 1024

// Direction represents the direction of data flow
type Direction int

const (
	DirectionReceived Direction = iota
	DirectionSent
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionReceived:
		return "rx"
	case DirectionSent:
		return "tx"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FileFormat represents the transcript export formats
type FileFormat int

const (
	FormatPlainText FileFormat = iota
	FormatTimestamped
	FormatJSON
)

// String returns the string representation of FileFormat
func (f FileFormat) String() string {
	switch f {
	case FormatPlainText:
		return "plain_text"
	case FormatTimestamped:
		return "timestamped"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFileFormat converts a format name or file extension to a FileFormat
func ParseFileFormat(s string) (FileFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "plain_text", "plain", "raw", "bin":
		return FormatPlainText, nil
	case "timestamped", "txt", "log", "":
		return FormatTimestamped, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatTimestamped, fmt.Errorf("unsupported format: %s", s)
}

// Entry is one chunk of traffic
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Data      []byte    `json:"data"`
}

// Stats summarizes a transcript
type Stats struct {
	Entries       int `json:"entries"`
	ReceivedBytes int `json:"received_bytes"`
	SentBytes     int `json:"sent_bytes"`
}

// Transcript keeps the raw traffic of a session in memory, dropping the
// oldest chunks once maxSize bytes are held
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	maxSize int
	now     func() time.Time
}

// NewTranscript creates a transcript holding at most maxSize bytes
func NewTranscript(maxSize int) *Transcript {
	if maxSize <= 0 {
		maxSize = DefaultTranscriptSize
	}
	return &Transcript{maxSize: maxSize, now: time.Now}
}

// Write records a copy of data
func (t *Transcript) Write(data []byte, direction Direction) {
	if len(data) == 0 {
		return
	}

	entry := Entry{
		Timestamp: t.now(),
		Direction: direction,
		Data:      append([]byte(nil), data...),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for t.size+len(data) > t.maxSize && len(t.entries) > 0 {
		t.size -= len(t.entries[0].Data)
		t.entries[0] = Entry{}
		t.entries = t.entries[1:]
	}

	t.entries = append(t.entries, entry)
	t.size += len(data)
}

// Entries returns a copy of the recorded entries, oldest first
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Size returns the number of bytes held
func (t *Transcript) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Stats returns the transcript statistics
func (t *Transcript) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{Entries: len(t.entries)}
	for _, e := range t.entries {
		if e.Direction == DirectionSent {
			stats.SentBytes += len(e.Data)
		} else {
			stats.ReceivedBytes += len(e.Data)
		}
	}
	return stats
}

// Clear drops all entries
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.size = 0
}

// SaveToFile writes the transcript to filename in the given format
func (t *Transcript) SaveToFile(filename string, format FileFormat) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return t.Export(file, format)
}

// Export writes the transcript to w in the given format
func (t *Transcript) Export(w io.Writer, format FileFormat) error {
	entries := t.Entries()

	switch format {
	case FormatPlainText:
		return writePlainText(w, entries)
	case FormatTimestamped:
		return writeTimestamped(w, entries)
	case FormatJSON:
		return writeJSON(w, entries)
	default:
		return fmt.Errorf("unsupported format: %v", format)
	}
}

func writePlainText(w io.Writer, entries []Entry) error {
	for _, entry := range entries {
		if entry.Direction != DirectionReceived {
			continue
		}
		if _, err := w.Write(entry.Data); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}
	return nil
}

func writeTimestamped(w io.Writer, entries []Entry) error {
	for _, entry := range entries {
		direction := "<<"
		if entry.Direction == DirectionSent {
			direction = ">>"
		}

		line := fmt.Sprintf("[%s] %s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			direction,
			strings.ReplaceAll(string(entry.Data), "\n", "\\n"))

		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write timestamped data: %w", err)
		}
	}
	return nil
}

func writeJSON(w io.Writer, entries []Entry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	data := struct {
		Entries []Entry `json:"entries"`
		Count   int     `json:"count"`
	}{
		Entries: entries,
		Count:   len(entries),
	}

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
