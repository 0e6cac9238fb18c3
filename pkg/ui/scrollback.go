// Package ui holds the widgets of the full screen terminal: the scrollback
// of received text, the input line and text drawing helpers
package ui

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// DefaultScrollbackLines bounds the lines kept for scrolling back
const DefaultScrollbackLines = 5000

const tabWidth = 4

// Scrollback keeps received text as logical lines and wraps them to the
// screen width on demand. It is safe for concurrent use.
type Scrollback struct {
	mu       sync.Mutex
	lines    []string
	partial  strings.Builder
	maxLines int
	offset   int
}

// NewScrollback creates a scrollback holding at most maxLines lines
func NewScrollback(maxLines int) *Scrollback {
	if maxLines <= 0 {
		maxLines = DefaultScrollbackLines
	}
	return &Scrollback{maxLines: maxLines}
}

// Append adds text. '\n' ends a line, '\r' is dropped, tabs become spaces
// and other control characters are skipped.
func (s *Scrollback) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range text {
		switch {
		case r == '\n':
			s.lines = append(s.lines, s.partial.String())
			s.partial.Reset()
		case r == '\t':
			s.partial.WriteString(strings.Repeat(" ", tabWidth))
		case r < ' ' || r == 0x7f:
		default:
			s.partial.WriteRune(r)
		}
	}

	if over := len(s.lines) - s.maxLines; over > 0 {
		s.lines = append([]string(nil), s.lines[over:]...)
	}
}

// Clear drops all text and returns to the bottom
func (s *Scrollback) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.partial.Reset()
	s.offset = 0
}

// Len returns the number of logical lines, counting an unfinished one
func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.lines)
	if s.partial.Len() > 0 {
		n++
	}
	return n
}

// Text returns everything held, lines joined by '\n'
func (s *Scrollback) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append(append([]string(nil), s.lines...), s.partial.String())
	return strings.Join(all, "\n")
}

// Scroll moves the view by delta rows; positive values go back in time
func (s *Scrollback) Scroll(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += delta
	if s.offset < 0 {
		s.offset = 0
	}
}

// Offset returns how many rows the view is scrolled back
func (s *Scrollback) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Rows returns at most height rows of width cells ending at the current
// scroll position
func (s *Scrollback) Rows(width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []string
	for _, line := range s.lines {
		rows = append(rows, Wrap(line, width)...)
	}
	if s.partial.Len() > 0 {
		rows = append(rows, Wrap(s.partial.String(), width)...)
	}

	maxOffset := len(rows) - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if s.offset > maxOffset {
		s.offset = maxOffset
	}

	end := len(rows) - s.offset
	start := end - height
	if start < 0 {
		start = 0
	}
	return rows[start:end]
}

// Wrap splits line into rows no wider than width cells. An empty line is
// one empty row.
func Wrap(line string, width int) []string {
	if width <= 0 {
		return nil
	}

	var rows []string
	var row strings.Builder
	cells := 0
	for _, r := range line {
		w := runewidth.RuneWidth(r)
		if cells+w > width && cells > 0 {
			rows = append(rows, row.String())
			row.Reset()
			cells = 0
		}
		row.WriteRune(r)
		cells += w
	}
	return append(rows, row.String())
}
