// Package terminal turns received byte chunks into display and log text
package terminal

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the layout of the marker placed at the start of lines
const TimestampLayout = "15:04:05.000"

// ViewMode selects how received bytes are shown
type ViewMode int

const (
	ViewText ViewMode = iota
	ViewHex
)

// String returns the string representation of ViewMode
func (m ViewMode) String() string {
	switch m {
	case ViewText:
		return "text"
	case ViewHex:
		return "hex"
	default:
		return "unknown"
	}
}

// Direction tags a log line as received or sent
type Direction int

const (
	DirectionRX Direction = iota
	DirectionTX
)

// String returns the string representation of Direction
func (d Direction) String() string {
	if d == DirectionTX {
		return "TX"
	}
	return "RX"
}

// Rendered is the display text produced for one chunk. Display is false when
// there is nothing to show.
type Rendered struct {
	Text    string
	Display bool
}

// Pipeline renders chunks and formats log lines, tracking line starts across
// calls. It is safe for concurrent use.
type Pipeline struct {
	mu  sync.Mutex
	now func() time.Time

	decoder     *streamDecoder
	atLineStart bool
	logDecoders [2]*streamDecoder
	logStart    [2]bool
}

// NewPipeline creates a pipeline stamping with the wall clock
func NewPipeline() *Pipeline {
	return NewPipelineWithClock(time.Now)
}

// NewPipelineWithClock creates a pipeline using now for timestamps
func NewPipelineWithClock(now func() time.Time) *Pipeline {
	return &Pipeline{
		now:         now,
		decoder:     newStreamDecoder(),
		atLineStart: true,
		logDecoders: [2]*streamDecoder{newStreamDecoder(), newStreamDecoder()},
		logStart:    [2]bool{true, true},
	}
}

// Render converts a received chunk to display text
func (p *Pipeline) Render(chunk []byte, mode ViewMode, withTimestamp bool) Rendered {
	p.mu.Lock()
	defer p.mu.Unlock()

	var text string
	if mode == ViewHex {
		// bytes held back by text mode are shown rather than dropped
		if held := p.decoder.Take(); len(held) > 0 {
			chunk = append(held, chunk...)
		}
		text = hexString(chunk)
	} else {
		text = p.decoder.Decode(chunk)
	}

	return p.displayLocked(text, withTimestamp)
}

// Flush renders the bytes of an unfinished UTF-8 sequence held back by text
// mode, invalid bytes as U+FFFD. It is used when no more data will
// complete them, such as on a view switch or at the end of the stream.
func (p *Pipeline) Flush(withTimestamp bool) Rendered {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayLocked(p.decoder.Flush(), withTimestamp)
}

func (p *Pipeline) displayLocked(text string, withTimestamp bool) Rendered {
	if text == "" {
		return Rendered{}
	}

	out := text
	if withTimestamp {
		out = stamp(text, p.marker(""), p.atLineStart)
	}
	p.atLineStart = strings.HasSuffix(text, "\n")

	return Rendered{Text: out, Display: true}
}

// Log formats text for the log file. Log lines are always stamped and carry
// the direction tag; each direction tracks its own line starts.
func (p *Pipeline) Log(text string, dir Direction) string {
	if text == "" {
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.logLocked(text, dir)
}

// LogChunk decodes raw bytes as text and formats them like Log. Sequences
// split across chunks are carried per direction.
func (p *Pipeline) LogChunk(chunk []byte, dir Direction) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := p.logDecoders[dir].Decode(chunk)
	if text == "" {
		return ""
	}
	return p.logLocked(text, dir)
}

func (p *Pipeline) logLocked(text string, dir Direction) string {
	out := stamp(text, p.marker(dir.String()+" "), p.logStart[dir])
	p.logStart[dir] = strings.HasSuffix(text, "\n")
	return out
}

// AtLineStart reports whether the next displayed chunk begins a new line
func (p *Pipeline) AtLineStart() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.atLineStart
}

// Clear resets the display state, as after clearing the output
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.atLineStart = true
	p.decoder.Reset()
}

// ResetLog resets the log line starts, as after opening a new log file
func (p *Pipeline) ResetLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logStart = [2]bool{true, true}
	for _, d := range p.logDecoders {
		d.Reset()
	}
}

func (p *Pipeline) marker(tag string) string {
	return tag + "[" + p.now().Format(TimestampLayout) + "] "
}

// stamp puts marker in front of every line of text. A trailing line break
// gets no marker because nothing follows it yet.
func stamp(text, marker string, atLineStart bool) string {
	var b strings.Builder
	b.Grow(len(text) + 2*len(marker))

	if atLineStart {
		b.WriteString(marker)
	}
	for i := 0; i < len(text); i++ {
		b.WriteByte(text[i])
		if text[i] == '\n' && i < len(text)-1 {
			b.WriteString(marker)
		}
	}
	return b.String()
}

func hexString(chunk []byte) string {
	var b strings.Builder
	b.Grow(3 * len(chunk))
	for _, c := range chunk {
		fmt.Fprintf(&b, "%02X ", c)
	}
	return b.String()
}
