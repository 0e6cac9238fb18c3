package ui

import (
	"github.com/mattn/go-runewidth"
)

// InputLine is an editable single line with a cursor
type InputLine struct {
	text   []rune
	cursor int
}

// Text returns the current content
func (l *InputLine) Text() string {
	return string(l.text)
}

// Cursor returns the cursor position in runes
func (l *InputLine) Cursor() int {
	return l.cursor
}

// Set replaces the content and moves the cursor to the end
func (l *InputLine) Set(text string) {
	l.text = []rune(text)
	l.cursor = len(l.text)
}

// Clear empties the line
func (l *InputLine) Clear() {
	l.text = nil
	l.cursor = 0
}

// Insert types r at the cursor
func (l *InputLine) Insert(r rune) {
	l.text = append(l.text, 0)
	copy(l.text[l.cursor+1:], l.text[l.cursor:])
	l.text[l.cursor] = r
	l.cursor++
}

// Backspace removes the rune before the cursor
func (l *InputLine) Backspace() {
	if l.cursor == 0 {
		return
	}
	l.text = append(l.text[:l.cursor-1], l.text[l.cursor:]...)
	l.cursor--
}

// Delete removes the rune under the cursor
func (l *InputLine) Delete() {
	if l.cursor >= len(l.text) {
		return
	}
	l.text = append(l.text[:l.cursor], l.text[l.cursor+1:]...)
}

func (l *InputLine) Left() {
	if l.cursor > 0 {
		l.cursor--
	}
}

func (l *InputLine) Right() {
	if l.cursor < len(l.text) {
		l.cursor++
	}
}

func (l *InputLine) Home() { l.cursor = 0 }
func (l *InputLine) End()  { l.cursor = len(l.text) }

// View returns the part of the line that fits in width cells, scrolled so
// the cursor stays visible, and the cursor column within it
func (l *InputLine) View(width int) (string, int) {
	if width <= 0 {
		return "", 0
	}

	start := 0
	for runewidth.StringWidth(string(l.text[start:l.cursor])) >= width {
		start++
	}

	col := runewidth.StringWidth(string(l.text[start:l.cursor]))
	visible := runewidth.Truncate(string(l.text[start:]), width, "")
	return visible, col
}
