package ui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		width int
		want  []string
	}{
		{"empty", "", 10, []string{""}},
		{"fits", "hello", 10, []string{"hello"}},
		{"exact", "hello", 5, []string{"hello"}},
		{"wraps", "hello world", 5, []string{"hello", " worl", "d"}},
		{"wide runes", "日本語テキスト", 6, []string{"日本語", "テキス", "ト"}},
		{"wide rune at edge", "a日本", 4, []string{"a日", "本"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.line, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.line, tt.width, got, tt.want)
			}
		})
	}
}

func TestScrollback_Append(t *testing.T) {
	s := NewScrollback(0)

	s.Append("first\r\nsec")
	s.Append("ond\n\tthird\x07")

	if got := s.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	want := "first\nsecond\n    third"
	if got := s.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}

	s.Clear()
	if s.Len() != 0 || s.Text() != "" {
		t.Errorf("after Clear() Len() = %d, Text() = %q", s.Len(), s.Text())
	}
}

func TestScrollback_Limit(t *testing.T) {
	s := NewScrollback(3)
	for i := 1; i <= 5; i++ {
		s.Append(fmt.Sprintf("line %d\n", i))
	}

	if got := s.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if got := s.Text(); !strings.HasPrefix(got, "line 3\n") {
		t.Errorf("Text() = %q, want oldest lines dropped", got)
	}
}

func TestScrollback_RowsAndScroll(t *testing.T) {
	s := NewScrollback(0)
	for i := 1; i <= 10; i++ {
		s.Append(fmt.Sprintf("%d\n", i))
	}

	rows := s.Rows(20, 3)
	if strings.Join(rows, ",") != "8,9,10" {
		t.Errorf("Rows() = %v, want [8 9 10]", rows)
	}

	s.Scroll(2)
	rows = s.Rows(20, 3)
	if strings.Join(rows, ",") != "6,7,8" {
		t.Errorf("Rows() after Scroll(2) = %v, want [6 7 8]", rows)
	}

	s.Scroll(100)
	rows = s.Rows(20, 3)
	if strings.Join(rows, ",") != "1,2,3" {
		t.Errorf("Rows() scrolled past the top = %v, want [1 2 3]", rows)
	}
	if got := s.Offset(); got != 7 {
		t.Errorf("Offset() = %d, want 7", got)
	}

	s.Scroll(-100)
	if got := s.Offset(); got != 0 {
		t.Errorf("Offset() = %d, want 0", got)
	}

	if rows := s.Rows(0, 3); rows != nil {
		t.Errorf("Rows() with zero width = %v, want nil", rows)
	}
}

func TestScrollback_RowsWrapsPartialLine(t *testing.T) {
	s := NewScrollback(0)
	s.Append("abcdefgh")

	rows := s.Rows(3, 10)
	if strings.Join(rows, ",") != "abc,def,gh" {
		t.Errorf("Rows() = %v, want [abc def gh]", rows)
	}
}

func TestInputLine_Editing(t *testing.T) {
	var l InputLine

	for _, r := range "ATZ" {
		l.Insert(r)
	}
	l.Left()
	l.Backspace()
	if got := l.Text(); got != "AZ" {
		t.Errorf("Text() = %q, want AZ", got)
	}

	l.Home()
	l.Insert('>')
	l.End()
	l.Insert('!')
	if got := l.Text(); got != ">AZ!" {
		t.Errorf("Text() = %q, want >AZ!", got)
	}

	l.Home()
	l.Delete()
	l.Right()
	l.Delete()
	if got := l.Text(); got != "A!" {
		t.Errorf("Text() = %q, want A!", got)
	}

	l.Home()
	l.Backspace()
	l.End()
	l.Delete()
	if got := l.Text(); got != "A!" {
		t.Errorf("edits at the edges changed the text: %q", got)
	}

	l.Set("ATI")
	if l.Cursor() != 3 {
		t.Errorf("Cursor() = %d, want 3", l.Cursor())
	}
	l.Clear()
	if l.Text() != "" || l.Cursor() != 0 {
		t.Errorf("after Clear() Text() = %q, Cursor() = %d", l.Text(), l.Cursor())
	}
}

func TestInputLine_View(t *testing.T) {
	var l InputLine
	l.Set("0123456789")

	text, col := l.View(5)
	if text != "6789" || col != 4 {
		t.Errorf("View(5) = (%q, %d), want (\"6789\", 4)", text, col)
	}

	l.Home()
	text, col = l.View(5)
	if text != "01234" || col != 0 {
		t.Errorf("View(5) at home = (%q, %d), want (\"01234\", 0)", text, col)
	}

	l.Set("日本語")
	text, col = l.View(4)
	if text != "語" || col != 2 {
		t.Errorf("View(4) = (%q, %d), want (\"語\", 2)", text, col)
	}
}

func newScreen(t *testing.T, width, height int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	screen.SetSize(width, height)
	t.Cleanup(screen.Fini)
	return screen
}

func TestDrawText(t *testing.T) {
	screen := newScreen(t, 10, 2)

	used := DrawText(screen, 0, 0, 10, "hello", tcell.StyleDefault)
	if used != 5 {
		t.Errorf("DrawText() = %d, want 5", used)
	}
	if got := ReadRow(screen, 0, 10); got != "hello     " {
		t.Errorf("row 0 = %q", got)
	}

	used = DrawText(screen, 2, 1, 5, "clipped text", tcell.StyleDefault)
	if used != 5 {
		t.Errorf("DrawText() = %d, want 5", used)
	}
	if got := ReadRow(screen, 1, 10); got != "  clipp   " {
		t.Errorf("row 1 = %q", got)
	}
}
