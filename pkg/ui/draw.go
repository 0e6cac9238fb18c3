package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// DrawText writes text at (x, y) clipped to width cells and pads the rest of
// the width with blanks in the same style. It returns the cells written.
func DrawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) int {
	col := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > width {
			break
		}
		screen.SetContent(x+col, y, r, nil, style)
		col += w
	}

	used := col
	for ; col < width; col++ {
		screen.SetContent(x+col, y, ' ', nil, style)
	}
	return used
}

// ReadRow returns the characters of row y in the first width cells, skipping
// the continuation cells of wide runes
func ReadRow(screen tcell.Screen, y, width int) string {
	var row []rune
	for x := 0; x < width; {
		r, _, _, w := screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		row = append(row, r)
		if w < 1 {
			w = 1
		}
		x += w
	}
	return string(row)
}
