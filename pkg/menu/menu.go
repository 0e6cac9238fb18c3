// Package menu draws a modal picker over the terminal screen
package menu

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"spark-terminal/pkg/commands"
	"spark-terminal/pkg/ui"
)

const (
	minWidth = 24
	// maxVisible bounds the rows shown at once; longer lists scroll
	maxVisible = 12
)

// Item is one row of the picker
type Item struct {
	Label    string
	Detail   string
	Shortcut rune
}

// Picker is a centered list the user picks one row from. It remembers the
// screen region it covers and puts it back when hidden.
type Picker struct {
	screen   tcell.Screen
	title    string
	empty    string
	items    []Item
	selected int
	top      int
	visible  bool
	x, y     int
	width    int
	height   int
	saved    [][]savedCell

	onSelect func(index int)
	onClose  func()
}

type savedCell struct {
	char  rune
	style tcell.Style
}

// New creates a hidden picker
func New(title string, screen tcell.Screen) *Picker {
	return &Picker{
		screen: screen,
		title:  title,
		empty:  "(empty)",
		width:  minWidth,
		height: 5,
	}
}

// FromCommands builds one row per saved command; the first nine get the
// digit shortcuts 1-9
func FromCommands(entries []commands.Entry) []Item {
	items := make([]Item, 0, len(entries))
	for i, e := range entries {
		item := Item{Label: e.Name, Detail: e.Command}
		if e.IsHex {
			item.Detail = "[HEX] " + e.Command
		}
		if i < 9 {
			item.Shortcut = rune('1' + i)
		}
		items = append(items, item)
	}
	return items
}

// SetItems replaces the rows and resets the selection
func (p *Picker) SetItems(items []Item) {
	p.items = items
	p.selected = 0
	p.top = 0
	p.updateDimensions()
}

// SetEmptyText sets what is shown when there are no rows
func (p *Picker) SetEmptyText(text string) {
	p.empty = text
	p.updateDimensions()
}

// SetOnSelect sets the callback run with the index of the picked row
func (p *Picker) SetOnSelect(callback func(index int)) {
	p.onSelect = callback
}

// SetOnClose sets the callback run whenever the picker is hidden
func (p *Picker) SetOnClose(callback func()) {
	p.onClose = callback
}

// Selected returns the index of the highlighted row
func (p *Picker) Selected() int {
	return p.selected
}

// IsVisible returns whether the picker is shown
func (p *Picker) IsVisible() bool {
	return p.visible
}

// Show centers the picker and draws it
func (p *Picker) Show() {
	screenWidth, screenHeight := p.screen.Size()
	p.x = max((screenWidth-p.width)/2, 0)
	p.y = max((screenHeight-p.height)/2, 0)
	p.save()
	p.visible = true
	p.Draw()
}

// Hide removes the picker, restoring what it covered
func (p *Picker) Hide() {
	if !p.visible {
		return
	}
	p.visible = false
	p.restore()
	if p.onClose != nil {
		p.onClose()
	}
}

// Draw renders the picker if it is visible
func (p *Picker) Draw() {
	if !p.visible {
		return
	}

	style := tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	selectedStyle := tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	detailStyle := style.Foreground(tcell.ColorSilver)

	p.drawBorder(style)

	inner := p.width - 2
	titleX := p.x + max((p.width-runewidth.StringWidth(p.title))/2, 1)
	ui.DrawText(p.screen, titleX, p.y, runewidth.StringWidth(p.title), p.title, style.Bold(true))

	rowY := p.y + 1
	if len(p.items) == 0 {
		ui.DrawText(p.screen, p.x+1, rowY, inner, " "+p.empty, detailStyle)
		p.screen.Show()
		return
	}

	for i := p.top; i < len(p.items) && i < p.top+p.visibleRows(); i++ {
		item := p.items[i]
		rowStyle, rowDetail := style, detailStyle
		if i == p.selected {
			rowStyle, rowDetail = selectedStyle, selectedStyle
		}

		key := "  "
		if item.Shortcut != 0 {
			key = string(item.Shortcut) + "."
		}
		label := fmt.Sprintf(" %s %s", key, item.Label)
		used := ui.DrawText(p.screen, p.x+1, rowY, inner, label, rowStyle)
		if item.Detail != "" && used+3 < inner {
			ui.DrawText(p.screen, p.x+1+used+2, rowY, inner-used-2, item.Detail, rowDetail)
		}
		rowY++
	}

	p.screen.Show()
}

// HandleKey processes a key while the picker is visible. It reports whether
// the key was consumed.
func (p *Picker) HandleKey(ev *tcell.EventKey) bool {
	if !p.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		p.Hide()
	case tcell.KeyUp:
		p.moveSelection(-1)
		p.Draw()
	case tcell.KeyDown:
		p.moveSelection(1)
		p.Draw()
	case tcell.KeyPgUp:
		p.moveSelection(-p.visibleRows())
		p.Draw()
	case tcell.KeyPgDn:
		p.moveSelection(p.visibleRows())
		p.Draw()
	case tcell.KeyEnter:
		p.activate(p.selected)
	case tcell.KeyRune:
		for i, item := range p.items {
			if item.Shortcut != 0 && item.Shortcut == ev.Rune() {
				p.activate(i)
				break
			}
		}
	}
	return true
}

func (p *Picker) activate(index int) {
	if index < 0 || index >= len(p.items) {
		return
	}
	p.Hide()
	if p.onSelect != nil {
		p.onSelect(index)
	}
}

// moveSelection moves the highlight, clamping at both ends and scrolling
// the window of visible rows
func (p *Picker) moveSelection(delta int) {
	if len(p.items) == 0 {
		return
	}
	p.selected = min(max(p.selected+delta, 0), len(p.items)-1)

	rows := p.visibleRows()
	if p.selected < p.top {
		p.top = p.selected
	} else if p.selected >= p.top+rows {
		p.top = p.selected - rows + 1
	}
}

func (p *Picker) visibleRows() int {
	return min(len(p.items), maxVisible)
}

func (p *Picker) drawBorder(style tcell.Style) {
	right, bottom := p.x+p.width-1, p.y+p.height-1

	p.screen.SetContent(p.x, p.y, '┌', nil, style)
	p.screen.SetContent(right, p.y, '┐', nil, style)
	p.screen.SetContent(p.x, bottom, '└', nil, style)
	p.screen.SetContent(right, bottom, '┘', nil, style)
	for x := p.x + 1; x < right; x++ {
		p.screen.SetContent(x, p.y, '─', nil, style)
		p.screen.SetContent(x, bottom, '─', nil, style)
	}

	for y := p.y + 1; y < bottom; y++ {
		p.screen.SetContent(p.x, y, '│', nil, style)
		p.screen.SetContent(right, y, '│', nil, style)
		for x := p.x + 1; x < right; x++ {
			p.screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

func (p *Picker) updateDimensions() {
	width := runewidth.StringWidth(p.title) + 4
	if len(p.items) == 0 {
		width = max(width, runewidth.StringWidth(p.empty)+4)
	}
	for _, item := range p.items {
		w := runewidth.StringWidth(item.Label) + runewidth.StringWidth(item.Detail) + 9
		width = max(width, w)
	}

	if screenWidth, _ := p.screen.Size(); screenWidth > 0 {
		width = min(width, screenWidth)
	}
	p.width = max(width, minWidth)
	p.height = max(p.visibleRows(), 1) + 2
}

// save copies the cells the picker is about to cover
func (p *Picker) save() {
	p.saved = make([][]savedCell, p.height)
	for dy := range p.saved {
		p.saved[dy] = make([]savedCell, p.width)
		for dx := range p.saved[dy] {
			char, _, style, _ := p.screen.GetContent(p.x+dx, p.y+dy)
			p.saved[dy][dx] = savedCell{char: char, style: style}
		}
	}
}

func (p *Picker) restore() {
	for dy, row := range p.saved {
		for dx, cell := range row {
			p.screen.SetContent(p.x+dx, p.y+dy, cell.char, nil, cell.style)
		}
	}
	p.saved = nil
	p.screen.Show()
}
