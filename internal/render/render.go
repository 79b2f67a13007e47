// Package render draws the board: plain text frames for logs and fixtures,
// and a tcell screen for the interactive host.
package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"dominoes.run/internal/sim/catalogs"
	"dominoes.run/internal/sim/world"
)

// View is the board rectangle shown on screen; (X, Y) is its top-left cell.
type View struct {
	X, Y          int
	Width, Height int
}

// ViewAround centers a width x height view on (cx, cy).
func ViewAround(cx, cy, width, height int) View {
	return View{
		X:      cx - (width+1)/2,
		Y:      cy - (height+1)/2,
		Width:  width,
		Height: height,
	}
}

// TextFrame renders the view as rows of glyphs, blank for empty cells.
func TextFrame(w *world.World, v View) []string {
	rows := make([]string, 0, v.Height)
	var sb strings.Builder
	for y := v.Y; y < v.Y+v.Height; y++ {
		sb.Reset()
		for x := v.X; x < v.X+v.Width; x++ {
			if n := w.NodeAt(x, y); n != nil {
				sb.WriteRune(firstRune(n.Glyph()))
			} else {
				sb.WriteByte(' ')
			}
		}
		rows = append(rows, strings.TrimRight(sb.String(), " "))
	}
	return rows
}

// StateFrame is TextFrame with each occupied cell replaced by a state letter
// (s standing, f falling, F fallen, u unfalling).
func StateFrame(w *world.World, v View) []string {
	rows := make([]string, 0, v.Height)
	var sb strings.Builder
	for y := v.Y; y < v.Y+v.Height; y++ {
		sb.Reset()
		for x := v.X; x < v.X+v.Width; x++ {
			n := w.NodeAt(x, y)
			if n == nil {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteByte(stateLetter(n.State))
		}
		rows = append(rows, strings.TrimRight(sb.String(), " "))
	}
	return rows
}

func stateLetter(s catalogs.State) byte {
	switch s {
	case catalogs.Falling:
		return 'f'
	case catalogs.Fallen:
		return 'F'
	case catalogs.Unfalling:
		return 'u'
	}
	return 's'
}

// StateStyle is the cell style for a node state.
func StateStyle(s catalogs.State) tcell.Style {
	base := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	switch s {
	case catalogs.Falling:
		return base.Background(tcell.ColorGreen)
	case catalogs.Fallen:
		return base.Background(tcell.ColorRed)
	case catalogs.Unfalling:
		return base.Background(tcell.ColorOlive)
	}
	return base.Background(tcell.ColorNavy)
}

// Overlay is what the host draws on top of the board.
type Overlay struct {
	CursorX, CursorY int
	Status           string
	Prompt           *Prompt
}

// Prompt is a one-line text box centered on screen.
type Prompt struct {
	Label string
	Value string
}

// Draw paints the board, the cursor, the status line and any prompt.
func Draw(s tcell.Screen, w *world.World, v View, ov Overlay) {
	s.Clear()
	for sy := 0; sy < v.Height; sy++ {
		for sx := 0; sx < v.Width; sx++ {
			x, y := v.X+sx, v.Y+sy
			r, style := ' ', tcell.StyleDefault
			if n := w.NodeAt(x, y); n != nil {
				r, style = firstRune(n.Glyph()), StateStyle(n.State)
			}
			if x == ov.CursorX && y == ov.CursorY {
				style = style.Reverse(true)
			}
			s.SetContent(sx, sy, r, nil, style)
		}
	}

	status := ov.Status
	if status == "" {
		status = fmt.Sprintf("(%d, %d) %d", ov.CursorX, ov.CursorY, w.Len())
	}
	drawText(s, 0, v.Height-1, status, tcell.StyleDefault)

	if ov.Prompt != nil {
		drawPrompt(s, v, *ov.Prompt)
	}
	s.Show()
}

const promptWidth = 32

func drawPrompt(s tcell.Screen, v View, p Prompt) {
	top := v.Height/2 - 1
	left := v.Width/2 - promptWidth/2
	inner := promptWidth - 2
	style := tcell.StyleDefault

	drawText(s, left, top, "╭"+strings.Repeat("─", inner)+"╮", style)
	drawText(s, left, top+1, "│"+strings.Repeat(" ", inner)+"│", style)
	drawText(s, left, top+2, "╰"+strings.Repeat("─", inner)+"╯", style)

	maxLen := inner - utf8.RuneCountInString(p.Label) - 2
	value := []rune(p.Value)
	if maxLen > 0 && len(value) > maxLen {
		value = value[len(value)-maxLen:]
	}
	drawText(s, left+1, top+1, p.Label+" "+string(value), style)
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return '?'
	}
	return r
}
