// Package input maps terminal key events onto board edits and world calls.
package input

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"

	"dominoes.run/internal/render"
	"dominoes.run/internal/sim/catalogs"
	simenc "dominoes.run/internal/sim/encoding"
	"dominoes.run/internal/sim/world"
)

// Files is the save file backend.
type Files interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// OSFiles reads and writes the local filesystem.
type OSFiles struct{}

func (OSFiles) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }
func (OSFiles) WriteFile(name string, data []byte) error {
	return os.WriteFile(name, data, 0o644)
}

// Mapper holds the cursor and the save file name. It must be used from the
// world goroutine.
type Mapper struct {
	w     *world.World
	files Files

	X, Y int
	// Travel is the direction of the last cursor move. Placement advances
	// along it and activation knocks along it.
	Travel catalogs.Direction
	File   string
	Status string

	prompt *render.Prompt
}

func New(w *world.World, files Files, file string) *Mapper {
	if files == nil {
		files = OSFiles{}
	}
	return &Mapper{w: w, files: files, File: file}
}

// Prompt returns the open filename prompt, or nil.
func (m *Mapper) Prompt() *render.Prompt { return m.prompt }

// HandleEvent applies one terminal event and reports whether the host should
// keep running.
func (m *Mapper) HandleEvent(ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		return true
	}
	if key.Key() == tcell.KeyCtrlC {
		return false
	}
	if m.prompt != nil {
		m.handlePrompt(key)
		return true
	}
	return m.handleKey(key)
}

func (m *Mapper) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		return false
	case tcell.KeyRight:
		m.move(catalogs.Right, ev.Modifiers())
	case tcell.KeyUp:
		m.move(catalogs.Up, ev.Modifiers())
	case tcell.KeyLeft:
		m.move(catalogs.Left, ev.Modifiers())
	case tcell.KeyDown:
		m.move(catalogs.Down, ev.Modifiers())
	case tcell.KeyEnter:
		m.w.Activate(m.X, m.Y, m.Travel)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		m.step(catalogs.Rotate(m.Travel, 2), 1)
		m.w.RemoveNode(m.X, m.Y)
	case tcell.KeyRune:
		m.handleRune(ev.Rune())
	}
	return true
}

func (m *Mapper) handleRune(r rune) {
	switch r {
	case ' ':
		m.Status = fmt.Sprintf("started %d", m.w.Start())
	case 'r':
		m.w.Reset()
		m.Status = ""
	case 's':
		m.setStatus(m.Save())
	case 'l':
		m.setStatus(m.Load())
	case 'o':
		m.prompt = &render.Prompt{Value: m.File}
	default:
		if m.w.AddNode(string(r), m.X, m.Y) {
			m.step(m.Travel, 1)
		}
	}
}

func (m *Mapper) handlePrompt(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEnter:
		if v := strings.TrimSpace(m.prompt.Value); v != "" {
			m.File = v
		}
		m.prompt = nil
	case tcell.KeyEscape:
		m.prompt = nil
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if v := []rune(m.prompt.Value); len(v) > 0 {
			m.prompt.Value = string(v[:len(v)-1])
		}
	case tcell.KeyRune:
		if r := ev.Rune(); r >= ' ' {
			m.prompt.Value += string(r)
		}
	}
}

func (m *Mapper) move(d catalogs.Direction, mods tcell.ModMask) {
	n := 1
	if mods&tcell.ModShift != 0 {
		n = 3
	}
	m.Travel = d
	m.step(d, n)
}

func (m *Mapper) step(d catalogs.Direction, n int) {
	dx, dy := d.Delta()
	m.X += dx * n
	m.Y += dy * n
}

var errNoFile = errors.New("no save file")

// Save writes the board to File in the format its extension selects.
func (m *Mapper) Save() error {
	if m.File == "" {
		return errNoFile
	}
	data, err := simenc.EncodeFile(m.File, m.w.Entries())
	if err != nil {
		return err
	}
	return m.files.WriteFile(m.File, data)
}

// Load replaces the board with File's contents. A file that fails to read
// or decode leaves the board untouched.
func (m *Mapper) Load() error {
	if m.File == "" {
		return errNoFile
	}
	data, err := m.files.ReadFile(m.File)
	if err != nil {
		return err
	}
	entries, err := simenc.DecodeFile(m.File, data)
	if err != nil {
		return err
	}
	m.w.Load(entries)
	return nil
}

func (m *Mapper) setStatus(err error) {
	if err != nil {
		m.Status = err.Error()
		return
	}
	m.Status = ""
}

// Overlay is the cursor, status and prompt for render.Draw.
func (m *Mapper) Overlay() render.Overlay {
	status := fmt.Sprintf("(%d, %d) %d", m.X, m.Y, m.w.Len())
	if m.Status != "" {
		status += " " + m.Status
	}
	return render.Overlay{CursorX: m.X, CursorY: m.Y, Status: status, Prompt: m.prompt}
}
