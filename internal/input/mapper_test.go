package input

import (
	"errors"
	"os"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dominoes.run/internal/sim/catalogs"
	simenc "dominoes.run/internal/sim/encoding"
	"dominoes.run/internal/sim/world"
)

type memFiles map[string][]byte

func (m memFiles) ReadFile(name string) ([]byte, error) {
	b, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return b, nil
}

func (m memFiles) WriteFile(name string, data []byte) error {
	m[name] = append([]byte(nil), data...)
	return nil
}

func newMapper(t *testing.T, file string) (*Mapper, *world.World, memFiles) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	require.NoError(t, err)
	w, err := world.New(world.Config{}, cats)
	require.NoError(t, err)
	files := memFiles{}
	return New(w, files, file), w, files
}

func key(k tcell.Key) *tcell.EventKey { return tcell.NewEventKey(k, 0, tcell.ModNone) }

func runes(s string) []tcell.Event {
	var out []tcell.Event
	for _, r := range s {
		out = append(out, tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
	return out
}

func feed(t *testing.T, m *Mapper, evs ...tcell.Event) {
	t.Helper()
	for _, ev := range evs {
		require.True(t, m.HandleEvent(ev))
	}
}

func TestArrowsMoveCursor(t *testing.T) {
	m, _, _ := newMapper(t, "")
	feed(t, m, key(tcell.KeyRight), key(tcell.KeyDown), key(tcell.KeyDown))
	assert.Equal(t, 1, m.X)
	assert.Equal(t, 2, m.Y)
	assert.Equal(t, catalogs.Down, m.Travel)

	feed(t, m, tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModShift))
	assert.Equal(t, -2, m.X)
	assert.Equal(t, catalogs.Left, m.Travel)

	feed(t, m, tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModShift))
	assert.Equal(t, -1, m.Y)
}

func TestTypingPlacesAndAdvances(t *testing.T) {
	m, w, _ := newMapper(t, "")
	feed(t, m, runes(">||")...)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 3, m.X)
	assert.Equal(t, ">", w.NodeAt(0, 0).Glyph())
	assert.Equal(t, "|", w.NodeAt(2, 0).Glyph())

	// Unknown glyphs leave the board and the cursor alone.
	feed(t, m, runes("Z")...)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 3, m.X)

	// Moving down switches the placement axis.
	feed(t, m, key(tcell.KeyDown))
	feed(t, m, runes("--")...)
	assert.Equal(t, "-", w.NodeAt(3, 1).Glyph())
	assert.Equal(t, "-", w.NodeAt(3, 2).Glyph())
	assert.Equal(t, 3, m.Y)
}

func TestBackspaceStepsBackAndRemoves(t *testing.T) {
	m, w, _ := newMapper(t, "")
	feed(t, m, runes("||")...)
	feed(t, m, key(tcell.KeyBackspace2))
	assert.Equal(t, 1, m.X)
	assert.Nil(t, w.NodeAt(1, 0))
	assert.NotNil(t, w.NodeAt(0, 0))
}

func TestEnterActivatesAlongLastMove(t *testing.T) {
	m, w, _ := newMapper(t, "")
	require.True(t, w.AddNode("|", 0, 0))
	require.True(t, w.AddNode("|", 1, 0))

	feed(t, m, key(tcell.KeyEnter))
	w.Tick()
	assert.Equal(t, catalogs.Falling, w.NodeAt(0, 0).State)
	w.Tick()
	assert.Equal(t, catalogs.Falling, w.NodeAt(1, 0).State)
}

func TestSpaceStartsAndRResets(t *testing.T) {
	m, w, _ := newMapper(t, "")
	feed(t, m, runes(">|")...)
	feed(t, m, runes(" ")...)
	assert.Equal(t, "started 1", m.Status)
	w.Settle(10)
	assert.Equal(t, catalogs.Fallen, w.NodeAt(1, 0).State)

	feed(t, m, runes("r")...)
	assert.Equal(t, catalogs.Standing, w.NodeAt(0, 0).State)
	assert.Equal(t, catalogs.Standing, w.NodeAt(1, 0).State)
}

func TestSaveAndLoad(t *testing.T) {
	m, w, files := newMapper(t, "board.tbit")
	feed(t, m, runes(">|")...)
	feed(t, m, runes("s")...)
	assert.Empty(t, m.Status)
	assert.Equal(t, "3,0,0,0,0,1,0,0,", string(files["board.tbit"]))

	w.RemoveNode(0, 0)
	feed(t, m, runes("l")...)
	assert.Empty(t, m.Status)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, ">", w.NodeAt(0, 0).Glyph())
}

func TestLoadFailureLeavesBoard(t *testing.T) {
	m, w, files := newMapper(t, "board.bin")
	files["board.bin"] = []byte{1, 2, 3}
	require.True(t, w.AddNode("#", 4, 4))

	err := m.Load()
	assert.ErrorIs(t, err, simenc.ErrCorrupt)
	assert.Equal(t, 1, w.Len())
	assert.NotNil(t, w.NodeAt(4, 4))

	feed(t, m, runes("l")...)
	assert.NotEmpty(t, m.Status)
	assert.Equal(t, 1, w.Len())

	m.File = "missing.bin"
	assert.True(t, errors.Is(m.Load(), os.ErrNotExist))
}

func TestSaveWithoutFile(t *testing.T) {
	m, _, files := newMapper(t, "")
	feed(t, m, runes("s")...)
	assert.Equal(t, "no save file", m.Status)
	assert.Empty(t, files)
}

func TestFilenamePrompt(t *testing.T) {
	m, w, _ := newMapper(t, "old.bin")
	feed(t, m, runes("o")...)
	require.NotNil(t, m.Prompt())
	assert.Equal(t, "old.bin", m.Prompt().Value)

	// Keys go to the prompt, not the board.
	feed(t, m, key(tcell.KeyBackspace2), key(tcell.KeyBackspace2), key(tcell.KeyBackspace2))
	feed(t, m, runes("tbit")...)
	assert.Equal(t, "old.tbit", m.Prompt().Value)
	assert.Equal(t, 0, w.Len())

	feed(t, m, key(tcell.KeyEnter))
	assert.Nil(t, m.Prompt())
	assert.Equal(t, "old.tbit", m.File)

	// Escape cancels without changing the file.
	feed(t, m, runes("o")...)
	feed(t, m, runes("x")...)
	feed(t, m, key(tcell.KeyEscape))
	assert.Nil(t, m.Prompt())
	assert.Equal(t, "old.tbit", m.File)
}

func TestQuitKeys(t *testing.T) {
	m, _, _ := newMapper(t, "")
	assert.False(t, m.HandleEvent(key(tcell.KeyEscape)))
	assert.False(t, m.HandleEvent(key(tcell.KeyCtrlC)))

	feed(t, m, runes("o")...)
	assert.False(t, m.HandleEvent(key(tcell.KeyCtrlC)), "ctrl-c quits even from the prompt")
	assert.True(t, m.HandleEvent(tcell.NewEventResize(10, 10)))
}

func TestOverlay(t *testing.T) {
	m, _, _ := newMapper(t, "")
	feed(t, m, runes("|")...)
	ov := m.Overlay()
	assert.Equal(t, 1, ov.CursorX)
	assert.Equal(t, "(1, 0) 1", ov.Status)
	assert.Nil(t, ov.Prompt)

	m.Status = "hello"
	assert.Equal(t, "(1, 0) 1 hello", m.Overlay().Status)
}
