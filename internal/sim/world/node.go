package world

import (
	"fmt"

	"dominoes.run/internal/sim/catalogs"
)

// Pos is a board coordinate. It is the lookup key of the node occupying it.
type Pos struct {
	X, Y int
}

// Step returns the neighboring coordinate in direction d.
func (p Pos) Step(d catalogs.Direction) Pos {
	dx, dy := d.Delta()
	return Pos{X: p.X + dx, Y: p.Y + dy}
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Node is a live cell on the board. Only the executor changes State and
// Rotation; a replaced node is never reused.
type Node struct {
	ID       uint64
	Pos      Pos
	Type     *catalogs.NodeType
	Rotation int
	State    catalogs.State
}

// Glyph is the variant shown for the node's current rotation.
func (n *Node) Glyph() string { return n.Type.Glyph(n.Rotation) }

// Mode selects whether a rule runs its actions or their inverses.
type Mode uint8

const (
	Normal Mode = iota
	Inverted
)

func (m Mode) String() string {
	if m == Inverted {
		return "inverted"
	}
	return "normal"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*m = Normal
	case "inverted":
		*m = Inverted
	default:
		return fmt.Errorf("unknown mode %q", b)
	}
	return nil
}
