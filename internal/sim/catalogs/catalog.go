package catalogs

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a node on the board.
type State uint8

const (
	Standing State = iota
	Falling
	Fallen
	Unfalling
)

var stateNames = [...]string{"standing", "falling", "fallen", "unfalling"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}

// Trigger is a base event a rule can listen on.
type Trigger uint8

const (
	OnKnocked Trigger = iota
	OnClicked
	OnStart

	NumTriggers = 3
)

var triggerNames = [NumTriggers]string{"onKnocked", "onClicked", "onStart"}

func (t Trigger) String() string {
	if int(t) < NumTriggers {
		return triggerNames[t]
	}
	return fmt.Sprintf("Trigger(%d)", uint8(t))
}

func ParseTrigger(s string) (Trigger, error) {
	for i, name := range triggerNames {
		if name == s {
			return Trigger(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trigger %q", s)
}

// Frame selects how a direction-valued action argument is reinterpreted.
type Frame uint8

const (
	FrameSelf Frame = iota
	FrameWorld
	FrameInput
)

var frameNames = [...]string{"self", "world", "input"}

func (f Frame) String() string {
	if int(f) < len(frameNames) {
		return frameNames[f]
	}
	return fmt.Sprintf("Frame(%d)", uint8(f))
}

func ParseFrame(s string) (Frame, error) {
	if s == "" {
		return FrameSelf, nil
	}
	for i, name := range frameNames {
		if name == s {
			return Frame(i), nil
		}
	}
	return 0, fmt.Errorf("unknown relativeTo %q", s)
}

// Rule is a trigger-conditioned, priority-ranked list of actions.
type Rule struct {
	Actions    []Action
	Priority   int
	Mask       Mask
	MaskBits   int
	RelativeTo Frame
}

// EventSet holds the rules of a node type, indexed by trigger.
// Every trigger has an entry, possibly empty.
type EventSet [NumTriggers][]Rule

func (e *EventSet) Rules(t Trigger) []Rule {
	if int(t) >= NumTriggers {
		return nil
	}
	return e[t]
}

// NodeType describes one placeable cell kind. It is shared by all nodes of
// that kind and never mutated after parsing.
type NodeType struct {
	ID       int
	Name     string
	Variants []string
	Events   EventSet
}

// Modulus is the number of rotation states of the type.
func (t *NodeType) Modulus() int { return len(t.Variants) }

func (t *NodeType) Glyph(rotation int) string {
	if rotation < 0 || rotation >= len(t.Variants) {
		return "?"
	}
	return t.Variants[rotation]
}

// HasRules reports whether any rule listens on trigger tr.
func (t *NodeType) HasRules(tr Trigger) bool { return len(t.Events.Rules(tr)) > 0 }

// MaxTypeID is the largest id the packed save format can carry.
const MaxTypeID = 63

var ErrNoVariants = errors.New("missing variants")

// Catalog is the immutable set of node types loaded at startup.
type Catalog struct {
	Types  []*NodeType
	Digest string

	byID map[int]*NodeType
}

// ParseCatalog validates the raw definitions and builds the catalog.
// Any invalid entry rejects the whole catalog.
func ParseCatalog(raw []RawNodeType) (*Catalog, error) {
	types, err := ParseNodeTypes(raw)
	if err != nil {
		return nil, err
	}
	c := &Catalog{Types: types, byID: make(map[int]*NodeType, len(types))}
	for _, t := range types {
		if t.ID < 0 || t.ID > MaxTypeID {
			return nil, fmt.Errorf("node type %d (%s): id out of range 0..%d", t.ID, t.Name, MaxTypeID)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("node type %d (%s): duplicate id", t.ID, t.Name)
		}
		c.byID[t.ID] = t
	}
	return c, nil
}

func (c *Catalog) ByID(id int) (*NodeType, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ByGlyph finds the first type (declaration order) with a variant equal to
// glyph and returns the variant index as rotation.
func (c *Catalog) ByGlyph(glyph string) (*NodeType, int, bool) {
	for _, t := range c.Types {
		for i, v := range t.Variants {
			if v == glyph {
				return t, i, true
			}
		}
	}
	return nil, 0, false
}

// Validate re-checks the invariants the engine relies on.
func (c *Catalog) Validate() error {
	if c == nil {
		return errors.New("nil catalog")
	}
	for _, t := range c.Types {
		if t == nil || len(t.Variants) == 0 {
			id := -1
			if t != nil {
				id = t.ID
			}
			return fmt.Errorf("node type %d: %w", id, ErrNoVariants)
		}
	}
	return nil
}

func (s State) MarshalText() ([]byte, error)   { return []byte(s.String()), nil }
func (t Trigger) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (f Frame) MarshalText() ([]byte, error)   { return []byte(f.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
