package catalogs

import (
	"encoding/json"
	"fmt"
)

// ActionKind names one of the seven built-in actions.
type ActionKind uint8

const (
	KindChangeState ActionKind = iota + 1
	KindChangeRotation
	KindKnock
	KindUnknock
	KindClick
	KindFall
	KindUnfall
)

var actionKindNames = map[ActionKind]string{
	KindChangeState:    "changeState",
	KindChangeRotation: "changeRotation",
	KindKnock:          "knock",
	KindUnknock:        "unknock",
	KindClick:          "click",
	KindFall:           "fall",
	KindUnfall:         "unfall",
}

func (k ActionKind) String() string {
	if s, ok := actionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ActionKind(%d)", uint8(k))
}

// Action is one step of a rule. The set of implementations is closed.
type Action interface {
	Kind() ActionKind
	// Invert returns the action run in its place when a rule executes inverted.
	Invert() Action
	isAction()
}

// DirectedAction is implemented by the actions whose argument is a direction
// reinterpreted through the rule's reference frame at execution time.
type DirectedAction interface {
	Action
	Direction() Direction
	WithDirection(d Direction) Action
}

type ChangeState struct{ State State }

type ChangeRotation struct{ Delta int }

type Knock struct{ Dir Direction }

type Unknock struct{ Dir Direction }

type Click struct{ Dir Direction }

type Fall struct{}

type Unfall struct{}

func (ChangeState) Kind() ActionKind    { return KindChangeState }
func (ChangeRotation) Kind() ActionKind { return KindChangeRotation }
func (Knock) Kind() ActionKind          { return KindKnock }
func (Unknock) Kind() ActionKind        { return KindUnknock }
func (Click) Kind() ActionKind          { return KindClick }
func (Fall) Kind() ActionKind           { return KindFall }
func (Unfall) Kind() ActionKind         { return KindUnfall }

// State and rotation changes are not algebraically inverted; only the kind of
// the direction-valued and falling actions is swapped.
func (a ChangeState) Invert() Action    { return a }
func (a ChangeRotation) Invert() Action { return a }
func (a Knock) Invert() Action          { return Unknock{Dir: a.Dir} }
func (a Unknock) Invert() Action        { return Knock{Dir: a.Dir} }
func (a Click) Invert() Action          { return a }
func (Fall) Invert() Action             { return Unfall{} }
func (Unfall) Invert() Action           { return Fall{} }

func (ChangeState) isAction()    {}
func (ChangeRotation) isAction() {}
func (Knock) isAction()          {}
func (Unknock) isAction()        {}
func (Click) isAction()          {}
func (Fall) isAction()           {}
func (Unfall) isAction()         {}

func (a Knock) Direction() Direction   { return a.Dir }
func (a Unknock) Direction() Direction { return a.Dir }
func (a Click) Direction() Direction   { return a.Dir }

func (Knock) WithDirection(d Direction) Action   { return Knock{Dir: d} }
func (Unknock) WithDirection(d Direction) Action { return Unknock{Dir: d} }
func (Click) WithDirection(d Direction) Action   { return Click{Dir: d} }

// ParseAction decodes the authored array form, e.g. ["knock","right"] or ["changeRotation",1].
func ParseAction(raw json.RawMessage) (Action, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("action must be an array: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty action")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return nil, fmt.Errorf("action name: %w", err)
	}
	args := parts[1:]

	dirArg := func() (Direction, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s: want 1 direction argument, got %d", name, len(args))
		}
		var s string
		if err := json.Unmarshal(args[0], &s); err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		d, err := ParseDirection(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}
	noArgs := func() error {
		if len(args) != 0 {
			return fmt.Errorf("%s: takes no arguments", name)
		}
		return nil
	}

	switch name {
	case "knock":
		d, err := dirArg()
		return Knock{Dir: d}, err
	case "unknock":
		d, err := dirArg()
		return Unknock{Dir: d}, err
	case "click":
		d, err := dirArg()
		return Click{Dir: d}, err
	case "fall":
		return Fall{}, noArgs()
	case "unfall", "stand":
		return Unfall{}, noArgs()
	case "changeState":
		if len(args) != 1 {
			return nil, fmt.Errorf("changeState: want 1 state argument, got %d", len(args))
		}
		var s string
		if err := json.Unmarshal(args[0], &s); err != nil {
			return nil, fmt.Errorf("changeState: %w", err)
		}
		st, err := ParseState(s)
		if err != nil {
			return nil, fmt.Errorf("changeState: %w", err)
		}
		return ChangeState{State: st}, nil
	case "changeRotation":
		if len(args) != 1 {
			return nil, fmt.Errorf("changeRotation: want 1 delta argument, got %d", len(args))
		}
		var delta int
		if err := json.Unmarshal(args[0], &delta); err != nil {
			return nil, fmt.Errorf("changeRotation: %w", err)
		}
		return ChangeRotation{Delta: delta}, nil
	}
	return nil, fmt.Errorf("unknown action %q", name)
}
