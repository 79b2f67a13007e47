package world

import (
	"dominoes.run/internal/sim/catalogs"
)

// Scheduled second halves of fall and unfall.
var (
	finishFall   = &catalogs.Rule{Actions: []catalogs.Action{catalogs.ChangeState{State: catalogs.Fallen}}}
	finishUnfall = &catalogs.Rule{Actions: []catalogs.Action{catalogs.ChangeState{State: catalogs.Standing}}}
)

// ExecuteRule runs r's actions on n in order. In Inverted mode each action is
// replaced by its inverse. input is the direction that triggered the rule, in
// n's own frame.
func (w *World) ExecuteRule(n *Node, r *catalogs.Rule, input catalogs.Direction, mode Mode) {
	for _, a := range r.Actions {
		if mode == Inverted {
			a = a.Invert()
		}
		if da, ok := a.(catalogs.DirectedAction); ok {
			a = da.WithDirection(frameDirection(n, r.RelativeTo, da.Direction(), input))
		}
		w.Apply(n, a)
	}
}

// Apply performs a single action on n. Direction arguments are taken as
// world directions.
func (w *World) Apply(n *Node, a catalogs.Action) {
	switch a := a.(type) {
	case catalogs.Knock:
		w.Knock(n, a.Dir)
	case catalogs.Unknock:
		w.Unknock(n, a.Dir)
	case catalogs.Click:
		w.Click(n, a.Dir)
	case catalogs.Fall:
		w.Fall(n)
	case catalogs.Unfall:
		w.Unfall(n)
	case catalogs.ChangeState:
		w.ChangeState(n, a.State)
	case catalogs.ChangeRotation:
		w.ChangeRotation(n, a.Delta)
	}
}

// Knock signals onKnocked on the standing neighbor in direction d.
func (w *World) Knock(n *Node, d catalogs.Direction) {
	next := w.nodeAt(n.Pos.Step(d))
	if next == nil || next.State != catalogs.Standing {
		return
	}
	w.QueueEvent(next.ID, next, catalogs.OnKnocked, localDirection(next, d).Bit(), Normal)
}

// Unknock signals an inverted onKnocked on the fallen neighbor in direction d.
func (w *World) Unknock(n *Node, d catalogs.Direction) {
	next := w.nodeAt(n.Pos.Step(d))
	if next == nil || next.State != catalogs.Fallen {
		return
	}
	w.QueueEvent(next.ID, next, catalogs.OnKnocked, localDirection(next, d).Bit(), Inverted)
}

// Click signals onClicked on the neighbor in direction d, whatever its state.
func (w *World) Click(n *Node, d catalogs.Direction) {
	next := w.nodeAt(n.Pos.Step(d))
	if next == nil {
		return
	}
	w.QueueEvent(next.ID, next, catalogs.OnClicked, localDirection(next, d).Bit(), Normal)
}

// Fall starts falling now and lands one tick later.
func (w *World) Fall(n *Node) {
	w.ChangeState(n, catalogs.Falling)
	w.QueueRule(w.NextID(), n, finishFall, Normal)
}

// Unfall starts standing up now and is upright one tick later.
func (w *World) Unfall(n *Node) {
	w.ChangeState(n, catalogs.Unfalling)
	w.QueueRule(w.NextID(), n, finishUnfall, Normal)
}

func (w *World) ChangeState(n *Node, s catalogs.State) {
	if n.State == s {
		return
	}
	w.transitions = append(w.transitions, Transition{NodeID: n.ID, X: n.Pos.X, Y: n.Pos.Y, From: n.State, To: s})
	n.State = s
}

// ChangeRotation wraps within the type's own variant count.
func (w *World) ChangeRotation(n *Node, delta int) {
	n.Rotation = wrap(n.Rotation+delta, n.Type.Modulus())
}

// localDirection expresses a world direction in n's unrotated frame, the
// frame its rules are authored in.
func localDirection(n *Node, d catalogs.Direction) catalogs.Direction {
	return catalogs.Rotate(d, -n.Rotation)
}

// frameDirection maps an authored direction to a world direction. The input
// frame turns the authored direction by the triggering direction alone.
func frameDirection(n *Node, f catalogs.Frame, authored, input catalogs.Direction) catalogs.Direction {
	switch f {
	case catalogs.FrameWorld:
		return authored
	case catalogs.FrameInput:
		return catalogs.Rotate(authored, int(input))
	default:
		return catalogs.Rotate(authored, n.Rotation)
	}
}
