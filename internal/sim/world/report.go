package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"dominoes.run/internal/sim/catalogs"
	"dominoes.run/internal/sim/resolve"
)

// TickReport summarizes one drain of the queue.
type TickReport struct {
	Tick        uint64       `json:"tick"`
	Fired       []FiredRule  `json:"fired,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
	Misses      int          `json:"misses,omitempty"`
	Skipped     int          `json:"skipped,omitempty"`
	Pending     int          `json:"pending"`
	Nodes       int          `json:"nodes"`
	Digest      string       `json:"digest"`
}

// FiredRule records a rule executed during a tick. Scheduled rules (the
// delayed half of fall/unfall) carry no trigger.
type FiredRule struct {
	NodeID    uint64              `json:"node_id"`
	X         int                 `json:"x"`
	Y         int                 `json:"y"`
	Type      string              `json:"type"`
	Trigger   string              `json:"trigger,omitempty"`
	Dir       *catalogs.Direction `json:"dir,omitempty"`
	Mode      Mode                `json:"mode"`
	Scheduled bool                `json:"scheduled,omitempty"`
	Actions   []string            `json:"actions"`
}

// Transition is a node state change.
type Transition struct {
	NodeID uint64         `json:"node_id"`
	X      int            `json:"x"`
	Y      int            `json:"y"`
	From   catalogs.State `json:"from"`
	To     catalogs.State `json:"to"`
}

func firedRule(n *Node, r *catalogs.Rule, m *resolve.Match, mode Mode) FiredRule {
	f := FiredRule{
		NodeID:    n.ID,
		X:         n.Pos.X,
		Y:         n.Pos.Y,
		Type:      n.Type.Name,
		Mode:      mode,
		Scheduled: m == nil,
		Actions:   make([]string, 0, len(r.Actions)),
	}
	if m != nil {
		f.Trigger = m.Trigger.String()
		if m.DirKnown {
			d := m.Dir
			f.Dir = &d
		}
	}
	for _, a := range r.Actions {
		if mode == Inverted {
			a = a.Invert()
		}
		f.Actions = append(f.Actions, a.Kind().String())
	}
	return f
}

// Digest hashes the board (position, type, rotation, state) in (y, x) order.
func (w *World) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		_, _ = h.Write(tmp[:])
	}
	for _, n := range w.Nodes() {
		put(int64(n.Pos.X))
		put(int64(n.Pos.Y))
		put(int64(n.Type.ID))
		put(int64(n.Rotation))
		put(int64(n.State))
	}
	return hex.EncodeToString(h.Sum(nil))
}
