package world

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"dominoes.run/internal/sim/catalogs"
	simenc "dominoes.run/internal/sim/encoding"
	"dominoes.run/internal/sim/resolve"
)

// DefaultTickInterval is the fixed period of the cascade clock.
const DefaultTickInterval = 50 * time.Millisecond

type Config struct {
	TickInterval time.Duration
}

// World is the cascade engine: the live board, the event queue and the tick
// clock. It has no internal locking; all calls must come from one goroutine
// (the Run loop, or a host that drives Tick itself).
type World struct {
	cfg      Config
	catalogs *catalogs.Catalog

	tick   atomic.Uint64
	nextID uint64

	nodes map[Pos]*Node
	queue *eventQueue

	// Transitions made since the last tick boundary.
	transitions []Transition

	inbox chan Command

	// Optional sinks (may be empty). Implemented in internal/persistence/* and
	// internal/transport/*.
	tickLoggers []TickLogger
	observers   []Observer
}

// Command runs on the world goroutine between ticks.
type Command func(w *World)

type TickLogger interface {
	WriteTick(rep TickReport) error
}

// Observer is called on the world goroutine after every tick and may read
// the board.
type Observer interface {
	ObserveTick(w *World, rep TickReport)
}

func New(cfg Config, cats *catalogs.Catalog) (*World, error) {
	if cats == nil {
		return nil, errors.New("world: nil catalog")
	}
	if err := cats.Validate(); err != nil {
		return nil, fmt.Errorf("world: invalid catalog: %w", err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &World{
		cfg:      cfg,
		catalogs: cats,
		nodes:    map[Pos]*Node{},
		queue:    newEventQueue(),
		inbox:    make(chan Command, 256),
	}, nil
}

func (w *World) Config() Config             { return w.cfg }
func (w *World) Catalog() *catalogs.Catalog { return w.catalogs }
func (w *World) CurrentTick() uint64        { return w.tick.Load() }
func (w *World) AddTickLogger(l TickLogger) { w.tickLoggers = append(w.tickLoggers, l) }
func (w *World) AddObserver(o Observer)     { w.observers = append(w.observers, o) }
func (w *World) Len() int                   { return len(w.nodes) }
func (w *World) PendingEntries() int        { return w.queue.Len() }
func (w *World) NodeAt(x, y int) *Node      { return w.nodes[Pos{X: x, Y: y}] }
func (w *World) nodeAt(p Pos) *Node         { return w.nodes[p] }
func (w *World) onBoard(n *Node) bool       { return n != nil && w.nodes[n.Pos] == n }

// NextID draws a process-unique id. Nodes and one-shot queue entries share
// the id space.
func (w *World) NextID() uint64 {
	w.nextID++
	return w.nextID
}

// Nodes returns the board in (y, x) order.
func (w *World) Nodes() []*Node {
	out := make([]*Node, 0, len(w.nodes))
	for _, n := range w.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Y != out[j].Pos.Y {
			return out[i].Pos.Y < out[j].Pos.Y
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}

// AddNode places the type whose variant equals glyph, using the variant
// index as rotation. Unknown glyphs are rejected without touching the board.
func (w *World) AddNode(glyph string, x, y int) bool {
	t, rot, ok := w.catalogs.ByGlyph(glyph)
	if !ok {
		return false
	}
	w.Place(t, rot, x, y)
	return true
}

// Place puts a new standing node at (x, y), replacing any occupant.
func (w *World) Place(t *catalogs.NodeType, rotation, x, y int) *Node {
	n := &Node{
		ID:       w.NextID(),
		Pos:      Pos{X: x, Y: y},
		Type:     t,
		Rotation: wrap(rotation, t.Modulus()),
		State:    catalogs.Standing,
	}
	w.nodes[n.Pos] = n
	return n
}

// RemoveNode deletes the node at (x, y). Its pending queue entries become no-ops.
func (w *World) RemoveNode(x, y int) bool {
	p := Pos{X: x, Y: y}
	if _, ok := w.nodes[p]; !ok {
		return false
	}
	delete(w.nodes, p)
	return true
}

// Load clears the board and the queue, then places one node per entry.
// Entries naming an unknown type are skipped.
func (w *World) Load(entries []simenc.Entry) {
	w.nodes = make(map[Pos]*Node, len(entries))
	w.queue = newEventQueue()
	w.transitions = nil
	for _, e := range entries {
		t, ok := w.catalogs.ByID(e.TypeID)
		if !ok {
			continue
		}
		w.Place(t, e.Rotation, e.X, e.Y)
	}
}

// Entries exports the board for a persistence codec, in (y, x) order.
func (w *World) Entries() []simenc.Entry {
	nodes := w.Nodes()
	out := make([]simenc.Entry, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, simenc.Entry{TypeID: n.Type.ID, X: n.Pos.X, Y: n.Pos.Y, Rotation: n.Rotation})
	}
	return out
}

// QueueEvent accumulates a signal for id under trigger t, OR-ing mask into
// any mask already pending for that trigger. The entry runs in the mode of
// the latest call.
func (w *World) QueueEvent(id uint64, n *Node, t catalogs.Trigger, mask catalogs.Mask, mode Mode) {
	e := w.queue.upsert(id)
	e.node = n
	e.mode = mode
	e.pending[t] = true
	e.masks[t] |= mask
}

// QueueRule schedules r to run as-is on n at the next tick, bypassing
// resolution.
func (w *World) QueueRule(id uint64, n *Node, r *catalogs.Rule, mode Mode) {
	e := w.queue.upsert(id)
	e.node = n
	e.mode = mode
	e.rule = r
}

// Activate delivers the two signals of a user activation to the node at
// (x, y): a knock travelling in direction travel, then a click.
func (w *World) Activate(x, y int, travel catalogs.Direction) bool {
	n := w.NodeAt(x, y)
	if n == nil {
		return false
	}
	w.QueueEvent(n.ID, n, catalogs.OnKnocked, localDirection(n, travel).Bit(), Normal)
	w.QueueEvent(n.ID, n, catalogs.OnClicked, 0, Normal)
	return true
}

// Start queues onStart on every node whose type listens for it.
func (w *World) Start() int {
	count := 0
	for _, n := range w.Nodes() {
		if n.Type.HasRules(catalogs.OnStart) {
			w.QueueEvent(n.ID, n, catalogs.OnStart, 0, Normal)
			count++
		}
	}
	return count
}

// Reset stands every node back up and drops pending work.
func (w *World) Reset() {
	for _, n := range w.nodes {
		n.State = catalogs.Standing
	}
	w.queue = newEventQueue()
	w.transitions = nil
}

// Tick drains the queue once. The queue is swapped out before any entry
// runs, so events queued while draining wait for the next tick.
func (w *World) Tick() TickReport {
	nowTick := w.tick.Load()
	batch := w.queue
	w.queue = newEventQueue()

	rep := TickReport{Tick: nowTick}
	for _, id := range batch.order {
		e := batch.entries[id]
		if !w.onBoard(e.node) {
			rep.Skipped++
			continue
		}
		if e.rule != nil {
			rep.Fired = append(rep.Fired, firedRule(e.node, e.rule, nil, e.mode))
			w.ExecuteRule(e.node, e.rule, catalogs.Right, e.mode)
			continue
		}
		m, ok := resolve.Resolve(&e.node.Type.Events, e.signals())
		if !ok {
			rep.Misses++
			continue
		}
		rep.Fired = append(rep.Fired, firedRule(e.node, m.Rule, &m, e.mode))
		w.ExecuteRule(e.node, m.Rule, m.Dir, e.mode)
	}

	rep.Transitions = w.transitions
	w.transitions = nil
	rep.Pending = w.queue.Len()
	rep.Nodes = len(w.nodes)
	rep.Digest = w.Digest()
	w.tick.Add(1)

	for _, l := range w.tickLoggers {
		_ = l.WriteTick(rep)
	}
	for _, o := range w.observers {
		o.ObserveTick(w, rep)
	}
	return rep
}

// Settle ticks until the queue is empty or max ticks have run and returns
// the number of ticks taken.
func (w *World) Settle(max int) int {
	n := 0
	for n < max && w.queue.Len() > 0 {
		w.Tick()
		n++
	}
	return n
}

func wrap(v, mod int) int {
	if mod <= 0 {
		return 0
	}
	v %= mod
	if v < 0 {
		v += mod
	}
	return v
}
