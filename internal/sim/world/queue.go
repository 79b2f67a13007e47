package world

import (
	"dominoes.run/internal/sim/catalogs"
	"dominoes.run/internal/sim/resolve"
)

// queueEntry is pending work for one id: either signals awaiting resolution
// or an already-resolved rule.
type queueEntry struct {
	node *Node
	mode Mode

	pending [catalogs.NumTriggers]bool
	masks   [catalogs.NumTriggers]catalogs.Mask

	rule *catalogs.Rule
}

// signals lists the accumulated triggers in fixed trigger order.
func (e *queueEntry) signals() []resolve.Signal {
	out := make([]resolve.Signal, 0, catalogs.NumTriggers)
	for t := 0; t < catalogs.NumTriggers; t++ {
		if e.pending[t] {
			out = append(out, resolve.Signal{Trigger: catalogs.Trigger(t), Mask: e.masks[t]})
		}
	}
	return out
}

// eventQueue is keyed by id and drained in first-enqueue order.
type eventQueue struct {
	order   []uint64
	entries map[uint64]*queueEntry
}

func newEventQueue() *eventQueue {
	return &eventQueue{entries: map[uint64]*queueEntry{}}
}

func (q *eventQueue) upsert(id uint64) *queueEntry {
	e, ok := q.entries[id]
	if !ok {
		e = &queueEntry{}
		q.entries[id] = e
		q.order = append(q.order, id)
	}
	return e
}

func (q *eventQueue) Len() int { return len(q.order) }
