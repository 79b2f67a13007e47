package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dominoes.run/internal/sim/catalogs"
	simenc "dominoes.run/internal/sim/encoding"
)

func loadCatalog(t *testing.T) *catalogs.Catalog {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	require.NoError(t, err)
	return cats
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(Config{}, loadCatalog(t))
	require.NoError(t, err)
	return w
}

func place(t *testing.T, w *World, name string, rotation, x, y int) *Node {
	t.Helper()
	for _, nt := range w.Catalog().Types {
		if nt.Name == name {
			return w.Place(nt, rotation, x, y)
		}
	}
	t.Fatalf("no node type %q", name)
	return nil
}

func TestNewRejectsBadCatalog(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{}, &catalogs.Catalog{Types: []*catalogs.NodeType{{ID: 1}}})
	assert.ErrorIs(t, err, catalogs.ErrNoVariants)

	w, err := New(Config{}, loadCatalog(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultTickInterval, w.Config().TickInterval)
}

func TestKnockPreconditions(t *testing.T) {
	w := newTestWorld(t)
	src := place(t, w, "wall", 0, 0, 0)
	target := place(t, w, "domino", 0, 1, 0)

	w.Knock(src, catalogs.Right)
	require.Equal(t, 1, w.PendingEntries())
	e := w.queue.entries[target.ID]
	assert.Equal(t, Normal, e.mode)
	assert.Equal(t, catalogs.Right.Bit(), e.masks[catalogs.OnKnocked])

	// Nothing to the left, and a knock never reaches a fallen node.
	w.Knock(src, catalogs.Left)
	target.State = catalogs.Fallen
	w.queue = newEventQueue()
	w.Knock(src, catalogs.Right)
	assert.Equal(t, 0, w.PendingEntries())

	// Unknock only reaches fallen nodes, in inverted mode.
	w.Unknock(src, catalogs.Right)
	require.Equal(t, 1, w.PendingEntries())
	assert.Equal(t, Inverted, w.queue.entries[target.ID].mode)

	target.State = catalogs.Standing
	w.queue = newEventQueue()
	w.Unknock(src, catalogs.Right)
	assert.Equal(t, 0, w.PendingEntries())
}

func TestClickReachesAnyState(t *testing.T) {
	w := newTestWorld(t)
	src := place(t, w, "wall", 0, 0, 0)
	target := place(t, w, "domino", 0, 0, 1)
	target.State = catalogs.Fallen

	w.Click(src, catalogs.Down)
	require.Equal(t, 1, w.PendingEntries())
	e := w.queue.entries[target.ID]
	assert.True(t, e.pending[catalogs.OnClicked])
	assert.Equal(t, catalogs.Down.Bit(), e.masks[catalogs.OnClicked])
}

func TestFallingBecomesFallenAfterOneTick(t *testing.T) {
	w := newTestWorld(t)
	n := place(t, w, "domino", 0, 0, 0)

	w.Fall(n)
	assert.Equal(t, catalogs.Falling, n.State)

	rep := w.Tick()
	assert.Equal(t, catalogs.Fallen, n.State)
	require.Len(t, rep.Fired, 1)
	assert.True(t, rep.Fired[0].Scheduled)
	assert.Contains(t, rep.Transitions, Transition{NodeID: n.ID, From: catalogs.Falling, To: catalogs.Fallen})

	w.Unfall(n)
	assert.Equal(t, catalogs.Unfalling, n.State)
	w.Tick()
	assert.Equal(t, catalogs.Standing, n.State)
	assert.Equal(t, 0, w.PendingEntries())
}

func TestWallSegmentForwardsKnock(t *testing.T) {
	w := newTestWorld(t)
	src := place(t, w, "wall", 0, -1, 0)
	seg := place(t, w, "wall-segment", 0, 0, 0)
	next := place(t, w, "domino", 0, 1, 0)

	w.Knock(w.NodeAt(-1, 0), catalogs.Right)
	require.Same(t, src, w.NodeAt(-1, 0))

	rep := w.Tick()
	require.Len(t, rep.Fired, 1)
	assert.Equal(t, "wall-segment", rep.Fired[0].Type)
	assert.Equal(t, "onKnocked", rep.Fired[0].Trigger)
	assert.Equal(t, catalogs.Standing, seg.State)
	assert.Equal(t, catalogs.Standing, next.State, "forwarded knock waits for the next tick")
	assert.Equal(t, 1, rep.Pending)

	w.Tick()
	assert.Equal(t, catalogs.Falling, next.State)
	assert.Equal(t, catalogs.Standing, seg.State)
}

func TestLoadEncodeRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	w.Load([]simenc.Entry{{TypeID: 2, X: 5, Y: 5, Rotation: 1}})
	assert.Equal(t, []simenc.Entry{{TypeID: 2, X: 5, Y: 5, Rotation: 1}}, w.Entries())

	b, err := simenc.Encode(w.Entries())
	require.NoError(t, err)
	back, err := simenc.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []simenc.Entry{{TypeID: 2, X: 5, Y: 5, Rotation: 1}}, back)
}

func TestLoadSkipsUnknownTypesAndWrapsRotation(t *testing.T) {
	w := newTestWorld(t)
	place(t, w, "wall", 0, 9, 9)
	w.Load([]simenc.Entry{
		{TypeID: 0, X: 0, Y: 0, Rotation: 3},
		{TypeID: 60, X: 1, Y: 0, Rotation: 0},
		{TypeID: 4, X: 2, Y: 0, Rotation: 2},
	})
	assert.Equal(t, 2, w.Len())
	assert.Nil(t, w.NodeAt(9, 9), "load clears the board")
	assert.Nil(t, w.NodeAt(1, 0))
	assert.Equal(t, 1, w.NodeAt(0, 0).Rotation)
	assert.Equal(t, 0, w.NodeAt(2, 0).Rotation)
}

func TestAddNodeByGlyph(t *testing.T) {
	w := newTestWorld(t)
	require.True(t, w.AddNode("-", 3, 4))
	n := w.NodeAt(3, 4)
	require.NotNil(t, n)
	assert.Equal(t, "domino", n.Type.Name)
	assert.Equal(t, 1, n.Rotation)
	assert.Equal(t, "-", n.Glyph())

	assert.False(t, w.AddNode("Z", 0, 0))
	assert.Equal(t, 1, w.Len())

	assert.True(t, w.RemoveNode(3, 4))
	assert.False(t, w.RemoveNode(3, 4))
}

func TestReplacedNodePendingEntriesAreNoOps(t *testing.T) {
	w := newTestWorld(t)
	old := place(t, w, "domino", 0, 0, 0)
	w.QueueEvent(old.ID, old, catalogs.OnKnocked, catalogs.Right.Bit(), Normal)

	fresh := place(t, w, "domino", 0, 0, 0)
	require.NotEqual(t, old.ID, fresh.ID)

	rep := w.Tick()
	assert.Equal(t, 1, rep.Skipped)
	assert.Empty(t, rep.Fired)
	assert.Equal(t, catalogs.Standing, fresh.State)
	assert.Equal(t, catalogs.Standing, old.State)
}

func TestRemovedNodePendingEntriesAreNoOps(t *testing.T) {
	w := newTestWorld(t)
	n := place(t, w, "domino", 0, 0, 0)
	w.Fall(n)
	w.RemoveNode(0, 0)

	rep := w.Tick()
	assert.Equal(t, 1, rep.Skipped)
	assert.Empty(t, rep.Transitions)
}

func TestQueueEventAccumulatesAndLatestModeWins(t *testing.T) {
	w := newTestWorld(t)
	n := place(t, w, "gate", 0, 0, 0)

	w.QueueEvent(n.ID, n, catalogs.OnKnocked, catalogs.Right.Bit(), Normal)
	w.QueueEvent(n.ID, n, catalogs.OnKnocked, catalogs.Down.Bit(), Inverted)
	w.QueueEvent(n.ID, n, catalogs.OnClicked, 0, Inverted)

	require.Equal(t, 1, w.PendingEntries())
	e := w.queue.entries[n.ID]
	assert.Equal(t, Inverted, e.mode)
	assert.Equal(t, catalogs.MaskOf(catalogs.Right, catalogs.Down), e.masks[catalogs.OnKnocked])
	assert.True(t, e.pending[catalogs.OnClicked])
}

func TestChainAdvancesOneCellPerTick(t *testing.T) {
	w := newTestWorld(t)
	place(t, w, "starter", 0, 0, 0)
	var chain []*Node
	for x := 1; x <= 4; x++ {
		chain = append(chain, place(t, w, "domino", 0, x, 0))
	}

	require.Equal(t, 1, w.Start())
	w.Tick() // starter falls, knocks chain[0]
	for i, n := range chain {
		rep := w.Tick()
		assert.Equal(t, catalogs.Falling, n.State, "domino %d", i)
		if i+1 < len(chain) {
			assert.Equal(t, catalogs.Standing, chain[i+1].State, "domino %d", i+1)
		}
		assert.NotZero(t, rep.Pending)
	}

	w.Settle(10)
	for _, n := range chain {
		assert.Equal(t, catalogs.Fallen, n.State)
	}
	assert.Equal(t, 0, w.PendingEntries())
}

func TestRotationComposesWithAuthoredDirections(t *testing.T) {
	w := newTestWorld(t)
	// "^" knocks up; the "-" dominoes see that as a knock from their right.
	place(t, w, "starter", 1, 0, 0)
	a := place(t, w, "domino", 1, 0, -1)
	b := place(t, w, "domino", 1, 0, -2)
	off := place(t, w, "domino", 0, 1, -1)

	w.Start()
	w.Settle(20)
	assert.Equal(t, catalogs.Fallen, a.State)
	assert.Equal(t, catalogs.Fallen, b.State)
	assert.Equal(t, catalogs.Standing, off.State)
}

func TestCornerTurnsTheCascade(t *testing.T) {
	w := newTestWorld(t)
	place(t, w, "starter", 0, 0, 0)
	corner := place(t, w, "corner", 0, 1, 0)
	above := place(t, w, "domino", 1, 1, -1)
	right := place(t, w, "domino", 0, 2, 0)

	w.Start()
	w.Settle(20)
	assert.Equal(t, catalogs.Fallen, corner.State)
	assert.Equal(t, catalogs.Fallen, above.State)
	assert.Equal(t, catalogs.Standing, right.State)
}

func TestInputFrameFollowsIncomingDirection(t *testing.T) {
	w := newTestWorld(t)
	src := place(t, w, "wall", 0, 0, -1)
	cross := place(t, w, "cross", 0, 0, 0)
	below := place(t, w, "domino", 1, 0, 1)
	beside := place(t, w, "domino", 0, 1, 0)

	w.Knock(src, catalogs.Down)
	w.Tick()
	assert.Equal(t, catalogs.Falling, cross.State)
	w.Tick()
	assert.Equal(t, catalogs.Falling, below.State)
	assert.Equal(t, catalogs.Standing, beside.State)
}

func TestInputFrameIgnoresNodeRotation(t *testing.T) {
	cats, err := catalogs.Parse([]byte(`[
		{"id": 0, "name": "spinner", "variants": ["a", "b", "c", "d"],
		 "events": {"onKnocked": {"actions": [["fall"], ["knock", "right"]], "relativeTo": "input"}}},
		{"id": 1, "name": "domino", "variants": ["|"],
		 "events": {"onKnocked": {"actions": [["fall"]]}}}
	]`))
	require.NoError(t, err)
	w, err := New(Config{}, cats)
	require.NoError(t, err)
	spinnerType, _ := cats.ByID(0)
	dominoType, _ := cats.ByID(1)

	src := w.Place(dominoType, 0, -1, 0)
	spinner := w.Place(spinnerType, 1, 0, 0)
	right := w.Place(dominoType, 0, 1, 0)
	below := w.Place(dominoType, 0, 0, 1)
	above := w.Place(dominoType, 0, 0, -1)

	// Travelling right into a node turned once reads as down in its frame.
	w.Knock(src, catalogs.Right)
	w.Tick()
	assert.Equal(t, catalogs.Falling, spinner.State)
	w.Tick()
	assert.Equal(t, catalogs.Falling, below.State)
	assert.Equal(t, catalogs.Standing, right.State)
	assert.Equal(t, catalogs.Standing, above.State)
}

func TestGateNeedsBothInputsInOneTick(t *testing.T) {
	w := newTestWorld(t)
	left := place(t, w, "wall", 0, -1, 0)
	top := place(t, w, "wall", 0, 0, -1)
	gate := place(t, w, "gate", 0, 0, 0)

	w.Knock(left, catalogs.Right)
	rep := w.Tick()
	assert.Equal(t, 1, rep.Misses)
	assert.Equal(t, catalogs.Standing, gate.State)

	w.Knock(left, catalogs.Right)
	w.Knock(top, catalogs.Down)
	rep = w.Tick()
	assert.Zero(t, rep.Misses)
	require.Len(t, rep.Fired, 1)
	assert.Nil(t, rep.Fired[0].Dir, "two-direction signal has no single input direction")
	assert.Equal(t, catalogs.Falling, gate.State)
}

func TestTwisterClicksNeighbors(t *testing.T) {
	w := newTestWorld(t)
	src := place(t, w, "wall", 0, -1, 0)
	place(t, w, "twister", 0, 0, 0)
	right := place(t, w, "domino", 0, 1, 0)
	down := place(t, w, "corner", 0, 0, 1)
	down.State = catalogs.Fallen

	w.Knock(src, catalogs.Right)
	w.Tick()
	w.Tick()
	assert.Equal(t, 1, right.Rotation)
	assert.Equal(t, 1, down.Rotation, "clicks reach fallen nodes")
	assert.Equal(t, catalogs.Standing, right.State)
}

func TestRewinderRunsCascadeBackwards(t *testing.T) {
	w := newTestWorld(t)
	starter := place(t, w, "starter", 0, 0, 0)
	d1 := place(t, w, "domino", 0, 1, 0)
	d2 := place(t, w, "domino", 0, 2, 0)
	rw := place(t, w, "rewinder", 0, 3, 0)

	w.Start()
	var sawUnfalling, sawInverted bool
	for i := 0; i < 20 && w.PendingEntries() > 0; i++ {
		rep := w.Tick()
		for _, tr := range rep.Transitions {
			if tr.To == catalogs.Unfalling {
				sawUnfalling = true
			}
		}
		for _, f := range rep.Fired {
			if f.Mode == Inverted {
				sawInverted = true
				assert.Equal(t, []string{"unfall", "unknock"}, f.Actions)
			}
		}
	}

	assert.True(t, sawUnfalling)
	assert.True(t, sawInverted)
	assert.Equal(t, catalogs.Fallen, starter.State)
	assert.Equal(t, catalogs.Standing, d1.State)
	assert.Equal(t, catalogs.Standing, d2.State)
	assert.Equal(t, catalogs.Fallen, rw.State)
	assert.Equal(t, 0, w.PendingEntries())
}

func TestActivate(t *testing.T) {
	w := newTestWorld(t)
	d := place(t, w, "domino", 0, 0, 0)
	c := place(t, w, "corner", 0, 5, 5)

	assert.False(t, w.Activate(9, 9, catalogs.Right))

	// A matching knock outranks the wildcard click.
	require.True(t, w.Activate(0, 0, catalogs.Right))
	w.Tick()
	assert.Equal(t, catalogs.Falling, d.State)
	assert.Equal(t, 0, d.Rotation)

	// No knock rule for a push from below: the click rotates instead.
	require.True(t, w.Activate(5, 5, catalogs.Up))
	w.Tick()
	assert.Equal(t, catalogs.Standing, c.State)
	assert.Equal(t, 1, c.Rotation)
}

func TestExplicitRuleWinsOverSignals(t *testing.T) {
	w := newTestWorld(t)
	n := place(t, w, "domino", 0, 0, 0)
	rot := &catalogs.Rule{Actions: []catalogs.Action{catalogs.ChangeRotation{Delta: 1}}}

	w.QueueEvent(n.ID, n, catalogs.OnKnocked, catalogs.Right.Bit(), Normal)
	w.QueueRule(n.ID, n, rot, Normal)
	rep := w.Tick()
	require.Len(t, rep.Fired, 1)
	assert.True(t, rep.Fired[0].Scheduled)
	assert.Equal(t, 1, n.Rotation)
	assert.Equal(t, catalogs.Standing, n.State)
}

func TestResetStandsEverythingUp(t *testing.T) {
	w := newTestWorld(t)
	place(t, w, "starter", 0, 0, 0)
	place(t, w, "domino", 0, 1, 0)
	place(t, w, "domino", 0, 2, 0)
	before := w.Digest()

	w.Start()
	w.Tick()
	w.Tick()
	require.NotEqual(t, before, w.Digest())
	require.NotZero(t, w.PendingEntries())

	w.Reset()
	assert.Equal(t, 0, w.PendingEntries())
	assert.Equal(t, before, w.Digest())
	for _, n := range w.Nodes() {
		assert.Equal(t, catalogs.Standing, n.State)
	}
}

func TestStartCountsListeners(t *testing.T) {
	w := newTestWorld(t)
	place(t, w, "starter", 0, 0, 0)
	place(t, w, "starter", 2, 5, 0)
	place(t, w, "domino", 0, 1, 0)
	assert.Equal(t, 2, w.Start())
	assert.Equal(t, 2, w.PendingEntries())
}

func TestDigestIsOrderIndependent(t *testing.T) {
	a := newTestWorld(t)
	b := newTestWorld(t)
	entries := []simenc.Entry{{TypeID: 0, X: 1, Y: 2}, {TypeID: 3, X: -4, Y: 0, Rotation: 2}, {TypeID: 5, X: 0, Y: 0, Rotation: 1}}
	a.Load(entries)
	b.Load([]simenc.Entry{entries[2], entries[0], entries[1]})
	assert.Equal(t, a.Digest(), b.Digest())

	b.NodeAt(1, 2).State = catalogs.Fallen
	assert.NotEqual(t, a.Digest(), b.Digest())
}

type recordingSink struct {
	ticks    []uint64
	observed int
}

func (r *recordingSink) WriteTick(rep TickReport) error {
	r.ticks = append(r.ticks, rep.Tick)
	return nil
}

func (r *recordingSink) ObserveTick(w *World, rep TickReport) { r.observed++ }

func TestTickNotifiesSinks(t *testing.T) {
	w := newTestWorld(t)
	sink := &recordingSink{}
	w.AddTickLogger(sink)
	w.AddObserver(sink)

	w.Tick()
	w.Tick()
	assert.Equal(t, []uint64{0, 1}, sink.ticks)
	assert.Equal(t, 2, sink.observed)
	assert.Equal(t, uint64(2), w.CurrentTick())
}
