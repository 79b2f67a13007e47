package main

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"dominoes.run/internal/sim/world"
)

type failingSink struct{ calls int }

func (f *failingSink) WriteTick(rep world.TickReport) error {
	f.calls++
	return errors.New("disk full")
}

func TestLoggedTickLoggerReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	sink := &failingSink{}
	l := loggedTickLogger{name: "tick log", next: sink, logger: log.New(&buf, "", 0)}

	assert.NoError(t, l.WriteTick(world.TickReport{Tick: 7}))
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, "tick log: tick 7: disk full\n", buf.String())
}

func TestLoggedTickLoggerQuietOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	l := loggedTickLogger{name: "board index", next: okSink{}, logger: log.New(&buf, "", 0)}
	assert.NoError(t, l.WriteTick(world.TickReport{Tick: 1}))
	assert.Empty(t, buf.String())
}

type okSink struct{}

func (okSink) WriteTick(world.TickReport) error { return nil }
