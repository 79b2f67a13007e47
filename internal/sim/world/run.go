package world

import (
	"context"
	"time"
)

// Run drives the tick clock until ctx is done. Commands passed to Do run
// between ticks on this goroutine.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-w.inbox:
			if cmd != nil {
				cmd(w)
			}
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Do runs fn on the world goroutine and waits for it to finish.
func (w *World) Do(ctx context.Context, fn func(w *World)) error {
	done := make(chan struct{})
	cmd := func(w *World) {
		defer close(done)
		fn(w)
	}
	select {
	case w.inbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
