package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"dominoes.run/internal/audio"
	"dominoes.run/internal/input"
	"dominoes.run/internal/render"
)

type playOptions struct {
	*rootOptions
	File    string
	Observe string
	Sound   bool
}

func newPlayCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &playOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Edit and run a board in the terminal",
		Long: `Open the interactive board editor.

Arrows move the cursor (shift moves three cells), typing a glyph places a
node and advances along the last direction moved, Enter knocks the node under
the cursor, space fires every starter, r stands everything back up, s and l
save and load the current file, o changes it. Esc or Ctrl-C quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "save file (.tbit for the text format); loaded on start if it exists")
	cmd.Flags().StringVar(&opts.Observe, "observe", "", "observer listen address, e.g. 127.0.0.1:8081 (default from tuning)")
	cmd.Flags().BoolVar(&opts.Sound, "sound", false, "click when dominoes fall")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *playOptions) error {
	// The terminal belongs to tcell; log to a file.
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(opts.DataDir, "dominoes.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := log.New(logFile, "[dominoes] ", log.LstdFlags|log.Lmicroseconds)

	rt, err := opts.loadRuntime(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	observeAddr := strings.TrimSpace(opts.Observe)
	if observeAddr == "" {
		observeAddr = rt.tune.ObserveAddr
	}
	closeSinks, err := attachSinks(ctx, rt, opts.DataDir, observeAddr, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	if opts.Sound || rt.tune.Sound {
		player := audio.NewPlayer()
		if err := player.Initialize(); err != nil {
			logger.Printf("audio disabled: %v", err)
		} else {
			rt.world.AddObserver(player)
			defer player.Close()
		}
	}

	file := opts.File
	if file == "" {
		file = rt.tune.SaveFile
	}
	mapper := input.New(rt.world, input.OSFiles{}, file)
	if file != "" {
		if _, statErr := os.Stat(file); statErr == nil {
			if err := mapper.Load(); err != nil {
				logger.Printf("load %s: %v", file, err)
			}
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()
	screen.HideCursor()

	width, height := screen.Size()

	tickTicker := time.NewTicker(rt.tune.TickInterval())
	defer tickTicker.Stop()
	frameTicker := time.NewTicker(rt.tune.RenderInterval())
	defer frameTicker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	logger.Printf("play file=%q nodes=%d", file, rt.world.Len())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if resize, ok := ev.(*tcell.EventResize); ok {
				width, height = resize.Size()
				screen.Sync()
				continue
			}
			if !mapper.HandleEvent(ev) {
				return nil
			}
		case <-tickTicker.C:
			rep := rt.world.Tick()
			if len(rep.Fired) > 0 {
				logger.Printf("tick=%d fired=%d transitions=%d pending=%d", rep.Tick, len(rep.Fired), len(rep.Transitions), rep.Pending)
			}
		case <-frameTicker.C:
			view := render.ViewAround(mapper.X, mapper.Y, width, height)
			render.Draw(screen, rt.world, view, mapper.Overlay())
		}
	}
}
