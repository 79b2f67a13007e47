package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dominoes.run/internal/render"
	simenc "dominoes.run/internal/sim/encoding"
	"dominoes.run/internal/sim/world"
)

type runOptions struct {
	*rootOptions
	File    string
	Observe string
	Ticks   int
	Frames  bool
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a board headless",
		Long: `Load a board, fire its starters and run the cascade without a terminal UI.

With --ticks N the clock runs as fast as possible for at most N ticks (or
until nothing is pending) and the final board is printed. With --ticks 0 the
clock runs in real time until interrupted, which is useful with --observe.

Example:
  dominoes run --file boards/demo.tbit --ticks 200
  dominoes run --file boards/demo.tbit --ticks 0 --observe 127.0.0.1:8081`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "board file (.tbit for the text format)")
	cmd.Flags().StringVar(&opts.Observe, "observe", "", "observer listen address (default from tuning)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 1000, "maximum ticks to run; 0 runs in real time")
	cmd.Flags().BoolVar(&opts.Frames, "frames", false, "print the board and its node states after every tick that changed it")

	return cmd
}

func runHeadless(cmd *cobra.Command, opts *runOptions) error {
	logger := log.New(os.Stderr, "[dominoes] ", log.LstdFlags|log.Lmicroseconds)

	rt, err := opts.loadRuntime(logger)
	if err != nil {
		return err
	}

	file := opts.File
	if file == "" {
		file = rt.tune.SaveFile
	}
	if file != "" {
		entries, err := readBoardFile(file)
		if err != nil {
			return err
		}
		rt.world.Load(entries)
		logger.Printf("loaded %s nodes=%d", file, rt.world.Len())
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

	started := rt.world.Start()
	logger.Printf("started %d starters", started)

	if opts.Ticks <= 0 {
		if err := rt.world.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	out := cmd.OutOrStdout()
	ticks := 0
	for ticks < opts.Ticks && rt.world.PendingEntries() > 0 {
		if ctx.Err() != nil {
			break
		}
		rep := rt.world.Tick()
		ticks++
		if opts.Frames && len(rep.Transitions) > 0 {
			fmt.Fprintf(out, "tick %d\n", rep.Tick)
			printFrame(out, rt.world)
		}
	}
	fmt.Fprintf(out, "ticks=%d nodes=%d pending=%d digest=%s\n", ticks, rt.world.Len(), rt.world.PendingEntries(), rt.world.Digest())
	printBoard(out, rt.world)
	return nil
}

func readBoardFile(name string) ([]simenc.Entry, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	entries, err := simenc.DecodeFile(name, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return entries, nil
}

// boardView is the smallest view holding every node.
func boardView(w *world.World) render.View {
	nodes := w.Nodes()
	if len(nodes) == 0 {
		return render.View{}
	}
	minX, maxX := nodes[0].Pos.X, nodes[0].Pos.X
	minY, maxY := nodes[0].Pos.Y, nodes[len(nodes)-1].Pos.Y
	for _, n := range nodes {
		minX = min(minX, n.Pos.X)
		maxX = max(maxX, n.Pos.X)
	}
	return render.View{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

func printBoard(out io.Writer, w *world.World) {
	for _, row := range render.TextFrame(w, boardView(w)) {
		fmt.Fprintln(out, row)
	}
}

// printFrame prints the glyphs, a separator, then one state letter per node.
func printFrame(out io.Writer, w *world.World) {
	v := boardView(w)
	for _, row := range render.TextFrame(w, v) {
		fmt.Fprintln(out, row)
	}
	fmt.Fprintln(out, "--")
	for _, row := range render.StateFrame(w, v) {
		fmt.Fprintln(out, row)
	}
}
