package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dominoes.run/internal/sim/catalogs"
	"dominoes.run/internal/sim/tuning"
	"dominoes.run/internal/sim/world"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	ConfigDir  string
	DataDir    string
	TuningPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dominoes",
		Short:         "Domino cascade simulator",
		Long:          "Build boards of dominoes, knock one over and watch the cascade.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "configs", "./configs", "config directory (node-types.json, tuning.yaml)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data", "./data", "runtime data directory")
	cmd.PersistentFlags().StringVar(&opts.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")

	cmd.AddCommand(newPlayCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newConvertCommand(opts))
	cmd.AddCommand(newBoardsCommand(opts))

	return cmd
}

// runtime is what every subcommand that simulates needs.
type runtime struct {
	cats  *catalogs.Catalog
	tune  tuning.Tuning
	world *world.World
}

func (o *rootOptions) tuningFile() string {
	if p := strings.TrimSpace(o.TuningPath); p != "" {
		return p
	}
	return filepath.Join(o.ConfigDir, "tuning.yaml")
}

// loadTuning reads tuning.yaml, falling back to defaults when the file does
// not exist, then applies DOMINOES_* overrides.
func (o *rootOptions) loadTuning(logger *log.Logger) (tuning.Tuning, error) {
	path := o.tuningFile()
	tune, err := tuning.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return tune, fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", path)
		tune = tuning.Defaults()
	}
	if err := tune.ApplyEnv(); err != nil {
		return tune, err
	}
	return tune, nil
}

func (o *rootOptions) loadRuntime(logger *log.Logger) (*runtime, error) {
	cats, err := catalogs.Load(o.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := o.loadTuning(logger)
	if err != nil {
		return nil, err
	}
	w, err := world.New(world.Config{TickInterval: tune.TickInterval()}, cats)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	logger.Printf("catalog digest=%s types=%d tick=%s", cats.Digest, len(cats.Types), tune.TickInterval())
	return &runtime{cats: cats, tune: tune, world: w}, nil
}
