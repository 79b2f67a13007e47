package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	simenc "dominoes.run/internal/sim/encoding"
)

func newConvertCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a board between the packed and tbit formats",
		Long: `Convert a save file. The format of each side is chosen by its extension:
.tbit is the comma separated text format, anything else is packed binary.

Example:
  dominoes convert old.tbit board.bin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readBoardFile(args[0])
			if err != nil {
				return err
			}
			data, err := simenc.EncodeFile(args[1], entries)
			if err != nil {
				return fmt.Errorf("encode %s: %w", args[1], err)
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d nodes to %s\n", len(entries), args[1])
			return nil
		},
	}
}
