package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dominoes.run/internal/persistence/boarddb"
	simenc "dominoes.run/internal/sim/encoding"
)

func newBoardsCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "Manage the local board library",
	}
	cmd.AddCommand(newBoardsListCommand(rootOpts))
	cmd.AddCommand(newBoardsSaveCommand(rootOpts))
	cmd.AddCommand(newBoardsExportCommand(rootOpts))
	cmd.AddCommand(newBoardsRenameCommand(rootOpts))
	cmd.AddCommand(newBoardsDeleteCommand(rootOpts))
	return cmd
}

func openBoards(opts *rootOptions) (*boarddb.DB, error) {
	return boarddb.OpenSQLite(boardDBPath(opts.DataDir))
}

func newBoardsListCommand(rootOpts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved boards, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openBoards(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			boards, err := db.ListBoards(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(boards)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION\tNODES\tUPDATED")
			for _, b := range boards {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", b.ID, b.Name, b.Version, b.Nodes, b.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newBoardsSaveCommand(rootOpts *rootOptions) *cobra.Command {
	var name, id string
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Store a board file in the library",
		Long: `Store a board file in the library. With --id the existing board's data is
replaced and its version incremented.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readBoardFile(args[0])
			if err != nil {
				return err
			}
			db, err := openBoards(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			var b boarddb.Board
			if id != "" {
				var namePtr *string
				if name != "" {
					namePtr = &name
				}
				b, err = db.UpdateBoard(cmd.Context(), id, namePtr, entries)
			} else {
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				}
				b, err = db.CreateBoard(cmd.Context(), name, entries)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s v%d (%d nodes)\n", b.ID, b.Name, b.Version, b.Nodes)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "board name (default: file name)")
	cmd.Flags().StringVar(&id, "id", "", "update this board instead of creating one")
	return cmd
}

func newBoardsExportCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a stored board to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openBoards(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := db.GetBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := b.Entries()
			if err != nil {
				return fmt.Errorf("board %s: %w", b.ID, err)
			}
			data, err := simenc.EncodeFile(args[1], entries)
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}
}

func newBoardsRenameCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a stored board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openBoards(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			name := args[1]
			b, err := db.UpdateBoard(cmd.Context(), args[0], &name, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s v%d\n", b.ID, b.Name, b.Version)
			return nil
		},
	}
}

func newBoardsDeleteCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openBoards(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.DeleteBoard(cmd.Context(), args[0])
		},
	}
}
