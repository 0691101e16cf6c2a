package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/park285/csa-client/internal/book"
	"github.com/park285/csa-client/internal/shogi"
)

var (
	buildOut     string
	filterOut    string
	bookMaxPly   int
	bookMinCount uint32
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Build and inspect opening books",
}

var bookBuildCmd = &cobra.Command{
	Use:   "build RECORD...",
	Short: "Build a book from CSA record files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := book.Load(buildOut)
		if errors.Is(err, os.ErrNotExist) {
			b = book.New()
		} else if err != nil {
			return err
		}
		failed := 0
		for _, path := range args {
			if err := b.AddRecordFile(path, bookMaxPly); err != nil {
				yellow.Fprintf(cmd.ErrOrStderr(), "skip: %v\n", err)
				failed++
			}
		}
		if err := b.Save(buildOut); err != nil {
			return err
		}
		green.Fprintf(cmd.OutOrStdout(), "%s: %d positions from %d records", buildOut, b.Len(), len(args)-failed)
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var bookFilterCmd = &cobra.Command{
	Use:   "filter BOOK",
	Short: "Drop rarely played moves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := book.Load(args[0])
		if err != nil {
			return err
		}
		before := b.Len()
		b.Filter(book.MinCount(bookMinCount))
		out := filterOut
		if out == "" {
			out = args[0]
		}
		if err := b.Save(out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d positions\n", out, before, b.Len())
		return nil
	},
}

var bookShowCmd = &cobra.Command{
	Use:   "show BOOK",
	Short: "Print the book size and the moves for the initial position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := book.Load(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "positions: %d\n", b.Len())
		pos := shogi.NewPosition()
		entries := b.Lookup(pos.Hash())
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
		for _, e := range entries {
			cyan.Fprintf(w, "  %-8s", shogi.FormatCSAMove(e.Move, pos.Turn()))
			fmt.Fprintf(w, " %-6s %d\n", shogi.FormatUSIMove(e.Move), e.Count)
		}
		return nil
	},
}

func init() {
	bookBuildCmd.Flags().StringVarP(&buildOut, "out", "o", "book.bin", "book file to write (merged when it exists)")
	bookBuildCmd.Flags().IntVar(&bookMaxPly, "max-ply", 24, "plies taken from each record")
	bookFilterCmd.Flags().StringVarP(&filterOut, "out", "o", "", "output file (default: overwrite BOOK)")
	bookFilterCmd.Flags().Uint32Var(&bookMinCount, "min-count", 2, "minimum times a move must have been played")

	bookCmd.AddCommand(bookBuildCmd, bookFilterCmd, bookShowCmd)
	rootCmd.AddCommand(bookCmd)
}
