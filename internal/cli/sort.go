package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type sortOptions struct {
	ext    int
	column int
	start  int64
	end    int64
}

// NewSortCommand creates the sort command.
func NewSortCommand(root *RootOptions) *cobra.Command {
	opts := &sortOptions{}

	cmd := &cobra.Command{
		Use:           "sort <file>",
		Short:         "Sort table rows in place by one column",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.openExisting(args[0], opts.ext)
			if err != nil {
				return err
			}
			if err := s.HeapSort(opts.column, opts.start, opts.end); err != nil {
				return closeSession(s, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sorted %s ext %d by column %d\n", args[0], s.Extension(), opts.column)
			return closeSession(s, nil)
		},
	}

	cmd.Flags().IntVarP(&opts.ext, "ext", "e", 1, "table extension number")
	cmd.Flags().IntVarP(&opts.column, "column", "k", 1, "sort key column")
	cmd.Flags().Int64Var(&opts.start, "start", 0, "first row, 0 for the first")
	cmd.Flags().Int64Var(&opts.end, "end", 0, "last row, 0 for the last")

	return cmd
}
