package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDigestCommand creates the digest command.
func NewDigestCommand(root *RootOptions) *cobra.Command {
	var ext int

	cmd := &cobra.Command{
		Use:           "digest <file>",
		Short:         "Print the blake3 digest of a table's rows",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.openExisting(args[0], ext)
			if err != nil {
				return err
			}
			sum, err := s.DigestBody()
			if err != nil {
				return closeSession(s, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s[%d]\n", sum, args[0], s.Extension())
			return closeSession(s, nil)
		},
	}
	cmd.Flags().IntVarP(&ext, "ext", "e", 1, "table extension number")

	return cmd
}
