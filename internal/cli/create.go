package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuannm99/ftstab/internal/ftstab"
)

type createOptions struct {
	schema string
	ext    int
	mode   string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(root *RootOptions) *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Create a table extension from a YAML schema",
		Long: `Create opens <file> with the schema declared in --schema.

With the default append mode a missing file is created and an existing
extension must match the schema. The other modes are overwrite, nothing
(fail if the file exists), enforce-write (overwrite on mismatch) and
enforce (rebuild the mismatched extension).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(root, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.schema, "schema", "s", "", "schema file (YAML)")
	cmd.Flags().IntVarP(&opts.ext, "ext", "e", 1, "table extension number")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "open mode, defaults to the config")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runCreate(root *RootOptions, opts *createOptions, path string, cmd *cobra.Command) error {
	spec, err := LoadTableSpec(opts.schema)
	if err != nil {
		return err
	}
	mode, err := root.openMode(opts.mode)
	if err != nil {
		return err
	}

	eng := root.engine()
	if err := spec.Declare(eng); err != nil {
		return err
	}
	s, err := eng.Open(path, opts.ext, mode, root.cfg.Table.TreatHistory)
	if err != nil {
		return err
	}
	if err := spec.PutCards(s); err != nil {
		return closeSession(s, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s ext %d: %d columns, row width %d, %d rows\n",
		path, s.Extension(), s.Columns(), s.RowWidth(), s.Rows())
	return closeSession(s, nil)
}

// printSummary is shared by commands that modify a table.
func printSummary(cmd *cobra.Command, s *ftstab.Session, verb string, n int64) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows, %s ext %d now has %d rows\n",
		verb, n, s.Path(), s.Extension(), s.Rows())
}
