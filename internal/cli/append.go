package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuannm99/ftstab/internal/alias/util"
	"github.com/tuannm99/ftstab/internal/ftstab"
)

var ErrBadInput = errors.New("cli: bad input row")

type appendOptions struct {
	schema string
	input  string
	ext    int
	mode   string
}

// NewAppendCommand creates the append command.
func NewAppendCommand(root *RootOptions) *cobra.Command {
	opts := &appendOptions{}

	cmd := &cobra.Command{
		Use:   "append <file>",
		Short: "Append whitespace separated rows to a table",
		Long: `Append reads one row per line from stdin (or --input) and appends it.

Blank lines and lines starting with # are skipped. Without --schema the
schema is read back from the extension.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(root, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.schema, "schema", "s", "", "schema file (YAML)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "row file, stdin when empty")
	cmd.Flags().IntVarP(&opts.ext, "ext", "e", 1, "table extension number")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "open mode when --schema is given")

	return cmd
}

func runAppend(root *RootOptions, opts *appendOptions, path string, cmd *cobra.Command) error {
	in := cmd.InOrStdin()
	if opts.input != "" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer util.CloseFileFunc(f)
		in = f
	}

	var s *ftstab.Session
	if opts.schema == "" {
		var err error
		if s, err = root.openExisting(path, opts.ext); err != nil {
			return err
		}
	} else {
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
		if s, err = eng.Open(path, opts.ext, mode, root.cfg.Table.TreatHistory); err != nil {
			return err
		}
	}

	n, err := appendRows(s, in)
	if err != nil {
		root.logger.Warn("append stopped", "path", path, "rows_written", n, "err", err)
		return closeSession(s, err)
	}
	printSummary(cmd, s, "appended", n)
	return closeSession(s, nil)
}

// appendRows appends every row read from r and returns how many were
// written.
func appendRows(s *ftstab.Session, r io.Reader) (int64, error) {
	var n int64
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		row, err := parseRow(text)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := s.AppendRow(row); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	return n, sc.Err()
}

func parseRow(text string) ([]float64, error) {
	fields := strings.Fields(text)
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q", ErrBadInput, i+1, f)
		}
		row[i] = v
	}
	return row, nil
}
