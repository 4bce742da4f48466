package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuannm99/ftstab/internal/alias/util"
	"github.com/tuannm99/ftstab/internal/fits"
	"github.com/tuannm99/ftstab/internal/storage"
)

type dumpOptions struct {
	hdu   int
	block int64
	width int
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(_ *RootOptions) *cobra.Command {
	opts := &dumpOptions{}

	cmd := &cobra.Command{
		Use:           "dump <file>",
		Short:         "Print the header cards of one HDU",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("block") {
				return runDumpBlock(args[0], opts.block, opts.width, cmd.OutOrStdout())
			}
			return runDump(args[0], opts.hdu, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.hdu, "hdu", 1, "HDU index, 0 is the primary header")
	cmd.Flags().Int64Var(&opts.block, "block", 0, "print raw 2880-byte block n instead of a header")
	cmd.Flags().IntVar(&opts.width, "width", storage.CardSize, "bytes per line of a raw block, under 80 adds hex")

	return cmd
}

func runDump(path string, hdu int, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseFileFunc(f)
	st, err := f.Stat()
	if err != nil {
		return err
	}

	hdus, err := fits.Scan(f, st.Size())
	if hdu < 0 || hdu >= len(hdus) {
		if err != nil {
			return err
		}
		return fmt.Errorf("%s has no HDU %d (%d HDUs)", path, hdu, len(hdus))
	}
	return hdus[hdu].Header.Dump(out)
}

func runDumpBlock(path string, no int64, width int, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseFileFunc(f)

	blk, err := storage.NewBlockManager().LoadBlock(f, no)
	if err != nil {
		return fmt.Errorf("block %d of %s: %w", no, path, err)
	}
	return blk.Debug(out, width)
}
