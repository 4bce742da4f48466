package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tuannm99/ftstab/internal/alias/util"
	"github.com/tuannm99/ftstab/internal/fits"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info <file>",
		Short:         "List the HDUs of a FITS file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0], cmd.OutOrStdout())
		},
	}
}

func runInfo(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseFileFunc(f)
	st, err := f.Stat()
	if err != nil {
		return err
	}

	hdus, scanErr := fits.Scan(f, st.Size())
	fmt.Fprintf(out, "%s: %s, %d HDUs\n", path, humanize.IBytes(uint64(st.Size())), len(hdus))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HDU\tTYPE\tHEADER\tDATA\tSIZE\tROWS\tCOLUMNS")
	for _, u := range hdus {
		kind := u.XTension()
		if u.Index == 0 {
			kind = "PRIMARY"
		}
		rows, cols := "-", "-"
		if u.IsBinTable() {
			if n, err := u.Header.Int("NAXIS2"); err == nil {
				rows = humanize.Comma(n)
			}
			if n, err := u.Header.Int("TFIELDS"); err == nil {
				cols = fmt.Sprint(n)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\n",
			u.Index, kind, u.HeaderStart, u.DataStart, humanize.IBytes(uint64(u.DataLen)), rows, cols)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if n := fits.Trailing(hdus, st.Size()); scanErr == nil && n > 0 {
		fmt.Fprintf(out, "%s of trailing data after HDU %d\n", humanize.IBytes(uint64(n)), len(hdus)-1)
	}
	return scanErr
}
