package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tuannm99/ftstab/internal/ftstab"
)

// binFlags are the flags of one histogram axis, optionally prefixed
// ("x-", "y-").
type binFlags struct {
	prefix string
	column int
	min    float64
	max    float64
	bins   int
	width  float64
}

func (b *binFlags) register(cmd *cobra.Command, axis string) {
	p := b.prefix
	cmd.Flags().IntVar(&b.column, p+"column", 1, axis+" column")
	cmd.Flags().Float64Var(&b.min, p+"min", 0, axis+" lower edge, computed from the rows when unset")
	cmd.Flags().Float64Var(&b.max, p+"max", 0, axis+" upper edge, computed from the rows when unset")
	cmd.Flags().IntVar(&b.bins, p+"bins", 0, axis+" bin count, the configured default when unset")
	cmd.Flags().Float64Var(&b.width, p+"width", 0, axis+" bin width, wins over the bin count")
}

func (b *binFlags) binning(cmd *cobra.Command) ftstab.Binning {
	out := ftstab.Binning{Column: b.column, Bins: b.bins, Width: b.width}
	if cmd.Flags().Changed(b.prefix + "min") {
		v := b.min
		out.Min = &v
	}
	if cmd.Flags().Changed(b.prefix + "max") {
		v := b.max
		out.Max = &v
	}
	return out
}

// rangeFlags are shared by hist and hist2d.
type rangeFlags struct {
	ext    int
	start  int64
	end    int64
	repeat int
	output string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&r.ext, "ext", "e", 1, "table extension number")
	cmd.Flags().Int64Var(&r.start, "start", 0, "first row, 0 for the first")
	cmd.Flags().Int64Var(&r.end, "end", 0, "last row, 0 for the last")
	cmd.Flags().IntVar(&r.repeat, "repeat", 1, "source rows each table row stands for")
	cmd.Flags().StringVarP(&r.output, "output", "o", "", "write the counts as a FITS image")
}

// NewHistCommand creates the hist command.
func NewHistCommand(root *RootOptions) *cobra.Command {
	axis := &binFlags{}
	rng := &rangeFlags{}

	cmd := &cobra.Command{
		Use:   "hist <file>",
		Short: "Histogram one column",
		Long: `Hist counts the values of one column into equal width bins and prints
bin centers with counts. The rows in range end up sorted by the column.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.openExisting(args[0], rng.ext)
			if err != nil {
				return err
			}
			h, err := s.Histogram(ftstab.HistogramOptions{
				Binning: axis.binning(cmd),
				Start:   rng.start,
				End:     rng.end,
				Repeat:  rng.repeat,
				Output:  rng.output,
			})
			if err != nil {
				return closeSession(s, err)
			}
			return closeSession(s, printHistogram(cmd.OutOrStdout(), h))
		},
	}
	axis.register(cmd, "binned")
	rng.register(cmd)

	return cmd
}

func printHistogram(out io.Writer, h *ftstab.Histogram) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "center\tcount\t")
	for i, c := range h.Counts {
		fmt.Fprintf(tw, "%g\t%d\t\n", h.Center(i), c)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "column %d, %d bins of %g from %g to %g, %d counted\n",
		h.Column, h.Bins, h.Width, h.Min, h.Max, h.Total())
	return err
}

// NewHist2DCommand creates the hist2d command.
func NewHist2DCommand(root *RootOptions) *cobra.Command {
	x := &binFlags{prefix: "x-"}
	y := &binFlags{prefix: "y-"}
	rng := &rangeFlags{}

	cmd := &cobra.Command{
		Use:   "hist2d <file>",
		Short: "Histogram two columns into a grid",
		Long: `Hist2d counts pairs of values into a grid and prints one line per Y bin.
The rows in range end up grouped by X bin and sorted by Y inside a group.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.openExisting(args[0], rng.ext)
			if err != nil {
				return err
			}
			h, err := s.Histogram2D(ftstab.Histogram2DOptions{
				X:      x.binning(cmd),
				Y:      y.binning(cmd),
				Start:  rng.start,
				End:    rng.end,
				Repeat: rng.repeat,
				Output: rng.output,
			})
			if err != nil {
				return closeSession(s, err)
			}
			return closeSession(s, printHistogram2D(cmd.OutOrStdout(), h))
		},
	}
	x.register(cmd, "X")
	y.register(cmd, "Y")
	rng.register(cmd)

	return cmd
}

func printHistogram2D(out io.Writer, h *ftstab.Histogram2D) error {
	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "y\\x\t")
	for i := 0; i < h.X.Bins; i++ {
		fmt.Fprintf(tw, "%g\t", h.X.Center(i))
	}
	fmt.Fprintln(tw)
	for j := h.Y.Bins - 1; j >= 0; j-- {
		fmt.Fprintf(tw, "%g\t", h.Y.Center(j))
		for i := 0; i < h.X.Bins; i++ {
			fmt.Fprintf(tw, "%d\t", h.At(i, j))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%dx%d bins, %d counted\n", h.X.Bins, h.Y.Bins, h.Total())
	return err
}
