package ftstab

import (
	"fmt"
	"math"

	"github.com/tuannm99/ftstab/internal/fits"
)

// maxBins bounds the bin array of one histogram axis.
const maxBins = 1 << 24

// Binning describes one histogram axis. A nil Min or Max is computed from
// the rows in range. Width takes precedence over Bins; with neither set the
// engine default bin count is used.
type Binning struct {
	Column int
	Min    *float64
	Max    *float64
	Bins   int
	Width  float64
}

// HistogramOptions configures Session.Histogram. Start and End select rows
// (0 for the first or last row). Repeat is how many source rows every table
// row stands for; it scales the image written to Output, not Counts.
type HistogramOptions struct {
	Binning
	Start  int64
	End    int64
	Repeat int
	Output string
}

// Histogram2DOptions configures Session.Histogram2D.
type Histogram2DOptions struct {
	X      Binning
	Y      Binning
	Start  int64
	End    int64
	Repeat int
	Output string
}

// Axis is a resolved histogram axis.
type Axis struct {
	Column int
	Min    float64
	Max    float64
	Width  float64
	Bins   int
}

// bin returns the bin of v, or -1 when v is outside [Min, Max]. Max itself
// falls into the last bin.
func (a Axis) bin(v float64) int {
	if math.IsNaN(v) || v < a.Min || v > a.Max {
		return -1
	}
	if a.Width <= 0 {
		return 0
	}
	i := int((v - a.Min) / a.Width)
	if i >= a.Bins {
		i = a.Bins - 1
	}
	return i
}

// Center is the value at the middle of bin i.
func (a Axis) Center(i int) float64 {
	return a.Min + (float64(i)+0.5)*a.Width
}

type Histogram struct {
	Axis
	Repeat int
	Counts []int64
}

// Total is the number of rows counted.
func (h *Histogram) Total() int64 {
	var n int64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

type Histogram2D struct {
	X      Axis
	Y      Axis
	Repeat int
	Counts []int64 // X varies fastest
}

// At returns the count of x bin i and y bin j.
func (h *Histogram2D) At(i, j int) int64 {
	return h.Counts[j*h.X.Bins+i]
}

func (h *Histogram2D) Total() int64 {
	var n int64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// valueRange returns the smallest and largest non-NaN value of col over
// rows start..end. An empty or all-NaN range yields 0, 0.
func (s *Session) valueRange(col int, start, end int64) (float64, float64, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for r := start; r <= end; r++ {
		v, err := s.readCell(r, col)
		if err != nil {
			return 0, 0, err
		}
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0, nil
	}
	return lo, hi, nil
}

func (s *Session) resolveAxis(b Binning, start, end int64) (Axis, error) {
	if err := s.checkCol(b.Column); err != nil {
		return Axis{}, err
	}
	a := Axis{Column: b.Column}
	if b.Min == nil || b.Max == nil {
		lo, hi, err := s.valueRange(b.Column, start, end)
		if err != nil {
			return Axis{}, err
		}
		a.Min, a.Max = lo, hi
	}
	if b.Min != nil {
		a.Min = *b.Min
	}
	if b.Max != nil {
		a.Max = *b.Max
	}
	if a.Max < a.Min {
		return Axis{}, fmt.Errorf("%w: min %g above max %g", ErrBadRange, a.Min, a.Max)
	}

	span := a.Max - a.Min
	switch {
	case b.Width > 0:
		a.Width = b.Width
		bins := math.Ceil(span / b.Width)
		if bins > maxBins {
			return Axis{}, fmt.Errorf("%w: %g bins", ErrResource, bins)
		}
		a.Bins = max(int(bins), 1)
	case b.Bins > 0:
		a.Bins = b.Bins
	default:
		a.Bins = s.eng.defaultBins
	}
	if a.Bins > maxBins {
		return Axis{}, fmt.Errorf("%w: %d bins", ErrResource, a.Bins)
	}
	if a.Width == 0 {
		a.Width = span / float64(a.Bins)
	}
	return a, nil
}

// Histogram counts the values of one column per bin. The rows in range are
// sorted by that column first, so a single ascending scan fills the bins.
func (s *Session) Histogram(opts HistogramOptions) (*Histogram, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	start, end, err := s.rowRange(opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	a, err := s.resolveAxis(opts.Binning, start, end)
	if err != nil {
		return nil, err
	}
	if err := s.HeapSort(a.Column, start, end); err != nil {
		return nil, err
	}

	h := &Histogram{Axis: a, Repeat: max(opts.Repeat, 1), Counts: make([]int64, a.Bins)}
	for r := start; r <= end; r++ {
		v, err := s.readCell(r, a.Column)
		if err != nil {
			return nil, err
		}
		if v > a.Max || math.IsNaN(v) {
			break
		}
		if i := a.bin(v); i >= 0 {
			h.Counts[i]++
		}
	}
	s.logger.Debug("histogram", "column", a.Column, "bins", a.Bins, "total", h.Total())

	if opts.Output != "" {
		axes := []fits.Axis{s.imageAxis(a)}
		if err := writeCounts(opts.Output, axes, h.Counts, h.Repeat); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Histogram2D counts value pairs of two columns. Rows are sorted by the X
// column; each run of rows sharing an X bin is then sorted by the Y column
// and scanned once.
func (s *Session) Histogram2D(opts Histogram2DOptions) (*Histogram2D, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	start, end, err := s.rowRange(opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	ax, err := s.resolveAxis(opts.X, start, end)
	if err != nil {
		return nil, err
	}
	ay, err := s.resolveAxis(opts.Y, start, end)
	if err != nil {
		return nil, err
	}
	if int64(ax.Bins)*int64(ay.Bins) > maxBins {
		return nil, fmt.Errorf("%w: %d x %d bins", ErrResource, ax.Bins, ay.Bins)
	}
	if err := s.HeapSort(ax.Column, start, end); err != nil {
		return nil, err
	}

	h := &Histogram2D{
		X:      ax,
		Y:      ay,
		Repeat: max(opts.Repeat, 1),
		Counts: make([]int64, ax.Bins*ay.Bins),
	}
	for r := start; r <= end; {
		x, err := s.readCell(r, ax.Column)
		if err != nil {
			return nil, err
		}
		i := ax.bin(x)
		runEnd := r
		for runEnd < end {
			next, err := s.readCell(runEnd+1, ax.Column)
			if err != nil {
				return nil, err
			}
			if ax.bin(next) != i {
				break
			}
			runEnd++
		}
		if i >= 0 {
			if err := s.countRun(h, i, r, runEnd); err != nil {
				return nil, err
			}
		}
		r = runEnd + 1
	}
	s.logger.Debug("histogram 2d",
		"x", ax.Column, "y", ay.Column, "bins", ax.Bins*ay.Bins, "total", h.Total())

	if opts.Output != "" {
		axes := []fits.Axis{s.imageAxis(ax), s.imageAxis(ay)}
		if err := writeCounts(opts.Output, axes, h.Counts, h.Repeat); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (s *Session) countRun(h *Histogram2D, i int, start, end int64) error {
	if err := s.HeapSort(h.Y.Column, start, end); err != nil {
		return err
	}
	for r := start; r <= end; r++ {
		y, err := s.readCell(r, h.Y.Column)
		if err != nil {
			return err
		}
		if y > h.Y.Max || math.IsNaN(y) {
			break
		}
		if j := h.Y.bin(y); j >= 0 {
			h.Counts[j*h.X.Bins+i]++
		}
	}
	return nil
}

// imageAxis maps a histogram axis to image coordinates: pixel 1 is the
// center of the first bin.
func (s *Session) imageAxis(a Axis) fits.Axis {
	name := fmt.Sprintf("COLUMN%d", a.Column)
	if e, err := s.eng.reg.Lookup(s.eng.schema.Title(a.Column)); err == nil && e.ID != DefaultTitle {
		name = e.Type
	}
	return fits.Axis{
		Len:    int64(a.Bins),
		Type:   name,
		RefPix: 1,
		RefVal: a.Center(0),
		Delta:  a.Width,
	}
}

func writeCounts(path string, axes []fits.Axis, counts []int64, repeat int) error {
	h, err := fits.Int32ImageHeader(axes)
	if err != nil {
		return err
	}
	_, _ = h.Put("BUNIT", "COUNTS", "rows per bin")
	_, _ = h.Put("REPEAT", repeat, "source rows per table row")

	data := make([]int32, len(counts))
	for i, c := range counts {
		data[i] = int32(min(c*int64(repeat), math.MaxInt32))
	}
	if err := fits.WriteInt32Image(path, h, data); err != nil {
		return fmt.Errorf("write histogram %s: %w", path, err)
	}
	return nil
}
