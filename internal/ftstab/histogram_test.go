package ftstab

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/ftstab/internal/alias/bx"
	"github.com/tuannm99/ftstab/internal/fits"
)

func ptr(v float64) *float64 { return &v }

// openRandomTable fills the test schema with n rows: column 1 uniform in
// [0, 100), column 2 integers in [0, 20), column 3 uniform in [-1, 1).
func openRandomTable(t *testing.T, n int, opts ...Option) (*Session, [][]float64) {
	t.Helper()
	e := newTestEngine(t, opts...)
	s, err := e.Open(tablePath(t), 1, ModeOverwrite, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rng := rand.New(rand.NewSource(42))
	rows := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		r := []float64{rng.Float64() * 100, float64(rng.Intn(20)), float64(float32(rng.Float64()*2 - 1))}
		require.NoError(t, s.AppendRow(r))
		rows = append(rows, r)
	}
	return s, rows
}

func countIn(rows [][]float64, col int, lo, hi float64) int64 {
	var n int64
	for _, r := range rows {
		if v := r[col-1]; v >= lo && v <= hi {
			n++
		}
	}
	return n
}

func TestHistogram_Conservation(t *testing.T) {
	s, rows := openRandomTable(t, 500)

	cases := []HistogramOptions{
		{Binning: Binning{Column: 1, Min: ptr(10), Max: ptr(60), Bins: 7}},
		{Binning: Binning{Column: 1, Min: ptr(10), Max: ptr(60), Width: 3}},
		{Binning: Binning{Column: 2, Min: ptr(5), Max: ptr(15), Bins: 10}},
		{Binning: Binning{Column: 3, Min: ptr(-0.5), Max: ptr(0.25), Bins: 1}},
		{Binning: Binning{Column: 1}},
	}
	for _, opts := range cases {
		h, err := s.Histogram(opts)
		require.NoError(t, err)
		assert.Equal(t, countIn(rows, opts.Column, h.Min, h.Max), h.Total(), "%+v", opts.Binning)
	}
}

func TestHistogram_DefaultsAndWidth(t *testing.T) {
	s, rows := openRandomTable(t, 200)

	h, err := s.Histogram(HistogramOptions{Binning: Binning{Column: 1}})
	require.NoError(t, err)
	assert.Equal(t, DefaultBins, h.Bins)
	assert.Len(t, h.Counts, DefaultBins)
	assert.Equal(t, int64(len(rows)), h.Total(), "computed extremes cover every row")

	h, err = s.Histogram(HistogramOptions{Binning: Binning{Column: 2, Min: ptr(0), Max: ptr(10), Width: 2.5, Bins: 99}})
	require.NoError(t, err)
	assert.Equal(t, 4, h.Bins, "width wins over bin count")
	assert.Equal(t, 2.5, h.Width)
	assert.Equal(t, 1.25, h.Center(0))

	s2, _ := openRandomTable(t, 10, WithDefaultBins(8))
	h, err = s2.Histogram(HistogramOptions{Binning: Binning{Column: 3}})
	require.NoError(t, err)
	assert.Equal(t, 8, h.Bins)
}

func TestHistogram_MaxLandsInLastBin(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.Open(tablePath(t), 1, ModeOverwrite, false)
	require.NoError(t, err)
	defer s.Close()
	for _, v := range []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, -1} {
		require.NoError(t, s.AppendRow([]float64{v, 0, 0}))
	}

	h, err := s.Histogram(HistogramOptions{Binning: Binning{Column: 1, Min: ptr(0), Max: ptr(10), Bins: 5}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2, 2, 2, 3}, h.Counts)

	// the table is sorted by the column as a side effect
	prev := math.Inf(-1)
	for r := int64(1); r <= s.Rows(); r++ {
		v, err := s.GetValue(r, 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestHistogram_RowRange(t *testing.T) {
	s, _ := openRandomTable(t, 100)

	var want []float64
	for r := int64(21); r <= 40; r++ {
		v, err := s.GetValue(r, 1)
		require.NoError(t, err)
		want = append(want, v)
	}
	h, err := s.Histogram(HistogramOptions{Binning: Binning{Column: 1}, Start: 21, End: 40})
	require.NoError(t, err)
	assert.Equal(t, int64(20), h.Total())
	assert.Equal(t, slicesMin(want), h.Min)
	assert.Equal(t, slicesMax(want), h.Max)

	_, err = s.Histogram(HistogramOptions{Binning: Binning{Column: 1}, Start: 50, End: 10})
	require.ErrorIs(t, err, ErrBadRange)
	_, err = s.Histogram(HistogramOptions{Binning: Binning{Column: 1, Min: ptr(5), Max: ptr(1)}})
	require.ErrorIs(t, err, ErrBadRange)
	_, err = s.Histogram(HistogramOptions{Binning: Binning{Column: 1, Min: ptr(0), Max: ptr(1), Bins: maxBins + 1}})
	require.ErrorIs(t, err, ErrResource)
}

func slicesMin(v []float64) float64 {
	m := math.Inf(1)
	for _, x := range v {
		m = math.Min(m, x)
	}
	return m
}

func slicesMax(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		m = math.Max(m, x)
	}
	return m
}

func TestHistogram_WritesImage(t *testing.T) {
	s, _ := openRandomTable(t, 300)
	out := filepath.Join(t.TempDir(), "hist.fits")

	h, err := s.Histogram(HistogramOptions{
		Binning: Binning{Column: 2, Min: ptr(0), Max: ptr(20), Bins: 4},
		Repeat:  3,
		Output:  out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Zero(t, len(data)%2880)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	hdr, n, err := fits.Read(f, 0)
	require.NoError(t, err)

	bitpix, err := hdr.Int("BITPIX")
	require.NoError(t, err)
	assert.Equal(t, int64(32), bitpix)
	naxis1, err := hdr.Int("NAXIS1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), naxis1)
	ctype, err := hdr.Str("CTYPE1")
	require.NoError(t, err)
	assert.Equal(t, "VROT", ctype)
	crval, err := hdr.Float("CRVAL1")
	require.NoError(t, err)
	assert.Equal(t, 2.5, crval)
	cdelt, err := hdr.Float("CDELT1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cdelt)

	for i, c := range h.Counts {
		assert.Equal(t, int32(c*3), bx.I32(data[n+int64(i)*4:]), "bin %d", i)
	}
	assert.Equal(t, int64(300), h.Total())
}

func TestHistogram2D_MatchesBruteForce(t *testing.T) {
	s, rows := openRandomTable(t, 400, WithCacheBlocks(4))

	opts := Histogram2DOptions{
		X: Binning{Column: 2, Min: ptr(0), Max: ptr(19), Bins: 5},
		Y: Binning{Column: 1, Min: ptr(20), Max: ptr(80), Bins: 6},
	}
	h, err := s.Histogram2D(opts)
	require.NoError(t, err)
	require.Len(t, h.Counts, 30)

	want := make([]int64, 30)
	for _, r := range rows {
		i, j := h.X.bin(r[1]), h.Y.bin(r[0])
		if i >= 0 && j >= 0 {
			want[j*5+i]++
		}
	}
	assert.Equal(t, want, h.Counts)

	var inBoth int64
	for _, r := range rows {
		if r[1] >= 0 && r[1] <= 19 && r[0] >= 20 && r[0] <= 80 {
			inBoth++
		}
	}
	assert.Equal(t, inBoth, h.Total())
	assert.Equal(t, want[2*5+1], h.At(1, 2))

	// grouped by X bin afterwards, sorted by Y inside each group
	prevBin, prevY := -1, math.Inf(-1)
	for r := int64(1); r <= s.Rows(); r++ {
		row, err := s.GetRow(r)
		require.NoError(t, err)
		bin := h.X.bin(row[1])
		require.GreaterOrEqual(t, bin, prevBin, "row %d", r)
		if bin != prevBin {
			prevY = math.Inf(-1)
		}
		assert.GreaterOrEqual(t, row[0], prevY, "row %d", r)
		prevBin, prevY = bin, row[0]
	}
}

func TestHistogram2D_WritesImage(t *testing.T) {
	s, _ := openRandomTable(t, 50)
	out := filepath.Join(t.TempDir(), "hist2d.fits")

	h, err := s.Histogram2D(Histogram2DOptions{
		X:      Binning{Column: 1, Bins: 3},
		Y:      Binning{Column: 3, Bins: 2},
		Output: out,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), h.Total())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	hdr, n, err := fits.Read(f, 0)
	require.NoError(t, err)
	naxis, err := hdr.Int("NAXIS")
	require.NoError(t, err)
	assert.Equal(t, int64(2), naxis)
	naxis2, err := hdr.Int("NAXIS2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), naxis2)

	buf := make([]byte, 4)
	for j := 0; j < 2; j++ {
		for i := 0; i < 3; i++ {
			_, err := f.ReadAt(buf, n+int64(j*3+i)*4)
			require.NoError(t, err)
			assert.Equal(t, int32(h.At(i, j)), bx.I32(buf))
		}
	}
}
