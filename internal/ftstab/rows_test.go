package ftstab

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/ftstab/internal/fits"
)

func TestRows_AppendAndRead(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.Open(tablePath(t), 1, ModeOverwrite, false)
	require.NoError(t, err)
	defer s.Close()

	require.ErrorIs(t, s.AppendRow([]float64{1, 2}), ErrRowLength)
	assert.Equal(t, int64(0), s.Rows())
	assert.False(t, s.HeaderBlocked(), "a rejected row does not block the header")

	for _, r := range scenarioRows {
		require.NoError(t, s.AppendRow(r))
	}
	assert.Equal(t, int64(3), s.Rows())
	assert.Equal(t, 3, s.Columns())

	got, err := s.GetRow(3)
	require.NoError(t, err)
	assert.Equal(t, scenarioRows[2], got)

	_, err = s.GetRow(0)
	require.ErrorIs(t, err, ErrBadRow)
	_, err = s.GetRow(4)
	require.ErrorIs(t, err, ErrBadRow)
	_, err = s.GetValue(1, 4)
	require.ErrorIs(t, err, ErrBadColumn)

	assert.Equal(t, 1.0, e.Schema().Min(1))
	assert.Equal(t, 7.0, e.Schema().Max(1))
	assert.Equal(t, 9.0, e.Schema().Max(3))
}

func TestRows_KindConversion(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.Open(tablePath(t), 1, ModeOverwrite, false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendRow([]float64{0.1, 3e10, 0.1}))
	got, err := s.GetRow(1)
	require.NoError(t, err)
	assert.Equal(t, 0.1, got[0])
	assert.Equal(t, float64(math.MaxInt32), got[1])
	assert.Equal(t, float64(float32(0.1)), got[2])
}

func TestRows_PutRowAndValue(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.Open(tablePath(t), 1, ModeOverwrite, false)
	require.NoError(t, err)
	defer s.Close()
	for _, r := range scenarioRows {
		require.NoError(t, s.AppendRow(r))
	}

	require.NoError(t, s.PutRow(2, []float64{-1, -2, -3}))
	require.NoError(t, s.PutValue(3, 2, 100))
	require.ErrorIs(t, s.PutRow(4, scenarioRows[0]), ErrBadRow)
	require.ErrorIs(t, s.PutRow(1, []float64{1}), ErrRowLength)
	require.ErrorIs(t, s.PutValue(1, 0, 1), ErrBadColumn)

	got, err := s.GetRow(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2, -3}, got)
	v, err := s.GetValue(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	// rows 1 and 3 keep their other cells
	got, err = s.GetRow(1)
	require.NoError(t, err)
	assert.Equal(t, scenarioRows[0], got)
	v, err = s.GetValue(3, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	assert.Equal(t, -1.0, e.Schema().Min(1))
	assert.Equal(t, 100.0, e.Schema().Max(2))
	assert.Equal(t, int64(3), s.Rows())
}

func TestRows_ManyRowsThroughSmallCache(t *testing.T) {
	e := newTestEngine(t, WithCacheBlocks(2))
	path := tablePath(t)

	const n = 2000
	s, err := e.Open(path, 1, ModeOverwrite, false)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, s.AppendRow([]float64{float64(i), float64(-i), float64(i) / 2}))
	}
	require.NoError(t, s.Close())

	data := readFile(t, path)
	assert.Zero(t, len(data)%2880)
	assert.Equal(t, 2880+5760+((n*16+2879)/2880)*2880, len(data))

	s, err = e.Open(path, 1, ModeAppend, false)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, int64(n), s.Rows())
	for _, row := range []int64{1, 180, 181, 1000, n} {
		got, err := s.GetRow(row)
		require.NoError(t, err)
		i := float64(row - 1)
		assert.Equal(t, []float64{i, -i, i / 2}, got)
	}
}

// abandon drops a session the way a killed writer would: blocks the cache
// already handed to the file stay there and nothing is finalized.
func abandon(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.pool.FlushAll())
	s.release()
	require.NoError(t, s.f.Close())
}

func appendCounting(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.AppendRow([]float64{float64(i), float64(-i), float64(i) / 2}))
	}
}

func naxis2(t *testing.T, path string) int64 {
	t.Helper()
	hdus := scanFile(t, path)
	require.GreaterOrEqual(t, len(hdus), 2)
	n, err := hdus[1].Header.Int("NAXIS2")
	require.NoError(t, err)
	return n
}

func TestRows_ReopenAfterUnfinishedWriter(t *testing.T) {
	path := tablePath(t)
	s, err := newTestEngine(t, WithCacheBlocks(2)).Open(path, 1, ModeOverwrite, false)
	require.NoError(t, err)
	appendCounting(t, s, 2000)
	abandon(t, s)

	// rows sit past a header that still counts none
	assert.Equal(t, int64(0), naxis2(t, path))
	hdus := scanFile(t, path)
	assert.Positive(t, fits.Trailing(hdus, int64(len(readFile(t, path)))))

	e := newTestEngine(t)
	s, err = e.Open(path, 1, ModeAppend, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Rows())
	assert.False(t, s.HeaderBlocked())
	require.NoError(t, s.AppendRow(scenarioRows[0]))
	require.NoError(t, s.Close())

	data := readFile(t, path)
	assert.Len(t, data, 2880+5760+2880)
	hdus = scanFile(t, path)
	require.Len(t, hdus, 2)
	assert.Zero(t, fits.Trailing(hdus, int64(len(data))))
	assert.Equal(t, int64(1), naxis2(t, path))
}

func TestRows_CheckpointBoundsLoss(t *testing.T) {
	path := tablePath(t)
	e := newTestEngine(t, WithCacheBlocks(2), WithCheckpointRows(500))
	s, err := e.Open(path, 1, ModeOverwrite, false)
	require.NoError(t, err)
	require.NoError(t, s.Checkpoint())
	assert.Equal(t, int64(0), naxis2(t, path))

	appendCounting(t, s, 1990)
	assert.Equal(t, int64(1500), naxis2(t, path))
	abandon(t, s)
	require.ErrorIs(t, s.Checkpoint(), ErrSessionClosed)

	other := newTestEngine(t)
	s, err = other.Open(path, 1, ModeAppend, false)
	require.NoError(t, err)
	assert.False(t, s.Recovered())
	require.Equal(t, int64(1500), s.Rows())
	got, err := s.GetRow(1500)
	require.NoError(t, err)
	assert.Equal(t, []float64{1499, -1499, 749.5}, got)
	assert.Equal(t, 1499.0, other.Schema().Max(1))
	require.NoError(t, s.Close())

	assert.Len(t, readFile(t, path), 2880+5760+((1500*16+2879)/2880)*2880)
}

func TestRows_PaddingIsZero(t *testing.T) {
	e := newTestEngine(t)
	path := tablePath(t)
	writeTable(t, e, path, scenarioRows)

	data := readFile(t, path)
	tableStart := 2880 + 5760
	for i := tableStart + 48; i < len(data); i++ {
		require.Zero(t, data[i], "byte %d", i)
	}
	// header padding is blank
	for i := 2880 + 39*80; i < tableStart; i++ {
		require.Equal(t, byte(' '), data[i], "byte %d", i)
	}
}
