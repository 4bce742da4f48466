package bufferpool

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/ftstab/internal/storage"
)

// newTestPool opens a scratch file under t.TempDir and binds a pool to it.
func newTestPool(t *testing.T, capacity int) (*Pool, *os.File) {
	t.Helper()

	f, err := storage.OpenFile(filepath.Join(t.TempDir(), "pool.fits"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	return NewPool(storage.NewBlockManager(), f, capacity), f
}

func TestPool_GetBlock_LoadsAndPins(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	blk1, err := pool.GetBlock(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), blk1.No)

	idx, ok := pool.blockTable[0]
	require.True(t, ok)
	frame := pool.frames[idx]
	require.Equal(t, int32(1), frame.Pin)
	require.False(t, frame.Dirty)

	blk2, err := pool.GetBlock(0)
	require.NoError(t, err)
	require.Same(t, blk1, blk2)
	require.Equal(t, int32(2), frame.Pin)
}

func TestPool_Full_NoFreeFrameError(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	_, err := pool.GetBlock(0)
	require.NoError(t, err)

	_, err = pool.GetBlock(1)
	require.ErrorIs(t, err, ErrNoFreeFrame)
}

func TestPool_EvictDirtyFrameWritesBack(t *testing.T) {
	pool, f := newTestPool(t, 1)

	blk0, err := pool.GetBlock(0)
	require.NoError(t, err)
	blk0.Buf[0] = 42
	require.NoError(t, pool.Unpin(blk0, true))

	// forces eviction of block 0
	blk1, err := pool.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), blk1.No)

	reloaded, err := storage.NewBlockManager().LoadBlock(f, 0)
	require.NoError(t, err)
	require.Equal(t, byte(42), reloaded.Buf[0])
}

func TestPool_ReadWriteAcrossBlocks(t *testing.T) {
	pool, f := newTestPool(t, 2)

	// 10 bytes straddling the first block boundary
	data := []byte("0123456789")
	off := int64(storage.BlockSize - 4)

	n, err := pool.WriteAt(data, off)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	got := make([]byte, len(data))
	_, err = pool.ReadAt(got, off)
	require.NoError(t, err)
	require.Equal(t, data, got)

	// not on disk until flushed
	size, err := storage.NewBlockManager().Size(f)
	require.NoError(t, err)
	require.Equal(t, int64(0), size)

	require.NoError(t, pool.FlushAll())
	onDisk := make([]byte, len(data))
	_, err = f.ReadAt(onDisk, off)
	require.NoError(t, err)
	require.Equal(t, data, onDisk)
}

func TestPool_ManyBlocksThroughSmallPool(t *testing.T) {
	pool, f := newTestPool(t, 2)

	for i := 0; i < 8; i++ {
		chunk := bytes.Repeat([]byte{byte(i + 1)}, 100)
		_, err := pool.WriteAt(chunk, int64(i)*storage.BlockSize)
		require.NoError(t, err)
	}
	require.NoError(t, pool.FlushAll())

	for i := 0; i < 8; i++ {
		got := make([]byte, 100)
		_, err := f.ReadAt(got, int64(i)*storage.BlockSize)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{byte(i + 1)}, 100), got)
	}
}

func TestPool_Discard(t *testing.T) {
	pool, f := newTestPool(t, 2)

	_, err := pool.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)
	require.True(t, pool.Cached(0))

	require.NoError(t, pool.Discard())
	require.False(t, pool.Cached(0))

	got := make([]byte, 3)
	_, err = f.ReadAt(got, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	blk, err := pool.GetBlock(0)
	require.NoError(t, err)
	require.ErrorIs(t, pool.Discard(), ErrBlockPinned)
	require.NoError(t, pool.Unpin(blk, false))
	require.NoError(t, pool.Discard())
}

func TestNewPool_DefaultCapacity(t *testing.T) {
	pool := NewPool(storage.NewBlockManager(), nil, 0)
	require.Len(t, pool.frames, DefaultCapacity)

	_, err := pool.GetBlock(0)
	require.ErrorIs(t, err, ErrPoolDetached)
}
