package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is the part of *os.File the block manager needs.
type File interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
}

// DataFile is an open table file: block I/O plus sync and close.
type DataFile interface {
	File
	Sync() error
	Close() error
}

// Opener opens path read-write, creating it when create is set.
type Opener func(path string, create bool) (DataFile, error)

var (
	_ File     = (*os.File)(nil)
	_ DataFile = (*os.File)(nil)
	_ Opener   = OpenDataFile
)

// OpenDataFile is the Opener backed by the operating system.
func OpenDataFile(path string, create bool) (DataFile, error) {
	f, err := OpenFile(path, create)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// OpenFile opens path read-write, creating it (and its directory) when create
// is set. An existing file is never truncated here.
func OpenFile(path string, create bool) (*os.File, error) {
	flags := os.O_RDWR
	if create {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, FileMode0755); err != nil {
				return nil, err
			}
		}
		flags |= os.O_CREATE
	}
	return os.OpenFile(path, flags, FileMode0644)
}

// Exists reports whether path names an existing regular file.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// BlocksFor returns how many blocks are needed to hold n bytes.
func BlocksFor(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + BlockSize - 1) / BlockSize
}

// PaddedSize rounds n up to the next block boundary.
func PaddedSize(n int64) int64 {
	return BlocksFor(n) * BlockSize
}

// Block is one 2880-byte logical record of a file.
type Block struct {
	No  int64
	Buf []byte
}

// Offset returns the absolute file offset of the block.
func (b *Block) Offset() int64 { return b.No * BlockSize }

// BlockManager maps block numbers to file offsets.
type BlockManager struct{}

func NewBlockManager() *BlockManager {
	return &BlockManager{}
}

// ReadBlock reads exactly one block into dst. If the file ends inside the
// block the remainder is zero-filled, so blocks past EOF read as empty.
func (bm *BlockManager) ReadBlock(f File, no int64, dst []byte) error {
	if len(dst) != BlockSize {
		return ErrWrongSize
	}
	if no < 0 {
		return ErrBadBlock
	}
	n, err := f.ReadAt(dst, no*BlockSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read block %d: %w", no, err)
	}
	for i := n; i < BlockSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WriteBlock writes exactly one block from src.
func (bm *BlockManager) WriteBlock(f File, no int64, src []byte) error {
	if len(src) != BlockSize {
		return ErrWrongSize
	}
	if no < 0 {
		return ErrBadBlock
	}
	n, err := f.WriteAt(src, no*BlockSize)
	if err != nil {
		return fmt.Errorf("write block %d: %w", no, err)
	}
	if n != BlockSize {
		return io.ErrShortWrite
	}
	return nil
}

// LoadBlock reads a block into a freshly allocated Block.
func (bm *BlockManager) LoadBlock(f File, no int64) (*Block, error) {
	buf := make([]byte, BlockSize)
	if err := bm.ReadBlock(f, no, buf); err != nil {
		return nil, err
	}
	return &Block{No: no, Buf: buf}, nil
}

// SaveBlock writes the in-memory Block back to disk.
func (bm *BlockManager) SaveBlock(f File, b *Block) error {
	return bm.WriteBlock(f, b.No, b.Buf)
}

// Size returns the current byte length of f.
func (bm *BlockManager) Size(f File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CountBlocks returns the number of complete blocks in f.
func (bm *BlockManager) CountBlocks(f File) (int64, error) {
	size, err := bm.Size(f)
	if err != nil {
		return 0, err
	}
	return size / BlockSize, nil
}

// WriteRegion writes src at off followed by fill bytes up to the next block
// boundary and returns the offset just past the padding.
func (bm *BlockManager) WriteRegion(f File, off int64, src []byte, fill byte) (int64, error) {
	if off < 0 {
		return 0, ErrBadOffset
	}
	if off%BlockSize != 0 {
		return 0, ErrNotAligned
	}
	total := PaddedSize(int64(len(src)))
	buf := make([]byte, total)
	copy(buf, src)
	for i := len(src); i < len(buf); i++ {
		buf[i] = fill
	}
	n, err := f.WriteAt(buf, off)
	if err != nil {
		return 0, fmt.Errorf("write region at %d: %w", off, err)
	}
	if int64(n) != total {
		return 0, io.ErrShortWrite
	}
	return off + total, nil
}

// Pad fills [end, next boundary) with fill and truncates the file there.
// It returns the padded length.
func (bm *BlockManager) Pad(f File, end int64, fill byte) (int64, error) {
	if end < 0 {
		return 0, ErrBadOffset
	}
	padded := PaddedSize(end)
	if gap := padded - end; gap > 0 {
		buf := make([]byte, gap)
		for i := range buf {
			buf[i] = fill
		}
		if _, err := f.WriteAt(buf, end); err != nil {
			return 0, fmt.Errorf("pad at %d: %w", end, err)
		}
	}
	if err := f.Truncate(padded); err != nil {
		return 0, fmt.Errorf("truncate at %d: %w", padded, err)
	}
	return padded, nil
}
