package bufferpool

import (
	"io"

	"github.com/tuannm99/ftstab/internal/storage"
)

// Manager is the block cache a table session reads and writes through.
type Manager interface {
	io.ReaderAt
	io.WriterAt
	GetBlock(no int64) (*storage.Block, error)
	Unpin(block *storage.Block, dirty bool) error
	FlushAll() error
	Discard() error
}
