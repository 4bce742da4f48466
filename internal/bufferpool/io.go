package bufferpool

import (
	"github.com/tuannm99/ftstab/internal/storage"
)

// ReadAt copies len(p) bytes starting at off out of the cached blocks.
// Bytes past the end of the file read as zero.
func (p *Pool) ReadAt(buf []byte, off int64) (int, error) {
	return p.span(buf, off, false)
}

// WriteAt copies buf into the cached blocks starting at off and marks them
// dirty. Nothing reaches the file before FlushAll, Discard or eviction.
func (p *Pool) WriteAt(buf []byte, off int64) (int, error) {
	return p.span(buf, off, true)
}

func (p *Pool) span(buf []byte, off int64, write bool) (int, error) {
	if off < 0 {
		return 0, storage.ErrBadOffset
	}
	done := 0
	for done < len(buf) {
		pos := off + int64(done)
		no := pos / storage.BlockSize
		inBlock := int(pos % storage.BlockSize)

		blk, err := p.GetBlock(no)
		if err != nil {
			return done, err
		}
		var n int
		if write {
			n = copy(blk.Buf[inBlock:], buf[done:])
		} else {
			n = copy(buf[done:], blk.Buf[inBlock:])
		}
		if err := p.Unpin(blk, write); err != nil {
			return done, err
		}
		done += n
	}
	return done, nil
}
