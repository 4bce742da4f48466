package bufferpool

import (
	"errors"
	"sync"

	"github.com/tuannm99/ftstab/internal/storage"
	"github.com/tuannm99/ftstab/pkg/clockx"
)

var (
	// 64 blocks of 2880 bytes, about 180 KiB per session.
	DefaultCapacity = 64

	ErrNoFreeFrame  = errors.New("bufferpool: no free frame available (all pinned)")
	ErrBlockPinned  = errors.New("bufferpool: block is pinned")
	ErrPoolDetached = errors.New("bufferpool: pool has no file")
)

type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Reset()
	Size() int
}

type Frame struct {
	BlockNo int64
	Block   *storage.Block
	Dirty   bool
	Pin     int32
}

var (
	_ Manager  = (*Pool)(nil)
	_ Replacer = (*clockx.Clock)(nil)
)

// Pool caches blocks of one open file.
type Pool struct {
	bm *storage.BlockManager
	f  storage.File

	mu         sync.Mutex
	frames     []*Frame      // len == capacity, nil == free slot
	blockTable map[int64]int // block number -> frame index

	replacementPolicy Replacer
}

func NewPool(bm *storage.BlockManager, f storage.File, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		bm:                bm,
		f:                 f,
		frames:            make([]*Frame, capacity),
		blockTable:        make(map[int64]int),
		replacementPolicy: clockx.New(capacity),
	}
}

// GetBlock returns the cached block, loading it on a miss. The block stays
// pinned until Unpin.
func (p *Pool) GetBlock(no int64) (*storage.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return nil, ErrPoolDetached
	}

	// 1) HIT
	if idx, ok := p.blockTable[no]; ok {
		if f := p.frames[idx]; f != nil {
			wasZero := f.Pin == 0
			f.Pin++

			p.replacementPolicy.RecordAccess(idx)
			if wasZero {
				p.replacementPolicy.SetEvictable(idx, false)
			}
			return f.Block, nil
		}
		delete(p.blockTable, no)
	}

	// 2) Free slot
	for idx, f := range p.frames {
		if f != nil {
			continue
		}
		blk, err := p.bm.LoadBlock(p.f, no)
		if err != nil {
			return nil, err
		}
		p.install(idx, no, blk)
		return blk, nil
	}

	// 3) Evict
	victimIdx, ok := p.replacementPolicy.Evict()
	if !ok {
		return nil, ErrNoFreeFrame
	}
	victim := p.frames[victimIdx]
	if victim == nil || victim.Pin != 0 {
		return nil, ErrNoFreeFrame
	}

	if victim.Dirty {
		if err := p.bm.SaveBlock(p.f, victim.Block); err != nil {
			p.replacementPolicy.RecordAccess(victimIdx)
			p.replacementPolicy.SetEvictable(victimIdx, true)
			return nil, err
		}
		victim.Dirty = false
	}

	blk, err := p.bm.LoadBlock(p.f, no)
	if err != nil {
		p.replacementPolicy.RecordAccess(victimIdx)
		p.replacementPolicy.SetEvictable(victimIdx, true)
		return nil, err
	}

	delete(p.blockTable, victim.BlockNo)
	p.install(victimIdx, no, blk)
	return blk, nil
}

func (p *Pool) install(idx int, no int64, blk *storage.Block) {
	p.frames[idx] = &Frame{BlockNo: no, Block: blk, Pin: 1}
	p.blockTable[no] = idx
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, false)
}

func (p *Pool) Unpin(block *storage.Block, dirty bool) error {
	if block == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.blockTable[block.No]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f == nil {
		return nil
	}

	if dirty {
		f.Dirty = true
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			p.replacementPolicy.SetEvictable(idx, true)
		}
	}
	return nil
}

// FlushAll writes every dirty frame back to the file.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

func (p *Pool) flushLocked() error {
	if p.f == nil {
		return nil
	}
	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.bm.SaveBlock(p.f, f.Block); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}

// Discard flushes dirty frames and then drops every cached block, so the
// next access re-reads the file. Used after the file was padded or
// truncated behind the pool's back.
func (p *Pool) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f != nil && f.Pin != 0 {
			return ErrBlockPinned
		}
	}
	if err := p.flushLocked(); err != nil {
		return err
	}
	for i := range p.frames {
		p.frames[i] = nil
	}
	p.blockTable = make(map[int64]int)
	p.replacementPolicy.Reset()
	return nil
}

// Cached reports whether a block is currently held in a frame.
func (p *Pool) Cached(no int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.blockTable[no]
	return ok
}
