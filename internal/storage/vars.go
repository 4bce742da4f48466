package storage

import (
	"errors"
)

const (
	OneKB = 1 << 10 // 1,024
	OneMB = 1 << 20 // 1,048,576

	BlockSize     = 2880                 // FITS logical record
	CardSize      = 80                   // one header card
	CardsPerBlock = BlockSize / CardSize // 36
)

const (
	FileMode0644 = 0o644
	FileMode0664 = 0o664
	FileMode0755 = 0o755
)

// Fill bytes used when padding a region up to the next block boundary.
const (
	HeaderFill byte = ' '
	DataFill   byte = 0
)

var (
	ErrWrongSize  = errors.New("storage: buffer size != BlockSize")
	ErrBadBlock   = errors.New("storage: negative block number")
	ErrBadOffset  = errors.New("storage: negative offset")
	ErrStorageIO  = errors.New("storage: I/O error")
	ErrNotAligned = errors.New("storage: offset is not block aligned")
)
