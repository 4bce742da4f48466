package ftstab

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zeebo/blake3"

	"github.com/tuannm99/ftstab/internal/bufferpool"
	"github.com/tuannm99/ftstab/internal/fits"
	"github.com/tuannm99/ftstab/internal/storage"
)

// Session is one open table extension. All row and header I/O goes through
// a block cache over the file; nothing is assumed about a file cursor.
type Session struct {
	eng    *Engine
	path   string
	f      storage.DataFile
	bm     *storage.BlockManager
	pool   bufferpool.Manager
	logger *slog.Logger

	ext         int
	header      *fits.Header
	headerStart int64
	headerAlloc int64 // on-disk header bytes, fixed once the header is blocked
	tableStart  int64
	offsets     []int64
	rowWidth    int64
	rows        int64

	// historyStart is where the on-disk history header of a table-blocked
	// session starts, -1 when the history is written after the table body
	historyStart int64

	headerBlocked bool
	tableBlocked  bool
	headerDirty   bool
	recovered     bool
	closed        bool
}

type sessionLayout struct {
	header       *fits.Header
	headerStart  int64
	headerAlloc  int64
	rows         int64
	historyStart int64
	last         bool
	recovered    bool
}

func (op *opener) session(l sessionLayout) *Session {
	eng := op.eng
	if op.history != nil {
		eng.history = op.history
	}
	historyStart := l.historyStart
	if l.last {
		historyStart = -1
	}
	s := &Session{
		eng:           eng,
		path:          op.path,
		f:             op.f,
		bm:            op.bm,
		pool:          bufferpool.NewPool(op.bm, op.f, eng.cacheBlocks),
		logger:        eng.logger.With("path", op.path, "ext", op.ext),
		ext:           op.ext,
		header:        l.header,
		headerStart:   l.headerStart,
		headerAlloc:   l.headerAlloc,
		tableStart:    l.headerStart + l.headerAlloc,
		offsets:       eng.schema.Offsets(),
		rowWidth:      eng.schema.RowWidth(),
		rows:          l.rows,
		historyStart:  historyStart,
		headerBlocked: l.rows > 0,
		tableBlocked:  !l.last,
		recovered:     l.recovered,
	}
	op.f = nil
	return s
}

func (s *Session) Path() string { return s.path }
func (s *Session) Extension() int { return s.ext }
func (s *Session) Rows() int64 { return s.rows }
func (s *Session) Columns() int { return len(s.offsets) }
func (s *Session) RowWidth() int64 { return s.rowWidth }
func (s *Session) HeaderBlocked() bool { return s.headerBlocked }
func (s *Session) TableBlocked() bool { return s.tableBlocked }
func (s *Session) Recovered() bool { return s.recovered }
func (s *Session) Schema() *Schema { return s.eng.schema }
func (s *Session) HeaderStart() int64 { return s.headerStart }
func (s *Session) TableStart() int64 { return s.tableStart }
func (s *Session) Registry() *Registry { return s.eng.reg }
func (s *Session) Offsets() []int64 { return append([]int64(nil), s.offsets...) }
func (s *Session) History() *fits.Header { return s.eng.history }

func (s *Session) check() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// Header returns a copy of the selected header.
func (s *Session) Header(which HeaderKind) (*fits.Header, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	switch which {
	case HeaderTable:
		return s.header.Clone(), nil
	case HeaderHistory:
		if s.eng.history == nil {
			return nil, ErrNoHistory
		}
		return s.eng.history.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrBadHeader, int(which))
}

// GenerateHeader rebuilds the table header from the schema, or installs a
// history header when none is carried.
func (s *Session) GenerateHeader(which HeaderKind) error {
	if err := s.check(); err != nil {
		return err
	}
	switch which {
	case HeaderTable:
		return s.ClearHeader(HeaderTable)
	case HeaderHistory:
		_, err := s.eng.GenerateHeader(HeaderHistory)
		return err
	}
	return fmt.Errorf("%w: %d", ErrBadHeader, int(which))
}

// ClearHeader drops user cards. The table header is regenerated from the
// schema at its current position; the history header is removed.
func (s *Session) ClearHeader(which HeaderKind) error {
	if err := s.check(); err != nil {
		return err
	}
	switch which {
	case HeaderTable:
		h, err := tableHeader(s.eng.schema, s.eng.reg, s.rows)
		if err != nil {
			return err
		}
		s.header = h
		s.headerDirty = true
		return nil
	case HeaderHistory:
		s.eng.history = nil
		return nil
	}
	return fmt.Errorf("%w: %d", ErrBadHeader, int(which))
}

// PutCard stores a card in the selected header. Engine-maintained table keys
// are refused. Adding a card to a blocked table header is refused; updating
// an existing one is not.
func (s *Session) PutCard(which HeaderKind, key string, value any, comment string) error {
	if err := s.check(); err != nil {
		return err
	}
	switch which {
	case HeaderTable:
		if isReserved(key) {
			return fmt.Errorf("%w: %s", ErrReservedKey, key)
		}
		if s.header.WouldGrow(key) {
			if s.headerBlocked {
				return fmt.Errorf("%w: cannot add %s", ErrHeaderBlocked, key)
			}
			need := storage.PaddedSize(int64(s.header.Len()+2) * storage.CardSize)
			if s.tableBlocked && need > s.headerAlloc {
				return fmt.Errorf("%w: cannot add %s", ErrHeaderFull, key)
			}
		}
		if _, err := s.header.Put(key, value, comment); err != nil {
			return err
		}
		s.headerDirty = true
		return nil
	case HeaderHistory:
		if s.eng.history == nil {
			return ErrNoHistory
		}
		_, err := s.eng.history.Put(key, value, comment)
		return err
	}
	return fmt.Errorf("%w: %d", ErrBadHeader, int(which))
}

// GetCard returns the card stored under key.
func (s *Session) GetCard(which HeaderKind, key string) (fits.Card, error) {
	if err := s.check(); err != nil {
		return fits.Card{}, err
	}
	var h *fits.Header
	switch which {
	case HeaderTable:
		h = s.header
	case HeaderHistory:
		if h = s.eng.history; h == nil {
			return fits.Card{}, ErrNoHistory
		}
	default:
		return fits.Card{}, fmt.Errorf("%w: %d", ErrBadHeader, int(which))
	}
	c, ok := h.Get(key)
	if !ok {
		return fits.Card{}, fmt.Errorf("%w: %s", fits.ErrKeyNotFound, key)
	}
	return c, nil
}

// commitHeader writes the table header through the cache. While the header
// can still move, its allocation follows its size; afterwards it is fixed.
func (s *Session) commitHeader() error {
	alloc := s.headerAlloc
	if !s.headerBlocked && !s.tableBlocked {
		alloc = s.header.Size()
	}
	buf, err := s.header.Encode(alloc)
	if err != nil {
		return err
	}
	if _, err := s.pool.WriteAt(buf, s.headerStart); err != nil {
		return s.ioErr("write header", err)
	}
	s.headerAlloc = alloc
	s.tableStart = s.headerStart + alloc
	s.headerDirty = false
	return nil
}

func (s *Session) ioErr(op string, err error) error {
	if errors.Is(err, bufferpool.ErrNoFreeFrame) {
		return fmt.Errorf("%s: %w: %w", op, ErrResource, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// finalize brings the file in line with the session: engine cards updated,
// header written, body padded with zeros and the history header placed
// after it.
func (s *Session) finalize() error {
	if err := applyStructure(s.header, s.eng.schema, s.eng.reg, s.rows); err != nil {
		return err
	}
	if err := s.commitHeader(); err != nil {
		return err
	}
	if err := s.pool.Discard(); err != nil {
		return s.ioErr("flush cache", err)
	}

	history := s.eng.history
	if !s.tableBlocked {
		end, err := s.bm.Pad(s.f, s.tableStart+s.rows*s.rowWidth, storage.DataFill)
		if err != nil {
			return err
		}
		if history != nil {
			if err := s.writeHistory(history, end); err != nil {
				return err
			}
		}
	} else if s.historyStart >= 0 {
		if err := s.f.Truncate(s.historyStart); err != nil {
			return fmt.Errorf("truncate history: %w", err)
		}
		if history != nil {
			if err := s.writeHistory(history, s.historyStart); err != nil {
				return err
			}
		}
	}
	return s.f.Sync()
}

// Checkpoint makes the rows written so far durable and records their count
// in the on-disk header. Rows go to disk before the header that counts them.
// The history header is only written by Close.
func (s *Session) Checkpoint() error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.pool.FlushAll(); err != nil {
		return s.ioErr("flush rows", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync rows: %w", err)
	}
	if err := applyStructure(s.header, s.eng.schema, s.eng.reg, s.rows); err != nil {
		return err
	}
	if err := s.commitHeader(); err != nil {
		return err
	}
	if err := s.pool.FlushAll(); err != nil {
		return s.ioErr("flush header", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync header: %w", err)
	}
	s.logger.Debug("checkpoint table", "rows", s.rows)
	return nil
}

func (s *Session) writeHistory(h *fits.Header, at int64) error {
	buf, err := h.Encode(0)
	if err != nil {
		return err
	}
	if _, err := s.bm.WriteRegion(s.f, at, buf, storage.HeaderFill); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Close finalizes the file and ends the session. The schema and history
// stay on the engine for the next Open.
func (s *Session) Close() error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.finalize()
	if err != nil {
		s.logger.Error("finalize table", "err", err)
	}
	s.release()
	if cerr := s.f.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.logger.Debug("close table", "rows", s.rows)
	return err
}

// Flush closes the session and resets the engine's schema and history.
func (s *Session) Flush() error {
	err := s.Close()
	if !errors.Is(err, ErrSessionClosed) {
		s.eng.Reset()
	}
	return err
}

func (s *Session) release() {
	s.closed = true
	if s.eng.active == s {
		s.eng.active = nil
	}
}

// DigestBody returns the hex blake3 digest of the row bytes.
func (s *Session) DigestBody() (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	if err := s.pool.FlushAll(); err != nil {
		return "", s.ioErr("flush cache", err)
	}
	h := blake3.New()
	body := io.NewSectionReader(s.f, s.tableStart, s.rows*s.rowWidth)
	if _, err := io.Copy(h, body); err != nil {
		return "", fmt.Errorf("digest body: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
