package ftstab

import (
	"fmt"
)

func (s *Session) rowOffset(row int64) int64 {
	return s.tableStart + (row-1)*s.rowWidth
}

func (s *Session) checkRow(row int64) error {
	if row < 1 || row > s.rows {
		return fmt.Errorf("%w: %d of %d", ErrBadRow, row, s.rows)
	}
	return nil
}

func (s *Session) checkCol(col int) error {
	if col < 1 || col > len(s.offsets) {
		return fmt.Errorf("%w: %d of %d", ErrBadColumn, col, len(s.offsets))
	}
	return nil
}

// encodeRow converts values into row bytes in the column kinds.
func (s *Session) encodeRow(values []float64) ([]byte, []Value, error) {
	if len(values) != len(s.offsets) {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrRowLength, len(values), len(s.offsets))
	}
	schema := s.eng.schema
	buf := make([]byte, s.rowWidth)
	vals := make([]Value, len(values))
	for i, f := range values {
		c, _ := schema.Column(i + 1)
		vals[i] = NewValue(c.Kind, f)
		vals[i].Encode(buf[s.offsets[i]:])
	}
	return buf, vals, nil
}

func (s *Session) observeRow(vals []Value) {
	for i, v := range vals {
		s.eng.schema.observe(i, v)
	}
}

// AppendRow adds a row after the last one. The first row written fixes the
// header layout.
func (s *Session) AppendRow(values []float64) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.tableBlocked {
		return ErrTableBlocked
	}
	buf, vals, err := s.encodeRow(values)
	if err != nil {
		return err
	}
	if !s.headerBlocked {
		if err := s.commitHeader(); err != nil {
			return err
		}
		s.headerBlocked = true
	}
	if _, err := s.pool.WriteAt(buf, s.rowOffset(s.rows+1)); err != nil {
		return s.ioErr("append row", err)
	}
	s.rows++
	s.observeRow(vals)
	if n := s.eng.checkpoint; n > 0 && s.rows%n == 0 {
		return s.Checkpoint()
	}
	return nil
}

// PutRow overwrites an existing row.
func (s *Session) PutRow(row int64, values []float64) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.checkRow(row); err != nil {
		return err
	}
	buf, vals, err := s.encodeRow(values)
	if err != nil {
		return err
	}
	if _, err := s.pool.WriteAt(buf, s.rowOffset(row)); err != nil {
		return s.ioErr("put row", err)
	}
	s.observeRow(vals)
	return nil
}

// PutValue overwrites one cell of an existing row.
func (s *Session) PutValue(row int64, col int, v float64) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.checkRow(row); err != nil {
		return err
	}
	if err := s.checkCol(col); err != nil {
		return err
	}
	c, _ := s.eng.schema.Column(col)
	val := NewValue(c.Kind, v)
	buf := make([]byte, c.Kind.Width())
	val.Encode(buf)
	if _, err := s.pool.WriteAt(buf, s.rowOffset(row)+s.offsets[col-1]); err != nil {
		return s.ioErr("put value", err)
	}
	s.eng.schema.observe(col-1, val)
	return nil
}

// GetRow reads a row, converting every cell to float64.
func (s *Session) GetRow(row int64) ([]float64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := s.checkRow(row); err != nil {
		return nil, err
	}
	buf := make([]byte, s.rowWidth)
	if _, err := s.pool.ReadAt(buf, s.rowOffset(row)); err != nil {
		return nil, s.ioErr("get row", err)
	}
	out := make([]float64, len(s.offsets))
	for i := range out {
		c, _ := s.eng.schema.Column(i + 1)
		out[i] = DecodeValue(c.Kind, buf[s.offsets[i]:]).Float64()
	}
	return out, nil
}

// GetValue reads one cell.
func (s *Session) GetValue(row int64, col int) (float64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if err := s.checkRow(row); err != nil {
		return 0, err
	}
	if err := s.checkCol(col); err != nil {
		return 0, err
	}
	return s.readCell(row, col)
}

func (s *Session) readCell(row int64, col int) (float64, error) {
	c, _ := s.eng.schema.Column(col)
	buf := make([]byte, c.Kind.Width())
	if _, err := s.pool.ReadAt(buf, s.rowOffset(row)+s.offsets[col-1]); err != nil {
		return 0, s.ioErr("get value", err)
	}
	return DecodeValue(c.Kind, buf).Float64(), nil
}

// rowRange resolves a 1-based inclusive range where 0 means "from the first"
// or "to the last" row.
func (s *Session) rowRange(start, end int64) (int64, int64, error) {
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = s.rows
	}
	if start < 1 || end > s.rows || start > end {
		return 0, 0, fmt.Errorf("%w: rows %d..%d of %d", ErrBadRange, start, end, s.rows)
	}
	return start, end, nil
}
