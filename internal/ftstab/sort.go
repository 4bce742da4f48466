package ftstab

// heapSorter sorts rows [base, base+n) in place on disk. Heap positions are
// 0-based offsets from base; keys are read back from the file on demand.
type heapSorter struct {
	s    *Session
	col  int
	base int64
	a, b []byte
}

func (h *heapSorter) key(i int64) (float64, error) {
	return h.s.readCell(h.base+i, h.col)
}

func (h *heapSorter) swap(i, j int64) error {
	s := h.s
	ri, rj := s.rowOffset(h.base+i), s.rowOffset(h.base+j)
	if _, err := s.pool.ReadAt(h.a, ri); err != nil {
		return s.ioErr("sort read", err)
	}
	if _, err := s.pool.ReadAt(h.b, rj); err != nil {
		return s.ioErr("sort read", err)
	}
	if _, err := s.pool.WriteAt(h.b, ri); err != nil {
		return s.ioErr("sort write", err)
	}
	if _, err := s.pool.WriteAt(h.a, rj); err != nil {
		return s.ioErr("sort write", err)
	}
	return nil
}

// siftDown restores the max-heap property below root in a heap of n rows.
func (h *heapSorter) siftDown(root, n int64) error {
	rootKey, err := h.key(root)
	if err != nil {
		return err
	}
	for {
		child := 2*root + 1
		if child >= n {
			return nil
		}
		childKey, err := h.key(child)
		if err != nil {
			return err
		}
		if child+1 < n {
			rightKey, err := h.key(child + 1)
			if err != nil {
				return err
			}
			if lessFloat(childKey, rightKey) {
				child, childKey = child+1, rightKey
			}
		}
		if !lessFloat(rootKey, childKey) {
			return nil
		}
		if err := h.swap(root, child); err != nil {
			return err
		}
		root = child
	}
}

// HeapSort sorts rows start..end (1-based, inclusive; 0 selects the first or
// last row) ascending by column col. NaN values sort last. Rows outside the
// range are not touched.
func (s *Session) HeapSort(col int, start, end int64) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.checkCol(col); err != nil {
		return err
	}
	start, end, err := s.rowRange(start, end)
	if err != nil {
		return err
	}
	n := end - start + 1
	if n < 2 {
		return nil
	}

	h := &heapSorter{
		s:    s,
		col:  col,
		base: start,
		a:    make([]byte, s.rowWidth),
		b:    make([]byte, s.rowWidth),
	}
	for i := n/2 - 1; i >= 0; i-- {
		if err := h.siftDown(i, n); err != nil {
			return err
		}
	}
	for last := n - 1; last > 0; last-- {
		if err := h.swap(0, last); err != nil {
			return err
		}
		if err := h.siftDown(0, last); err != nil {
			return err
		}
	}
	s.logger.Debug("sorted rows", "column", col, "start", start, "end", end)
	return nil
}
