package ftstab

import (
	"fmt"
	"math"
)

// Column is one column descriptor. Min and Max track the values written
// while a session is open.
type Column struct {
	Title  int
	Kind   Kind
	Radius float64
	Grid   Value
	Min    Value
	Max    Value
}

func (c Column) set() bool { return c.Kind.Valid() }

// Schema is the ordered list of column descriptors. A nil *Schema stands
// for "nothing declared"; its accessors return the sentinel values.
type Schema struct {
	cols []Column
}

// NewSchema declares n unset columns.
func NewSchema(n int) (*Schema, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBadColumnCount, n)
	}
	return &Schema{cols: make([]Column, n)}, nil
}

func (s *Schema) NumCols() int {
	if s == nil {
		return 0
	}
	return len(s.cols)
}

// SetColumn describes column i (1-based) and resets its running min/max.
func (s *Schema) SetColumn(i, title int, kind Kind, radius, grid float64) error {
	if s == nil {
		return ErrNoSchema
	}
	if i < 1 || i > len(s.cols) {
		return fmt.Errorf("%w: %d of %d", ErrBadColumn, i, len(s.cols))
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrBadKind, int(kind))
	}
	if title < 0 {
		return fmt.Errorf("%w: %d", ErrBadTitle, title)
	}
	s.cols[i-1] = Column{
		Title:  title,
		Kind:   kind,
		Radius: radius,
		Grid:   NewValue(kind, grid),
		Min:    MaxValue(kind),
		Max:    MinValue(kind),
	}
	return nil
}

// Column returns the descriptor of column i (1-based).
func (s *Schema) Column(i int) (Column, bool) {
	if s == nil || i < 1 || i > len(s.cols) {
		return Column{}, false
	}
	return s.cols[i-1], true
}

// Complete reports an error when any column is still unset.
func (s *Schema) Complete() error {
	if s == nil {
		return ErrNoSchema
	}
	for i, c := range s.cols {
		if !c.set() {
			return fmt.Errorf("%w: column %d", ErrIncomplete, i+1)
		}
	}
	return nil
}

func (s *Schema) Title(i int) int {
	c, ok := s.Column(i)
	if !ok || !c.set() {
		return -1
	}
	return c.Title
}

func (s *Schema) Kind(i int) Kind {
	c, ok := s.Column(i)
	if !ok || !c.set() {
		return -1
	}
	return c.Kind
}

func (s *Schema) Radius(i int) float64 {
	c, ok := s.Column(i)
	if !ok || !c.set() {
		return math.MaxFloat64
	}
	return c.Radius
}

func (s *Schema) Grid(i int) float64 {
	c, ok := s.Column(i)
	if !ok || !c.set() {
		return math.MaxFloat64
	}
	return c.Grid.Float64()
}

func (s *Schema) Min(i int) float64 {
	c, ok := s.Column(i)
	if !ok || !c.set() {
		return math.MaxFloat64
	}
	return c.Min.Float64()
}

func (s *Schema) Max(i int) float64 {
	c, ok := s.Column(i)
	if !ok || !c.set() {
		return math.MaxFloat64
	}
	return c.Max.Float64()
}

// RowWidth is the byte width of one row.
func (s *Schema) RowWidth() int64 {
	if s == nil {
		return 0
	}
	var w int64
	for _, c := range s.cols {
		w += c.Kind.Width()
	}
	return w
}

// Offsets returns the byte offset of each column inside a row.
func (s *Schema) Offsets() []int64 {
	if s == nil {
		return nil
	}
	out := make([]int64, len(s.cols))
	var off int64
	for i, c := range s.cols {
		out[i] = off
		off += c.Kind.Width()
	}
	return out
}

// observe widens the running min/max of column i (0-based) with v.
func (s *Schema) observe(i int, v Value) {
	if math.IsNaN(v.Float64()) {
		return
	}
	c := &s.cols[i]
	if v.Less(c.Min) {
		c.Min = v
	}
	if c.Max.Less(v) {
		c.Max = v
	}
}

func (s *Schema) resetStats() {
	for i := range s.cols {
		k := s.cols[i].Kind
		s.cols[i].Min = MaxValue(k)
		s.cols[i].Max = MinValue(k)
	}
}
