package ftstab

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tuannm99/ftstab/internal/fits"
)

// HeaderKind selects one of the two headers a session manages.
type HeaderKind int

const (
	HeaderTable HeaderKind = iota
	HeaderHistory
)

func (w HeaderKind) String() string {
	switch w {
	case HeaderTable:
		return "table"
	case HeaderHistory:
		return "history"
	}
	return fmt.Sprintf("header(%d)", int(w))
}

// per-column keyword stems, suffixed with the 1-based column number
const (
	keyFormat = "TFO"
	keyTitle  = "TIT"
	keyType   = "TTY"
	keyUnit   = "TUN"
	keyScale  = "TSC"
	keyZero   = "TZE"
	keyRadius = "RAD"
	keyGrid   = "GRI"
	keyMax    = "TMA"
	keyMin    = "TMI"
)

var columnStems = []string{
	keyFormat, keyTitle, keyType, keyUnit, keyScale,
	keyZero, keyRadius, keyGrid, keyMax, keyMin,
}

var structuralKeys = map[string]bool{
	"XTENSION": true,
	"BITPIX":   true,
	"NAXIS":    true,
	"NAXIS1":   true,
	"NAXIS2":   true,
	"PCOUNT":   true,
	"GCOUNT":   true,
	"TFIELDS":  true,
}

func colKey(stem string, i int) string { return stem + strconv.Itoa(i) }

// isReserved reports keys whose value the engine derives from the schema.
func isReserved(key string) bool {
	k := strings.ToUpper(strings.TrimSpace(key))
	if structuralKeys[k] {
		return true
	}
	for _, stem := range columnStems {
		rest, ok := strings.CutPrefix(k, stem)
		if !ok || rest == "" {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			return true
		}
	}
	return false
}

// tableHeader builds a fresh table header for s with rows rows.
func tableHeader(s *Schema, reg *Registry, rows int64) (*fits.Header, error) {
	h := fits.NewHeader()
	if err := applyStructure(h, s, reg, rows); err != nil {
		return nil, err
	}
	return h, nil
}

// applyStructure writes every engine-maintained card into h. Existing cards
// are updated in place, missing ones appended in canonical order.
func applyStructure(h *fits.Header, s *Schema, reg *Registry, rows int64) error {
	if err := s.Complete(); err != nil {
		return err
	}
	set := func(key, value, comment string) {
		// keys are fixed and valid
		_, _ = h.Set(key, value, comment)
	}

	set("XTENSION", fits.QuoteString("BINTABLE"), "binary table extension")
	set("BITPIX", fits.FormatInt(8), "8-bit bytes")
	set("NAXIS", fits.FormatInt(2), "2-dimensional binary table")
	set("NAXIS1", fits.FormatInt(s.RowWidth()), "width of table in bytes")
	set("NAXIS2", fits.FormatInt(rows), "number of rows in table")
	set("PCOUNT", fits.FormatInt(0), "size of special data area")
	set("GCOUNT", fits.FormatInt(1), "one data group")
	set("TFIELDS", fits.FormatInt(int64(s.NumCols())), "number of fields in each row")

	for i := 1; i <= s.NumCols(); i++ {
		c, _ := s.Column(i)
		e, err := reg.Lookup(c.Title)
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		set(colKey(keyFormat, i), fits.QuoteString(c.Kind.Code()), "")
		set(colKey(keyTitle, i), PadName(strconv.Itoa(c.Title)), "")
		set(colKey(keyType, i), PadName(e.Type), "")
		set(colKey(keyUnit, i), PadName(e.Unit), "")
		set(colKey(keyScale, i), fits.FormatFloat(e.Scale, 12), "")
		set(colKey(keyZero, i), fits.FormatFloat(e.Zero, 12), "")
		set(colKey(keyRadius, i), fits.FormatFloat(c.Radius, 12), "")
		set(colKey(keyGrid, i), c.Grid.Text(), "")
		set(colKey(keyMax, i), c.Max.Text(), "")
		set(colKey(keyMin, i), c.Min.Text(), "")
	}
	return nil
}

// historyHeader is the zero-axis marker that carries history cards.
func historyHeader() *fits.Header {
	h := fits.NewHeader()
	_, _ = h.Put("XTENSION", "IMAGE", "history extension")
	_, _ = h.Put("BITPIX", 8, "")
	_, _ = h.Put("NAXIS", 0, "no data")
	_, _ = h.Put("PCOUNT", 0, "")
	_, _ = h.Put("GCOUNT", 1, "")
	return h
}

// compareSchema checks an on-disk table header against s. Radius and grid
// are compared by their card text, so values that round to the same text
// match.
func compareSchema(s *Schema, h *fits.Header) (Code, int, error) {
	n, err := h.Int("TFIELDS")
	if err != nil {
		return CodeMissingKey, 0, err
	}
	if n != int64(s.NumCols()) {
		return CodeColumnCount, 0, fmt.Errorf("file has %d columns, schema %d", n, s.NumCols())
	}
	for i := 1; i <= s.NumCols(); i++ {
		c, _ := s.Column(i)

		code, err := h.Str(colKey(keyFormat, i))
		if err != nil {
			return CodeMissingKey, i, err
		}
		kind, err := KindFromCode(code)
		if err != nil {
			return CodeBadKind, i, err
		}
		if kind != c.Kind {
			return CodeColumnKind, i, fmt.Errorf("file kind %s, schema %s", kind, c.Kind)
		}

		rad, ok := h.Get(colKey(keyRadius, i))
		if !ok {
			return CodeMissingKey, i, fmt.Errorf("%w: %s", fits.ErrKeyNotFound, colKey(keyRadius, i))
		}
		if want := fits.FormatFloat(c.Radius, 12); !sameNumber(rad.Value, want) {
			return CodeColumnRadius, i, fmt.Errorf("file radius %s, schema %s", rad.Value, want)
		}

		grid, ok := h.Get(colKey(keyGrid, i))
		if !ok {
			return CodeMissingKey, i, fmt.Errorf("%w: %s", fits.ErrKeyNotFound, colKey(keyGrid, i))
		}
		if want := c.Grid.Text(); !sameNumber(grid.Value, want) {
			return CodeColumnGrid, i, fmt.Errorf("file grid %s, schema %s", grid.Value, want)
		}
	}
	return 0, 0, nil
}

// sameNumber compares card text, tolerating the Fortran D exponent and
// lower-case letters other writers produce.
func sameNumber(onDisk, want string) bool {
	norm := func(s string) string {
		return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "D", "E")
	}
	return norm(onDisk) == norm(want)
}

// readSchema rebuilds a schema from a table header. Titles the registry does
// not know are matched by type name or registered from the header.
func readSchema(h *fits.Header, reg *Registry) (*Schema, Code, error) {
	n, err := h.Int("TFIELDS")
	if err != nil {
		return nil, CodeMissingKey, err
	}
	s, err := NewSchema(int(n))
	if err != nil {
		return nil, CodeColumnCount, err
	}

	for i := 1; i <= int(n); i++ {
		code, err := h.Str(colKey(keyFormat, i))
		if err != nil {
			return nil, CodeMissingKey, err
		}
		kind, err := KindFromCode(code)
		if err != nil {
			return nil, CodeBadKind, err
		}
		title, err := readTitle(h, reg, i)
		if err != nil {
			return nil, CodeMissingKey, err
		}
		radius, err := h.Float(colKey(keyRadius, i))
		if err != nil {
			return nil, CodeMissingKey, err
		}
		grid, err := h.Float(colKey(keyGrid, i))
		if err != nil {
			return nil, CodeMissingKey, err
		}
		if err := s.SetColumn(i, title, kind, radius, grid); err != nil {
			return nil, CodeBadKind, err
		}
	}
	return s, 0, nil
}

func readTitle(h *fits.Header, reg *Registry, i int) (int, error) {
	typeName, _ := h.Str(colKey(keyType, i))

	if raw, err := h.Str(colKey(keyTitle, i)); err == nil {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("column %d: title %q: %w", i, raw, ErrBadTitle)
		}
		if reg.Has(id) {
			return id, nil
		}
		if typeName != "" {
			if known, err := reg.LookupName(typeName); err == nil {
				return known, nil
			}
		}
		return registerFromHeader(h, reg, i, id, typeName)
	}

	// no title card: fall back to the type name alone
	if typeName == "" {
		return DefaultTitle, nil
	}
	if known, err := reg.LookupName(typeName); err == nil {
		return known, nil
	}
	return registerFromHeader(h, reg, i, nextTitle(reg), typeName)
}

func registerFromHeader(h *fits.Header, reg *Registry, i, id int, typeName string) (int, error) {
	unit, _ := h.Str(colKey(keyUnit, i))
	zero, err := h.Float(colKey(keyZero, i))
	if err != nil && !errors.Is(err, fits.ErrKeyNotFound) {
		return 0, err
	}
	scale, err := h.Float(colKey(keyScale, i))
	if errors.Is(err, fits.ErrKeyNotFound) {
		scale = 1
	} else if err != nil {
		return 0, err
	}
	return reg.Put(id, typeName, unit, zero, scale)
}

func nextTitle(reg *Registry) int {
	next := 1
	for _, e := range reg.Entries() {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return next
}

// loadStats restores the running min/max from TMA/TMI cards. Unparsable
// cards leave the reset extremes in place.
func loadStats(s *Schema, h *fits.Header) {
	for i := 1; i <= s.NumCols(); i++ {
		c := &s.cols[i-1]
		if card, ok := h.Get(colKey(keyMax, i)); ok {
			if v, err := ParseValue(c.Kind, card.Value); err == nil {
				c.Max = v
			}
		}
		if card, ok := h.Get(colKey(keyMin, i)); ok {
			if v, err := ParseValue(c.Kind, card.Value); err == nil {
				c.Min = v
			}
		}
	}
}
