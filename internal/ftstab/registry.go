package ftstab

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// NameWidth is the field width of type and unit names on disk.
	NameWidth = 18

	DefaultTitle = 0
	defaultName  = "NONE"
)

// ColumnEntry describes what a column title means physically.
type ColumnEntry struct {
	ID    int
	Type  string
	Unit  string
	Zero  float64
	Scale float64
}

// Registry maps title ids to column entries in insertion order. Id 0 is the
// permanent default entry.
type Registry struct {
	entries *orderedmap.OrderedMap[int, ColumnEntry]
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset drops every entry but the default one.
func (r *Registry) Reset() {
	r.entries = orderedmap.New[int, ColumnEntry]()
	r.entries.Set(DefaultTitle, ColumnEntry{
		ID:    DefaultTitle,
		Type:  defaultName,
		Unit:  defaultName,
		Scale: 1,
	})
}

// Put adds or updates the entry for id and returns id. Names longer than
// NameWidth are truncated.
func (r *Registry) Put(id int, typeName, unit string, zero, scale float64) (int, error) {
	if id < 0 {
		return -1, fmt.Errorf("%w: %d", ErrBadTitle, id)
	}
	r.entries.Set(id, ColumnEntry{
		ID:    id,
		Type:  clipName(typeName),
		Unit:  clipName(unit),
		Zero:  zero,
		Scale: scale,
	})
	return id, nil
}

func clipName(s string) string {
	s = strings.TrimRight(s, " ")
	if len(s) > NameWidth {
		s = s[:NameWidth]
	}
	return s
}

func (r *Registry) Lookup(id int) (ColumnEntry, error) {
	e, ok := r.entries.Get(id)
	if !ok {
		return ColumnEntry{}, fmt.Errorf("%w: %d", ErrUnknownTitle, id)
	}
	return e, nil
}

func (r *Registry) Has(id int) bool {
	_, ok := r.entries.Get(id)
	return ok
}

// LookupName finds the first entry whose type name equals name. name may be
// given bare or in its padded on-disk form.
func (r *Registry) LookupName(name string) (int, error) {
	bare := name
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		bare = strings.TrimRight(name[1:len(name)-1], " ")
	}
	for p := r.entries.Oldest(); p != nil; p = p.Next() {
		if p.Value.Type == bare || PadName(p.Value.Type) == name {
			return p.Key, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownTitle, name)
}

// Delete removes id. The default entry cannot be removed.
func (r *Registry) Delete(id int) error {
	if id == DefaultTitle {
		return ErrDefaultTitle
	}
	if _, ok := r.entries.Delete(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTitle, id)
	}
	return nil
}

func (r *Registry) Len() int { return r.entries.Len() }

// Entries returns the entries in insertion order.
func (r *Registry) Entries() []ColumnEntry {
	out := make([]ColumnEntry, 0, r.entries.Len())
	for p := r.entries.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}

// PaddedType returns the quoted, blank-padded type name of id.
func (r *Registry) PaddedType(id int) (string, error) {
	e, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return PadName(e.Type), nil
}

// PaddedUnit returns the quoted, blank-padded unit of id.
func (r *Registry) PaddedUnit(id int) (string, error) {
	e, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return PadName(e.Unit), nil
}

// PadName renders name the way type, unit and title cards store it.
func PadName(name string) string {
	name = strings.ReplaceAll(clipName(name), "'", "''")
	return fmt.Sprintf("'%-*s'", NameWidth, name)
}
