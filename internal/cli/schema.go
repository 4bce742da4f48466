package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tuannm99/ftstab/internal/ftstab"
)

// TableSpec is the YAML description of a table:
//
//	titles:
//	  - {id: 1, type: RADI, unit: ARCSEC}
//	columns:
//	  - {title: 1, kind: double}
//	cards:
//	  - {key: OBJECT, value: NGC 2403, comment: target}
type TableSpec struct {
	Titles  []TitleSpec  `yaml:"titles"`
	Columns []ColumnSpec `yaml:"columns"`
	Cards   []CardSpec   `yaml:"cards"`
	History []CardSpec   `yaml:"history"`
}

type TitleSpec struct {
	ID    int      `yaml:"id"`
	Type  string   `yaml:"type"`
	Unit  string   `yaml:"unit"`
	Zero  float64  `yaml:"zero"`
	Scale *float64 `yaml:"scale"` // 1 when omitted
}

type ColumnSpec struct {
	Title  int     `yaml:"title"`
	Kind   string  `yaml:"kind"`
	Radius float64 `yaml:"radius"`
	Grid   float64 `yaml:"grid"`
}

type CardSpec struct {
	Key     string `yaml:"key"`
	Value   any    `yaml:"value"`
	Comment string `yaml:"comment"`
}

var ErrEmptySchema = errors.New("cli: schema declares no columns")

// LoadTableSpec reads a schema file. Unknown fields are an error.
func LoadTableSpec(path string) (*TableSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec TableSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptySchema)
	}
	return &spec, nil
}

// Declare registers the titles and declares the columns on e.
func (t *TableSpec) Declare(e *ftstab.Engine) error {
	for _, ti := range t.Titles {
		scale := 1.0
		if ti.Scale != nil {
			scale = *ti.Scale
		}
		if _, err := e.Registry().Put(ti.ID, ti.Type, ti.Unit, ti.Zero, scale); err != nil {
			return fmt.Errorf("title %d: %w", ti.ID, err)
		}
	}

	if err := e.Declare(len(t.Columns)); err != nil {
		return err
	}
	for i, c := range t.Columns {
		kind, err := ftstab.ParseKind(c.Kind)
		if err != nil {
			return fmt.Errorf("column %d: %w", i+1, err)
		}
		if err := e.SetColumn(i+1, c.Title, kind, c.Radius, c.Grid); err != nil {
			return fmt.Errorf("column %d: %w", i+1, err)
		}
	}
	return nil
}

// PutCards writes the user cards of both headers. History cards create the
// history header when the file has none.
func (t *TableSpec) PutCards(s *ftstab.Session) error {
	for _, c := range t.Cards {
		if err := s.PutCard(ftstab.HeaderTable, c.Key, c.Value, c.Comment); err != nil {
			return fmt.Errorf("card %s: %w", c.Key, err)
		}
	}
	if len(t.History) == 0 {
		return nil
	}
	if s.History() == nil {
		if err := s.GenerateHeader(ftstab.HeaderHistory); err != nil {
			return err
		}
	}
	for _, c := range t.History {
		if err := s.PutCard(ftstab.HeaderHistory, c.Key, c.Value, c.Comment); err != nil {
			return fmt.Errorf("history card %s: %w", c.Key, err)
		}
	}
	return nil
}
