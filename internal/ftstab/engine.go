package ftstab

import (
	"fmt"
	"log/slog"

	"github.com/tuannm99/ftstab/internal/bufferpool"
	"github.com/tuannm99/ftstab/internal/fits"
	"github.com/tuannm99/ftstab/internal/storage"
)

const DefaultBins = 100

// Engine owns the state that outlives a single file session: the title
// registry, the declared schema and the carried history header. At most one
// session is open per engine.
type Engine struct {
	reg     *Registry
	schema  *Schema
	history *fits.Header
	active  *Session

	logger      *slog.Logger
	defaultBins int
	cacheBlocks int
	checkpoint  int64
	openFile    storage.Opener
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegistry shares an existing registry instead of a fresh one.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.reg = r
		}
	}
}

// WithDefaultBins sets the histogram bin count used when neither a count
// nor a width is given.
func WithDefaultBins(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultBins = n
		}
	}
}

// WithCacheBlocks sets the per-session block cache capacity.
func WithCacheBlocks(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheBlocks = n
		}
	}
}

// WithCheckpointRows makes AppendRow checkpoint the session every n rows,
// so a writer that dies before Close loses at most n rows. Zero disables it.
func WithCheckpointRows(n int64) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.checkpoint = n
		}
	}
}

// WithFileOpener replaces how table files are opened.
func WithFileOpener(open storage.Opener) Option {
	return func(e *Engine) {
		if open != nil {
			e.openFile = open
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      slog.Default(),
		defaultBins: DefaultBins,
		cacheBlocks: bufferpool.DefaultCapacity,
		openFile:    storage.OpenDataFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reg == nil {
		e.reg = NewRegistry()
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.reg }

// Schema returns the declared schema, nil when none is declared.
func (e *Engine) Schema() *Schema { return e.schema }

// Active returns the open session, if any.
func (e *Engine) Active() *Session { return e.active }

// Declare replaces the schema with n unset columns.
func (e *Engine) Declare(n int) error {
	if e.active != nil {
		return ErrSessionActive
	}
	s, err := NewSchema(n)
	if err != nil {
		return err
	}
	e.schema = s
	return nil
}

// SetColumn describes column i (1-based) of the declared schema. The title
// must be registered.
func (e *Engine) SetColumn(i, title int, kind Kind, radius, grid float64) error {
	if e.active != nil {
		return ErrSessionActive
	}
	if e.schema == nil {
		return ErrNoSchema
	}
	if !e.reg.Has(title) {
		return fmt.Errorf("%w: %d", ErrUnknownTitle, title)
	}
	return e.schema.SetColumn(i, title, kind, radius, grid)
}

// GenerateHeader builds the header selected by which from the schema. The
// history header is installed on the engine when none is carried yet, and
// the carried one is returned otherwise.
func (e *Engine) GenerateHeader(which HeaderKind) (*fits.Header, error) {
	if err := e.schema.Complete(); err != nil {
		return nil, err
	}
	switch which {
	case HeaderTable:
		return tableHeader(e.schema, e.reg, 0)
	case HeaderHistory:
		if e.history == nil {
			e.history = historyHeader()
		}
		return e.history, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrBadHeader, int(which))
}

// History returns the carried history header, nil when there is none.
func (e *Engine) History() *fits.Header { return e.history }

func (e *Engine) ClearHistory() { e.history = nil }

// Reset drops the schema and the history header. The registry is kept.
func (e *Engine) Reset() {
	e.schema = nil
	e.history = nil
}
