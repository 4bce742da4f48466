package ftstab

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tuannm99/ftstab/internal/fits"
	"github.com/tuannm99/ftstab/internal/storage"
)

// OpenMode decides what Open does with an existing file.
type OpenMode int

const (
	// ModeNothing refuses to touch an existing file and creates a missing one.
	ModeNothing OpenMode = iota
	// ModeOverwrite recreates the file with the table as extension 1.
	ModeOverwrite
	// ModeAppend attaches to a matching table or fails leaving the file
	// untouched.
	ModeAppend
	// ModeAppendEnforceWrite overwrites the whole file on a mismatch.
	ModeAppendEnforceWrite
	// ModeAppendEnforce truncates at the mismatched extension and rebuilds
	// the table there.
	ModeAppendEnforce
)

var modeNames = []string{"nothing", "overwrite", "append", "enforce-write", "enforce"}

func (m OpenMode) Valid() bool { return m >= ModeNothing && m <= ModeAppendEnforce }

func (m OpenMode) enforces() bool {
	return m == ModeAppendEnforceWrite || m == ModeAppendEnforce
}

func (m OpenMode) String() string {
	if m.Valid() {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseOpenMode accepts a mode name or its number.
func ParseOpenMode(s string) (OpenMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if s == name || s == fmt.Sprint(i) {
			return OpenMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Open binds the engine to table extension ext (1-based) of path.
//
// A failed Open returns an *OpenError telling whether the file was left
// untouched or partially rebuilt. A successful Open may have corrected a
// row count that claimed more rows than the file holds; Session.Recovered
// reports that.
func (e *Engine) Open(path string, ext int, mode OpenMode, treatHistory bool) (*Session, error) {
	op := &opener{
		eng:          e,
		path:         path,
		ext:          ext,
		mode:         mode,
		treatHistory: treatHistory,
		bm:           storage.NewBlockManager(),
	}
	s, err := op.run()
	if err != nil {
		if op.f != nil {
			if cerr := op.f.Close(); cerr != nil {
				e.logger.Warn("close file", "path", path, "err", cerr)
			}
		}
		e.logger.Debug("open table failed", "path", path, "ext", ext, "mode", mode, "err", err)
		return nil, err
	}
	e.active = s
	e.logger.Debug("open table",
		"path", path,
		"ext", s.ext,
		"mode", mode,
		"rows", s.rows,
		"header_blocked", s.headerBlocked,
		"table_blocked", s.tableBlocked,
	)
	return s, nil
}

type opener struct {
	eng          *Engine
	path         string
	ext          int
	mode         OpenMode
	treatHistory bool

	bm      *storage.BlockManager
	f       storage.DataFile
	size    int64
	touched bool
	history *fits.Header // detected on disk, installed on success
}

func (op *opener) fail(code Code, stage Stage, col int, err error) *OpenError {
	state := StateUntouched
	if op.touched {
		state = StatePartiallyRebuilt
	}
	return &OpenError{
		Code:   code,
		Stage:  stage,
		State:  state,
		Path:   op.path,
		Ext:    op.ext,
		Column: col,
		Err:    err,
	}
}

func (op *opener) run() (*Session, error) {
	if op.eng.active != nil {
		return nil, op.fail(CodeSessionActive, StageArgs, 0, nil)
	}
	if !op.mode.Valid() {
		return nil, op.fail(CodeInvalidMode, StageArgs, 0, fmt.Errorf("%d", int(op.mode)))
	}
	if op.ext < 1 {
		return nil, op.fail(CodeInvalidExtension, StageArgs, 0, fmt.Errorf("extension %d", op.ext))
	}
	exists, err := storage.Exists(op.path)
	if err != nil {
		return nil, op.fail(CodeStatFailed, StageArgs, 0, err)
	}

	switch {
	case op.mode == ModeNothing && exists:
		return nil, op.fail(CodeFileExists, StageArgs, 0, nil)
	case op.mode == ModeNothing, op.mode == ModeOverwrite, !exists:
		if err := op.eng.schema.Complete(); err != nil {
			return nil, op.fail(CodeNoSchema, StageCreate, 0, err)
		}
		return op.overwrite(StageCreate)
	}
	return op.attach()
}

// overwrite replaces the file with a primary header and an empty table as
// extension 1.
func (op *opener) overwrite(stage Stage) (*Session, error) {
	eng := op.eng
	eng.schema.resetStats()
	hdr, err := tableHeader(eng.schema, eng.reg, 0)
	if err != nil {
		return nil, op.fail(CodeNoSchema, stage, 0, err)
	}
	table, err := hdr.Encode(0)
	if err != nil {
		return nil, op.fail(CodeHeaderWriteFailed, stage, 0, err)
	}
	primary, err := fits.PrimaryHeader().Encode(0)
	if err != nil {
		return nil, op.fail(CodePrimaryWriteFailed, stage, 0, err)
	}

	if op.f == nil {
		f, err := op.eng.openFile(op.path, true)
		if err != nil {
			return nil, op.fail(CodeOpenFailed, stage, 0, err)
		}
		op.f = f
	}

	op.touched = true
	if err := op.f.Truncate(0); err != nil {
		return nil, op.fail(CodeTruncateFailed, stage, 0, err)
	}
	next, err := op.bm.WriteRegion(op.f, 0, primary, storage.HeaderFill)
	if err != nil {
		return nil, op.fail(CodePrimaryWriteFailed, stage, 0, err)
	}
	if _, err := op.bm.WriteRegion(op.f, next, table, storage.HeaderFill); err != nil {
		return nil, op.fail(CodeHeaderWriteFailed, stage, 0, err)
	}
	if err := op.f.Sync(); err != nil {
		return nil, op.fail(CodeSyncFailed, stage, 0, err)
	}

	op.ext = 1
	return op.session(sessionLayout{
		header:       hdr,
		headerStart:  next,
		headerAlloc:  int64(len(table)),
		historyStart: -1,
		last:         true,
	}), nil
}

// layout of the existing file, split into tables and the optional history
type fileLayout struct {
	hdus    []fits.HDU
	tables  []fits.HDU
	history *fits.HDU
}

// end is where the region the tables may grow into stops.
func (l fileLayout) end(size int64) int64 {
	if l.history != nil {
		return l.history.HeaderStart
	}
	return size
}

func (op *opener) scan() (fileLayout, error) {
	f, err := op.eng.openFile(op.path, false)
	if err != nil {
		return fileLayout{}, op.fail(CodeOpenFailed, StageScan, 0, err)
	}
	op.f = f
	size, err := op.bm.Size(f)
	if err != nil {
		return fileLayout{}, op.fail(CodeStatFailed, StageScan, 0, err)
	}
	op.size = size

	hdus, err := fits.Scan(f, size)
	if err != nil {
		if errors.Is(err, fits.ErrNotFITS) {
			return fileLayout{}, op.fail(CodeNotFITS, StageScan, 0, err)
		}
		return fileLayout{}, op.fail(CodeCorruptHeader, StageScan, 0, err)
	}
	if n := fits.Trailing(hdus, size); n > 0 {
		op.eng.logger.Warn("trailing bytes after last HDU",
			"path", op.path, "bytes", n, "after", hdus[len(hdus)-1].End())
	}

	l := fileLayout{hdus: hdus, tables: hdus[1:]}
	if last := hdus[len(hdus)-1]; op.treatHistory && last.IsMarker() {
		l.history = &last
		l.tables = hdus[1 : len(hdus)-1]
	}
	return l, nil
}

func (op *opener) attach() (*Session, error) {
	l, err := op.scan()
	if err != nil {
		return nil, err
	}
	eng := op.eng
	if l.history != nil {
		op.history = l.history.Header.Clone()
	}

	if op.ext > len(l.tables) {
		return op.appendExtension(l)
	}

	target := l.tables[op.ext-1]
	if !target.IsBinTable() {
		err := fmt.Errorf("XTENSION = %q", target.XTension())
		if op.mode.enforces() && eng.schema.Complete() == nil {
			return op.enforce(target, CodeNotTable, 0, err)
		}
		return nil, op.fail(CodeNotTable, StageScan, 0, err)
	}

	if eng.schema == nil {
		return op.readback(l, target)
	}
	if err := eng.schema.Complete(); err != nil {
		return nil, op.fail(CodeNoSchema, StageCompare, 0, err)
	}

	code, col, err := compareSchema(eng.schema, target.Header)
	if err == nil {
		return op.resume(l, target)
	}
	return op.enforce(target, code, col, err)
}

// enforce replaces a target that cannot take the declared schema. Only the
// enforce modes do; the others fail with the mismatch.
func (op *opener) enforce(target fits.HDU, code Code, col int, err error) (*Session, error) {
	log := op.eng.logger
	switch op.mode {
	case ModeAppendEnforceWrite:
		log.Info("schema mismatch, overwriting file",
			"path", op.path, "ext", op.ext, "reason", code, "column", col, "err", err)
		return op.overwrite(StageRebuild)
	case ModeAppendEnforce:
		log.Info("schema mismatch, rebuilding extension",
			"path", op.path, "ext", op.ext, "reason", code, "column", col, "err", err)
		return op.rebuild(target)
	}
	return nil, op.fail(code, StageCompare, col, err)
}

// readback adopts the schema written in target. Titles registered from the
// header are dropped again when the open fails.
func (op *opener) readback(l fileLayout, target fits.HDU) (*Session, error) {
	eng := op.eng
	known := make(map[int]bool, eng.reg.Len())
	for _, e := range eng.reg.Entries() {
		known[e.ID] = true
	}
	forget := func() {
		for _, e := range eng.reg.Entries() {
			if !known[e.ID] {
				_ = eng.reg.Delete(e.ID)
			}
		}
	}

	s, code, err := readSchema(target.Header, eng.reg)
	if err != nil {
		forget()
		return nil, op.fail(code, StageReadback, 0, err)
	}
	eng.schema = s
	sess, err := op.resume(l, target)
	if err != nil {
		eng.schema = nil
		forget()
	}
	return sess, err
}

// resume binds to an existing, compatible table.
func (op *opener) resume(l fileLayout, target fits.HDU) (*Session, error) {
	eng := op.eng
	hdr := target.Header.Clone()

	naxis1, err := hdr.Int("NAXIS1")
	if err != nil {
		return nil, op.fail(CodeMissingKey, StageCompare, 0, err)
	}
	if width := eng.schema.RowWidth(); naxis1 != width {
		return nil, op.fail(CodeRowWidth, StageCompare, 0, fmt.Errorf("NAXIS1 = %d, schema row width %d", naxis1, width))
	}
	rows, err := hdr.Int("NAXIS2")
	if err != nil {
		return nil, op.fail(CodeMissingKey, StageCompare, 0, err)
	}
	if rows < 0 {
		return nil, op.fail(CodeCorruptHeader, StageCompare, 0, fmt.Errorf("NAXIS2 = %d", rows))
	}

	last := op.ext == len(l.tables)
	recovered := false
	if last {
		avail := l.end(op.size) - target.DataStart
		if complete := max(avail, 0) / naxis1; rows > complete {
			eng.logger.Warn("row count exceeds file contents, correcting",
				"path", op.path, "ext", op.ext, "declared", rows, "present", complete)
			rows = complete
			recovered = true
		}
	}

	eng.schema.resetStats()
	loadStats(eng.schema, hdr)
	if err := applyStructure(hdr, eng.schema, eng.reg, rows); err != nil {
		return nil, op.fail(CodeNoSchema, StageCompare, 0, err)
	}
	if hdr.Size() > target.HeaderAlloc() && (rows > 0 || !last) {
		return nil, op.fail(CodeCorruptHeader, StageCompare, 0,
			fmt.Errorf("%w: engine cards need %d bytes, have %d", fits.ErrHeaderTooLarge, hdr.Size(), target.HeaderAlloc()))
	}

	historyStart := int64(-1)
	if l.history != nil {
		historyStart = l.history.HeaderStart
	}
	return op.session(sessionLayout{
		header:       hdr,
		headerStart:  target.HeaderStart,
		headerAlloc:  target.HeaderAlloc(),
		rows:         rows,
		historyStart: historyStart,
		last:         last,
		recovered:    recovered,
	}), nil
}

// appendExtension adds the table after the last table extension, over the
// history region, which is held in memory until close.
func (op *opener) appendExtension(l fileLayout) (*Session, error) {
	eng := op.eng
	if err := eng.schema.Complete(); err != nil {
		return nil, op.fail(CodeNoSchema, StageAppend, 0, err)
	}
	limit := l.end(op.size)
	lastHDU := l.hdus[0]
	if len(l.tables) > 0 {
		lastHDU = l.tables[len(l.tables)-1]
	}
	if lastHDU.End() > limit {
		return nil, op.fail(CodeTruncatedFile, StageAppend, 0,
			fmt.Errorf("extension %d ends at %d, file region ends at %d", lastHDU.Index, lastHDU.End(), limit))
	}

	eng.schema.resetStats()
	hdr, err := tableHeader(eng.schema, eng.reg, 0)
	if err != nil {
		return nil, op.fail(CodeNoSchema, StageAppend, 0, err)
	}
	buf, err := hdr.Encode(0)
	if err != nil {
		return nil, op.fail(CodeHeaderWriteFailed, StageAppend, 0, err)
	}

	pos := lastHDU.End()
	op.touched = true
	if err := op.f.Truncate(pos); err != nil {
		return nil, op.fail(CodeTruncateFailed, StageAppend, 0, err)
	}
	if _, err := op.bm.WriteRegion(op.f, pos, buf, storage.HeaderFill); err != nil {
		return nil, op.fail(CodeHeaderWriteFailed, StageAppend, 0, err)
	}
	if err := op.f.Sync(); err != nil {
		return nil, op.fail(CodeSyncFailed, StageAppend, 0, err)
	}

	op.ext = len(l.tables) + 1
	return op.session(sessionLayout{
		header:       hdr,
		headerStart:  pos,
		headerAlloc:  int64(len(buf)),
		historyStart: -1,
		last:         true,
	}), nil
}

// rebuild drops target and everything after it and starts an empty table
// in its place. The new header is built before anything is truncated.
func (op *opener) rebuild(target fits.HDU) (*Session, error) {
	eng := op.eng
	eng.schema.resetStats()
	hdr, err := tableHeader(eng.schema, eng.reg, 0)
	if err != nil {
		return nil, op.fail(CodeNoSchema, StageRebuild, 0, err)
	}
	buf, err := hdr.Encode(0)
	if err != nil {
		return nil, op.fail(CodeHeaderWriteFailed, StageRebuild, 0, err)
	}

	op.touched = true
	if err := op.f.Truncate(target.HeaderStart); err != nil {
		return nil, op.fail(CodeTruncateFailed, StageRebuild, 0, err)
	}
	if _, err := op.bm.WriteRegion(op.f, target.HeaderStart, buf, storage.HeaderFill); err != nil {
		return nil, op.fail(CodeHeaderWriteFailed, StageRebuild, 0, err)
	}
	if err := op.f.Sync(); err != nil {
		return nil, op.fail(CodeSyncFailed, StageRebuild, 0, err)
	}

	return op.session(sessionLayout{
		header:       hdr,
		headerStart:  target.HeaderStart,
		headerAlloc:  int64(len(buf)),
		historyStart: -1,
		last:         true,
	}), nil
}
