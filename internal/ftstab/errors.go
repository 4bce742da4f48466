package ftstab

import (
	"errors"
	"fmt"
)

var (
	ErrNoSchema       = errors.New("ftstab: no schema declared")
	ErrIncomplete     = errors.New("ftstab: schema has unset columns")
	ErrBadColumnCount = errors.New("ftstab: column count must be at least 1")
	ErrBadColumn      = errors.New("ftstab: column index out of range")
	ErrBadKind        = errors.New("ftstab: unknown numeric kind")
	ErrBadTitle       = errors.New("ftstab: invalid title id")
	ErrUnknownTitle   = errors.New("ftstab: unknown column title")
	ErrDefaultTitle   = errors.New("ftstab: the default title cannot be deleted")

	ErrSessionActive = errors.New("ftstab: engine already has an open session")
	ErrSessionClosed = errors.New("ftstab: session is closed")
	ErrTableBlocked  = errors.New("ftstab: table is blocked")
	ErrHeaderBlocked = errors.New("ftstab: header is blocked")
	ErrHeaderFull    = errors.New("ftstab: header would outgrow its allocation")
	ErrReservedKey   = errors.New("ftstab: keyword is maintained by the engine")
	ErrNoHistory     = errors.New("ftstab: no history header")
	ErrBadHeader     = errors.New("ftstab: unknown header selector")
	ErrBadRow        = errors.New("ftstab: row out of range")
	ErrRowLength     = errors.New("ftstab: value count does not match column count")
	ErrBadRange      = errors.New("ftstab: invalid range")
	ErrResource      = errors.New("ftstab: resource exhausted")

	ErrInvalidMode    = errors.New("ftstab: invalid open mode")
	ErrFileExists     = errors.New("ftstab: file exists")
	ErrCorruptFile    = errors.New("ftstab: file is corrupt")
	ErrNotTable       = errors.New("ftstab: extension is not a binary table")
	ErrSchemaMismatch = errors.New("ftstab: schema mismatch")
	ErrRebuildFailed  = errors.New("ftstab: rebuild failed")
)

// Code classifies an open failure. Numbers are stable.
type Code int

const (
	CodeInvalidMode Code = iota + 1
	CodeInvalidExtension
	CodeNoSchema
	CodeFileExists
	CodeOpenFailed
	CodeStatFailed
	CodeNotFITS
	CodeCorruptHeader
	CodeTruncatedFile
	CodeNotTable
	CodeMissingKey
	CodeBadKind
	CodeColumnCount
	CodeColumnKind
	CodeColumnRadius
	CodeColumnGrid
	CodeRowWidth
	CodeTruncateFailed
	CodePrimaryWriteFailed
	CodeHeaderWriteFailed
	CodeSyncFailed
	CodeSessionActive
)

var codeNames = map[Code]string{
	CodeInvalidMode:        "invalid mode",
	CodeInvalidExtension:   "invalid extension",
	CodeNoSchema:           "no schema",
	CodeFileExists:         "file exists",
	CodeOpenFailed:         "open failed",
	CodeStatFailed:         "stat failed",
	CodeNotFITS:            "not FITS",
	CodeCorruptHeader:      "corrupt header",
	CodeTruncatedFile:      "truncated file",
	CodeNotTable:           "not a table",
	CodeMissingKey:         "missing key",
	CodeBadKind:            "bad kind",
	CodeColumnCount:        "column count mismatch",
	CodeColumnKind:         "column kind mismatch",
	CodeColumnRadius:       "column radius mismatch",
	CodeColumnGrid:         "column grid mismatch",
	CodeRowWidth:           "row width mismatch",
	CodeTruncateFailed:     "truncate failed",
	CodePrimaryWriteFailed: "primary header write failed",
	CodeHeaderWriteFailed:  "table header write failed",
	CodeSyncFailed:         "sync failed",
	CodeSessionActive:      "session active",
}

func (c Code) Number() int { return int(c) }

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// sentinel groups codes under the errors callers usually match on.
func (c Code) sentinel() error {
	switch c {
	case CodeInvalidMode, CodeInvalidExtension:
		return ErrInvalidMode
	case CodeNoSchema:
		return ErrNoSchema
	case CodeFileExists:
		return ErrFileExists
	case CodeNotFITS, CodeCorruptHeader, CodeTruncatedFile, CodeMissingKey, CodeBadKind:
		return ErrCorruptFile
	case CodeNotTable:
		return ErrNotTable
	case CodeColumnCount, CodeColumnKind, CodeColumnRadius, CodeColumnGrid, CodeRowWidth:
		return ErrSchemaMismatch
	case CodeTruncateFailed, CodePrimaryWriteFailed, CodeHeaderWriteFailed, CodeSyncFailed:
		return ErrRebuildFailed
	case CodeSessionActive:
		return ErrSessionActive
	}
	return nil
}

// Stage is the open step that failed.
type Stage string

const (
	StageArgs     Stage = "args"
	StageScan     Stage = "scan"
	StageCompare  Stage = "compare"
	StageReadback Stage = "readback"
	StageCreate   Stage = "create"
	StageRebuild  Stage = "rebuild"
	StageAppend   Stage = "append"
)

// State tells whether a failed open changed the file.
type State int

const (
	StateUntouched State = iota
	StatePartiallyRebuilt
)

func (s State) String() string {
	if s == StatePartiallyRebuilt {
		return "partially rebuilt"
	}
	return "untouched"
}

// OpenError reports why Engine.Open failed and what it left on disk.
type OpenError struct {
	Code   Code
	Stage  Stage
	State  State
	Path   string
	Ext    int
	Column int // 1-based column for schema mismatches, 0 otherwise
	Err    error
}

func (e *OpenError) Error() string {
	msg := fmt.Sprintf("ftstab: open %s ext %d: %s at %s (file %s)", e.Path, e.Ext, e.Code, e.Stage, e.State)
	if e.Column > 0 {
		msg += fmt.Sprintf(", column %d", e.Column)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpenError) Unwrap() []error {
	var errs []error
	if s := e.Code.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Untouched reports whether the file is byte-identical to before the call.
func (e *OpenError) Untouched() bool { return e.State == StateUntouched }

// OutcomeNumber maps an Open result to its stable number: 0 for success, the
// code number for an OpenError, -1 for anything else.
func OutcomeNumber(err error) int {
	if err == nil {
		return 0
	}
	var oe *OpenError
	if errors.As(err, &oe) {
		return oe.Code.Number()
	}
	return -1
}
