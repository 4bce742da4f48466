package cli

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/ftstab/internal/ftstab"
	"github.com/tuannm99/ftstab/internal/storage"
)

const testSchema = `titles:
  - {id: 1, type: RADI, unit: ARCSEC}
  - {id: 2, type: VROT, unit: KM/S}
  - {id: 3, type: SBR, unit: JY*KM/S/ARCSEC2}
columns:
  - {title: 1, kind: double}
  - {title: 2, kind: int32}
  - {title: 3, kind: float, radius: 0.5, grid: 2}
cards:
  - {key: OBJECT, value: NGC 2403, comment: target}
  - {key: EPOCH, value: 2000}
history:
  - {key: HISTORY, value: created by the cli tests}
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newTable creates a table from testSchema and fills it with rows.
func newTable(t *testing.T, rows string) (dir, table, schema string) {
	t.Helper()
	dir = t.TempDir()
	schema = writeFile(t, dir, "schema.yaml", testSchema)
	table = filepath.Join(dir, "table.fits")

	_, err := execute(t, "", "create", table, "--schema", schema)
	require.NoError(t, err)
	if rows != "" {
		_, err = execute(t, rows, "append", table)
		require.NoError(t, err)
	}
	return dir, table, schema
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ftstab", cmd.Use)

	for _, name := range []string{"create", "append", "info", "dump", "sort", "hist", "hist2d", "digest"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCreate_RequiresSchema(t *testing.T) {
	_, err := execute(t, "", "create", filepath.Join(t.TempDir(), "t.fits"))
	require.Error(t, err)
}

func TestCreateAppendInfo(t *testing.T) {
	dir, table, _ := newTable(t, "")

	out, err := execute(t, "1 10 0.5\n# comment\n\n2 20 1.5\n3 30 2.5\n", "append", table)
	require.NoError(t, err)
	assert.Contains(t, out, "appended 3 rows")
	assert.Contains(t, out, "now has 3 rows")

	rows := writeFile(t, dir, "rows.txt", "4 40 3.5\n")
	out, err = execute(t, "", "append", table, "--input", rows)
	require.NoError(t, err)
	assert.Contains(t, out, "now has 4 rows")

	out, err = execute(t, "", "info", table)
	require.NoError(t, err)
	assert.Contains(t, out, "3 HDUs")
	assert.Contains(t, out, "PRIMARY")
	assert.Contains(t, out, "BINTABLE")
	assert.Contains(t, out, "IMAGE", "history header follows the table")

	out, err = execute(t, "", "dump", table)
	require.NoError(t, err)
	assert.Contains(t, out, "XTENSION= 'BINTABLE'")
	assert.Contains(t, out, "OBJECT  = 'NGC 2403'")
	assert.True(t, strings.HasSuffix(out, "END\n"))

	out, err = execute(t, "", "dump", table, "--hdu", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "created by the cli tests")

	_, err = execute(t, "", "dump", table, "--hdu", "7")
	require.Error(t, err)

	out, err = execute(t, "", "dump", table, "--block", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Block 1 (offset 2880) ===")
	assert.Contains(t, out, "|XTENSION= 'BINTABLE'")

	_, err = execute(t, "", "dump", table, "--block=-1")
	require.ErrorIs(t, err, storage.ErrBadBlock)
}

func TestAppend_BadInput(t *testing.T) {
	_, table, _ := newTable(t, "")

	_, err := execute(t, "1 2 3\n1 x 3\n", "append", table)
	require.ErrorIs(t, err, ErrBadInput)
	assert.Equal(t, 1, ExitCode(err))

	// the row before the bad line is kept
	out, err := execute(t, "", "append", table)
	require.NoError(t, err)
	assert.Contains(t, out, "now has 1 rows")

	_, err = execute(t, "1 2\n", "append", table)
	require.ErrorIs(t, err, ftstab.ErrRowLength)
}

func TestAppend_SchemaMismatchExitCode(t *testing.T) {
	dir, table, _ := newTable(t, "1 2 3\n")
	before, err := os.ReadFile(table)
	require.NoError(t, err)

	other := writeFile(t, dir, "other.yaml", `columns:
  - {title: 0, kind: double}
  - {title: 0, kind: double}
`)
	_, err = execute(t, "5 6\n", "append", table, "--schema", other)
	var oe *ftstab.OpenError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, ftstab.CodeColumnCount, oe.Code)
	assert.Equal(t, ftstab.CodeColumnCount.Number(), ExitCode(err))

	after, err := os.ReadFile(table)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = execute(t, "", "create", table, "--schema", other, "--mode", "nothing")
	assert.Equal(t, ftstab.CodeFileExists.Number(), ExitCode(err))

	out, err := execute(t, "5 6\n", "append", table, "--schema", other, "--mode", "enforce")
	require.NoError(t, err)
	assert.Contains(t, out, "now has 1 rows")
}

func TestSortAndDigest(t *testing.T) {
	_, unsorted, _ := newTable(t, "3 30 0.5\n1 10 1.5\n2 20 2.5\n")
	_, sorted, _ := newTable(t, "1 10 1.5\n2 20 2.5\n3 30 0.5\n")

	digest := func(path string) string {
		out, err := execute(t, "", "digest", path)
		require.NoError(t, err)
		return strings.Fields(out)[0]
	}
	assert.NotEqual(t, digest(sorted), digest(unsorted))

	out, err := execute(t, "", "sort", unsorted, "--column", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "by column 1")
	assert.Equal(t, digest(sorted), digest(unsorted))

	_, err = execute(t, "", "sort", unsorted, "--column", "9")
	require.ErrorIs(t, err, ftstab.ErrBadColumn)
}

func TestHist(t *testing.T) {
	var rows strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&rows, "%s%d %d 0\n", strings.Repeat(" ", i%3), i, i%2)
	}
	dir, table, _ := newTable(t, rows.String())
	image := filepath.Join(dir, "hist.fits")

	out, err := execute(t, "", "hist", table, "--column", "1", "--min", "0", "--max", "10", "--bins", "5", "-o", image)
	require.NoError(t, err)
	assert.Contains(t, out, "5 bins of 2 from 0 to 10, 10 counted")
	st, err := os.Stat(image)
	require.NoError(t, err)
	assert.Zero(t, st.Size()%2880)

	out, err = execute(t, "", "hist2d", table, "--x-column", "1", "--x-bins", "3", "--y-column", "2", "--y-bins", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "3x2 bins, 10 counted")

	_, err = execute(t, "", "hist", table, "--min", "5", "--max", "1")
	require.ErrorIs(t, err, ftstab.ErrBadRange)
}

func TestLogLevelFlag(t *testing.T) {
	_, err := execute(t, "", "info", "--log-level", "loud", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "auto")
	logger.Debug("hidden")
	logger.Info("shown", "rows", 3)

	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "rows=3")
	assert.NotContains(t, buf.String(), "hidden")
	assert.NotContains(t, buf.String(), "\x1b[", "no color off a terminal")
}

func TestLoadTableSpec(t *testing.T) {
	dir := t.TempDir()

	spec, err := LoadTableSpec(writeFile(t, dir, "ok.yaml", testSchema))
	require.NoError(t, err)
	assert.Len(t, spec.Columns, 3)
	assert.Equal(t, "NGC 2403", spec.Cards[0].Value)
	assert.Equal(t, 2000, spec.Cards[1].Value)

	_, err = LoadTableSpec(writeFile(t, dir, "empty.yaml", "titles: []\n"))
	require.ErrorIs(t, err, ErrEmptySchema)

	_, err = LoadTableSpec(writeFile(t, dir, "unknown.yaml", "columns:\n  - {title: 0, kind: double, size: 3}\n"))
	require.Error(t, err)

	spec, err = LoadTableSpec(writeFile(t, dir, "kind.yaml", "columns:\n  - {title: 0, kind: complex}\n"))
	require.NoError(t, err)
	require.ErrorIs(t, spec.Declare(ftstab.New()), ftstab.ErrBadKind)
}
