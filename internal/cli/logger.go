package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger returns a tint logger writing to w. color is "auto", "always"
// or "never"; auto colors only a terminal.
func NewLogger(w io.Writer, level slog.Level, color string) *slog.Logger {
	noColor := color != "always"
	if f, ok := w.(*os.File); ok {
		if color == "auto" || color == "" {
			noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
		}
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}
