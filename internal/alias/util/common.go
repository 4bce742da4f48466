package util

import (
	"log/slog"
	"os"
)

func CloseFileFunc(f *os.File) {
	err := f.Close()
	if err != nil {
		slog.Warn("close file", "file", f.Name(), "err", err)
	}
}
