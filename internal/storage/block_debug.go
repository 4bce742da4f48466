package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
)

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Fprintf(format string, a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, a...)
}

func (e *errWriter) Fprintln(a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, a...)
}

// ASCII preview: printable -> itself, else '.'
func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if c < 0x80 && unicode.IsPrint(r) {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// Debug prints the block as rows of width bytes: hex on the left, ASCII on
// the right. A width of CardSize shows a header block one card per line.
func (b *Block) Debug(w io.Writer, width int) error {
	if width <= 0 {
		width = 16
	}
	ew := &errWriter{w: w}

	ew.Fprintf("=== Block %d (offset %d) ===\n", b.No, b.Offset())
	for off := 0; off < len(b.Buf); off += width {
		if ew.err != nil {
			break
		}
		end := min(off+width, len(b.Buf))
		row := b.Buf[off:end]
		if width >= CardSize {
			ew.Fprintf("%04d |%s|\n", off, asciiPreview(row))
			continue
		}
		ew.Fprintf("%04d %-*s |%s|\n", off, width*2, hex.EncodeToString(row), asciiPreview(row))
	}
	ew.Fprintln("=== End Block ===")
	return ew.err
}

func (b *Block) DebugString(width int) string {
	var buf bytes.Buffer
	if err := b.Debug(&buf, width); err != nil {
		_, _ = buf.WriteString("\n<debug write error: " + err.Error() + ">\n")
	}
	return buf.String()
}
