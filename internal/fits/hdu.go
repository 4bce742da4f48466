package fits

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tuannm99/ftstab/internal/storage"
)

var (
	ErrNotFITS      = errors.New("fits: not a FITS file")
	ErrBadExtension = errors.New("fits: extension header without XTENSION")
	ErrBadAxes      = errors.New("fits: invalid axis description")
)

// HDU locates one header/data unit inside a file.
type HDU struct {
	Index       int
	HeaderStart int64
	DataStart   int64
	DataLen     int64 // bytes declared by the header, unpadded
	Header      *Header
}

// End is the offset just past the padded data area.
func (u HDU) End() int64 {
	return u.DataStart + storage.PaddedSize(u.DataLen)
}

// HeaderAlloc is the on-disk size of the header.
func (u HDU) HeaderAlloc() int64 { return u.DataStart - u.HeaderStart }

func (u HDU) XTension() string {
	s, err := u.Header.Str("XTENSION")
	if err != nil {
		return ""
	}
	return s
}

func (u HDU) NAxis() int64 {
	n, err := u.Header.Int("NAXIS")
	if err != nil {
		return -1
	}
	return n
}

// IsMarker reports a zero-axis extension, the shape used for history
// headers.
func (u HDU) IsMarker() bool {
	return u.Index > 0 && u.NAxis() == 0
}

func (u HDU) IsBinTable() bool {
	return u.Index > 0 && u.XTension() == "BINTABLE"
}

// DataLength computes |BITPIX|/8 * GCOUNT * (PCOUNT + NAXIS1*...*NAXISn).
func DataLength(h *Header) (int64, error) {
	bitpix, err := h.Int("BITPIX")
	if err != nil {
		return 0, err
	}
	naxis, err := h.Int("NAXIS")
	if err != nil {
		return 0, err
	}
	if naxis < 0 || naxis > 999 {
		return 0, fmt.Errorf("%w: NAXIS = %d", ErrBadAxes, naxis)
	}
	if naxis == 0 {
		return 0, nil
	}

	prod := int64(1)
	for i := int64(1); i <= naxis; i++ {
		n, err := h.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: NAXIS%d = %d", ErrBadAxes, i, n)
		}
		prod *= n
	}

	pcount, gcount := int64(0), int64(1)
	if v, err := h.Int("PCOUNT"); err == nil {
		pcount = v
	}
	if v, err := h.Int("GCOUNT"); err == nil {
		gcount = v
	}
	if bitpix < 0 {
		bitpix = -bitpix
	}
	return bitpix / 8 * gcount * (pcount + prod), nil
}

// Scan walks the file from the primary header and lists every HDU. The last
// HDU may claim more data than the file holds; callers decide what that
// means. Bytes after an HDU that do not start an extension header end the
// scan without an error; Trailing reports them. A header that cannot be read
// ends the scan with an error, and the HDUs found before it are still
// returned.
func Scan(r io.ReaderAt, size int64) ([]HDU, error) {
	var hdus []HDU
	for pos := int64(0); pos < size; {
		if len(hdus) > 0 && !startsExtension(r, pos) {
			break
		}
		h, n, err := Read(r, pos)
		if err != nil {
			if len(hdus) == 0 {
				return nil, fmt.Errorf("%w: %w", ErrNotFITS, err)
			}
			return hdus, err
		}
		idx := len(hdus)
		if idx == 0 {
			if simple, err := h.Bool("SIMPLE"); err != nil || !simple {
				return nil, ErrNotFITS
			}
		} else if _, err := h.Str("XTENSION"); err != nil {
			return hdus, fmt.Errorf("%w: HDU %d at %d", ErrBadExtension, idx, pos)
		}

		dataLen, err := DataLength(h)
		if err != nil {
			return hdus, fmt.Errorf("HDU %d: %w", idx, err)
		}
		u := HDU{
			Index:       idx,
			HeaderStart: pos,
			DataStart:   pos + n,
			DataLen:     dataLen,
			Header:      h,
		}
		hdus = append(hdus, u)
		pos = u.End()
	}
	if len(hdus) == 0 {
		return nil, ErrNotFITS
	}
	return hdus, nil
}

var xtension = []byte("XTENSION")

func startsExtension(r io.ReaderAt, pos int64) bool {
	buf := make([]byte, len(xtension))
	if _, err := r.ReadAt(buf, pos); err != nil {
		return false
	}
	return bytes.Equal(buf, xtension)
}

// Trailing is the number of bytes past the padded end of the last HDU, such
// as rows written beyond a row count that was never updated.
func Trailing(hdus []HDU, size int64) int64 {
	if len(hdus) == 0 {
		return 0
	}
	return max(size-hdus[len(hdus)-1].End(), 0)
}

// PrimaryHeader is the empty primary HDU every table file starts with.
func PrimaryHeader() *Header {
	h := NewHeader()
	_, _ = h.Put("SIMPLE", true, "file conforms to FITS standard")
	_, _ = h.Put("BITPIX", 8, "")
	_, _ = h.Put("NAXIS", 0, "no primary data")
	_, _ = h.Put("EXTEND", true, "extensions follow")
	return h
}
