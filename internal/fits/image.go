package fits

import (
	"fmt"

	"github.com/tuannm99/ftstab/internal/alias/bx"
	"github.com/tuannm99/ftstab/internal/alias/util"
	"github.com/tuannm99/ftstab/internal/storage"
)

// Axis describes one image axis with a linear world coordinate.
type Axis struct {
	Len    int64
	Type   string
	RefPix float64
	RefVal float64
	Delta  float64
}

// Int32ImageHeader builds a primary header for a BITPIX=32 image.
func Int32ImageHeader(axes []Axis) (*Header, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: image needs at least one axis", ErrBadAxes)
	}
	h := NewHeader()
	_, _ = h.Put("SIMPLE", true, "file conforms to FITS standard")
	_, _ = h.Put("BITPIX", 32, "")
	_, _ = h.Put("NAXIS", len(axes), "")
	for i, a := range axes {
		if a.Len < 1 {
			return nil, fmt.Errorf("%w: axis %d has length %d", ErrBadAxes, i+1, a.Len)
		}
		_, _ = h.Put(fmt.Sprintf("NAXIS%d", i+1), a.Len, "")
	}
	for i, a := range axes {
		n := i + 1
		_, _ = h.Put(fmt.Sprintf("CTYPE%d", n), a.Type, "")
		_, _ = h.Put(fmt.Sprintf("CRPIX%d", n), a.RefPix, "")
		_, _ = h.Put(fmt.Sprintf("CRVAL%d", n), a.RefVal, "")
		_, _ = h.Put(fmt.Sprintf("CDELT%d", n), a.Delta, "")
	}
	return h, nil
}

// WriteInt32Image writes a single-HDU image file, replacing path.
func WriteInt32Image(path string, h *Header, data []int32) error {
	want, err := DataLength(h)
	if err != nil {
		return err
	}
	if want != int64(len(data))*4 {
		return fmt.Errorf("%w: header wants %d bytes, have %d values", ErrBadAxes, want, len(data))
	}

	f, err := storage.OpenFile(path, true)
	if err != nil {
		return err
	}
	defer util.CloseFileFunc(f)
	if err := f.Truncate(0); err != nil {
		return err
	}

	hdr, err := h.Encode(0)
	if err != nil {
		return err
	}
	bm := storage.NewBlockManager()
	next, err := bm.WriteRegion(f, 0, hdr, storage.HeaderFill)
	if err != nil {
		return err
	}

	body := make([]byte, len(data)*4)
	for i, v := range data {
		bx.PutI32(body[i*4:], v)
	}
	if _, err := bm.WriteRegion(f, next, body, storage.DataFill); err != nil {
		return err
	}
	return f.Sync()
}
