package fits

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tuannm99/ftstab/internal/storage"
)

var (
	ErrNoEnd          = errors.New("fits: header has no END card")
	ErrKeyNotFound    = errors.New("fits: keyword not found")
	ErrHeaderTooLarge = errors.New("fits: header does not fit its allocation")
)

// Header is an ordered card list. Commentary cards (blank, COMMENT, HISTORY)
// are append-only; every other key is unique and updated in place.
type Header struct {
	cards []Card
	index map[string]int
}

func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	c := NewHeader()
	for _, card := range h.cards {
		c.add(card)
	}
	return c
}

func (h *Header) add(c Card) {
	if !IsCommentary(c.Key) {
		h.index[c.Key] = len(h.cards)
	}
	h.cards = append(h.cards, c)
}

// Set stores a card whose value is already rendered. It reports whether the
// header grew.
func (h *Header) Set(key, value, comment string) (bool, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return false, err
	}
	if k == "END" {
		return false, fmt.Errorf("%w: END is implicit", ErrBadKey)
	}
	if i, ok := h.index[k]; ok && !IsCommentary(k) {
		h.cards[i].Value = value
		if comment != "" {
			h.cards[i].Comment = comment
		}
		return false, nil
	}
	h.add(Card{Key: k, Value: value, Comment: comment})
	return true, nil
}

// Put formats value and stores it under key. For commentary keys value is
// the free text and must be a string.
func (h *Header) Put(key string, value any, comment string) (bool, error) {
	if IsCommentary(key) {
		text, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("%w: commentary text must be a string", ErrBadValue)
		}
		return h.Set(key, text, "")
	}
	rendered, err := FormatValue(value)
	if err != nil {
		return false, err
	}
	return h.Set(key, rendered, comment)
}

// WouldGrow reports whether storing key would append a new card.
func (h *Header) WouldGrow(key string) bool {
	k, err := NormalizeKey(key)
	if err != nil {
		return false
	}
	if IsCommentary(k) {
		return true
	}
	_, ok := h.index[k]
	return !ok
}

func (h *Header) Get(key string) (Card, bool) {
	k, err := NormalizeKey(key)
	if err != nil {
		return Card{}, false
	}
	i, ok := h.index[k]
	if !ok {
		return Card{}, false
	}
	return h.cards[i], true
}

func (h *Header) lookup(key string) (Card, error) {
	c, ok := h.Get(key)
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return c, nil
}

func (h *Header) Int(key string) (int64, error) {
	c, err := h.lookup(key)
	if err != nil {
		return 0, err
	}
	return c.Int()
}

func (h *Header) Float(key string) (float64, error) {
	c, err := h.lookup(key)
	if err != nil {
		return 0, err
	}
	return c.Float()
}

func (h *Header) Str(key string) (string, error) {
	c, err := h.lookup(key)
	if err != nil {
		return "", err
	}
	return c.Str()
}

func (h *Header) Bool(key string) (bool, error) {
	c, err := h.lookup(key)
	if err != nil {
		return false, err
	}
	return c.Bool()
}

// Commentary returns the text of every card with the given commentary key.
func (h *Header) Commentary(key string) []string {
	var out []string
	for _, c := range h.cards {
		if c.Key == key && IsCommentary(key) {
			out = append(out, c.Value)
		}
	}
	return out
}

// Cards returns a copy of the card list.
func (h *Header) Cards() []Card {
	out := make([]Card, len(h.cards))
	copy(out, h.cards)
	return out
}

func (h *Header) Len() int { return len(h.cards) }

// Size is the padded on-disk length: cards plus END, rounded up to blocks.
func (h *Header) Size() int64 {
	return storage.PaddedSize(int64(len(h.cards)+1) * storage.CardSize)
}

// Encode renders the header. A non-zero alloc fixes the output length: the
// gap between the last card and END is filled with blank records so that
// the data that follows keeps its offset.
func (h *Header) Encode(alloc int64) ([]byte, error) {
	size := h.Size()
	if alloc == 0 {
		alloc = size
	}
	if alloc%storage.BlockSize != 0 {
		return nil, fmt.Errorf("%w: allocation %d is not block aligned", ErrHeaderTooLarge, alloc)
	}
	if size > alloc {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrHeaderTooLarge, size, alloc)
	}

	buf := make([]byte, 0, alloc)
	for _, c := range h.cards {
		buf = append(buf, c.Render()...)
	}
	// END closes the header: last card of the allocation when blank
	// records pad a fixed-size header, right after the cards otherwise
	endAt := int64(len(buf))
	if alloc > size {
		endAt = alloc - storage.CardSize
	}
	for int64(len(buf)) < endAt {
		buf = append(buf, ' ')
	}
	buf = append(buf, Card{Key: "END"}.Render()...)
	for int64(len(buf)) < alloc {
		buf = append(buf, ' ')
	}
	return buf, nil
}

// Read decodes the header starting at off. It returns the header and the
// number of bytes it occupies on disk (a whole number of blocks).
func Read(r io.ReaderAt, off int64) (*Header, int64, error) {
	h := NewHeader()
	block := make([]byte, storage.BlockSize)

	for pos := off; ; pos += storage.BlockSize {
		n, err := r.ReadAt(block, pos)
		if n < storage.BlockSize {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, 0, fmt.Errorf("%w: header at %d truncated", ErrNoEnd, off)
			}
			return nil, 0, fmt.Errorf("read header block at %d: %w", pos, err)
		}
		for i := 0; i < storage.CardsPerBlock; i++ {
			card, err := ParseCard(block[i*storage.CardSize : (i+1)*storage.CardSize])
			if err != nil {
				return nil, 0, err
			}
			if strings.ContainsRune(card.Key, 0) {
				return nil, 0, fmt.Errorf("%w: binary data at %d", ErrNoEnd, pos+int64(i*storage.CardSize))
			}
			if card.Key == "END" {
				return h, pos + storage.BlockSize - off, nil
			}
			if card.IsBlank() {
				continue
			}
			h.add(card)
		}
	}
}

// Dump writes one rendered card per line, trailing blanks trimmed.
func (h *Header) Dump(w io.Writer) error {
	for _, c := range append(h.Cards(), Card{Key: "END"}) {
		line := strings.TrimRight(string(c.Render()), " ")
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
