package fits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tuannm99/ftstab/internal/storage"
)

var (
	ErrBadKey      = errors.New("fits: invalid keyword")
	ErrBadValue    = errors.New("fits: invalid value")
	ErrNotString   = errors.New("fits: value is not a string")
	ErrNotNumber   = errors.New("fits: value is not a number")
	ErrNotLogical  = errors.New("fits: value is not a logical")
	ErrUnsupported = errors.New("fits: unsupported value type")
)

const (
	keyWidth     = 8
	valueColumn  = 10 // 0-based start of the value field
	fixedEnd     = 30 // numbers and logicals end in column 30
	minStringLen = 8
)

// Card is one 80-column header record. Value holds the value field text as
// it appears on disk (strings keep their quotes); commentary cards keep their
// free text in Value.
type Card struct {
	Key     string
	Value   string
	Comment string
}

// IsCommentary reports whether key names an append-only card.
func IsCommentary(key string) bool {
	switch strings.TrimSpace(key) {
	case "", "COMMENT", "HISTORY":
		return true
	}
	return false
}

// NormalizeKey upper-cases key and checks it against the FITS keyword rules.
func NormalizeKey(key string) (string, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if len(k) > keyWidth {
		return "", fmt.Errorf("%w: %q longer than %d", ErrBadKey, key, keyWidth)
	}
	for _, r := range k {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("%w: %q", ErrBadKey, key)
		}
	}
	return k, nil
}

// QuoteString renders s as a FITS string value: quoted, inner quotes
// doubled, padded to at least eight characters.
func QuoteString(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	if len(s) < minStringLen {
		s += strings.Repeat(" ", minStringLen-len(s))
	}
	return "'" + s + "'"
}

func FormatBool(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

func FormatInt(v int64) string { return strconv.FormatInt(v, 10) }

// FormatFloat renders v in exponential notation with digits significant
// digits.
func FormatFloat(v float64, digits int) string {
	if digits < 1 {
		digits = 1
	}
	return strconv.FormatFloat(v, 'E', digits-1, 64)
}

// FormatValue renders a Go value the way it is written to a card.
// float64 values get 12 significant digits.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return QuoteString(x), nil
	case bool:
		return FormatBool(x), nil
	case int:
		return FormatInt(int64(x)), nil
	case int32:
		return FormatInt(int64(x)), nil
	case int64:
		return FormatInt(x), nil
	case float32:
		return FormatFloat(float64(x), 6), nil
	case float64:
		return FormatFloat(x, 12), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// Render lays the card out on exactly 80 columns.
func (c Card) Render() []byte {
	out := make([]byte, 0, storage.CardSize)
	out = append(out, fmt.Sprintf("%-*s", keyWidth, c.Key)...)

	switch {
	case c.Key == "END":
	case IsCommentary(c.Key):
		out = append(out, c.Value...)
	default:
		out = append(out, '=', ' ')
		if strings.HasPrefix(c.Value, "'") {
			out = append(out, c.Value...)
		} else {
			out = append(out, fmt.Sprintf("%*s", fixedEnd-valueColumn, c.Value)...)
		}
		if c.Comment != "" {
			out = append(out, " / "...)
			out = append(out, c.Comment...)
		}
	}

	if len(out) > storage.CardSize {
		out = out[:storage.CardSize]
	}
	for len(out) < storage.CardSize {
		out = append(out, ' ')
	}
	return out
}

// ParseCard decodes one 80-byte record.
func ParseCard(rec []byte) (Card, error) {
	if len(rec) != storage.CardSize {
		return Card{}, fmt.Errorf("%w: card of %d bytes", ErrBadValue, len(rec))
	}
	key := strings.TrimRight(string(rec[:keyWidth]), " ")

	if IsCommentary(key) || key == "END" || string(rec[keyWidth:valueColumn]) != "= " {
		return Card{Key: key, Value: strings.TrimRight(string(rec[keyWidth:]), " ")}, nil
	}

	field := string(rec[valueColumn:])
	trimmed := strings.TrimLeft(field, " ")
	if strings.HasPrefix(trimmed, "'") {
		end := closingQuote(trimmed)
		if end < 0 {
			return Card{}, fmt.Errorf("%w: unterminated string in %s", ErrBadValue, key)
		}
		return Card{
			Key:     key,
			Value:   trimmed[:end+1],
			Comment: commentOf(trimmed[end+1:]),
		}, nil
	}

	value, rest, _ := strings.Cut(field, "/")
	c := Card{Key: key, Value: strings.TrimSpace(value)}
	if rest != "" {
		c.Comment = strings.TrimSpace(rest)
	}
	return c, nil
}

// closingQuote returns the index of the quote ending the string that starts
// at s[0], skipping doubled quotes.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i
	}
	return -1
}

func commentOf(rest string) string {
	_, c, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return strings.TrimSpace(c)
}

// IsBlank reports whether the card carries nothing at all.
func (c Card) IsBlank() bool {
	return c.Key == "" && strings.TrimSpace(c.Value) == "" && c.Comment == ""
}

// Str returns the unquoted string value with trailing blanks removed.
func (c Card) Str() (string, error) {
	v := c.Value
	if len(v) < 2 || v[0] != '\'' || v[len(v)-1] != '\'' {
		return "", fmt.Errorf("%w: %s = %s", ErrNotString, c.Key, v)
	}
	inner := strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	return strings.TrimRight(inner, " "), nil
}

func (c Card) Int() (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %s", ErrNotNumber, c.Key, c.Value)
	}
	return n, nil
}

// Float accepts both E and the Fortran D exponent.
func (c Card) Float() (float64, error) {
	s := strings.TrimSpace(c.Value)
	s = strings.Map(func(r rune) rune {
		if r == 'D' || r == 'd' {
			return 'E'
		}
		return r
	}, s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %s", ErrNotNumber, c.Key, c.Value)
	}
	return f, nil
}

func (c Card) Bool() (bool, error) {
	switch strings.TrimSpace(c.Value) {
	case "T":
		return true, nil
	case "F":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s = %s", ErrNotLogical, c.Key, c.Value)
}
