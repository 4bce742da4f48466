package fits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCard_RenderLayout(t *testing.T) {
	t.Run("number right-justified to column 30", func(t *testing.T) {
		rec := string(Card{Key: "NAXIS1", Value: "13"}.Render())
		require.Len(t, rec, 80)
		assert.Equal(t, "NAXIS1  =                   13", strings.TrimRight(rec, " "))
	})

	t.Run("string starts at column 11", func(t *testing.T) {
		rec := string(Card{Key: "XTENSION", Value: QuoteString("BINTABLE"), Comment: "binary table"}.Render())
		assert.Equal(t, "XTENSION= 'BINTABLE' / binary table", strings.TrimRight(rec, " "))
	})

	t.Run("commentary text starts at column 9", func(t *testing.T) {
		rec := string(Card{Key: "HISTORY", Value: "created"}.Render())
		assert.Equal(t, "HISTORY created", strings.TrimRight(rec, " "))
	})

	t.Run("overlong card is cut at 80", func(t *testing.T) {
		rec := Card{Key: "COMMENT", Value: strings.Repeat("x", 100)}.Render()
		assert.Len(t, rec, 80)
	})
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, "'A       '", QuoteString("A"))
	assert.Equal(t, "'O''HARA '", QuoteString("O'HARA"))
	assert.Equal(t, "'LONGER THAN EIGHT'", QuoteString("LONGER THAN EIGHT"))
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{true, "T"},
		{false, "F"},
		{42, "42"},
		{int64(-7), "-7"},
		{int32(3), "3"},
		{1.0, "1.00000000000E+00"},
		{float32(2.5), "2.50000E+00"},
		{"x", "'x       '"},
	}
	for _, c := range cases {
		got, err := FormatValue(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := FormatValue([]int{1})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestParseCard_RoundTrip(t *testing.T) {
	cards := []Card{
		{Key: "SIMPLE", Value: "T", Comment: "conforms"},
		{Key: "BITPIX", Value: "-32"},
		{Key: "TTY1", Value: QuoteString("O'HARA / X")},
		{Key: "RAD1", Value: FormatFloat(0.125, 12), Comment: "radius"},
		{Key: "COMMENT", Value: "free text / not a comment"},
	}
	for _, want := range cards {
		got, err := ParseCard(want.Render())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseCard_Errors(t *testing.T) {
	_, err := ParseCard([]byte("short"))
	require.ErrorIs(t, err, ErrBadValue)

	rec := Card{Key: "BAD", Value: "'unterminated"}.Render()
	_, err = ParseCard(rec)
	require.ErrorIs(t, err, ErrBadValue)
}

func TestCard_TypedAccessors(t *testing.T) {
	s, err := Card{Key: "K", Value: "'VROT    '"}.Str()
	require.NoError(t, err)
	assert.Equal(t, "VROT", s)

	_, err = Card{Key: "K", Value: "12"}.Str()
	require.ErrorIs(t, err, ErrNotString)

	n, err := Card{Key: "K", Value: " 12 "}.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	f, err := Card{Key: "K", Value: "1.5D+02"}.Float()
	require.NoError(t, err)
	assert.Equal(t, 150.0, f)

	_, err = Card{Key: "K", Value: "abc"}.Float()
	require.ErrorIs(t, err, ErrNotNumber)

	b, err := Card{Key: "K", Value: "F"}.Bool()
	require.NoError(t, err)
	assert.False(t, b)

	_, err = Card{Key: "K", Value: "1"}.Bool()
	require.ErrorIs(t, err, ErrNotLogical)
}

func TestNormalizeKey(t *testing.T) {
	k, err := NormalizeKey(" tfo1 ")
	require.NoError(t, err)
	assert.Equal(t, "TFO1", k)

	_, err = NormalizeKey("TOOLONGKEY")
	require.ErrorIs(t, err, ErrBadKey)

	_, err = NormalizeKey("A=B")
	require.ErrorIs(t, err, ErrBadKey)
}
