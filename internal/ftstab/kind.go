package ftstab

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tuannm99/ftstab/internal/alias/bx"
	"github.com/tuannm99/ftstab/internal/fits"
)

// Kind is the on-disk scalar type of a column.
type Kind int

const (
	KindByte    Kind = iota + 1 // 8-bit unsigned
	KindInt32                   // 32-bit signed
	KindFloat32                 // IEEE single
	KindFloat64                 // IEEE double
)

func (k Kind) Valid() bool { return k >= KindByte && k <= KindFloat64 }

// Width is the number of bytes one value occupies in a row.
func (k Kind) Width() int64 {
	switch k {
	case KindByte:
		return 1
	case KindInt32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	}
	return 0
}

// Code is the binary-table format letter written to TFOn.
func (k Kind) Code() string {
	switch k {
	case KindByte:
		return "B"
	case KindInt32:
		return "J"
	case KindFloat32:
		return "E"
	case KindFloat64:
		return "D"
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case KindByte:
		return "byte"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// digits is the number of significant digits used for card text; 0 means
// the kind is written as an integer.
func (k Kind) digits() int {
	switch k {
	case KindFloat32:
		return 6
	case KindFloat64:
		return 12
	}
	return 0
}

// KindFromCode parses a TFOn value such as "D" or "1D".
func KindFromCode(code string) (Kind, error) {
	s := strings.TrimSpace(code)
	c := strings.TrimLeft(s, "0123456789")
	if repeat := s[:len(s)-len(c)]; repeat != "" && repeat != "1" {
		return 0, fmt.Errorf("%w: repeat count in %q", ErrBadKind, code)
	}
	switch strings.ToUpper(c) {
	case "B":
		return KindByte, nil
	case "J":
		return KindInt32, nil
	case "E":
		return KindFloat32, nil
	case "D":
		return KindFloat64, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadKind, code)
}

// ParseKind accepts a format letter or a type name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "byte", "uint8":
		return KindByte, nil
	case "j", "int", "int32":
		return KindInt32, nil
	case "e", "float", "float32":
		return KindFloat32, nil
	case "d", "double", "float64":
		return KindFloat64, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadKind, s)
}

// Value is a scalar held in the representation of its kind.
type Value struct {
	kind Kind
	u8   uint8
	i32  int32
	f32  float32
	f64  float64
}

// NewValue converts f to kind k. Integer kinds round to nearest and clamp to
// their range; NaN becomes zero.
func NewValue(k Kind, f float64) Value {
	v := Value{kind: k}
	switch k {
	case KindByte:
		v.u8 = uint8(clampRound(f, 0, math.MaxUint8))
	case KindInt32:
		v.i32 = int32(clampRound(f, math.MinInt32, math.MaxInt32))
	case KindFloat32:
		v.f32 = float32(f)
	case KindFloat64:
		v.f64 = f
	}
	return v
}

func clampRound(f, lo, hi float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Round(f)
	return math.Max(lo, math.Min(hi, f))
}

// MaxValue is the largest value the kind can hold.
func MaxValue(k Kind) Value {
	switch k {
	case KindByte:
		return Value{kind: k, u8: math.MaxUint8}
	case KindInt32:
		return Value{kind: k, i32: math.MaxInt32}
	case KindFloat32:
		return Value{kind: k, f32: math.MaxFloat32}
	case KindFloat64:
		return Value{kind: k, f64: math.MaxFloat64}
	}
	return Value{}
}

// MinValue is the smallest value the kind can hold.
func MinValue(k Kind) Value {
	switch k {
	case KindByte:
		return Value{kind: k}
	case KindInt32:
		return Value{kind: k, i32: math.MinInt32}
	case KindFloat32:
		return Value{kind: k, f32: -math.MaxFloat32}
	case KindFloat64:
		return Value{kind: k, f64: -math.MaxFloat64}
	}
	return Value{}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Float64() float64 {
	switch v.kind {
	case KindByte:
		return float64(v.u8)
	case KindInt32:
		return float64(v.i32)
	case KindFloat32:
		return float64(v.f32)
	case KindFloat64:
		return v.f64
	}
	return math.NaN()
}

// Encode writes the big-endian representation into dst, which must hold at
// least Kind().Width() bytes.
func (v Value) Encode(dst []byte) {
	switch v.kind {
	case KindByte:
		dst[0] = v.u8
	case KindInt32:
		bx.PutI32(dst, v.i32)
	case KindFloat32:
		bx.PutF32(dst, v.f32)
	case KindFloat64:
		bx.PutF64(dst, v.f64)
	}
}

// DecodeValue reads one value of kind k from src.
func DecodeValue(k Kind, src []byte) Value {
	v := Value{kind: k}
	switch k {
	case KindByte:
		v.u8 = src[0]
	case KindInt32:
		v.i32 = bx.I32(src)
	case KindFloat32:
		v.f32 = bx.F32(src)
	case KindFloat64:
		v.f64 = bx.F64(src)
	}
	return v
}

// Text renders the value for a header card in the kind's precision.
func (v Value) Text() string {
	switch v.kind {
	case KindByte:
		return fits.FormatInt(int64(v.u8))
	case KindInt32:
		return fits.FormatInt(int64(v.i32))
	case KindFloat32:
		return fits.FormatFloat(float64(v.f32), v.kind.digits())
	case KindFloat64:
		return fits.FormatFloat(v.f64, v.kind.digits())
	}
	return ""
}

// ParseValue reads card text back into kind k.
func ParseValue(k Kind, text string) (Value, error) {
	if !k.Valid() {
		return Value{}, ErrBadKind
	}
	s := strings.Map(func(r rune) rune {
		if r == 'D' || r == 'd' {
			return 'E'
		}
		return r
	}, strings.TrimSpace(text))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("parse %s value %q: %w", k, text, err)
	}
	return NewValue(k, f), nil
}

// Less orders values by magnitude with NaN after everything else.
func (v Value) Less(o Value) bool {
	return lessFloat(v.Float64(), o.Float64())
}

func lessFloat(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	return a < b || math.IsNaN(b)
}
