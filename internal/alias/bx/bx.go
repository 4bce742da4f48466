// stand for bytes helper
package bx

import (
	"encoding/binary"
	"math"
)

// FITS stores every multi-byte scalar big-endian.
var BE = binary.BigEndian

// --- BE: read ---
func U16(b []byte) uint16  { return BE.Uint16(b) }
func U32(b []byte) uint32  { return BE.Uint32(b) }
func U64(b []byte) uint64  { return BE.Uint64(b) }
func I32(b []byte) int32   { return int32(U32(b)) }
func I64(b []byte) int64   { return int64(U64(b)) }
func F32(b []byte) float32 { return math.Float32frombits(U32(b)) }
func F64(b []byte) float64 { return math.Float64frombits(U64(b)) }

// --- BE: write ---
func PutU16(b []byte, v uint16)  { BE.PutUint16(b, v) }
func PutU32(b []byte, v uint32)  { BE.PutUint32(b, v) }
func PutU64(b []byte, v uint64)  { BE.PutUint64(b, v) }
func PutI32(b []byte, v int32)   { PutU32(b, uint32(v)) }
func PutF32(b []byte, v float32) { PutU32(b, math.Float32bits(v)) }
func PutF64(b []byte, v float64) { PutU64(b, math.Float64bits(v)) }

// --- BE: At (offset) ---
func U32At(b []byte, off int) uint32       { return U32(b[off:]) }
func U64At(b []byte, off int) uint64       { return U64(b[off:]) }
func PutU32At(b []byte, off int, v uint32) { PutU32(b[off:], v) }
func PutU64At(b []byte, off int, v uint64) { PutU64(b[off:], v) }
