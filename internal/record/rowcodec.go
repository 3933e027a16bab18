// Package record defines row schemas and the fixed-size row encoding
// stored inside record-file slots.
//
// Grounded on the teacher repo's internal/storage/rowcodec.go (same author,
// same nullmap + LE field layout), moved into its own package since the
// teacher's internal/record package already held Schema/Column but had
// left EncodeRow/DecodeRow unimplemented. The three schema-mismatch error
// cases are split out from the teacher's single ErrSchemaMismatch to match
// the granularity its own rowcodec_test.go expects.
package record

import (
	"errors"
	"math"

	"github.com/tuannm99/rmdb/internal/alias/bx"
)

var (
	ErrSchemaMismatch             = errors.New("rowcodec: schema/values mismatch")
	ErrSchemaMismatchNotAllowNull = errors.New("rowcodec: value is nil for non-nullable column")
	ErrSchemaMismatchNotInt32     = errors.New("rowcodec: value is not convertible to the column's type")
	ErrBadBuffer                  = errors.New("rowcodec: buffer underflow/overflow")
	ErrVarTooLong                 = errors.New("rowcodec: column width exceeds u16")
	ErrWidthNotSet                = errors.New("rowcodec: ColText/ColBytes column has no declared width")
	ErrUnsupportedType            = errors.New("rowcodec: unsupported type")
)

// EncodeRow serializes values against schema s into a row payload of
// exactly s.RowSize() bytes:
//
//	[nullmap: ceil(N/8) bytes, bit=1 => NULL] [field0] [field1] ...
//
// ColText/ColBytes fields are stored as a u16 LE length prefix followed by
// exactly col.Width bytes: the value zero-padded if shorter than Width, or
// truncated to Width (with the prefix recording the truncated length) if
// longer, so every encoded row is the same size regardless of input.
func EncodeRow(s Schema, values []any) ([]byte, error) {
	nc := s.NumCols()
	if len(values) != nc {
		return nil, ErrSchemaMismatch
	}

	nbBytes := (nc + 7) / 8
	out := make([]byte, nbBytes)

	for i, col := range s.Cols {
		v := values[i]
		if v == nil {
			if !col.Nullable {
				return nil, ErrSchemaMismatchNotAllowNull
			}
			out[i/8] |= 1 << (uint(i) & 7)
			continue
		}

		switch col.Type {
		case ColInt32:
			x, ok := asInt32(v)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			var b [4]byte
			bx.PutU32(b[:], uint32(x))
			out = append(out, b[:]...)

		case ColInt64:
			x, ok := asInt64(v)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			var b [8]byte
			bx.PutU64(b[:], uint64(x))
			out = append(out, b[:]...)

		case ColBool:
			x, ok := v.(bool)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}

		case ColFloat64:
			x, ok := asFloat64(v)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			var b [8]byte
			bx.PutU64(b[:], math.Float64bits(x))
			out = append(out, b[:]...)

		case ColText:
			str, ok := v.(string)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			padded, l, err := padOrTruncate([]byte(str), col.Width)
			if err != nil {
				return nil, err
			}
			var lb [2]byte
			bx.PutU16(lb[:], l)
			out = append(out, lb[:]...)
			out = append(out, padded...)

		case ColBytes:
			bs, ok := v.([]byte)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			padded, l, err := padOrTruncate(bs, col.Width)
			if err != nil {
				return nil, err
			}
			var lb [2]byte
			bx.PutU16(lb[:], l)
			out = append(out, lb[:]...)
			out = append(out, padded...)

		default:
			return nil, ErrUnsupportedType
		}
	}
	return out, nil
}

// padOrTruncate fits bs into exactly width bytes: shorter values are
// zero-padded, longer ones truncated. It returns the fixed-width buffer
// plus the meaningful length (capped to width) to store in the u16 prefix,
// so DecodeRow knows how much of the padding to strip back off.
func padOrTruncate(bs []byte, width int) ([]byte, uint16, error) {
	if width <= 0 {
		return nil, 0, ErrWidthNotSet
	}
	if width > math.MaxUint16 {
		return nil, 0, ErrVarTooLong
	}
	out := make([]byte, width)
	n := copy(out, bs)
	return out, uint16(n), nil
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(s Schema, buf []byte) ([]any, error) {
	nc := s.NumCols()
	nbBytes := (nc + 7) / 8
	if len(buf) < nbBytes {
		return nil, ErrBadBuffer
	}
	nullmap := buf[:nbBytes]
	i := nbBytes

	out := make([]any, nc)
	for colIdx, col := range s.Cols {
		isNull := (nullmap[colIdx/8]>>(uint(colIdx)&7))&1 == 1
		if isNull {
			out[colIdx] = nil
			continue
		}

		switch col.Type {
		case ColInt32:
			if i+4 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = int32(bx.U32(buf[i : i+4]))
			i += 4

		case ColInt64:
			if i+8 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = int64(bx.U64(buf[i : i+8]))
			i += 8

		case ColBool:
			if i+1 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = buf[i] != 0
			i++

		case ColFloat64:
			if i+8 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = math.Float64frombits(bx.U64(buf[i : i+8]))
			i += 8

		case ColText:
			if i+2 > len(buf) {
				return nil, ErrBadBuffer
			}
			l := int(bx.U16(buf[i : i+2]))
			i += 2
			if col.Width <= 0 {
				return nil, ErrWidthNotSet
			}
			if i+col.Width > len(buf) || l > col.Width {
				return nil, ErrBadBuffer
			}
			out[colIdx] = string(buf[i : i+l])
			i += col.Width

		case ColBytes:
			if i+2 > len(buf) {
				return nil, ErrBadBuffer
			}
			l := int(bx.U16(buf[i : i+2]))
			i += 2
			if col.Width <= 0 {
				return nil, ErrWidthNotSet
			}
			if i+col.Width > len(buf) || l > col.Width {
				return nil, ErrBadBuffer
			}
			cp := make([]byte, l)
			copy(cp, buf[i:i+l])
			out[colIdx] = cp
			i += col.Width

		default:
			return nil, ErrUnsupportedType
		}
	}
	return out, nil
}

func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
