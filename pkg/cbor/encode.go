package cbor

import (
	"bytes"
	"math"
	"math/big"
)

// Encode returns the canonical (shortest-form, definite-length) wire
// encoding of the item (§4.3, §8.1 Shortest-form).
func (it *Item) Encode() []byte {
	var buf bytes.Buffer
	it.encodeTo(&buf)
	return buf.Bytes()
}

func encodeHead(buf *bytes.Buffer, major byte, value uint64) {
	switch {
	case value < 24:
		buf.WriteByte(major<<5 | byte(value))
	case value <= math.MaxUint8:
		buf.WriteByte(major<<5 | 24)
		buf.WriteByte(byte(value))
	case value <= math.MaxUint16:
		buf.WriteByte(major<<5 | 25)
		buf.WriteByte(byte(value >> 8))
		buf.WriteByte(byte(value))
	case value <= math.MaxUint32:
		buf.WriteByte(major<<5 | 26)
		buf.WriteByte(byte(value >> 24))
		buf.WriteByte(byte(value >> 16))
		buf.WriteByte(byte(value >> 8))
		buf.WriteByte(byte(value))
	default:
		buf.WriteByte(major<<5 | 27)
		for i := 7; i >= 0; i-- {
			buf.WriteByte(byte(value >> (8 * uint(i))))
		}
	}
}

func (it *Item) encodeTo(buf *bytes.Buffer) {
	switch it.Kind {
	case KindUint:
		encodeHead(buf, 0, it.Uint)
	case KindNegInt:
		encodeHead(buf, 1, it.Uint)
	case KindBigInt:
		tag := uint64(2)
		if it.Bool {
			tag = 3
		}
		encodeHead(buf, 6, tag)
		b := it.Big.Bytes()
		encodeHead(buf, 2, uint64(len(b)))
		buf.Write(b)
	case KindBytes:
		encodeHead(buf, 2, uint64(len(it.Bytes)))
		buf.Write(it.Bytes)
	case KindText:
		encodeHead(buf, 3, uint64(len(it.Text)))
		buf.WriteString(it.Text)
	case KindArray:
		encodeHead(buf, 4, uint64(len(it.Array)))
		for _, e := range it.Array {
			e.encodeTo(buf)
		}
	case KindMap:
		encodeHead(buf, 5, uint64(len(it.Pairs)))
		for _, p := range it.Pairs {
			p.Key.encodeTo(buf)
			p.Value.encodeTo(buf)
		}
	case KindTag:
		encodeHead(buf, 6, it.Tag)
		it.Content.encodeTo(buf)
	case KindSimple:
		encodeHead(buf, 7, uint64(it.Simple))
	case KindBool:
		if it.Bool {
			buf.WriteByte(7<<5 | 21)
		} else {
			buf.WriteByte(7<<5 | 20)
		}
	case KindNull:
		buf.WriteByte(7<<5 | 22)
	case KindUndefined:
		buf.WriteByte(7<<5 | 23)
	case KindFloat:
		if it.FloatBits == 32 {
			buf.WriteByte(7<<5 | 26)
			bits := math.Float32bits(float32(it.Float))
			buf.WriteByte(byte(bits >> 24))
			buf.WriteByte(byte(bits >> 16))
			buf.WriteByte(byte(bits >> 8))
			buf.WriteByte(byte(bits))
		} else {
			buf.WriteByte(7<<5 | 27)
			bits := math.Float64bits(it.Float)
			for i := 7; i >= 0; i-- {
				buf.WriteByte(byte(bits >> (8 * uint(i))))
			}
		}
	case KindURIItem:
		// RFC 8949 tag 32: text string tagged with 32.
		encodeHead(buf, 6, 32)
		encodeHead(buf, 3, uint64(len(it.Text)))
		buf.WriteString(it.Text)
	default:
		// KindInvalid / zero value: emit nothing. Callers should never
		// encode an item they didn't construct through a constructor.
	}
}

// Equal reports whether two items are structurally equivalent (ignoring
// diagnostic comments and the Inner annotation), used by round-trip tests.
func (it *Item) Equal(other *Item) bool {
	if it == nil || other == nil {
		return it == other
	}
	if it.Kind != other.Kind {
		// KindUint/KindNegInt holding the same mathematical value as a
		// KindBigInt of equal sign/magnitude are still "equal" numerically.
		ib, iok := it.numericValue()
		ob, ook := other.numericValue()
		return iok && ook && ib.Cmp(ob) == 0
	}
	switch it.Kind {
	case KindUint, KindNegInt:
		return it.Uint == other.Uint
	case KindBigInt:
		return it.Bool == other.Bool && it.Big.Cmp(other.Big) == 0
	case KindBytes:
		return bytes.Equal(it.Bytes, other.Bytes)
	case KindText:
		return it.Text == other.Text
	case KindArray:
		if len(it.Array) != len(other.Array) {
			return false
		}
		for i := range it.Array {
			if !it.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(it.Pairs) != len(other.Pairs) {
			return false
		}
		for i := range it.Pairs {
			if !it.Pairs[i].Key.Equal(other.Pairs[i].Key) || !it.Pairs[i].Value.Equal(other.Pairs[i].Value) {
				return false
			}
		}
		return true
	case KindTag:
		return it.Tag == other.Tag && it.Content.Equal(other.Content)
	case KindSimple:
		return it.Simple == other.Simple
	case KindBool:
		return it.Bool == other.Bool
	case KindNull, KindUndefined:
		return true
	case KindFloat:
		return it.Float == other.Float
	case KindURIItem:
		return it.Text == other.Text
	default:
		return false
	}
}

func (it *Item) numericValue() (*big.Int, bool) {
	switch it.Kind {
	case KindUint:
		return new(big.Int).SetUint64(it.Uint), true
	case KindNegInt:
		v := new(big.Int).SetUint64(it.Uint)
		return v.Neg(v.Add(v, big.NewInt(1))), true
	case KindBigInt:
		v := new(big.Int).Set(it.Big)
		if it.Bool {
			v.Neg(v.Add(v, big.NewInt(1)))
		}
		return v, true
	default:
		return nil, false
	}
}
