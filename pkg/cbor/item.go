package cbor

import (
	"math"
	"math/big"
)

// ItemKind discriminates the algebraic CBOR item variants of spec §3.1. The
// source this module is modeled after splits integers into 32/64-bit and
// bignum classes (a Java-ism driven by its numeric tower); Go's int64/
// uint64 already cover that range losslessly, so KindUint/KindNegInt carry
// both the 32- and 64-bit cases and only truly out-of-range magnitudes
// fall through to the bignum path (KindBigInt).
type ItemKind uint8

const (
	KindInvalid ItemKind = iota
	KindUint
	KindNegInt
	KindBigInt // magnitude beyond uint64; Bool distinguishes sign
	KindBytes
	KindText
	KindArray
	KindMap
	KindTag
	KindSimple
	KindBool
	KindNull
	KindUndefined
	KindFloat
)

// Pair is one (key, value) entry of a CBOR map, preserving insertion/wire
// order. Comments are diagnostic-only metadata, never part of the wire form.
type Pair struct {
	Key          *Item
	Value        *Item
	KeyComment   string
	ValueComment string
}

// Item is a CBOR data item plus metadata used only by diagnostic
// prettification. Exactly the fields relevant to Kind are populated; this
// mirrors the source's CBORItem hierarchy collapsed into one discriminated
// struct rather than a deep class tree (§9 Design Notes).
type Item struct {
	Kind ItemKind

	Uint uint64 // KindUint/KindNegInt: value, or magnitude-1 for NegInt
	Big  *big.Int

	Bytes []byte
	Inner []*Item // non-owning diagnostic annotation for embedded CBOR (§4.3)

	Text string

	Array []*Item

	Pairs []Pair

	Tag     uint64
	Content *Item

	Simple uint8

	Bool bool

	Float     float64
	FloatBits uint8 // 32 or 64

	Comment string
}

// Constructors. Each returns a well-formed Item of the named kind.

func NewUint(v uint64) *Item { return &Item{Kind: KindUint, Uint: v} }

// NewNegInt constructs the negative integer -(v+1), i.e. the CBOR major-1
// encoding of v.
func NewNegInt(v uint64) *Item { return &Item{Kind: KindNegInt, Uint: v} }

// NewInt constructs the narrowest of KindUint/KindNegInt for a native
// 64-bit signed value.
func NewInt(v int64) *Item {
	if v >= 0 {
		return NewUint(uint64(v))
	}
	return NewNegInt(uint64(-(v + 1)))
}

// NewBigInt constructs a bignum item (tag 2 for non-negative, tag 3 for
// negative) from an arbitrary-precision integer.
func NewBigInt(v *big.Int) *Item {
	neg := v.Sign() < 0
	mag := new(big.Int).Abs(v)
	if neg {
		mag = new(big.Int).Sub(mag, big.NewInt(1))
	}
	return &Item{Kind: KindBigInt, Big: mag, Bool: neg}
}

func NewBytes(b []byte) *Item { return &Item{Kind: KindBytes, Bytes: b} }

func NewText(s string) *Item { return &Item{Kind: KindText, Text: s} }

func NewArray(items ...*Item) *Item { return &Item{Kind: KindArray, Array: items} }

func NewMap(pairs ...Pair) *Item { return &Item{Kind: KindMap, Pairs: pairs} }

func NewTag(tag uint64, content *Item) *Item { return &Item{Kind: KindTag, Tag: tag, Content: content} }

func NewSimple(v uint8) *Item { return &Item{Kind: KindSimple, Simple: v} }

func NewBool(v bool) *Item { return &Item{Kind: KindBool, Bool: v} }

func NewNull() *Item { return &Item{Kind: KindNull} }

func NewUndefined() *Item { return &Item{Kind: KindUndefined} }

func NewFloat32(v float32) *Item { return &Item{Kind: KindFloat, Float: float64(v), FloatBits: 32} }

func NewFloat64(v float64) *Item { return &Item{Kind: KindFloat, Float: v, FloatBits: 64} }

// WithComment attaches a diagnostic comment and returns the item for chaining.
func (it *Item) WithComment(c string) *Item {
	it.Comment = c
	return it
}

// MapGet returns the value of the first pair whose key matches an
// unsigned-integer label, and whether it was found. Used by header and
// claims-set parsing where keys are small integers.
func (it *Item) MapGet(label uint64) (*Item, bool) {
	if it.Kind != KindMap {
		return nil, false
	}
	for _, p := range it.Pairs {
		if p.Key.Kind == KindUint && p.Key.Uint == label {
			return p.Value, true
		}
	}
	return nil, false
}

// MapGetText returns the value of the first pair whose key is the given
// text-string label.
func (it *Item) MapGetText(label string) (*Item, bool) {
	if it.Kind != KindMap {
		return nil, false
	}
	for _, p := range it.Pairs {
		if p.Key.Kind == KindText && p.Key.Text == label {
			return p.Value, true
		}
	}
	return nil, false
}

// AsInt64 extracts a native int64 from a KindUint/KindNegInt/KindBigInt
// item, erroring with KindOutOfRange if the value doesn't fit.
func (it *Item) AsInt64() (int64, error) {
	switch it.Kind {
	case KindUint:
		if it.Uint > math.MaxInt64 {
			return 0, newErr(KindOutOfRange, -1, "unsigned value %d overflows int64", it.Uint)
		}
		return int64(it.Uint), nil
	case KindNegInt:
		if it.Uint > math.MaxInt64 {
			return 0, newErr(KindOutOfRange, -1, "negative value -%d-1 overflows int64", it.Uint)
		}
		return -int64(it.Uint) - 1, nil
	case KindBigInt:
		return 0, newErr(KindOutOfRange, -1, "bignum does not fit in int64")
	default:
		return 0, newErr(KindUnexpectedKind, -1, "expected integer, got %v", it.Kind)
	}
}

// AsBigInt widens any integer item to *big.Int.
func (it *Item) AsBigInt() (*big.Int, error) {
	switch it.Kind {
	case KindUint:
		return new(big.Int).SetUint64(it.Uint), nil
	case KindNegInt:
		v := new(big.Int).SetUint64(it.Uint)
		v.Add(v, big.NewInt(1))
		return v.Neg(v), nil
	case KindBigInt:
		v := new(big.Int).Set(it.Big)
		if it.Bool {
			v.Add(v, big.NewInt(1))
			v.Neg(v)
		}
		return v, nil
	default:
		return nil, newErr(KindUnexpectedKind, -1, "expected integer, got %v", it.Kind)
	}
}
