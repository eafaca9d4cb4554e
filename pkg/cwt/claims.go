// Package cwt implements the CBOR Web Token (RFC 8392) claims set and the
// tag-61 wrapper around a COSE message carrying it, layered on pkg/cbor and
// pkg/cose.
package cwt

import (
	"math"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
)

// Registered CWT claim labels (§3.5).
const (
	LabelIss   = 1
	LabelSub   = 2
	LabelAud   = 3
	LabelExp   = 4
	LabelNbf   = 5
	LabelIat   = 6
	LabelCti   = 7
	LabelCnf   = 8
	LabelScope = 9
	LabelNonce = 10
)

// ClaimsSet is an ordered (label, value) map (§3.5). Order is preserved so
// re-encoding matches the source's insertion or wire order (§5 Ordering).
type ClaimsSet struct {
	Pairs []cbor.Pair
}

// NewClaimsSet returns an empty claims set.
func NewClaimsSet() *ClaimsSet { return &ClaimsSet{} }

// Set adds the claim at label, rejecting a label already present in the
// set per §3.5 ("duplicate label within a claims set is rejected"); an
// existing claim is never replaced.
func (c *ClaimsSet) Set(label int64, value *cbor.Item) error {
	key := cbor.NewInt(label)
	for _, p := range c.Pairs {
		if p.Key.Kind == key.Kind && sameLabel(p.Key, key) {
			return cbor.ErrKind(cbor.KindDuplicateLabel)
		}
	}
	c.Pairs = append(c.Pairs, cbor.Pair{Key: key, Value: value})
	return nil
}

func sameLabel(a, b *cbor.Item) bool {
	av, aerr := a.AsInt64()
	bv, berr := b.AsInt64()
	return aerr == nil && berr == nil && av == bv
}

// Get returns the claim at label, if present.
func (c *ClaimsSet) Get(label int64) (*cbor.Item, bool) {
	for _, p := range c.Pairs {
		if v, err := p.Key.AsInt64(); err == nil && v == label {
			return p.Value, true
		}
	}
	return nil, false
}

// SetText sets a text-valued claim (iss, sub, aud, scope).
func (c *ClaimsSet) SetText(label int64, v string) error {
	return c.Set(label, cbor.NewText(v))
}

// Text returns a text-valued claim.
func (c *ClaimsSet) Text(label int64) (string, bool) {
	v, ok := c.Get(label)
	if !ok || v.Kind != cbor.KindText {
		return "", false
	}
	return v.Text, true
}

// SetBytes sets a byte-string-valued claim (cti, Nonce).
func (c *ClaimsSet) SetBytes(label int64, v []byte) error {
	return c.Set(label, cbor.NewBytes(v))
}

// Bytes returns a byte-string-valued claim.
func (c *ClaimsSet) Bytes(label int64) ([]byte, bool) {
	v, ok := c.Get(label)
	if !ok || v.Kind != cbor.KindBytes {
		return nil, false
	}
	return v.Bytes, true
}

// SetDate sets a date claim (exp, nbf, iat) from Unix seconds.
func (c *ClaimsSet) SetDate(label int64, seconds int64) error {
	return c.Set(label, cbor.NewInt(seconds))
}

// maxDateSeconds bounds a date claim so that seconds*1000 (milliseconds)
// never overflows int64 (§8.3, §9 "reject values whose seconds×1000 would
// overflow").
const maxDateSeconds = math.MaxInt64 / 1000

// Date reads a date claim, accepting a non-negative integer, a long-range
// integer bounded to fit int64 seconds, or a float whose fractional part is
// discarded (§4.7), rejecting values at or beyond maxDateSeconds (§8.3).
func (c *ClaimsSet) Date(label int64) (int64, error) {
	v, ok := c.Get(label)
	if !ok {
		return 0, cbor.ErrKind(cbor.KindKeyNotAvailable)
	}
	var seconds int64
	switch v.Kind {
	case cbor.KindUint, cbor.KindNegInt:
		s, err := v.AsInt64()
		if err != nil {
			return 0, err
		}
		seconds = s
	case cbor.KindBigInt:
		big, err := v.AsBigInt()
		if err != nil {
			return 0, err
		}
		if !big.IsInt64() {
			return 0, cbor.ErrKind(cbor.KindOutOfRange)
		}
		seconds = big.Int64()
	case cbor.KindFloat:
		f := v.Float
		if f > math.MaxInt64 || f < math.MinInt64 {
			return 0, cbor.ErrKind(cbor.KindOutOfRange)
		}
		seconds = int64(f)
	default:
		return 0, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	if seconds >= maxDateSeconds || seconds <= -maxDateSeconds {
		return 0, cbor.ErrKind(cbor.KindOutOfRange)
	}
	return seconds, nil
}

// ToItem builds the CBOR map representation of the claims set.
func (c *ClaimsSet) ToItem() *cbor.Item {
	return cbor.NewMap(c.Pairs...)
}

// Encode returns the canonical CBOR encoding of the claims set.
func (c *ClaimsSet) Encode() []byte { return c.ToItem().Encode() }

// ClaimsSetFromItem builds a ClaimsSet from a decoded map item, rejecting
// duplicate labels (§3.5) and enforcing the type of any recognized label
// (§4.7 "per-label type constraints").
func ClaimsSetFromItem(item *cbor.Item) (*ClaimsSet, error) {
	if item.Kind != cbor.KindMap {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	c := &ClaimsSet{}
	seen := make(map[int64]bool)
	for _, p := range item.Pairs {
		label, err := p.Key.AsInt64()
		if err != nil {
			c.Pairs = append(c.Pairs, p)
			continue
		}
		if seen[label] {
			return nil, cbor.ErrKind(cbor.KindDuplicateLabel)
		}
		seen[label] = true
		if err := checkClaimType(label, p.Value); err != nil {
			return nil, err
		}
		c.Pairs = append(c.Pairs, p)
	}
	return c, nil
}

func checkClaimType(label int64, v *cbor.Item) error {
	switch label {
	case LabelIss, LabelSub, LabelAud:
		if v.Kind != cbor.KindText {
			return cbor.ErrKind(cbor.KindUnexpectedKind)
		}
	case LabelExp, LabelNbf, LabelIat:
		switch v.Kind {
		case cbor.KindUint, cbor.KindNegInt, cbor.KindBigInt, cbor.KindFloat:
		default:
			return cbor.ErrKind(cbor.KindUnexpectedKind)
		}
	case LabelCti, LabelNonce:
		if v.Kind != cbor.KindBytes {
			return cbor.ErrKind(cbor.KindUnexpectedKind)
		}
	case LabelCnf:
		if v.Kind != cbor.KindMap {
			return cbor.ErrKind(cbor.KindUnexpectedKind)
		}
	case LabelScope:
		if v.Kind != cbor.KindText && v.Kind != cbor.KindBytes {
			return cbor.ErrKind(cbor.KindUnexpectedKind)
		}
	}
	return nil
}
