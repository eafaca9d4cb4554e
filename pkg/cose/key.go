package cose

import "github.com/tradeverifyd/cbor-cose-go/pkg/cbor"

// COSE key type identifiers (§3.4).
const (
	KtyOKP       = 1
	KtyEC2       = 2
	KtyRSA       = 3
	KtySymmetric = 4
	KtyHSSLMS    = 5
	KtyWalnutDSA = 6
)

// COSE key common and EC2/OKP-specific labels.
const (
	keyLabelKty     = 1
	keyLabelKid     = 2
	keyLabelAlg     = 3
	keyLabelKeyOps  = 4
	keyLabelBaseIV  = 5
	ec2LabelCrv     = -1
	ec2LabelX       = -2
	ec2LabelY       = -3
	ec2LabelD       = -4
	okpLabelCrv     = -1
	okpLabelX       = -2
	okpLabelD       = -4
	symLabelKValue  = -1
)

// EC2/OKP curve identifiers (RFC 9053 §7.1/§7.2).
const (
	CrvP256   = 1
	CrvP384   = 2
	CrvP521   = 3
	CrvX25519 = 4
	CrvX448   = 5
	CrvEd25519 = 6
	CrvEd448   = 7
)

// Key is a COSE_Key (§3.4). Only the fields relevant to the populated Kty
// are meaningful. Y may be a raw coordinate (YIsBool false) or a
// compressed-point sign bit (YIsBool true) per the open question in
// spec §9; this implementation accepts both directions.
type Key struct {
	Kty     int64
	Kid     []byte
	Alg     *int64
	KeyOps  []int64
	BaseIV  []byte

	// EC2 / OKP
	Crv    int64
	X      []byte
	Y      []byte
	YBool  *bool
	YIsBool bool
	D      []byte // private, either kty

	// RSA / Symmetric / HSS-LMS / WalnutDSA are modeled only to the
	// extent the IANA registry assigns parameters; no algorithm in this
	// module operates on them (spec §3.4, Non-goals).
	RSAModulus  []byte
	RSAExponent []byte
	SymK        []byte
}

// IsPrivate reports whether the private-key field for Kty is present (§3.4).
func (k *Key) IsPrivate() bool {
	switch k.Kty {
	case KtyEC2, KtyOKP:
		return len(k.D) > 0
	case KtySymmetric:
		return len(k.SymK) > 0
	default:
		return false
	}
}

// NewEC2Key constructs an EC2 public (or, with d, private) key.
func NewEC2Key(crv int64, x, y, d []byte) *Key {
	return &Key{Kty: KtyEC2, Crv: crv, X: x, Y: y, D: d}
}

// ToItem encodes the key as a CBOR map item.
func (k *Key) ToItem() *cbor.Item {
	pairs := []cbor.Pair{{Key: cbor.NewUint(keyLabelKty), Value: cbor.NewInt(k.Kty)}}
	if k.Kid != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(keyLabelKid), Value: cbor.NewBytes(k.Kid)})
	}
	if k.Alg != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(keyLabelAlg), Value: cbor.NewInt(*k.Alg)})
	}
	if len(k.KeyOps) > 0 {
		items := make([]*cbor.Item, len(k.KeyOps))
		for i, op := range k.KeyOps {
			items[i] = cbor.NewInt(op)
		}
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(keyLabelKeyOps), Value: cbor.NewArray(items...)})
	}
	if k.BaseIV != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(keyLabelBaseIV), Value: cbor.NewBytes(k.BaseIV)})
	}
	switch k.Kty {
	case KtyEC2:
		pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(ec2LabelCrv), Value: cbor.NewInt(k.Crv)})
		pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(ec2LabelX), Value: cbor.NewBytes(k.X)})
		if k.YIsBool {
			b := false
			if k.YBool != nil {
				b = *k.YBool
			}
			pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(ec2LabelY), Value: cbor.NewBool(b)})
		} else if k.Y != nil {
			pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(ec2LabelY), Value: cbor.NewBytes(k.Y)})
		}
		if k.D != nil {
			pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(ec2LabelD), Value: cbor.NewBytes(k.D)})
		}
	case KtyOKP:
		pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(okpLabelCrv), Value: cbor.NewInt(k.Crv)})
		pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(okpLabelX), Value: cbor.NewBytes(k.X)})
		if k.D != nil {
			pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(okpLabelD), Value: cbor.NewBytes(k.D)})
		}
	case KtySymmetric:
		if k.SymK != nil {
			pairs = append(pairs, cbor.Pair{Key: cbor.NewInt(symLabelKValue), Value: cbor.NewBytes(k.SymK)})
		}
	}
	return cbor.NewMap(pairs...)
}

// Encode returns the canonical CBOR encoding of the key.
func (k *Key) Encode() []byte { return k.ToItem().Encode() }

// KeyFromItem builds a Key from a decoded CBOR map item. Labels -1..-4
// are interpreted per-kty (EC2 crv/x/y/d, OKP crv/x/d, Symmetric K), so
// kty is resolved in a first pass before the kty-specific fields.
func KeyFromItem(item *cbor.Item) (*Key, error) {
	if item.Kind != cbor.KindMap {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	k := &Key{}
	for _, p := range item.Pairs {
		if p.Key.Kind == cbor.KindUint && p.Key.Uint == keyLabelKty {
			v, err := p.Value.AsInt64()
			if err != nil {
				return nil, err
			}
			k.Kty = v
			break
		}
	}

	for _, p := range item.Pairs {
		var label int64
		switch p.Key.Kind {
		case cbor.KindUint:
			label = int64(p.Key.Uint)
		case cbor.KindNegInt, cbor.KindBigInt:
			v, err := p.Key.AsInt64()
			if err != nil {
				continue
			}
			label = v
		default:
			continue
		}
		switch label {
		case keyLabelKty:
			// handled above
		case keyLabelKid:
			k.Kid = p.Value.Bytes
		case keyLabelAlg:
			v, err := p.Value.AsInt64()
			if err != nil {
				return nil, err
			}
			k.Alg = &v
		case keyLabelBaseIV:
			k.BaseIV = p.Value.Bytes
		case keyLabelKeyOps:
			ops := make([]int64, len(p.Value.Array))
			for i, item := range p.Value.Array {
				v, err := item.AsInt64()
				if err != nil {
					return nil, err
				}
				ops[i] = v
			}
			k.KeyOps = ops
		case -1:
			switch k.Kty {
			case KtyEC2, KtyOKP:
				v, err := p.Value.AsInt64()
				if err != nil {
					return nil, err
				}
				k.Crv = v
			case KtySymmetric:
				k.SymK = p.Value.Bytes
			}
		case -2:
			if k.Kty == KtyEC2 || k.Kty == KtyOKP {
				k.X = p.Value.Bytes
			}
		case -3:
			if k.Kty == KtyEC2 {
				if p.Value.Kind == cbor.KindBool {
					k.YIsBool = true
					b := p.Value.Bool
					k.YBool = &b
				} else {
					k.Y = p.Value.Bytes
				}
			}
		case -4:
			if k.Kty == KtyEC2 || k.Kty == KtyOKP {
				k.D = p.Value.Bytes
			}
		}
	}
	return k, nil
}
