// Package cose implements the COSE (RFC 9052/9053/9360) object model and
// ECDSA signing protocol on top of pkg/cbor: Sig_structure derivation,
// protected-header serialization, and COSE_Sign/COSE_Sign1 signing and
// verification.
package cose

import "github.com/tradeverifyd/cbor-cose-go/pkg/cbor"

// Registered COSE header labels (§3.2).
const (
	LabelAlg         = 1
	LabelCrit        = 2
	LabelContentType = 3
	LabelKid         = 4
	LabelIV          = 5
	LabelPartialIV   = 6
	LabelX5Chain     = 33
)

// Header is a COSE protected-or-unprotected header map (§3.2). Extra
// carries application-extension labels (registered numeric or text-string)
// this type doesn't model explicitly, preserving their insertion order.
type Header struct {
	Alg         *cbor.Item // int or text, per §3.2
	Crit        []int64
	ContentType *cbor.Item // int or text
	Kid         []byte
	IV          []byte
	PartialIV   []byte
	X5Chain     [][]byte // one or more DER certificates

	Extra []cbor.Pair
}

// NewHeader returns an empty header.
func NewHeader() *Header { return &Header{} }

// SetAlgID sets alg to a registered integer algorithm identifier.
func (h *Header) SetAlgID(id int64) *Header {
	h.Alg = cbor.NewInt(id)
	return h
}

// SetAlgName sets alg to a named algorithm, resolving it through the
// algorithm table (§4.5: "accepts either the integer identifier ... or a
// known name").
func (h *Header) SetAlgName(name string) (*Header, error) {
	alg, ok := AlgorithmByName(name)
	if !ok {
		return nil, cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
	}
	return h.SetAlgID(alg.ID), nil
}

// AlgID resolves the alg header to an integer identifier, accepting a
// text name as a fallback (§4.5).
func (h *Header) AlgID() (int64, bool) {
	if h == nil || h.Alg == nil {
		return 0, false
	}
	switch h.Alg.Kind {
	case cbor.KindUint, cbor.KindNegInt:
		v, err := h.Alg.AsInt64()
		return v, err == nil
	case cbor.KindText:
		alg, ok := AlgorithmByName(h.Alg.Text)
		if !ok {
			return 0, false
		}
		return alg.ID, true
	default:
		return 0, false
	}
}

func (h *Header) isEmpty() bool {
	return h == nil || (h.Alg == nil && len(h.Crit) == 0 && h.ContentType == nil &&
		h.Kid == nil && h.IV == nil && h.PartialIV == nil && h.X5Chain == nil && len(h.Extra) == 0)
}

// toItem builds the CBOR map representation of the header, in the field
// order listed below (stable, matching the order builders typically set
// fields, see §4.5 "Header builders").
func (h *Header) toItem() *cbor.Item {
	var pairs []cbor.Pair
	if h == nil {
		return cbor.NewMap()
	}
	if h.Alg != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelAlg), Value: h.Alg})
	}
	if len(h.Crit) > 0 {
		items := make([]*cbor.Item, len(h.Crit))
		for i, c := range h.Crit {
			items[i] = cbor.NewInt(c)
		}
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelCrit), Value: cbor.NewArray(items...)})
	}
	if h.ContentType != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelContentType), Value: h.ContentType})
	}
	if h.Kid != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelKid), Value: cbor.NewBytes(h.Kid)})
	}
	if h.IV != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelIV), Value: cbor.NewBytes(h.IV)})
	}
	if h.PartialIV != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelPartialIV), Value: cbor.NewBytes(h.PartialIV)})
	}
	if len(h.X5Chain) == 1 {
		// RFC 9360 §2: a single-entry chain is a bare byte string.
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelX5Chain), Value: cbor.NewBytes(h.X5Chain[0])})
	} else if len(h.X5Chain) > 1 {
		items := make([]*cbor.Item, len(h.X5Chain))
		for i, c := range h.X5Chain {
			items[i] = cbor.NewBytes(c)
		}
		pairs = append(pairs, cbor.Pair{Key: cbor.NewUint(LabelX5Chain), Value: cbor.NewArray(items...)})
	}
	pairs = append(pairs, h.Extra...)
	return cbor.NewMap(pairs...)
}

// MarshalProtected serializes the header as the wire byte string of a
// protected header: empty when the header has no entries, never the
// bytes of an encoded empty map (§3.2). This also holds for a header
// parsed from an encoded empty map; the source form is not kept.
func (h *Header) MarshalProtected() []byte {
	if h.isEmpty() {
		return []byte{}
	}
	return h.toItem().Encode()
}

// MarshalUnprotected returns the bare-map item for an unprotected header.
func (h *Header) MarshalUnprotected() *cbor.Item {
	return h.toItem()
}

// ParseProtectedHeader decodes a protected header's wire byte string.
// An empty byte string decodes to an empty Header without attempting to
// parse it as a CBOR map (§3.2).
func ParseProtectedHeader(b []byte) (*Header, bool, error) {
	if len(b) == 0 {
		return &Header{}, false, nil
	}
	item, err := cbor.NewDecoder(byteReader(b)).Decode()
	if err != nil {
		return nil, false, err
	}
	h, err := headerFromMapItem(item)
	return h, true, err
}

// ParseUnprotectedHeader builds a Header from a bare map item.
func ParseUnprotectedHeader(item *cbor.Item) (*Header, error) {
	if item == nil {
		return &Header{}, nil
	}
	return headerFromMapItem(item)
}

func headerFromMapItem(item *cbor.Item) (*Header, error) {
	if item.Kind != cbor.KindMap {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	h := &Header{}
	for _, p := range item.Pairs {
		if p.Key.Kind != cbor.KindUint {
			h.Extra = append(h.Extra, p)
			continue
		}
		switch p.Key.Uint {
		case LabelAlg:
			h.Alg = p.Value
		case LabelCrit:
			for _, c := range p.Value.Array {
				v, err := c.AsInt64()
				if err != nil {
					return nil, err
				}
				h.Crit = append(h.Crit, v)
			}
		case LabelContentType:
			h.ContentType = p.Value
		case LabelKid:
			h.Kid = p.Value.Bytes
		case LabelIV:
			h.IV = p.Value.Bytes
		case LabelPartialIV:
			h.PartialIV = p.Value.Bytes
		case LabelX5Chain:
			if p.Value.Kind == cbor.KindBytes {
				h.X5Chain = [][]byte{p.Value.Bytes}
			} else if p.Value.Kind == cbor.KindArray {
				for _, c := range p.Value.Array {
					h.X5Chain = append(h.X5Chain, c.Bytes)
				}
			} else {
				return nil, cbor.ErrKind(cbor.KindCertificateEncoding)
			}
		default:
			h.Extra = append(h.Extra, p)
		}
	}
	return h, nil
}
