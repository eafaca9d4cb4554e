// Package mdoc implements the ISO/IEC 18013-5 issuer-signed document model:
// digest-protected claim items wrapped in tag-24 embedded CBOR, the Mobile
// Security Object that digests them, and the IssuerSigned builder that ties
// them together under a COSE_Sign1.
package mdoc

import (
	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// Tag24 wraps an item's canonical encoding as embedded CBOR (§4.3, GLOSSARY
// "Tag-24 wrapping"), used throughout this package to freeze the bytewise
// representation that digests and signatures are computed over.
func Tag24(item *cbor.Item) *cbor.Item {
	return cbor.NewTag(24, cbor.NewBytes(item.Encode()))
}

// IssuerSignedItem is one claim within a name space (§3.6).
type IssuerSignedItem struct {
	DigestID          uint64
	Random            []byte // >= 16 bytes
	ElementIdentifier string
	ElementValue      *cbor.Item
}

// ToItem builds the IssuerSignedItem's map representation, in the field
// order ISO/IEC 18013-5 examples use.
func (it *IssuerSignedItem) ToItem() *cbor.Item {
	return cbor.NewMap(
		cbor.Pair{Key: cbor.NewText("digestID"), Value: cbor.NewUint(it.DigestID)},
		cbor.Pair{Key: cbor.NewText("random"), Value: cbor.NewBytes(it.Random)},
		cbor.Pair{Key: cbor.NewText("elementIdentifier"), Value: cbor.NewText(it.ElementIdentifier)},
		cbor.Pair{Key: cbor.NewText("elementValue"), Value: it.ElementValue},
	)
}

// ToItemBytes returns the tag-24-wrapped IssuerSignedItemBytes (§3.6).
func (it *IssuerSignedItem) ToItemBytes() *cbor.Item {
	return Tag24(it.ToItem())
}

// IssuerSignedItemFromItem parses an IssuerSignedItem's map representation.
func IssuerSignedItemFromItem(item *cbor.Item) (*IssuerSignedItem, error) {
	if item.Kind != cbor.KindMap {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	digestIDItem, ok := item.MapGetText("digestID")
	if !ok {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	digestID, err := digestIDItem.AsInt64()
	if err != nil || digestID < 0 {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	randomItem, ok := item.MapGetText("random")
	if !ok || randomItem.Kind != cbor.KindBytes {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	elementIDItem, ok := item.MapGetText("elementIdentifier")
	if !ok || elementIDItem.Kind != cbor.KindText {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	elementValue, ok := item.MapGetText("elementValue")
	if !ok {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	return &IssuerSignedItem{
		DigestID:          uint64(digestID),
		Random:            randomItem.Bytes,
		ElementIdentifier: elementIDItem.Text,
		ElementValue:      elementValue,
	}, nil
}

// IssuerSignedItemBytesFromItem unwraps a tag-24 IssuerSignedItemBytes item
// (as produced by the decoder's embedded-CBOR tag processor) back into an
// IssuerSignedItem.
func IssuerSignedItemBytesFromItem(item *cbor.Item) (*IssuerSignedItem, error) {
	if item.Kind != cbor.KindBytes {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	inner, err := cbor.NewDecoder(nil).DecodeBytes(item.Bytes)
	if err != nil {
		return nil, err
	}
	return IssuerSignedItemFromItem(inner)
}

// IssuerNameSpaces maps a name space to its ordered list of
// IssuerSignedItemBytes items (§3.6). Order is insertion order (§5).
type IssuerNameSpaces struct {
	Entries []NameSpaceEntry
}

// NameSpaceEntry is one name space and its claim-item-bytes list.
type NameSpaceEntry struct {
	NameSpace string
	Items     []*cbor.Item // each a tag-24-wrapped IssuerSignedItemBytes
}

// ToItem builds the namespace -> [IssuerSignedItemBytes...] map.
func (ns *IssuerNameSpaces) ToItem() *cbor.Item {
	pairs := make([]cbor.Pair, len(ns.Entries))
	for i, e := range ns.Entries {
		pairs[i] = cbor.Pair{Key: cbor.NewText(e.NameSpace), Value: cbor.NewArray(e.Items...)}
	}
	return cbor.NewMap(pairs...)
}

// DigestIDs maps a digestID to its digest bytes (§3.6).
type DigestIDs struct {
	Entries []DigestEntry
}

// DigestEntry is one (digestID, digest) pair.
type DigestEntry struct {
	DigestID uint64
	Digest   []byte
}

func (d *DigestIDs) ToItem() *cbor.Item {
	pairs := make([]cbor.Pair, len(d.Entries))
	for i, e := range d.Entries {
		pairs[i] = cbor.Pair{Key: cbor.NewUint(e.DigestID), Value: cbor.NewBytes(e.Digest)}
	}
	return cbor.NewMap(pairs...)
}

// Get returns the digest for digestID, if present.
func (d *DigestIDs) Get(digestID uint64) ([]byte, bool) {
	for _, e := range d.Entries {
		if e.DigestID == digestID {
			return e.Digest, true
		}
	}
	return nil, false
}

// ValueDigests maps a name space to its DigestIDs (§3.6).
type ValueDigests struct {
	Entries []ValueDigestEntry
}

// ValueDigestEntry is one name space's digest table.
type ValueDigestEntry struct {
	NameSpace string
	Digests   *DigestIDs
}

func (v *ValueDigests) ToItem() *cbor.Item {
	pairs := make([]cbor.Pair, len(v.Entries))
	for i, e := range v.Entries {
		pairs[i] = cbor.Pair{Key: cbor.NewText(e.NameSpace), Value: e.Digests.ToItem()}
	}
	return cbor.NewMap(pairs...)
}

// Get returns the DigestIDs table for nameSpace, if present.
func (v *ValueDigests) Get(nameSpace string) (*DigestIDs, bool) {
	for _, e := range v.Entries {
		if e.NameSpace == nameSpace {
			return e.Digests, true
		}
	}
	return nil, false
}

// KeyAuthorizations lists the name spaces a device key may sign for
// (ISO/IEC 18013-5 §9.1.2.4); per-element authorizations are not modelled.
type KeyAuthorizations struct {
	NameSpaces []string
}

func (k *KeyAuthorizations) ToItem() *cbor.Item {
	if k == nil || len(k.NameSpaces) == 0 {
		return nil
	}
	items := make([]*cbor.Item, len(k.NameSpaces))
	for i, ns := range k.NameSpaces {
		items[i] = cbor.NewText(ns)
	}
	return cbor.NewMap(cbor.Pair{Key: cbor.NewText("nameSpaces"), Value: cbor.NewArray(items...)})
}

// DeviceKeyInfo carries the device's public key and its authorizations.
type DeviceKeyInfo struct {
	DeviceKey         *cose.Key
	KeyAuthorizations *KeyAuthorizations
}

func (d *DeviceKeyInfo) ToItem() *cbor.Item {
	pairs := []cbor.Pair{{Key: cbor.NewText("deviceKey"), Value: d.DeviceKey.ToItem()}}
	if auth := d.KeyAuthorizations.ToItem(); auth != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewText("keyAuthorizations"), Value: auth})
	}
	return cbor.NewMap(pairs...)
}

// ValidityInfo carries the MSO's signing and validity-window timestamps
// (§4.8 step 6), each a tag-0 (RFC 8949 §3.4.1) date-time string with a Z
// suffix and zero fractional seconds.
type ValidityInfo struct {
	Signed      string
	ValidFrom   string
	ValidUntil  string
	ExpectedUpdate string // optional
}

func dateTimeItem(s string) *cbor.Item {
	return cbor.NewTag(0, cbor.NewText(s))
}

func (v *ValidityInfo) ToItem() *cbor.Item {
	pairs := []cbor.Pair{
		{Key: cbor.NewText("signed"), Value: dateTimeItem(v.Signed)},
		{Key: cbor.NewText("validFrom"), Value: dateTimeItem(v.ValidFrom)},
		{Key: cbor.NewText("validUntil"), Value: dateTimeItem(v.ValidUntil)},
	}
	if v.ExpectedUpdate != "" {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewText("expectedUpdate"), Value: dateTimeItem(v.ExpectedUpdate)})
	}
	return cbor.NewMap(pairs...)
}

// MobileSecurityObject is the ISO/IEC 18013-5 MSO (§3.6).
type MobileSecurityObject struct {
	Version         string
	DigestAlgorithm string
	ValueDigests    *ValueDigests
	DeviceKeyInfo   *DeviceKeyInfo // optional
	DocType         string
	ValidityInfo    *ValidityInfo
}

func (m *MobileSecurityObject) ToItem() *cbor.Item {
	pairs := []cbor.Pair{
		{Key: cbor.NewText("version"), Value: cbor.NewText(m.Version)},
		{Key: cbor.NewText("digestAlgorithm"), Value: cbor.NewText(m.DigestAlgorithm)},
		{Key: cbor.NewText("valueDigests"), Value: m.ValueDigests.ToItem()},
	}
	if m.DeviceKeyInfo != nil {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewText("deviceKeyInfo"), Value: m.DeviceKeyInfo.ToItem()})
	}
	pairs = append(pairs,
		cbor.Pair{Key: cbor.NewText("docType"), Value: cbor.NewText(m.DocType)},
		cbor.Pair{Key: cbor.NewText("validityInfo"), Value: m.ValidityInfo.ToItem()},
	)
	return cbor.NewMap(pairs...)
}

// ToBytes returns the tag-24-wrapped MobileSecurityObjectBytes (§3.6).
func (m *MobileSecurityObject) ToBytes() *cbor.Item {
	return Tag24(m.ToItem())
}

// IssuerSigned is the top-level issuer-signed document (§3.6):
// {? nameSpaces, issuerAuth: COSE_Sign1} whose issuerAuth payload is
// MobileSecurityObjectBytes.
type IssuerSigned struct {
	NameSpaces *IssuerNameSpaces // optional
	IssuerAuth *cose.Sign1Message
}

func (s *IssuerSigned) ToItem() *cbor.Item {
	var pairs []cbor.Pair
	if s.NameSpaces != nil && len(s.NameSpaces.Entries) > 0 {
		pairs = append(pairs, cbor.Pair{Key: cbor.NewText("nameSpaces"), Value: s.NameSpaces.ToItem()})
	}
	pairs = append(pairs, cbor.Pair{Key: cbor.NewText("issuerAuth"), Value: s.IssuerAuth.ToItem()})
	return cbor.NewMap(pairs...)
}

// Encode returns the canonical CBOR encoding of the IssuerSigned document.
func (s *IssuerSigned) Encode() []byte { return s.ToItem().Encode() }
