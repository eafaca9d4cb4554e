package mdoc

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// ClaimElement is one element of a name space's claim map, carried as an
// ordered slice (not a Go map) so digest-ID assignment is deterministic
// across builds (§5 Ordering: "within each name space in the order of
// claim keys").
type ClaimElement struct {
	ElementIdentifier string
	ElementValue      *cbor.Item
}

// NamespaceClaims is one name space's ordered claim elements.
type NamespaceClaims struct {
	NameSpace string
	Elements  []ClaimElement
}

// IssuerSignedBuilder builds an IssuerSigned document per ISO/IEC 18013-5
// §8.3.2.1.2.2 / §9.1.2 (§4.8).
type IssuerSignedBuilder struct {
	DocType      string
	Claims       []NamespaceClaims
	ValidityInfo *ValidityInfo

	DeviceKey         *cose.Key
	KeyAuthorizations *KeyAuthorizations

	IssuerKey   *cose.Key
	Certificates [][]byte // DER, leaf-first; required, non-empty

	// RandomSource overrides the 16-byte per-item random source, for
	// deterministic tests; defaults to crypto/rand.Reader.
	RandomSource func([]byte) error
}

func defaultRandom(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// Build runs the 8-step procedure of §4.8, validating preconditions before
// any signing attempt (§4.8 Failure).
func (b *IssuerSignedBuilder) Build() (*IssuerSigned, error) {
	if b.DocType == "" {
		return nil, cbor.ErrKind(cbor.KindIllegalState)
	}
	if b.IssuerKey == nil {
		return nil, cbor.ErrKind(cbor.KindKeyNotAvailable)
	}
	if len(b.Certificates) == 0 {
		return nil, cbor.ErrKind(cbor.KindCertificateEncoding)
	}
	alg, err := issuerAlgorithm(b.IssuerKey)
	if err != nil {
		return nil, err
	}

	randSource := b.RandomSource
	if randSource == nil {
		randSource = defaultRandom
	}

	nameSpaces := &IssuerNameSpaces{}
	valueDigests := &ValueDigests{}
	var digestID uint64

	for _, ns := range b.Claims {
		var itemBytesList []*cbor.Item
		digests := &DigestIDs{}
		for _, elem := range ns.Elements {
			random := make([]byte, 16)
			if err := randSource(random); err != nil {
				return nil, err
			}
			item := &IssuerSignedItem{
				DigestID:          digestID,
				Random:            random,
				ElementIdentifier: elem.ElementIdentifier,
				ElementValue:      elem.ElementValue,
			}
			itemBytes := item.ToItemBytes()
			itemBytesList = append(itemBytesList, itemBytes)

			sum := sha256.Sum256(itemBytes.Encode())
			digests.Entries = append(digests.Entries, DigestEntry{DigestID: digestID, Digest: sum[:]})

			digestID++
		}
		nameSpaces.Entries = append(nameSpaces.Entries, NameSpaceEntry{NameSpace: ns.NameSpace, Items: itemBytesList})
		valueDigests.Entries = append(valueDigests.Entries, ValueDigestEntry{NameSpace: ns.NameSpace, Digests: digests})
	}

	var deviceKeyInfo *DeviceKeyInfo
	if b.DeviceKey != nil {
		authorizedNameSpaces := make([]string, len(b.Claims))
		for i, ns := range b.Claims {
			authorizedNameSpaces[i] = ns.NameSpace
		}
		keyAuth := b.KeyAuthorizations
		if keyAuth == nil {
			keyAuth = &KeyAuthorizations{NameSpaces: authorizedNameSpaces}
		}
		deviceKeyInfo = &DeviceKeyInfo{DeviceKey: b.DeviceKey, KeyAuthorizations: keyAuth}
	}

	mso := &MobileSecurityObject{
		Version:         "1.0",
		DigestAlgorithm: "SHA-256",
		ValueDigests:    valueDigests,
		DeviceKeyInfo:   deviceKeyInfo,
		DocType:         b.DocType,
		ValidityInfo:    b.ValidityInfo,
	}

	protected := cose.NewHeader().SetAlgID(alg.ID)
	unprotected := cose.NewHeader()
	unprotected.X5Chain = b.Certificates

	issuerAuth := cose.NewSign1Message(protected, unprotected, mso.ToBytes().Encode())
	if err := issuerAuth.Sign(b.IssuerKey, alg, nil); err != nil {
		return nil, err
	}

	return &IssuerSigned{NameSpaces: nameSpaces, IssuerAuth: issuerAuth}, nil
}

// issuerAlgorithm resolves the signing algorithm per §4.8 step 8: prefer
// the key's explicit alg, otherwise map crv (only the ECDSA family is
// functional per spec Non-goals; Ed25519/Ed448 have no entry in the
// algorithm table, so a key on those curves without an explicit alg
// reports UnsupportedCurve).
func issuerAlgorithm(key *cose.Key) (cose.Algorithm, error) {
	if key.Alg != nil {
		alg, ok := cose.AlgorithmByID(*key.Alg)
		if !ok {
			return cose.Algorithm{}, cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
		}
		return alg, nil
	}
	alg, ok := cose.AlgorithmByCurve(key.Crv)
	if !ok {
		return cose.Algorithm{}, cbor.ErrKind(cbor.KindUnsupportedCurve)
	}
	return alg, nil
}
