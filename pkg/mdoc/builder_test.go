package mdoc_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
	"github.com/tradeverifyd/cbor-cose-go/pkg/mdoc"
)

func selfSignedCert(t *testing.T, priv *ecdsa.PrivateKey) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "mdoc-issuer-test"},
		NotBefore:    time.Unix(1700000000, 0),
		NotAfter:     time.Unix(1800000000, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatal(err)
	}
	return der
}

// TestBuildScenario7 matches the §8.2 scenario 7 builder vector: a single
// name space and claim, P-256 issuer key, single self-signed certificate.
func TestBuildScenario7(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	issuerKey, err := cose.KeyFromECDSAPrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cert := selfSignedCert(t, priv)

	builder := &mdoc.IssuerSignedBuilder{
		DocType: "com.example.doctype",
		Claims: []mdoc.NamespaceClaims{
			{
				NameSpace: "com.example.namespace1",
				Elements: []mdoc.ClaimElement{
					{ElementIdentifier: "claimName1", ElementValue: cbor.NewText("claimValue1")},
				},
			},
		},
		ValidityInfo: &mdoc.ValidityInfo{
			Signed:     "2024-01-01T00:00:00Z",
			ValidFrom:  "2024-01-01T00:00:00Z",
			ValidUntil: "2025-01-01T00:00:00Z",
		},
		IssuerKey:    issuerKey,
		Certificates: [][]byte{cert},
	}

	signed, err := builder.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	alg, ok := signed.IssuerAuth.Protected.AlgID()
	if !ok || alg != cose.AlgES256 {
		t.Fatalf("expected protected alg ES256 (-7), got %d ok=%v", alg, ok)
	}
	if len(signed.IssuerAuth.Unprotected.X5Chain) != 1 {
		t.Fatalf("expected exactly one certificate in x5chain, got %d", len(signed.IssuerAuth.Unprotected.X5Chain))
	}
	if !bytes.Equal(signed.IssuerAuth.Unprotected.X5Chain[0], cert) {
		t.Fatal("x5chain entry does not match issuer certificate")
	}

	if len(signed.NameSpaces.Entries) != 1 || signed.NameSpaces.Entries[0].NameSpace != "com.example.namespace1" {
		t.Fatalf("unexpected name spaces: %+v", signed.NameSpaces.Entries)
	}
	items := signed.NameSpaces.Entries[0].Items
	if len(items) != 1 {
		t.Fatalf("expected one claim item, got %d", len(items))
	}

	item, err := mdoc.IssuerSignedItemBytesFromItem(items[0].Content)
	if err != nil {
		t.Fatalf("unwrap item bytes: %v", err)
	}
	if item.ElementIdentifier != "claimName1" || item.ElementValue.Text != "claimValue1" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if len(item.Random) != 16 {
		t.Fatalf("expected 16-byte random, got %d bytes", len(item.Random))
	}

	sum := sha256.Sum256(items[0].Encode())
	getter := staticGetter{key: issuerKey}
	if err := signed.IssuerAuth.Verify(getter, nil); err != nil {
		t.Fatalf("issuerAuth did not verify: %v", err)
	}
	msoMap := decodeMSOMap(t, signed.IssuerAuth.Payload)
	vdItem, ok := msoMap.MapGetText("valueDigests")
	if !ok {
		t.Fatal("MSO missing valueDigests")
	}
	nsDigests, ok := vdItem.MapGetText("com.example.namespace1")
	if !ok {
		t.Fatal("valueDigests missing name space")
	}
	digestItem, ok := nsDigests.MapGet(item.DigestID)
	if !ok {
		t.Fatal("valueDigests missing digestID 0")
	}
	if !bytes.Equal(digestItem.Bytes, sum[:]) {
		t.Fatalf("digest mismatch: mso=% x computed=% x", digestItem.Bytes, sum[:])
	}
}

// decodeMSOMap decodes a COSE_Sign1 payload of MobileSecurityObjectBytes
// (tag 24 around the encoded MSO map) back into the MSO map item.
func decodeMSOMap(t *testing.T, payload []byte) *cbor.Item {
	t.Helper()
	if len(payload) < 2 || payload[0] != 0xd8 || payload[1] != 0x18 {
		t.Fatalf("expected tag-24 MobileSecurityObjectBytes, got % x", payload)
	}
	// The default tag-24 processor yields the byte string itself.
	tagItem, err := cbor.NewDecoder(bytes.NewReader(payload)).Decode()
	if err != nil {
		t.Fatalf("decode MSO payload: %v", err)
	}
	if tagItem.Kind != cbor.KindBytes {
		t.Fatalf("expected tag-24 content to decode as a byte string, got kind=%v", tagItem.Kind)
	}
	msoItem, err := cbor.NewDecoder(bytes.NewReader(tagItem.Bytes)).Decode()
	if err != nil {
		t.Fatalf("decode embedded MSO: %v", err)
	}
	return msoItem
}

type staticGetter struct{ key *cose.Key }

func (g staticGetter) Key(kid []byte, op int) (*cose.Key, error) { return g.key, nil }

func TestBuildRejectsEmptyCertificateChain(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	issuerKey, _ := cose.KeyFromECDSAPrivateKey(priv)
	builder := &mdoc.IssuerSignedBuilder{
		DocType:      "com.example.doctype",
		IssuerKey:    issuerKey,
		Certificates: nil,
		ValidityInfo: &mdoc.ValidityInfo{Signed: "2024-01-01T00:00:00Z", ValidFrom: "2024-01-01T00:00:00Z", ValidUntil: "2025-01-01T00:00:00Z"},
	}
	if _, err := builder.Build(); err == nil {
		t.Fatal("expected an empty certificate chain to be rejected")
	}
}

func TestBuildRejectsMissingDocType(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	issuerKey, _ := cose.KeyFromECDSAPrivateKey(priv)
	cert := selfSignedCert(t, priv)
	builder := &mdoc.IssuerSignedBuilder{
		IssuerKey:    issuerKey,
		Certificates: [][]byte{cert},
	}
	if _, err := builder.Build(); err == nil {
		t.Fatal("expected a missing doc type to be rejected")
	}
}

func TestBuildRejectsMissingIssuerKey(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	cert := selfSignedCert(t, priv)
	builder := &mdoc.IssuerSignedBuilder{
		DocType:      "com.example.doctype",
		Certificates: [][]byte{cert},
	}
	if _, err := builder.Build(); err == nil {
		t.Fatal("expected a missing issuer key to be rejected")
	}
}

// TestBuildValueDigestInvariant is the §8.1 property: for every emitted
// claim item, valueDigests[namespace][digestID] == SHA-256(item.Encode()).
func TestBuildValueDigestInvariant(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	issuerKey, err := cose.KeyFromECDSAPrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	cert := selfSignedCert(t, priv)

	builder := &mdoc.IssuerSignedBuilder{
		DocType: "com.example.doctype",
		Claims: []mdoc.NamespaceClaims{
			{
				NameSpace: "ns1",
				Elements: []mdoc.ClaimElement{
					{ElementIdentifier: "a", ElementValue: cbor.NewText("va")},
					{ElementIdentifier: "b", ElementValue: cbor.NewUint(42)},
				},
			},
			{
				NameSpace: "ns2",
				Elements: []mdoc.ClaimElement{
					{ElementIdentifier: "c", ElementValue: cbor.NewBool(true)},
				},
			},
		},
		ValidityInfo: &mdoc.ValidityInfo{
			Signed:     "2024-01-01T00:00:00Z",
			ValidFrom:  "2024-01-01T00:00:00Z",
			ValidUntil: "2025-01-01T00:00:00Z",
		},
		IssuerKey:    issuerKey,
		Certificates: [][]byte{cert},
	}

	signed, err := builder.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	msoMap := decodeMSOMap(t, signed.IssuerAuth.Payload)
	vdItem, ok := msoMap.MapGetText("valueDigests")
	if !ok {
		t.Fatal("missing valueDigests")
	}

	seenDigestIDs := map[uint64]bool{}
	for _, ns := range signed.NameSpaces.Entries {
		nsDigests, ok := vdItem.MapGetText(ns.NameSpace)
		if !ok {
			t.Fatalf("valueDigests missing name space %s", ns.NameSpace)
		}
		for _, itemBytes := range ns.Items {
			item, err := mdoc.IssuerSignedItemBytesFromItem(itemBytes.Content)
			if err != nil {
				t.Fatal(err)
			}
			if seenDigestIDs[item.DigestID] {
				t.Fatalf("digestID %d reused across name spaces, monotonic counter violated", item.DigestID)
			}
			seenDigestIDs[item.DigestID] = true

			sum := sha256.Sum256(itemBytes.Encode())
			digestEntry, ok := nsDigests.MapGet(item.DigestID)
			if !ok {
				t.Fatalf("no digest entry for digestID %d", item.DigestID)
			}
			if !bytes.Equal(digestEntry.Bytes, sum[:]) {
				t.Fatalf("digest mismatch for digestID %d: mso=% x computed=% x", item.DigestID, digestEntry.Bytes, sum[:])
			}
		}
	}
}
