package cose_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

func TestSignMessageAllSignersMustVerify(t *testing.T) {
	alg := mustAlg(t, cose.AlgES256)
	priv1, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	priv2, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	key1, _ := cose.KeyFromECDSAPrivateKey(priv1)
	key1.Kid = []byte("signer-1")
	key2, _ := cose.KeyFromECDSAPrivateKey(priv2)
	key2.Kid = []byte("signer-2")

	msg := cose.NewSignMessage(nil, nil, []byte("payload"))
	sig1Header := cose.NewHeader().SetAlgID(alg.ID)
	sig1Header.Kid = key1.Kid
	sig2Header := cose.NewHeader().SetAlgID(alg.ID)
	sig2Header.Kid = key2.Kid

	if err := msg.AddSignature(sig1Header, nil, key1, alg, nil); err != nil {
		t.Fatalf("add signature 1: %v", err)
	}
	if err := msg.AddSignature(sig2Header, nil, key2, alg, nil); err != nil {
		t.Fatalf("add signature 2: %v", err)
	}

	getter := multiKeyGetter{map[string]*cose.Key{
		"signer-1": key1,
		"signer-2": key2,
	}}
	if err := msg.Verify(getter, nil); err != nil {
		t.Fatalf("expected all-valid signatures to verify: %v", err)
	}

	msg.Signatures[1].Signature[0] ^= 0xFF
	if err := msg.Verify(getter, nil); err == nil {
		t.Fatal("expected verification to fail when any one signer's signature is invalid")
	}
}

type multiKeyGetter struct {
	byKid map[string]*cose.Key
}

func (g multiKeyGetter) Key(kid []byte, op int) (*cose.Key, error) {
	k, ok := g.byKid[string(kid)]
	if !ok {
		return nil, cbor.ErrKind(cbor.KindKeyNotAvailable)
	}
	return k, nil
}

func TestSignMessageRoundTrip(t *testing.T) {
	alg := mustAlg(t, cose.AlgES256)
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	key, _ := cose.KeyFromECDSAPrivateKey(priv)
	key.Kid = []byte("only-signer")

	msg := cose.NewSignMessage(nil, nil, []byte("multi-sign payload"))
	sigHeader := cose.NewHeader().SetAlgID(alg.ID)
	sigHeader.Kid = key.Kid
	if err := msg.AddSignature(sigHeader, nil, key, alg, nil); err != nil {
		t.Fatal(err)
	}

	encoded := msg.Encode()
	item, err := cbor.NewDecoder(bytes.NewReader(encoded)).Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	decoded, err := cose.SignMessageFromItem(item.Content)
	if err != nil {
		t.Fatalf("build from item: %v", err)
	}
	if len(decoded.Signatures) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(decoded.Signatures))
	}

	getter := multiKeyGetter{map[string]*cose.Key{"only-signer": key}}
	if err := decoded.Verify(getter, nil); err != nil {
		t.Fatalf("verify round-tripped message: %v", err)
	}
}

func TestSignMessageRejectsEmptySignatures(t *testing.T) {
	msg := cose.NewSignMessage(nil, nil, []byte("payload"))
	if err := msg.Verify(multiKeyGetter{map[string]*cose.Key{}}, nil); err == nil {
		t.Fatal("expected verification of a signature-less COSE_Sign to fail")
	}
}

func TestMac0RoundTrip(t *testing.T) {
	m := &cose.Mac0Message{
		Protected:   cose.NewHeader().SetAlgID(5),
		Unprotected: cose.NewHeader(),
		Payload:     []byte("mac payload"),
		Tag:         []byte("0123456789abcdef"),
	}
	encoded := m.ToItem().Encode()

	decoded, err := cbor.NewDecoder(bytes.NewReader(encoded)).Decode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := cose.Mac0MessageFromItem(decoded.Content)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, m.Payload) || !bytes.Equal(got.Tag, m.Tag) {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}
}

func TestEncrypt0RoundTrip(t *testing.T) {
	m := &cose.Encrypt0Message{
		Protected:   cose.NewHeader().SetAlgID(-1),
		Unprotected: cose.NewHeader(),
		Ciphertext:  []byte("opaque ciphertext"),
	}
	encoded := m.ToItem().Encode()

	decoded, err := cbor.NewDecoder(bytes.NewReader(encoded)).Decode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := cose.Encrypt0MessageFromItem(decoded.Content)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Ciphertext, m.Ciphertext) {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}
}

func TestSign1RejectsWrongArity(t *testing.T) {
	// A 3-element array cannot be a COSE_Sign1 (needs exactly 4).
	bad := cbor.NewArray(cbor.NewBytes(nil), cbor.NewMap(), cbor.NewNull())
	if _, err := cose.Sign1MessageFromItem(bad); err == nil {
		t.Fatal("expected arity validation to reject a 3-element COSE_Sign1 array")
	}
}
