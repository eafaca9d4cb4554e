package cose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
)

// Registered COSE algorithm identifiers this module implements (§4.5).
// Only the ECDSA family is defined; there are no RSA or EdDSA identifiers,
// and Sign/Verify operate on ECDSA keys only.
const (
	AlgES256 = -7
	AlgES384 = -35
	AlgES512 = -36
)

// Algorithm describes one entry of the COSE algorithm table (§4.5).
type Algorithm struct {
	ID    int64
	Name  string
	Curve int64
	Hash  crypto.Hash
}

var algorithms = []Algorithm{
	{ID: AlgES256, Name: "ES256", Curve: CrvP256, Hash: crypto.SHA256},
	{ID: AlgES384, Name: "ES384", Curve: CrvP384, Hash: crypto.SHA384},
	{ID: AlgES512, Name: "ES512", Curve: CrvP521, Hash: crypto.SHA512},
}

// AlgorithmByID looks up a registered algorithm by its numeric identifier.
func AlgorithmByID(id int64) (Algorithm, bool) {
	for _, a := range algorithms {
		if a.ID == id {
			return a, true
		}
	}
	return Algorithm{}, false
}

// AlgorithmByName looks up a registered algorithm by its IANA name,
// case-sensitive as registered (§4.5, "accepts ... a known name").
func AlgorithmByName(name string) (Algorithm, bool) {
	for _, a := range algorithms {
		if a.Name == name {
			return a, true
		}
	}
	return Algorithm{}, false
}

// AlgorithmByCurve resolves the default signing algorithm for a curve, used
// when a signer supplies a key but no explicit alg (§4.8 step 6, mdoc
// algorithm selection "by key alg or curve mapping").
func AlgorithmByCurve(crv int64) (Algorithm, bool) {
	for _, a := range algorithms {
		if a.Curve == crv {
			return a, true
		}
	}
	return Algorithm{}, false
}

// KeyOps mirror the COSE_Key key_ops values relevant to signing (§3.4).
const (
	KeyOpSign   = 1
	KeyOpVerify = 2
)

// KeyGetter resolves signing and verification keys by key identifier, the
// seam an application (internal/keystore, an HSM, a KMS) implements to keep
// pkg/cose free of any key-storage opinion, supporting multiple keys and
// algorithms behind a single lookup.
type KeyGetter interface {
	// Key returns the key for kid able to perform op, or an error wrapping
	// cbor.KindKeyNotAvailable if none is found.
	Key(kid []byte, op int) (*Key, error)
}

// rawSignature holds an ECDSA signature in the COSE wire format: the
// concatenation of r and s, each left-padded to the curve's coordinate
// size, never DER (§4.5).
type rawSignature struct {
	r, s *big.Int
	size int
}

func (sig rawSignature) bytes() []byte {
	out := make([]byte, 2*sig.size)
	rb := sig.r.Bytes()
	sb := sig.s.Bytes()
	copy(out[sig.size-len(rb):sig.size], rb)
	copy(out[2*sig.size-len(sb):], sb)
	return out
}

func parseRawSignature(b []byte, size int) (r, s *big.Int, err error) {
	if len(b) != 2*size {
		return nil, nil, cbor.ErrKind(cbor.KindSignatureInvalid)
	}
	r = new(big.Int).SetBytes(b[:size])
	s = new(big.Int).SetBytes(b[size:])
	return r, s, nil
}

// signECDSA signs digest with key using alg's curve coordinate size,
// producing the raw r||s encoding the wire format requires.
func signECDSA(key *ecdsa.PrivateKey, digest []byte, alg Algorithm) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	if err != nil {
		return nil, cbor.ErrKind(cbor.KindSignatureInvalid)
	}
	sig := rawSignature{r: r, s: s, size: coordSize(key.Curve)}
	return sig.bytes(), nil
}

// verifyECDSA verifies a raw r||s signature against digest.
func verifyECDSA(pub *ecdsa.PublicKey, digest, signature []byte) (bool, error) {
	r, s, err := parseRawSignature(signature, coordSize(pub.Curve))
	if err != nil {
		return false, err
	}
	return ecdsa.Verify(pub, digest, r, s), nil
}

// sign computes the ECDSA signature over the Sig_structure for key/alg.
func sign(key *Key, alg Algorithm, sigStructure []byte) ([]byte, error) {
	priv, err := key.ECDSAPrivateKey()
	if err != nil {
		return nil, err
	}
	if priv.Curve != nil {
		wantCrv, _ := crvFromCurve(priv.Curve)
		if wantCrv != alg.Curve {
			return nil, cbor.ErrKind(cbor.KindUnsupportedCurve)
		}
	}
	digest := alg.Hash.New()
	digest.Write(sigStructure)
	return signECDSA(priv, digest.Sum(nil), alg)
}

// verify checks an ECDSA signature over the Sig_structure with key/alg.
func verify(key *Key, alg Algorithm, sigStructure, signature []byte) error {
	pub, err := key.ECDSAPublicKey()
	if err != nil {
		return err
	}
	digest := alg.Hash.New()
	digest.Write(sigStructure)
	ok, err := verifyECDSA(pub, digest.Sum(nil), signature)
	if err != nil {
		return err
	}
	if !ok {
		return cbor.ErrKind(cbor.KindSignatureInvalid)
	}
	return nil
}
