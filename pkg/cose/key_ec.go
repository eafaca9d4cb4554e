package cose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
)

// ellipticCurve maps a COSE crv identifier to its Go elliptic.Curve.
func ellipticCurve(crv int64) (elliptic.Curve, bool) {
	switch crv {
	case CrvP256:
		return elliptic.P256(), true
	case CrvP384:
		return elliptic.P384(), true
	case CrvP521:
		return elliptic.P521(), true
	default:
		return nil, false
	}
}

// crvFromCurve is the inverse of ellipticCurve, used when building a COSE
// key from a native ecdsa key.
func crvFromCurve(curve elliptic.Curve) (int64, bool) {
	switch curve.Params().Name {
	case elliptic.P256().Params().Name:
		return CrvP256, true
	case elliptic.P384().Params().Name:
		return CrvP384, true
	case elliptic.P521().Params().Name:
		return CrvP521, true
	default:
		return 0, false
	}
}

func coordSize(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

func padLeft(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// ECDSAPublicKey converts an EC2 key's public coordinates into a native
// ecdsa.PublicKey. A boolean Y (compressed-point indicator) is decompressed
// per the open question in spec §9.
func (k *Key) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != KtyEC2 {
		return nil, cbor.ErrKind(cbor.KindUnsupportedCurve)
	}
	curve, ok := ellipticCurve(k.Crv)
	if !ok {
		return nil, cbor.ErrKind(cbor.KindUnsupportedCurve)
	}
	x := new(big.Int).SetBytes(k.X)
	var y *big.Int
	if k.YIsBool {
		sign := 0
		if k.YBool != nil && *k.YBool {
			sign = 1
		}
		y = decompressY(curve, x, sign)
		if y == nil {
			return nil, cbor.ErrKind(cbor.KindCertificateEncoding)
		}
	} else {
		y = new(big.Int).SetBytes(k.Y)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// decompressY recovers y from x and the desired parity on a short
// Weierstrass curve y^2 = x^3 - 3x + b (mod p), as used by P-256/384/521.
func decompressY(curve elliptic.Curve, x *big.Int, sign int) *big.Int {
	params := curve.Params()
	p := params.P
	// y^2 = x^3 - 3x + b mod p
	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	threeX := new(big.Int).Lsh(x, 1)
	threeX.Add(threeX, x)
	ySq := new(big.Int).Sub(x3, threeX)
	ySq.Add(ySq, params.B)
	ySq.Mod(ySq, p)

	y := new(big.Int).ModSqrt(ySq, p)
	if y == nil {
		return nil
	}
	if int(y.Bit(0)) != sign {
		y.Sub(p, y)
	}
	return y
}

// ECDSAPrivateKey converts an EC2 key's private scalar into a native
// ecdsa.PrivateKey.
func (k *Key) ECDSAPrivateKey() (*ecdsa.PrivateKey, error) {
	pub, err := k.ECDSAPublicKey()
	if err != nil {
		return nil, err
	}
	if len(k.D) == 0 {
		return nil, cbor.ErrKind(cbor.KindKeyNotAvailable)
	}
	return &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(k.D)}, nil
}

// KeyFromECDSAPublicKey builds an EC2 COSE key from a native public key.
func KeyFromECDSAPublicKey(pub *ecdsa.PublicKey) (*Key, error) {
	crv, ok := crvFromCurve(pub.Curve)
	if !ok {
		return nil, cbor.ErrKind(cbor.KindUnsupportedCurve)
	}
	size := coordSize(pub.Curve)
	return NewEC2Key(crv, padLeft(pub.X.Bytes(), size), padLeft(pub.Y.Bytes(), size), nil), nil
}

// KeyFromECDSAPrivateKey builds an EC2 COSE key (including the private
// scalar) from a native private key.
func KeyFromECDSAPrivateKey(priv *ecdsa.PrivateKey) (*Key, error) {
	k, err := KeyFromECDSAPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	k.D = padLeft(priv.D.Bytes(), coordSize(priv.Curve))
	return k, nil
}
