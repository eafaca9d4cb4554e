package cwt_test

import (
	"bytes"
	"math"
	"math/big"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cwt"
)

func TestClaimsSetRejectsDuplicateLabel(t *testing.T) {
	c := cwt.NewClaimsSet()
	if err := c.SetText(cwt.LabelIss, "issuer-1"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetText(cwt.LabelIss, "issuer-2"); err == nil {
		t.Fatal("expected duplicate label to be rejected")
	}
}

func TestClaimsSetDateAcceptsIntAndFloat(t *testing.T) {
	c := cwt.NewClaimsSet()
	if err := c.SetDate(cwt.LabelIat, 1443944944); err != nil {
		t.Fatal(err)
	}
	v, err := c.Date(cwt.LabelIat)
	if err != nil || v != 1443944944 {
		t.Fatalf("got %d, %v", v, err)
	}

	item := cbor.NewMap(cbor.Pair{Key: cbor.NewInt(cwt.LabelExp), Value: cbor.NewFloat64(1444064944.75)})
	decoded, err := cwt.ClaimsSetFromItem(item)
	if err != nil {
		t.Fatal(err)
	}
	exp, err := decoded.Date(cwt.LabelExp)
	if err != nil || exp != 1444064944 {
		t.Fatalf("expected fractional seconds discarded, got %d, %v", exp, err)
	}
}

func TestClaimsSetFromItemRejectsDuplicateLabels(t *testing.T) {
	item := cbor.NewMap(
		cbor.Pair{Key: cbor.NewInt(cwt.LabelSub), Value: cbor.NewText("a")},
		cbor.Pair{Key: cbor.NewInt(cwt.LabelSub), Value: cbor.NewText("b")},
	)
	if _, err := cwt.ClaimsSetFromItem(item); err == nil {
		t.Fatal("expected duplicate sub label to be rejected")
	}
}

func TestClaimsSetDateRejectsOverflow(t *testing.T) {
	huge := new(big.Int).SetInt64(math.MaxInt64)
	item := cbor.NewMap(cbor.Pair{Key: cbor.NewInt(cwt.LabelExp), Value: cbor.NewBigInt(huge)})
	decoded, err := cwt.ClaimsSetFromItem(item)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decoded.Date(cwt.LabelExp); err == nil {
		t.Fatal("expected a date claim near i64::MAX to be rejected as OutOfRange")
	}
}

func TestClaimsSetFromItemEnforcesClaimTypes(t *testing.T) {
	item := cbor.NewMap(
		cbor.Pair{Key: cbor.NewInt(cwt.LabelIss), Value: cbor.NewUint(5)}, // iss must be text
	)
	if _, err := cwt.ClaimsSetFromItem(item); err == nil {
		t.Fatal("expected non-text iss claim to be rejected")
	}
}

func TestClaimsSetRoundTrip(t *testing.T) {
	c := cwt.NewClaimsSet()
	_ = c.SetText(cwt.LabelIss, "coap://as.example.com")
	_ = c.SetText(cwt.LabelSub, "erikw")
	_ = c.SetDate(cwt.LabelIat, 1443944944)
	_ = c.SetDate(cwt.LabelExp, 1444064944)
	_ = c.SetBytes(cwt.LabelCti, []byte{0x0b, 0x71})

	encoded := c.Encode()
	item, err := cbor.NewDecoder(bytes.NewReader(encoded)).Decode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := cwt.ClaimsSetFromItem(item)
	if err != nil {
		t.Fatal(err)
	}
	iss, _ := decoded.Text(cwt.LabelIss)
	if iss != "coap://as.example.com" {
		t.Fatalf("unexpected iss: %s", iss)
	}
	cti, _ := decoded.Bytes(cwt.LabelCti)
	if len(cti) != 2 || cti[0] != 0x0b || cti[1] != 0x71 {
		t.Fatalf("unexpected cti: % x", cti)
	}
}
