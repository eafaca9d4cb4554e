package cose_test

import (
	"bytes"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

func TestEmptyHeaderMarshalsToEmptyBytes(t *testing.T) {
	h := cose.NewHeader()
	if got := h.MarshalProtected(); len(got) != 0 {
		t.Fatalf("expected empty protected header to marshal to zero bytes, got % x", got)
	}
}

func TestHeaderX5ChainSingleEntryIsBareByteString(t *testing.T) {
	h := cose.NewHeader()
	h.X5Chain = [][]byte{[]byte("cert-der-bytes")}
	encoded := h.MarshalProtected()
	// a1 18 21 <value>: the value's major type sits at index 3.
	if len(encoded) < 4 || encoded[3]>>5 != 2 {
		t.Fatalf("expected x5chain value encoded as a bare byte string, got % x", encoded)
	}

	decoded, present, err := cose.ParseProtectedHeader(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !present {
		t.Fatal("expected header to be present")
	}
	if len(decoded.X5Chain) != 1 || !bytes.Equal(decoded.X5Chain[0], []byte("cert-der-bytes")) {
		t.Fatalf("unexpected x5chain: %+v", decoded.X5Chain)
	}
}

func TestHeaderX5ChainMultipleEntriesIsArray(t *testing.T) {
	h := cose.NewHeader()
	h.X5Chain = [][]byte{[]byte("leaf"), []byte("intermediate"), []byte("root")}
	encoded := h.MarshalProtected()
	if len(encoded) < 4 || encoded[3]>>5 != 4 {
		t.Fatalf("expected x5chain value encoded as an array, got % x", encoded)
	}

	decoded, _, err := cose.ParseProtectedHeader(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.X5Chain) != 3 {
		t.Fatalf("expected 3 certificates, got %d", len(decoded.X5Chain))
	}
	for i, want := range h.X5Chain {
		if !bytes.Equal(decoded.X5Chain[i], want) {
			t.Fatalf("cert %d mismatch: got %s, want %s", i, decoded.X5Chain[i], want)
		}
	}
}

func TestHeaderAlgAcceptsNameOrID(t *testing.T) {
	h1, err := cose.NewHeader().SetAlgName("ES256")
	if err != nil {
		t.Fatal(err)
	}
	id, ok := h1.AlgID()
	if !ok || id != cose.AlgES256 {
		t.Fatalf("expected ES256 id %d, got %d (ok=%v)", cose.AlgES256, id, ok)
	}

	_, err = cose.NewHeader().SetAlgName("not-a-real-algorithm")
	if err == nil {
		t.Fatal("expected unknown algorithm name to error")
	}
}

func TestHeaderCritRoundTrip(t *testing.T) {
	h := cose.NewHeader().SetAlgID(cose.AlgES256)
	h.Crit = []int64{cose.LabelKid}
	encoded := h.MarshalProtected()

	decoded, _, err := cose.ParseProtectedHeader(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Crit) != 1 || decoded.Crit[0] != cose.LabelKid {
		t.Fatalf("unexpected crit: %+v", decoded.Crit)
	}
}

func TestParseProtectedHeaderEmptyBytesSkipsDecoding(t *testing.T) {
	h, present, err := cose.ParseProtectedHeader(nil)
	if err != nil {
		t.Fatal(err)
	}
	if present {
		t.Fatal("expected an empty protected header to report not present")
	}
	if _, ok := h.AlgID(); ok {
		t.Fatal("expected no algorithm on an empty header")
	}
}
