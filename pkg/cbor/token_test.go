package cbor_test

import (
	"bytes"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
)

func decodeHex(t *testing.T, hexBytes []byte) *cbor.Item {
	t.Helper()
	item, err := cbor.NewDecoder(bytes.NewReader(hexBytes)).Decode()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return item
}

func TestDecodeUnsignedInteger100(t *testing.T) {
	item := decodeHex(t, []byte{0x18, 0x64})
	if item.Kind != cbor.KindUint || item.Uint != 100 {
		t.Fatalf("expected uint 100, got %+v", item)
	}
	if got := cbor.NewUint(100).Encode(); !bytes.Equal(got, []byte{0x18, 0x64}) {
		t.Fatalf("expected re-encode 0x18 0x64, got % x", got)
	}
}

func TestDecodeHalfFloatNegative(t *testing.T) {
	item := decodeHex(t, []byte{0xF9, 0xB9, 0x00})
	if item.Kind != cbor.KindFloat || item.FloatBits != 32 {
		t.Fatalf("expected widened single-precision float, got %+v", item)
	}
	if item.Float != -0.625 {
		t.Fatalf("expected -0.625, got %v", item.Float)
	}
}

func TestDecodeHalfFloatSubnormal(t *testing.T) {
	item := decodeHex(t, []byte{0xF9, 0x00, 0x01})
	want := 1.0 / 16777216.0 // 2^-24
	if item.Float != want {
		t.Fatalf("expected 2^-24, got %v", item.Float)
	}
}

func TestDecodeBignum(t *testing.T) {
	item := decodeHex(t, []byte{0xC2, 0x49, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	if item.Kind != cbor.KindBigInt {
		t.Fatalf("expected bignum, got %+v", item)
	}
	v, err := item.AsBigInt()
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "18446744073709551616" {
		t.Fatalf("expected 18446744073709551616, got %s", v.String())
	}
}

func TestDecodeTag32URI(t *testing.T) {
	input := append([]byte{0xD8, 0x20, 0x76}, []byte("http://www.example.com")...)

	// Default: decodes as a plain tagged string.
	item := decodeHex(t, input)
	if item.Kind != cbor.KindTag || item.Tag != 32 {
		t.Fatalf("expected default tagged item, got %+v", item)
	}
	if item.Content.Kind != cbor.KindText || item.Content.Text != "http://www.example.com" {
		t.Fatalf("unexpected tag content: %+v", item.Content)
	}

	// With the URI processor registered: a dedicated URI item.
	opts := &cbor.Options{TagProcessors: cbor.DefaultRegistry().Clone()}
	opts.TagProcessors.Register(32, cbor.URIProcessor)
	item2, err := cbor.NewDecoderWithOptions(bytes.NewReader(input), opts).Decode()
	if err != nil {
		t.Fatal(err)
	}
	if item2.Kind != cbor.KindURIItem || item2.Text != "http://www.example.com" {
		t.Fatalf("expected URI item, got %+v", item2)
	}
}

func TestSimpleValueInvalidTwoByteEncoding(t *testing.T) {
	_, err := cbor.NewDecoder(bytes.NewReader([]byte{0xF8, 0x0A})).Decode()
	if err == nil {
		t.Fatal("expected error for simple value 10 encoded with two bytes")
	}
	cerr, ok := err.(*cbor.Error)
	if !ok || cerr.Kind != cbor.KindInvalidSimpleValue {
		t.Fatalf("expected InvalidSimpleValue, got %v", err)
	}
}

func TestMalformedUTF8ReportsOffset(t *testing.T) {
	_, err := cbor.NewDecoder(bytes.NewReader([]byte{0x62, 0xC3, 0x28})).Decode()
	if err == nil {
		t.Fatal("expected malformed UTF-8 error")
	}
	cerr, ok := err.(*cbor.Error)
	if !ok || cerr.Kind != cbor.KindMalformedUTF8 {
		t.Fatalf("expected MalformedUtf8, got %v", err)
	}
	if cerr.Offset != 1 {
		t.Fatalf("expected offset 1 (the malformed byte itself), got %d", cerr.Offset)
	}
}

func TestInsufficientData(t *testing.T) {
	_, err := cbor.NewDecoder(bytes.NewReader([]byte{0x18})).Decode()
	if err == nil {
		t.Fatal("expected InsufficientData")
	}
	cerr, ok := err.(*cbor.Error)
	if !ok || cerr.Kind != cbor.KindInsufficientData {
		t.Fatalf("expected InsufficientData, got %v", err)
	}
}

func TestReservedAdditionalInfoRejected(t *testing.T) {
	_, err := cbor.NewDecoder(bytes.NewReader([]byte{0x1C})).Decode()
	if err == nil {
		t.Fatal("expected InvalidInfo for reserved additional-info 28")
	}
	cerr, ok := err.(*cbor.Error)
	if !ok || cerr.Kind != cbor.KindInvalidInfo {
		t.Fatalf("expected InvalidInfo, got %v", err)
	}
}
