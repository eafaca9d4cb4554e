package httpapi_test

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/artifacts"
	"github.com/tradeverifyd/cbor-cose-go/internal/config"
	"github.com/tradeverifyd/cbor-cose-go/internal/httpapi"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

type staticKeyGetter struct{ key *cose.Key }

func (g staticKeyGetter) Key(kid []byte, op int) (*cose.Key, error) { return g.key, nil }

func newTestServer(t *testing.T, key *cose.Key) *httpapi.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	return httpapi.NewServer(cfg, staticKeyGetter{key: key}, artifacts.NewMemoryStore())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestVerifyEndpointAcceptsValidSign1(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := cose.KeyFromECDSAPrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	alg, _ := cose.AlgorithmByID(cose.AlgES256)
	msg := cose.NewSign1Message(cose.NewHeader().SetAlgID(alg.ID), nil, []byte("payload"))
	if err := msg.Sign(key, alg, nil); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, key)
	req := httptest.NewRequest(http.MethodPost, "/cose/verify", bytes.NewReader(msg.Encode()))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Valid {
		t.Fatalf("expected valid=true, got body %s", w.Body.String())
	}
}

func TestVerifyEndpointRejectsBadSignature(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	key, _ := cose.KeyFromECDSAPrivateKey(priv)
	alg, _ := cose.AlgorithmByID(cose.AlgES256)
	msg := cose.NewSign1Message(cose.NewHeader().SetAlgID(alg.ID), nil, []byte("payload"))
	if err := msg.Sign(key, alg, nil); err != nil {
		t.Fatal(err)
	}
	encoded := msg.Encode()
	encoded[len(encoded)-1] ^= 0xFF

	srv := newTestServer(t, key)
	req := httptest.NewRequest(http.MethodPost, "/cose/verify", bytes.NewReader(encoded))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body struct {
		Valid bool `json:"valid"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Valid {
		t.Fatal("expected valid=false for a bit-flipped signature")
	}
}

func TestDiagnosticEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/cbor/diagnostic", bytes.NewReader([]byte{0x05}))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "5\n" {
		t.Fatalf("expected diagnostic text %q, got %q", "5\n", w.Body.String())
	}
}

func TestArtifactEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	store := artifacts.NewMemoryStore()
	_ = store.Put("doc-1", []byte{0x01, 0x02, 0x03})
	srv := httpapi.NewServer(cfg, staticKeyGetter{}, store)

	req := httptest.NewRequest(http.MethodGet, "/artifacts/doc-1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("unexpected artifact body: % x", w.Body.Bytes())
	}

	req = httptest.NewRequest(http.MethodGet, "/artifacts/missing", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing artifact, got %d", w.Code)
	}
}
