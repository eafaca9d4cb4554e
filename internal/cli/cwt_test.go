package cli_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/cli"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cwt"
)

func TestCwtInspectCommand(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := cose.KeyFromECDSAPrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	alg, _ := cose.AlgorithmByID(cose.AlgES256)

	claims := cwt.NewClaimsSet()
	if err := claims.SetText(1, "issuer.example"); err != nil {
		t.Fatal(err)
	}
	if err := claims.SetText(2, "subject.example"); err != nil {
		t.Fatal(err)
	}

	msg := cose.NewSign1Message(cose.NewHeader().SetAlgID(alg.ID), nil, claims.Encode())
	if err := msg.Sign(key, alg, nil); err != nil {
		t.Fatal(err)
	}
	token := cwt.NewCWT(msg)

	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.cwt")
	if err := os.WriteFile(tokenPath, token.Encode(), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	cmd.SetArgs([]string{"cwt", "inspect", "--input", tokenPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cwt inspect: %v", err)
	}
}
