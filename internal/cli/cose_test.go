package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/cli"
)

func TestCoseSignAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.cbor")
	certPath := filepath.Join(dir, "cert.der")
	keystorePath := filepath.Join(dir, "keys.db")
	payloadPath := filepath.Join(dir, "payload.txt")
	signedPath := filepath.Join(dir, "signed.cose")

	if err := os.WriteFile(payloadPath, []byte("hello cbordoc"), 0644); err != nil {
		t.Fatal(err)
	}

	gen := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	gen.SetArgs([]string{"keys", "generate", "--private-key", keyPath, "--cert", certPath})
	if err := gen.Execute(); err != nil {
		t.Fatalf("keys generate: %v", err)
	}

	reg := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	reg.SetArgs([]string{"keys", "register", "--private-key", keyPath, "--cert", certPath, "--kid", "sig-kid", "--keystore", keystorePath})
	if err := reg.Execute(); err != nil {
		t.Fatalf("keys register: %v", err)
	}

	sign := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	sign.SetArgs([]string{"cose", "sign", "--payload", payloadPath, "--private-key", keyPath, "--cert", certPath, "--kid", "sig-kid", "--output", signedPath})
	if err := sign.Execute(); err != nil {
		t.Fatalf("cose sign: %v", err)
	}
	if _, err := os.Stat(signedPath); err != nil {
		t.Fatalf("expected signed output: %v", err)
	}

	verify := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	verify.SetArgs([]string{"cose", "verify", "--input", signedPath, "--keystore", keystorePath})
	if err := verify.Execute(); err != nil {
		t.Fatalf("cose verify: %v", err)
	}
}

func TestCoseVerifyRejectsUnknownKid(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.cbor")
	certPath := filepath.Join(dir, "cert.der")
	keystorePath := filepath.Join(dir, "keys.db")
	payloadPath := filepath.Join(dir, "payload.txt")
	signedPath := filepath.Join(dir, "signed.cose")

	if err := os.WriteFile(payloadPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	gen := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	gen.SetArgs([]string{"keys", "generate", "--private-key", keyPath, "--cert", certPath})
	if err := gen.Execute(); err != nil {
		t.Fatalf("keys generate: %v", err)
	}

	sign := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	sign.SetArgs([]string{"cose", "sign", "--payload", payloadPath, "--private-key", keyPath, "--kid", "never-registered", "--output", signedPath})
	if err := sign.Execute(); err != nil {
		t.Fatalf("cose sign: %v", err)
	}

	verify := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	verify.SetArgs([]string{"cose", "verify", "--input", signedPath, "--keystore", keystorePath})
	verify.SilenceErrors = true
	if err := verify.Execute(); err == nil {
		t.Fatal("expected verification to fail for an unregistered kid")
	}
}
