package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/cli"
)

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "demo")

	cmd := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	cmd.SetArgs([]string{"init", "--dir", workspace})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, name := range []string{"keystore.db", "issuer-key.cbor", "issuer-cert.der", "cbordoc.yaml"} {
		if _, err := os.Stat(filepath.Join(workspace, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(workspace, "artifacts")); err != nil {
		t.Errorf("expected artifacts directory to exist: %v", err)
	}
}

func TestInitCommandRefusesToOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "demo")

	first := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	first.SetArgs([]string{"init", "--dir", workspace})
	if err := first.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}

	second := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	second.SetArgs([]string{"init", "--dir", workspace})
	second.SilenceErrors = true
	if err := second.Execute(); err == nil {
		t.Fatal("expected an error without --force")
	}

	third := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	third.SetArgs([]string{"init", "--dir", workspace, "--force"})
	if err := third.Execute(); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}
