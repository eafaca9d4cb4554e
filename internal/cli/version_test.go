package cli_test

import (
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	t.Run("accepts a compatible version", func(t *testing.T) {
		cmd := cli.NewRootCommand("1.2.3", "abc", "2026-01-01")
		cmd.SetArgs([]string{"version"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("version: %v", err)
		}
	})

	t.Run("rejects a version below the minimum", func(t *testing.T) {
		cmd := cli.NewRootCommand("0.0.1", "abc", "2026-01-01")
		cmd.SetArgs([]string{"version"})
		cmd.SilenceErrors = true
		if err := cmd.Execute(); err == nil {
			t.Fatal("expected an error for a version below the minimum supported core version")
		}
	})
}
