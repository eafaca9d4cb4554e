package cli_test

import (
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/cli"
)

func TestServeCommandRejectsInvalidPort(t *testing.T) {
	cmd := cli.NewRootCommand("1.0.0", "abc", "2026-01-01")
	cmd.SetArgs([]string{"serve", "--port", "99999"})
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an out-of-range port")
	}
}
