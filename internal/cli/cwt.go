package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cwt"
)

// NewCwtCommand creates the cwt command.
func NewCwtCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cwt",
		Short: "Inspect CBOR Web Tokens",
	}

	cmd.AddCommand(NewCwtInspectCommand())

	return cmd
}

type cwtInspectOptions struct {
	input string
}

// NewCwtInspectCommand creates the "cwt inspect" command.
func NewCwtInspectCommand() *cobra.Command {
	opts := &cwtInspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the claims set of a CWT",
		Long: `Decode a CWT (RFC 8392) wrapping a COSE_Sign1 message and print its
registered claims (iss, sub, aud, exp, nbf, iat, cti) in a human-readable
form, without verifying the signature.

Example:
  cbordoc cwt inspect --input token.cwt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCwtInspect(opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "CWT file to inspect (required)")
	cmd.MarkFlagRequired("input")

	return cmd
}

var claimNames = []struct {
	label int64
	name  string
}{
	{1, "iss"}, {2, "sub"}, {3, "aud"}, {4, "exp"}, {5, "nbf"}, {6, "iat"}, {7, "cti"},
}

func runCwtInspect(opts *cwtInspectOptions) error {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	item, err := cbor.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return fmt.Errorf("decode CBOR: %w", err)
	}
	if item.Kind != cbor.KindTag || item.Tag != cwt.Tag {
		return fmt.Errorf("parse CWT: expected a tag-%d item", cwt.Tag)
	}
	token, err := cwt.CWTFromItem(item.Content)
	if err != nil {
		return fmt.Errorf("parse CWT: %w", err)
	}

	claims, err := token.ClaimsSet()
	if err != nil {
		return fmt.Errorf("decode claims set: %w", err)
	}

	for _, c := range claimNames {
		if v, ok := claims.Get(c.label); ok {
			fmt.Printf("%s (%d): %s\n", c.name, c.label, v.Diagnostic(nil))
		}
	}

	return nil
}
