package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
)

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "diagnose <file.cbor>",
		Short: "Print a CBOR file in RFC 8949 §8 diagnostic notation",
		Long: `Decode a raw CBOR file and print its extended diagnostic notation.
Tags print in the generic tag(content) form; a tag-24 byte string that
holds valid CBOR is shown with its embedded item as <<...>>.

Example:
  cbordoc diagnose doc.cose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(args[0], outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func runDiagnose(inputFile, outputFile string) error {
	rawBytes, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	item, err := cbor.NewDecoder(bytes.NewReader(rawBytes)).Decode()
	if err != nil {
		return fmt.Errorf("failed to parse CBOR: %w", err)
	}

	report := item.Diagnostic(nil) + "\n"

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(report), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Diagnostic notation written to: %s\n", outputFile)
	} else {
		fmt.Print(report)
	}

	return nil
}
