package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// minSupportedCoreVersion is the lowest cbor-cose-go core version this CLI
// build is known to work against.
const minSupportedCoreVersion = "v0.1.0"

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version and check compatibility with the core library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(version)
		},
	}
}

func runVersion(version string) error {
	v := version
	if !semver.IsValid(v) {
		v = "v" + v
	}

	fmt.Printf("cbordoc %s\n", version)

	if !semver.IsValid(v) {
		fmt.Println("(version string is not valid semver; skipping compatibility check)")
		return nil
	}
	if semver.Compare(v, minSupportedCoreVersion) < 0 {
		return fmt.Errorf("cbordoc %s predates the minimum supported core version %s", version, minSupportedCoreVersion)
	}
	fmt.Printf("compatible with core >= %s\n", minSupportedCoreVersion)
	return nil
}
