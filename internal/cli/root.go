package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tradeverifyd/cbor-cose-go/internal/config"
)

// Global flags
var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

// NewRootCommand creates the root cobra command.
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cbordoc",
		Short: "CBOR, COSE, CWT and mdoc tooling",
		Long: `cbordoc is a CLI for working with CBOR (RFC 8949), COSE (RFC 9052/9053),
CWT (RFC 8392), and ISO/IEC 18013-5 mdoc documents.

It provides tools for:
  - Generating and registering signing keys
  - Signing and verifying COSE_Sign1 messages
  - Building ISO mdoc IssuerSigned structures
  - Inspecting CWTs and raw CBOR in diagnostic notation
  - Running the HTTP verification/diagnostic service`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./cbordoc.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewKeysCommand())
	rootCmd.AddCommand(NewCoseCommand())
	rootCmd.AddCommand(NewMdocCommand())
	rootCmd.AddCommand(NewCwtCommand())
	rootCmd.AddCommand(NewDiagnoseCommand())
	rootCmd.AddCommand(NewVersionCommand(version))

	return rootCmd
}

// initConfig loads configuration from file.
func initConfig() {
	if cfgFile == "" {
		if _, err := os.Stat("cbordoc.yaml"); err == nil {
			cfgFile = "cbordoc.yaml"
		} else if _, err := os.Stat("cbordoc.yml"); err == nil {
			cfgFile = "cbordoc.yml"
		}
	}

	if cfgFile != "" {
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
			}
		}
	}
}

// GetConfig returns the loaded configuration, or the default configuration
// if none was loaded.
func GetConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}
