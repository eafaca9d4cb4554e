package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/tradeverifyd/cbor-cose-go/internal/artifacts"
	"github.com/tradeverifyd/cbor-cose-go/internal/httpapi"
	"github.com/tradeverifyd/cbor-cose-go/internal/keystore"
)

type serveOptions struct {
	host string
	port int
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP verification and diagnostic API",
		Long: `Start the cbordoc HTTP API server.

The server exposes:
  - POST /cose/verify     - verify a COSE_Sign1 message
  - POST /cbor/diagnostic - print a CBOR document in diagnostic notation
  - GET  /artifacts/{id}  - fetch a stored CBOR artifact
  - GET  /health          - liveness check

Example:
  cbordoc serve --config cbordoc.yaml
  cbordoc serve --host 0.0.0.0 --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "host to bind to (overrides config)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "port to listen on (overrides config)")

	return cmd
}

func runServe(opts *serveOptions) error {
	cfg := GetConfig()

	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	keys, err := keystore.Open(keystore.Options{Path: cfg.Keystore.Path, EnableWAL: cfg.Keystore.EnableWAL})
	if err != nil {
		return fmt.Errorf("failed to open key store: %w", err)
	}
	defer keys.Close()

	var store artifacts.Store
	switch cfg.Artifacts.Type {
	case "memory":
		store = artifacts.NewMemoryStore()
	default:
		local, err := artifacts.NewLocalStore(cfg.Artifacts.Path)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
		store = local
	}

	if verbose {
		fmt.Println("Starting cbordoc HTTP API...")
		fmt.Printf("  Keystore:  %s\n", cfg.Keystore.Path)
		fmt.Printf("  Artifacts: %s (%s)\n", cfg.Artifacts.Type, cfg.Artifacts.Path)
		fmt.Printf("  Server:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	}

	srv := httpapi.NewServer(cfg, keys, store)
	log.Fatal(srv.Start())
	return nil
}
