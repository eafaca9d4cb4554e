package cli

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradeverifyd/cbor-cose-go/internal/config"
	"github.com/tradeverifyd/cbor-cose-go/internal/keystore"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

type initOptions struct {
	dir   string
	force bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a cbordoc workspace",
		Long: `Initialize a new cbordoc workspace.

This command creates:
  - A new ES256 issuer key pair and self-signed certificate
  - A SQLite key store, with the issuer key registered under "demo-issuer"
  - A local artifact store directory
  - A configuration file (cbordoc.yaml)

Example:
  cbordoc init --dir ./demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "./demo", "directory to initialize the workspace in")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing key store")

	return cmd
}

func runInit(opts *initOptions) error {
	if err := os.MkdirAll(opts.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	keystorePath := filepath.Join(opts.dir, "keystore.db")
	if _, err := os.Stat(keystorePath); err == nil && !opts.force {
		return fmt.Errorf("workspace already initialized at %s (use --force to overwrite)", opts.dir)
	}

	if verbose {
		fmt.Println("Generating ES256 issuer key pair...")
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	key, err := cose.KeyFromECDSAPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to convert key: %w", err)
	}
	key.Alg = new(int64)
	*key.Alg = cose.AlgES256

	keyPath := filepath.Join(opts.dir, "issuer-key.cbor")
	if err := os.WriteFile(keyPath, key.Encode(), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate certificate serial: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "cbordoc demo issuer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	certPath := filepath.Join(opts.dir, "issuer-cert.der")
	if err := os.WriteFile(certPath, certDER, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	if verbose {
		fmt.Println("Initializing key store...")
	}
	store, err := keystore.Open(keystore.Options{Path: keystorePath, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}
	alg, _ := cose.AlgorithmByID(cose.AlgES256)
	kid := "demo-issuer"
	if err := store.Register([]byte(kid), key, alg, [][]byte{certDER}); err != nil {
		store.Close()
		return fmt.Errorf("failed to register issuer key: %w", err)
	}
	store.Close()

	if verbose {
		fmt.Println("Initializing artifact store...")
	}
	artifactsPath := filepath.Join(opts.dir, "artifacts")
	if err := os.MkdirAll(artifactsPath, 0755); err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	if verbose {
		fmt.Println("Creating configuration file...")
	}
	cfg := config.DefaultConfig()
	cfg.Keystore.Path = keystorePath
	cfg.Artifacts.Path = artifactsPath
	cfg.Keys.PrivateKey = keyPath
	cfg.Keys.Certificate = certPath
	cfg.Keys.Kid = kid

	configPath := filepath.Join(opts.dir, "cbordoc.yaml")
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	kidThumb := sha256.Sum256(key.Encode())

	fmt.Println("✓ cbordoc workspace initialized")
	fmt.Printf("\nWorkspace:\n")
	fmt.Printf("  Key store:   %s\n", keystorePath)
	fmt.Printf("  Artifacts:   %s\n", artifactsPath)
	fmt.Printf("  Issuer key:  %s (kid=%s, thumbprint=%x)\n", keyPath, kid, kidThumb)
	fmt.Printf("  Certificate: %s\n", certPath)
	fmt.Printf("  Config:      %s\n", configPath)
	fmt.Printf("\nTo start the HTTP API, run:\n")
	fmt.Printf("  cbordoc serve --config %s\n", configPath)

	return nil
}
