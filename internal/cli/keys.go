package cli

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradeverifyd/cbor-cose-go/internal/keystore"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// decodeCOSEKeyFile reads and decodes a COSE_Key CBOR file from disk.
func decodeCOSEKeyFile(path string) (*cose.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	item, err := cbor.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode CBOR: %w", err)
	}
	return cose.KeyFromItem(item)
}

// NewKeysCommand creates the keys command.
func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate and manage COSE signing keys",
		Long: `Generate ES256 key pairs and register them in the SQLite key store
used by "cose verify" and the HTTP API's /cose/verify endpoint.`,
	}

	cmd.AddCommand(NewKeysGenerateCommand())
	cmd.AddCommand(NewKeysRegisterCommand())

	return cmd
}

type keysGenerateOptions struct {
	privateKeyPath string
	certPath       string
	commonName     string
}

// NewKeysGenerateCommand creates the "keys generate" command.
func NewKeysGenerateCommand() *cobra.Command {
	opts := &keysGenerateOptions{
		privateKeyPath: "private_key.cbor",
		certPath:       "cert.der",
		commonName:     "cbordoc issuer",
	}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an ES256 key pair and a self-signed certificate",
		Long: `Generate a new ES256 (ECDSA P-256) key pair, export the private key as a
COSE_Key CBOR file, and issue a self-signed certificate over the public key.

Example:
  cbordoc keys generate --private-key issuer.cbor --cert issuer.der`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysGenerate(opts)
		},
	}

	cmd.Flags().StringVar(&opts.privateKeyPath, "private-key", opts.privateKeyPath, "path to save the COSE_Key private key")
	cmd.Flags().StringVar(&opts.certPath, "cert", opts.certPath, "path to save the self-signed DER certificate")
	cmd.Flags().StringVar(&opts.commonName, "common-name", opts.commonName, "certificate subject common name")

	return cmd
}

func runKeysGenerate(opts *keysGenerateOptions) error {
	if verbose {
		fmt.Println("Generating ES256 (ECDSA P-256) key pair...")
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	key, err := cose.KeyFromECDSAPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("convert to COSE key: %w", err)
	}
	key.Alg = new(int64)
	*key.Alg = cose.AlgES256

	if err := os.WriteFile(opts.privateKeyPath, key.Encode(), 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate certificate serial: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: opts.commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	if err := os.WriteFile(opts.certPath, certDER, 0644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}

	kid := sha256.Sum256(key.Encode())

	fmt.Println("✓ Key pair and certificate generated")
	fmt.Printf("  Algorithm:   ES256 (ECDSA P-256)\n")
	fmt.Printf("  Private key: %s\n", opts.privateKeyPath)
	fmt.Printf("  Certificate: %s\n", opts.certPath)
	fmt.Printf("  Kid:         %x\n", kid)

	return nil
}

type keysRegisterOptions struct {
	keystorePath string
	privateKey   string
	cert         string
	kid          string
}

// NewKeysRegisterCommand creates the "keys register" command.
func NewKeysRegisterCommand() *cobra.Command {
	opts := &keysRegisterOptions{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a key and certificate in the key store",
		Long: `Register a COSE_Key private key and its certificate in the SQLite key
store, indexed by kid, so "cose verify" and the HTTP API can resolve it.

Example:
  cbordoc keys register --private-key issuer.cbor --cert issuer.der --kid demo-issuer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysRegister(opts)
		},
	}

	cmd.Flags().StringVar(&opts.keystorePath, "keystore", "", "path to the key store database (defaults to config)")
	cmd.Flags().StringVar(&opts.privateKey, "private-key", "", "COSE_Key CBOR file (required)")
	cmd.Flags().StringVar(&opts.cert, "cert", "", "DER certificate file (required)")
	cmd.Flags().StringVar(&opts.kid, "kid", "", "key identifier to register under (required)")

	cmd.MarkFlagRequired("private-key")
	cmd.MarkFlagRequired("cert")
	cmd.MarkFlagRequired("kid")

	return cmd
}

func runKeysRegister(opts *keysRegisterOptions) error {
	keystorePath := opts.keystorePath
	if keystorePath == "" {
		keystorePath = GetConfig().Keystore.Path
	}

	store, err := keystore.Open(keystore.Options{Path: keystorePath, EnableWAL: GetConfig().Keystore.EnableWAL})
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer store.Close()

	key, err := decodeCOSEKeyFile(opts.privateKey)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}

	certDER, err := os.ReadFile(opts.cert)
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}

	alg, ok := cose.AlgorithmByCurve(key.Crv)
	if key.Alg != nil {
		if a, ok2 := cose.AlgorithmByID(*key.Alg); ok2 {
			alg, ok = a, true
		}
	}
	if !ok {
		return fmt.Errorf("no algorithm known for this key's curve")
	}

	if err := store.Register([]byte(opts.kid), key, alg, [][]byte{certDER}); err != nil {
		return fmt.Errorf("register key: %w", err)
	}

	fmt.Printf("✓ Registered kid %q in %s\n", opts.kid, keystorePath)
	return nil
}
