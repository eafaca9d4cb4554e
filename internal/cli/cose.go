package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradeverifyd/cbor-cose-go/internal/keystore"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// NewCoseCommand creates the cose command.
func NewCoseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cose",
		Short: "Sign and verify COSE_Sign1 messages",
	}

	cmd.AddCommand(NewCoseSignCommand())
	cmd.AddCommand(NewCoseVerifyCommand())

	return cmd
}

type coseSignOptions struct {
	payload    string
	privateKey string
	cert       string
	kid        string
	output     string
}

// NewCoseSignCommand creates the "cose sign" command.
func NewCoseSignCommand() *cobra.Command {
	opts := &coseSignOptions{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a file as a COSE_Sign1 message",
		Long: `Sign a file's raw bytes as the payload of a COSE_Sign1 message (RFC 9052
§4.2), using the key's own alg (or a curve-derived default) and, if given,
attaching an x5chain certificate to the unprotected header.

Example:
  cbordoc cose sign --payload doc.bin --private-key issuer.cbor --cert issuer.der --output doc.cose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoseSign(opts)
		},
	}

	cmd.Flags().StringVar(&opts.payload, "payload", "", "file containing the payload to sign (required)")
	cmd.Flags().StringVar(&opts.privateKey, "private-key", "", "COSE_Key CBOR private key file (required)")
	cmd.Flags().StringVar(&opts.cert, "cert", "", "DER certificate to attach as x5chain")
	cmd.Flags().StringVar(&opts.kid, "kid", "", "kid header value")
	cmd.Flags().StringVar(&opts.output, "output", "", "output COSE_Sign1 file (required)")

	cmd.MarkFlagRequired("payload")
	cmd.MarkFlagRequired("private-key")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runCoseSign(opts *coseSignOptions) error {
	payload, err := os.ReadFile(opts.payload)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	key, err := decodeCOSEKeyFile(opts.privateKey)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
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

	protected := cose.NewHeader().SetAlgID(alg.ID)
	unprotected := cose.NewHeader()
	if opts.kid != "" {
		unprotected.Kid = []byte(opts.kid)
	}
	if opts.cert != "" {
		certDER, err := os.ReadFile(opts.cert)
		if err != nil {
			return fmt.Errorf("read certificate: %w", err)
		}
		unprotected.X5Chain = [][]byte{certDER}
	}

	msg := cose.NewSign1Message(protected, unprotected, payload)
	if err := msg.Sign(key, alg, nil); err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	if err := os.WriteFile(opts.output, msg.Encode(), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Printf("✓ Signed %s (%s) -> %s\n", opts.payload, alg.Name, opts.output)
	return nil
}

type coseVerifyOptions struct {
	input    string
	keystore string
	certOnly bool
}

// NewCoseVerifyCommand creates the "cose verify" command.
func NewCoseVerifyCommand() *cobra.Command {
	opts := &coseVerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a COSE_Sign1 message",
		Long: `Verify a COSE_Sign1 message's signature, resolving the verification key
by kid header from the SQLite key store.

Example:
  cbordoc cose verify --input doc.cose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoseVerify(opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "COSE_Sign1 file to verify (required)")
	cmd.Flags().StringVar(&opts.keystore, "keystore", "", "path to the key store database (defaults to config)")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runCoseVerify(opts *coseVerifyOptions) error {
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	item, err := cbor.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return fmt.Errorf("decode CBOR: %w", err)
	}
	if item.Kind != cbor.KindTag || item.Tag != cose.TagSign1 {
		return fmt.Errorf("expected a tagged COSE_Sign1 message, got tag %d", item.Tag)
	}
	msg, err := cose.Sign1MessageFromItem(item.Content)
	if err != nil {
		return fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	keystorePath := opts.keystore
	if keystorePath == "" {
		keystorePath = GetConfig().Keystore.Path
	}
	store, err := keystore.Open(keystore.Options{Path: keystorePath})
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer store.Close()

	if err := msg.Verify(store, nil); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Println("✓ Signature valid")
	return nil
}
