package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/mdoc"
)

// NewMdocCommand creates the mdoc command.
func NewMdocCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mdoc",
		Short: "Build ISO/IEC 18013-5 mdoc IssuerSigned structures",
	}

	cmd.AddCommand(NewMdocBuildCommand())

	return cmd
}

// claimsFile is the YAML shape accepted by "mdoc build": a doc type and a
// list of namespaces, each with string-valued element claims.
type claimsFile struct {
	DocType    string `yaml:"docType"`
	NameSpaces []struct {
		NameSpace string            `yaml:"nameSpace"`
		Elements  map[string]string `yaml:"elements"`
	} `yaml:"nameSpaces"`
}

type mdocBuildOptions struct {
	claims     string
	privateKey string
	cert       string
	output     string
}

// NewMdocBuildCommand creates the "mdoc build" command.
func NewMdocBuildCommand() *cobra.Command {
	opts := &mdocBuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a signed IssuerSigned mdoc document from a claims file",
		Long: `Build an ISO/IEC 18013-5 IssuerSigned structure from a YAML claims file
and sign its MobileSecurityObject with the issuer's key.

Claims file shape:
  docType: org.iso.18013.5.1.mDL
  nameSpaces:
    - nameSpace: org.iso.18013.5.1
      elements:
        given_name: Alice
        family_name: Example

Example:
  cbordoc mdoc build --claims claims.yaml --private-key issuer.cbor --cert issuer.der --output mdl.cbor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMdocBuild(opts)
		},
	}

	cmd.Flags().StringVar(&opts.claims, "claims", "", "YAML claims file (required)")
	cmd.Flags().StringVar(&opts.privateKey, "private-key", "", "issuer COSE_Key CBOR private key (required)")
	cmd.Flags().StringVar(&opts.cert, "cert", "", "issuer DER certificate (required)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output IssuerSigned CBOR file (required)")

	cmd.MarkFlagRequired("claims")
	cmd.MarkFlagRequired("private-key")
	cmd.MarkFlagRequired("cert")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runMdocBuild(opts *mdocBuildOptions) error {
	claimsData, err := os.ReadFile(opts.claims)
	if err != nil {
		return fmt.Errorf("read claims file: %w", err)
	}
	var cf claimsFile
	if err := yaml.Unmarshal(claimsData, &cf); err != nil {
		return fmt.Errorf("parse claims file: %w", err)
	}
	if cf.DocType == "" {
		return fmt.Errorf("claims file is missing docType")
	}

	key, err := decodeCOSEKeyFile(opts.privateKey)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}
	certDER, err := os.ReadFile(opts.cert)
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}

	var claims []mdoc.NamespaceClaims
	for _, ns := range cf.NameSpaces {
		var elements []mdoc.ClaimElement
		for name, value := range ns.Elements {
			elements = append(elements, mdoc.ClaimElement{
				ElementIdentifier: name,
				ElementValue:      cbor.NewText(value),
			})
		}
		claims = append(claims, mdoc.NamespaceClaims{NameSpace: ns.NameSpace, Elements: elements})
	}

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	validUntil := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02T15:04:05Z")

	builder := &mdoc.IssuerSignedBuilder{
		DocType: cf.DocType,
		Claims:  claims,
		ValidityInfo: &mdoc.ValidityInfo{
			Signed:     now,
			ValidFrom:  now,
			ValidUntil: validUntil,
		},
		IssuerKey:    key,
		Certificates: [][]byte{certDER},
	}

	signed, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build mdoc: %w", err)
	}

	if err := os.WriteFile(opts.output, signed.Encode(), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Printf("✓ Built %s (%d namespace(s)) -> %s\n", cf.DocType, len(claims), opts.output)
	return nil
}
