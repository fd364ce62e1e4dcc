package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type keygenResult struct {
	Algorithm  string `json:"algorithm"`
	PrivateKey string `json:"private_key,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	Secret     string `json:"secret,omitempty"`
}

func newKeygenCmd(g *globals) *cobra.Command {
	var (
		algorithm string
		outDir    string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate access-token signing keys",
		Long: `Generate an Ed25519 key pair as PKCS#8/PKIX PEM, or a random HS256 secret.

With --out the PEM files are written as jwt_ed25519.pem and jwt_ed25519.pub.pem
and their paths can go into IDENTITY_JWT_PRIVATE_KEY_FILE / _PUBLIC_KEY_FILE.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			var (
				res keygenResult
				err error
			)
			switch algorithm {
			case "ed25519":
				res, err = generateEd25519()
			case "hs256":
				res, err = generateSecret()
			default:
				return fmt.Errorf("unsupported algorithm %q", algorithm)
			}
			if err != nil {
				return err
			}

			if outDir != "" && algorithm == "ed25519" {
				priv := filepath.Join(outDir, "jwt_ed25519.pem")
				pub := filepath.Join(outDir, "jwt_ed25519.pub.pem")
				if err := os.WriteFile(priv, []byte(res.PrivateKey), 0o600); err != nil {
					return fmt.Errorf("write private key: %w", err)
				}
				if err := os.WriteFile(pub, []byte(res.PublicKey), 0o644); err != nil {
					return fmt.Errorf("write public key: %w", err)
				}
				return g.emit(map[string]string{"private_key_file": priv, "public_key_file": pub},
					fmt.Sprintf("wrote %s and %s", priv, pub))
			}

			text := res.Secret
			if algorithm == "ed25519" {
				text = res.PrivateKey + res.PublicKey
			}
			return g.emit(res, text)
		},
	}
	cmd.Flags().StringVar(&algorithm, "alg", "ed25519", "ed25519 or hs256")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write PEM files into")
	return cmd
}

func generateEd25519() (keygenResult, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return keygenResult{}, fmt.Errorf("generate key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return keygenResult{}, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return keygenResult{}, fmt.Errorf("marshal public key: %w", err)
	}
	return keygenResult{
		Algorithm:  "ed25519",
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}, nil
}

func generateSecret() (keygenResult, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return keygenResult{}, fmt.Errorf("generate secret: %w", err)
	}
	return keygenResult{Algorithm: "hs256", Secret: base64.RawURLEncoding.EncodeToString(b)}, nil
}
