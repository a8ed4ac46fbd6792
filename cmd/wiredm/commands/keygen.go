package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiredm/internal/crypto"
)

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
)

func keygenCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA-2048 identity key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return err
			}
			privPath := filepath.Join(dir, privateKeyFile)
			if _, err := os.Stat(privPath); err == nil {
				return fmt.Errorf("%s already exists", privPath)
			}

			kp, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			priv, err := crypto.EncodePrivateKey(kp.Private)
			if err != nil {
				return err
			}
			defer crypto.Wipe(priv)
			pub, err := crypto.EncodePublicKey(kp.Public)
			if err != nil {
				return err
			}

			if err := os.WriteFile(privPath, priv, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pub, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "keys written to %s\nfingerprint: %s\n", dir, crypto.Fingerprint(kp.Public))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultKeyDir(), "directory for private.pem and public.pem")
	return cmd
}

func defaultKeyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wiredm"
	}
	return filepath.Join(home, ".wiredm")
}

func readPrivateKey(dir string) (*crypto.KeyPair, error) {
	data, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("read private key (run keygen first): %w", err)
	}
	defer crypto.Wipe(data)
	priv, err := crypto.ParsePrivateKey(data)
	if err != nil {
		return nil, err
	}
	return &crypto.KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}
