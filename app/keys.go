package app

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trufnetwork/wageproof/attestation"
	"github.com/trufnetwork/wageproof/internal/display"
)

type keyInfo struct {
	PublicKey           string `json:"publicKey"`
	CompressedPublicKey string `json:"compressedPublicKey"`
	Address             string `json:"address"`
	KeyFile             string `json:"keyFile,omitempty"`
}

func keygenCmd() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an employer secp256k1 key pair",
		Long: "Generate an employer secp256k1 key pair. The private key is written to " +
			"--key-file and never printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := attestation.GenerateEmployerSigner()
			if err != nil {
				return err
			}
			if err := os.WriteFile(keyFile, []byte(signer.PrivateKeyHex()+"\n"), 0o600); err != nil {
				return errors.Wrapf(err, "write key file %s", keyFile)
			}

			info := keyInfo{
				PublicKey:           hexutil.Encode(signer.PublicKey()),
				CompressedPublicKey: hexutil.Encode(signer.CompressedPublicKey()),
				Address:             signer.Address().Hex(),
				KeyFile:             keyFile,
			}
			return display.PrintCmd(cmd, &display.Result{
				Data: info,
				Text: fmt.Sprintf("Public key:  %s\nAddress:     %s\nKey file:    %s", info.PublicKey, info.Address, info.KeyFile),
			})
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "employer.key", "where to write the hex private key")
	return cmd
}
