package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trufnetwork/wageproof/attestation"
	"github.com/trufnetwork/wageproof/canonical"
	"github.com/trufnetwork/wageproof/internal/display"
)

func canonicalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canonicalize [file]",
		Short: "Print the canonical form and digest of a JSON document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			var value any
			if err := decodeJSON(raw, &value); err != nil {
				return err
			}

			meta, err := canonical.WithMetadata(value, time.Now())
			if err != nil {
				return err
			}
			return display.PrintCmd(cmd, &display.Result{
				Data: meta,
				Text: fmt.Sprintf("%s\nsha256: %s (%d bytes)", meta.Text, meta.Hash, meta.ByteLength),
			})
		},
	}
}

func nullifierCmd() *cobra.Command {
	var employer, wallet, nonce string

	cmd := &cobra.Command{
		Use:   "nullifier",
		Short: "Derive the nullifier of an employer, wallet and period nonce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !canonical.IsAddress(wallet) {
				return fmt.Errorf("wallet %q is not a 20-byte hex address", wallet)
			}
			n := attestation.DeriveNullifier(employer, wallet, nonce)
			return display.PrintCmd(cmd, &display.Result{
				Data: map[string]string{"nullifier": n.Hex()},
				Text: n.Hex(),
			})
		},
	}
	cmd.Flags().StringVar(&employer, "employer", "", "employer id")
	cmd.Flags().StringVar(&wallet, "wallet", "", "employee wallet address")
	cmd.Flags().StringVar(&nonce, "nonce", "", "period nonce")
	for _, f := range []string{"employer", "wallet", "nonce"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
