package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trufnetwork/wageproof/attestation"
	"github.com/trufnetwork/wageproof/config"
	"github.com/trufnetwork/wageproof/internal/display"
	"github.com/trufnetwork/wageproof/registry"
)

// claimTimeout bounds a single registry consumption from the CLI.
const claimTimeout = 30 * time.Second

type attestationResult struct {
	Attestation *attestation.WageAttestation `json:"attestation"`
	Status      attestation.Status           `json:"status"`
	Reason      attestation.Reason           `json:"reason,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

func printAttestation(cmd *cobra.Command, att *attestation.WageAttestation, status attestation.Status, err error) error {
	res := attestationResult{Attestation: att, Status: status}
	text := fmt.Sprintf("Attestation: %s\nStatus:      %s\nNullifier:   %s", att.ID, status, att.NullifierHash.Hex())
	if err != nil {
		res.Reason = attestation.ReasonOf(err)
		res.Error = err.Error()
		text += fmt.Sprintf("\nRejected:    %s", res.Reason)
	}
	if perr := display.PrintCmd(cmd, &display.Result{Data: res, Text: text}); perr != nil {
		return perr
	}
	return err
}

// openRegistry builds the configured registry. The returned func releases it
// and reports collected metrics.
func openRegistry(cfg *config.Config, logger *zap.Logger) (registry.Registry, func(), error) {
	var (
		reg     registry.Registry
		closeFn func()
	)
	switch cfg.Registry.Backend {
	case config.BackendBadger:
		b, err := registry.OpenBadger(
			registry.WithBadgerDir(cfg.Registry.Path),
			registry.WithBadgerLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		reg = b
		closeFn = func() {
			if err := b.Close(); err != nil {
				logger.Warn("failed to close registry", zap.Error(err))
			}
		}
	case config.BackendMemory:
		// consumed nullifiers must outlive the process
		return nil, nil, errors.Errorf("registry backend %q does not persist across runs; use %q", config.BackendMemory, config.BackendBadger)
	default:
		return nil, nil, errors.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}

	if !cfg.Metrics.Enabled {
		return reg, closeFn, nil
	}

	promReg := prometheus.NewRegistry()
	instrumented := registry.NewInstrumented(reg, registry.NewPrometheusRecorder(promReg))
	return instrumented, func() {
		logMetrics(logger, promReg)
		closeFn()
	}, nil
}

func logMetrics(logger *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sum", m.GetHistogram().GetSampleSum()))
			}
			logger.Info("registry metric", fields...)
		}
	}
}

func newManager(env *runtimeEnv, reg registry.Registry) *attestation.Manager {
	return attestation.NewManager(reg,
		attestation.WithLogger(env.logger),
		attestation.WithValidatorOptions(env.cfg.ValidatorOptions()),
	)
}

func createCmd(env *runtimeEnv) *cobra.Command {
	var keyFile, input, out string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Validate wage fields and issue a signed attestation",
		Long: "Validate the JSON wage fields in --input, sign their canonical hash with the " +
			"employer key and print the pending attestation. Every violated rule is reported.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := readSigner(keyFile)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			var fields attestation.RawFields
			if err := decodeJSON(raw, &fields); err != nil {
				return err
			}

			att, err := newManager(env, registry.NewMemory()).Create(fields, signer)
			if err != nil {
				return err
			}
			if out != "" {
				if err := writeAttestation(out, att); err != nil {
					return err
				}
			}
			return printAttestation(cmd, att, att.Status, nil)
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "employer.key", "hex private key of the employer")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON wage fields (- for stdin)")
	cmd.Flags().StringVar(&out, "out", "", "also write the attestation JSON to this file")
	return cmd
}

func verifyCmd(env *runtimeEnv) *cobra.Command {
	var pub, input string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an attestation's hash, signature and expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pubKey, err := decodePublicKey(pub)
			if err != nil {
				return err
			}
			att, err := readAttestation(cmd, input)
			if err != nil {
				return err
			}
			err = newManager(env, registry.NewMemory()).Verify(att, pubKey)
			return printAttestation(cmd, att, att.Status, err)
		},
	}
	cmd.Flags().StringVar(&pub, "pub", "", "employer public key (hex, compressed or uncompressed)")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "attestation JSON (- for stdin)")
	_ = cmd.MarkFlagRequired("pub")
	return cmd
}

func claimCmd(env *runtimeEnv) *cobra.Command {
	var pub, input string
	var write bool

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Consume an attestation's nullifier in the configured registry",
		Long: "Verify the attestation and consume its nullifier. A nullifier_consumed " +
			"rejection is final: the period has already been paid out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pubKey, err := decodePublicKey(pub)
			if err != nil {
				return err
			}
			att, err := readAttestation(cmd, input)
			if err != nil {
				return err
			}

			reg, release, err := openRegistry(env.cfg, env.logger)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), claimTimeout)
			defer cancel()

			claimErr := newManager(env, reg).Claim(ctx, att, pubKey)
			if claimErr == nil && write && input != "-" {
				if err := writeAttestation(input, att); err != nil {
					return err
				}
			}
			return printAttestation(cmd, att, att.Status, claimErr)
		},
	}
	cmd.Flags().StringVar(&pub, "pub", "", "employer public key (hex, compressed or uncompressed)")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "attestation JSON (- for stdin)")
	cmd.Flags().BoolVar(&write, "write", false, "rewrite --input with the claimed status")
	_ = cmd.MarkFlagRequired("pub")
	return cmd
}
