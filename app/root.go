package app

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trufnetwork/wageproof/cmd/version"
	"github.com/trufnetwork/wageproof/config"
	"github.com/trufnetwork/wageproof/internal/display"
)

const configFlag = "config"

// runtimeEnv is filled in before any sub-command runs.
type runtimeEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

// RootCmd creates the wagectl command tree.
func RootCmd() *cobra.Command {
	env := &runtimeEnv{}

	cmd := &cobra.Command{
		Use:           "wagectl",
		Short:         "Issue, verify and redeem signed wage attestations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString(configFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			env.cfg, env.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if env.logger != nil {
				_ = env.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().String(configFlag, "", "path to a YAML config file")
	display.BindOutputFlag(cmd)

	cmd.AddCommand(
		keygenCmd(),
		canonicalizeCmd(),
		nullifierCmd(),
		createCmd(env),
		verifyCmd(env),
		claimCmd(env),
		version.NewVersionCmd(),
	)
	return cmd
}
