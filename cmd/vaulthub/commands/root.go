package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stvaults/vaulthub/config"
	"github.com/stvaults/vaulthub/libs/cli"
	"github.com/stvaults/vaulthub/libs/log"
)

// ParseConfig retrieves the default environment configuration,
// sets up the root and ensures that the root exists
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// RootCommand constructs the root command-line entry point for the vault hub.
func RootCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaulthub",
		Short: "Accounting and report ingestion for staking vaults",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == VersionCmd.Name() {
				return nil
			}

			pconf, err := ParseConfig(conf)
			if err != nil {
				return err
			}
			*conf = *pconf
			config.EnsureRoot(conf.RootDir)
			return log.OverrideWithNewLogger(logger, conf.LogFormat, conf.LogLevel)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("log_level", conf.LogLevel, "log level")
	// flags and the config file are loaded into viper before the hook above
	return cli.PrepareBaseCmd(cmd, "VH", os.ExpandEnv(filepath.Join("$HOME", config.DefaultVaultHubDir)))
}
