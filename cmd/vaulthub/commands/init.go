package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stvaults/vaulthub/config"
	"github.com/stvaults/vaulthub/libs/log"
	tmos "github.com/stvaults/vaulthub/libs/os"
)

// MakeInitFilesCommand returns the command that writes a default config
// file into the home directory.
func MakeInitFilesCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initializes a vault hub home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initFiles(conf, logger)
		},
	}
}

func initFiles(conf *config.Config, logger log.Logger) error {
	configFile := filepath.Join(conf.RootDir, "config", "config.toml")
	if tmos.FileExists(configFile) {
		logger.Info("Found config", "path", configFile)
		return nil
	}
	if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
		return err
	}
	logger.Info("Generated config", "path", configFile)
	return nil
}
