package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	HomeFlag  = "home"
	TraceFlag = "trace"
)

// PrepareBaseCmd adds the --home and --trace flags to cmd and makes its
// persistent pre-run load flags, environment and config file into viper
// before the command's own pre-run.
func PrepareBaseCmd(cmd *cobra.Command, envPrefix, defaultHome string) *cobra.Command {
	cobra.OnInitialize(func() { InitEnv(envPrefix) })

	flags := cmd.PersistentFlags()
	flags.String(HomeFlag, defaultHome, "directory for config and data")
	flags.Bool(TraceFlag, false, "print out full stack trace on errors")

	cmd.PersistentPreRunE = chainPreRun(BindFlagsLoadViper, cmd.PersistentPreRunE)
	return cmd
}

// InitEnv makes viper read PREFIX_KEY variables. PREFIXKEY is accepted as
// an alias and copied to PREFIX_KEY first.
func InitEnv(prefix string) {
	prefix = strings.ToUpper(prefix)
	withSep := prefix + "_"

	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || strings.HasPrefix(key, withSep) {
			continue
		}
		os.Setenv(withSep+strings.TrimPrefix(key, prefix), val)
	}

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

type runE func(cmd *cobra.Command, args []string) error

// chainPreRun runs each non-nil hook in order, stopping at the first error.
func chainPreRun(hooks ...runE) runE {
	return func(cmd *cobra.Command, args []string) error {
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			if err := hook(cmd, args); err != nil {
				return err
			}
		}
		return nil
	}
}

// BindFlagsLoadViper binds the flags of cmd, including inherited persistent
// ones, and reads config.toml from the home directory or its config
// subdirectory. A missing file is not an error.
func BindFlagsLoadViper(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	home := viper.GetString(HomeFlag)
	viper.Set(HomeFlag, home)
	viper.SetConfigName("config")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, "config"))

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}
