package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithArgs(t *testing.T, args ...string) (moniker string, trace bool) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{
		Use: "demo",
		RunE: func(*cobra.Command, []string) error {
			moniker = viper.GetString("moniker")
			trace = viper.GetBool(TraceFlag)
			return nil
		},
	}
	cmd = PrepareBaseCmd(cmd, "VHDEMO", t.TempDir())
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return moniker, trace
}

func TestSetupConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config", "config.toml"), []byte(`moniker = "from-file"`), 0600))

	moniker, trace := runWithArgs(t, "--home", home, "--trace")
	assert.Equal(t, "from-file", moniker)
	assert.True(t, trace)

	// no config file at all is fine
	moniker, _ = runWithArgs(t, "--home", t.TempDir())
	assert.Empty(t, moniker)
}

func TestSetupEnv(t *testing.T) {
	t.Setenv("VHDEMOMONIKER", "from-env")
	t.Cleanup(func() { os.Unsetenv("VHDEMO_MONIKER") })

	moniker, _ := runWithArgs(t)
	assert.Equal(t, "from-env", moniker)
}

func TestSetupBadConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(`moniker = `), 0600))

	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd := PrepareBaseCmd(&cobra.Command{Use: "demo", RunE: func(*cobra.Command, []string) error { return nil }}, "VHDEMO", home)
	cmd.SetArgs([]string{"--home", home})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.Error(t, cmd.Execute())
}
