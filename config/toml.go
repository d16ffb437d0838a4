package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	tmos "github.com/stvaults/vaulthub/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := tmos.EnsureDir(rootDir, defaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm); err != nil {
		panic(err.Error())
	}
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, buffer.Bytes(), 0644)
}

// WriteDefaultConfigFileIfNone writes the default config to the root unless
// a config file is already there.
func WriteDefaultConfigFileIfNone(rootDir string) error {
	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if tmos.FileExists(configFilePath) {
		return nil
	}
	return WriteConfigFile(rootDir, DefaultConfig())
}

func writeFile(path string, contents []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, contents, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.vaulthub" by default, but could be changed via $VHHOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Database backend: goleveldb | memdb
# * goleveldb (github.com/syndtr/goleveldb - most popular implementation)
#   - pure go
#   - stable
# * memdb
#   - in memory, everything is lost on restart
#   - for tests and dry runs
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 Vault Hub Configuration Options                 ###
#######################################################################
[hub]

# Maximum age of a vault report that still allows minting, withdrawal and
# fee settlement
freshness_delta = "{{ .Hub.FreshnessDelta }}"

# Floor of the value locked in every vault, in wei
minimal_reserve = "{{ .Hub.MinimalReserve }}"

# Unsettled fees, in wei, at which beacon chain deposits of a vault are paused
fee_pause_threshold = "{{ .Hub.FeePauseThreshold }}"

# Recipient of settled protocol fees
treasury_address = "{{ .Hub.TreasuryAddress }}"

# Recipient of value rebalanced out of vaults
pool_address = "{{ .Hub.PoolAddress }}"

#######################################################################
###                   Oracle Configuration Options                  ###
#######################################################################
[oracle]

# How long an unexplained total value increase is held back
quarantine_period = "{{ .Oracle.QuarantinePeriod }}"

# Largest total value increase, in basis points of the value explained by
# deposits, trusted without quarantine
max_reward_ratio_bp = {{ .Oracle.MaxRewardRatioBP }}

# Fastest cumulative protocol fees may grow, in wei per second
max_lido_fee_rate_per_second = "{{ .Oracle.MaxLidoFeeRatePerSecond }}"

#######################################################################
###                    Frame Configuration Options                  ###
#######################################################################
[frame]

# Unix time of the genesis slot
genesis_time = {{ .Frame.GenesisTime }}

seconds_per_slot = {{ .Frame.SecondsPerSlot }}
slots_per_epoch = {{ .Frame.SlotsPerEpoch }}
epochs_per_frame = {{ .Frame.EpochsPerFrame }}

# Epoch the first frame starts at
initial_epoch = {{ .Frame.InitialEpoch }}

# Whole frames that must pass after a reference slot before roots for it
# are accepted
finality_lag_frames = {{ .Frame.FinalityLagFrames }}

#######################################################################
###                     Auth Configuration Options                  ###
#######################################################################
[auth]

# Hex addresses holding each role
reporters = [{{ range $i, $a := .Auth.Reporters }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]
vault_masters = [{{ range $i, $a := .Auth.VaultMasters }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]
redemption_masters = [{{ range $i, $a := .Auth.RedemptionMasters }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]
pausers = [{{ range $i, $a := .Auth.Pausers }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]
sanity_params_updaters = [{{ range $i, $a := .Auth.SanityParamsUpdaters }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]

#######################################################################
###               Instrumentation Configuration Options             ###
#######################################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
# If you want to accept a larger number than the default, make sure
# you increase your OS limits.
# 0 - unlimited.
max_open_connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
