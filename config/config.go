package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultVaultHubDir = ".vaulthub"
	defaultConfigDir   = "config"
	defaultDataDir     = "data"

	defaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for a vault hub node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Hub             *HubConfig             `mapstructure:"hub"`
	Oracle          *OracleConfig          `mapstructure:"oracle"`
	Frame           *FrameConfig           `mapstructure:"frame"`
	Auth            *AuthConfig            `mapstructure:"auth"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a vault hub node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Hub:             DefaultHubConfig(),
		Oracle:          DefaultOracleConfig(),
		Frame:           DefaultFrameConfig(),
		Auth:            DefaultAuthConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Hub:             TestHubConfig(),
		Oracle:          DefaultOracleConfig(),
		Frame:           DefaultFrameConfig(),
		Auth:            DefaultAuthConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Hub.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [hub] section: %w", err)
	}
	if err := cfg.Oracle.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [oracle] section: %w", err)
	}
	if err := cfg.Frame.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [frame] section: %w", err)
	}
	if err := cfg.Auth.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [auth] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a vault hub node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this node
	Moniker string `mapstructure:"moniker"`

	// Database backend: goleveldb | cleveldb | boltdb | rocksdb | badgerdb | memdb
	// Only goleveldb and memdb are built without extra tags.
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging: debug | info | error
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`
}

// DefaultBaseConfig returns a default base configuration for a vault hub node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		Moniker:   defaultMoniker,
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
		LogLevel:  DefaultLogLevel,
		LogFormat: LogFormatPlain,
	}
}

// TestBaseConfig returns a base configuration for testing a vault hub node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	cfg.LogLevel = "debug"
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	switch cfg.LogLevel {
	case "debug", "info", "error":
	default:
		return errors.New("unknown log_level (must be 'debug', 'info' or 'error')")
	}
	if cfg.DBBackend == "" {
		return errors.New("db_backend can't be empty")
	}
	return nil
}

// DefaultLogLevel is the log level nodes start with.
const DefaultLogLevel = "info"

//-----------------------------------------------------------------------------
// HubConfig

// HubConfig defines the ledger parameters. Amounts are decimal wei strings.
type HubConfig struct {
	// Maximum age of a vault report that still allows minting, withdrawal
	// and fee settlement
	FreshnessDelta time.Duration `mapstructure:"freshness_delta"`

	// Floor of the value locked in every vault
	MinimalReserve string `mapstructure:"minimal_reserve"`

	// Unsettled fees at which beacon chain deposits of a vault are paused
	FeePauseThreshold string `mapstructure:"fee_pause_threshold"`

	// Recipient of settled protocol fees
	TreasuryAddress string `mapstructure:"treasury_address"`

	// Recipient of value rebalanced out of vaults
	PoolAddress string `mapstructure:"pool_address"`
}

// DefaultHubConfig returns the mainnet ledger parameters
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		FreshnessDelta:    48 * time.Hour,
		MinimalReserve:    "1000000000000000000",
		FeePauseThreshold: "1000000000000000000",
	}
}

// TestHubConfig returns ledger parameters for testing
func TestHubConfig() *HubConfig {
	cfg := DefaultHubConfig()
	cfg.TreasuryAddress = "0x00000000000000000000000000000000000000c1"
	cfg.PoolAddress = "0x00000000000000000000000000000000000000c2"
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *HubConfig) ValidateBasic() error {
	if cfg.FreshnessDelta <= 0 {
		return errors.New("freshness_delta must be positive")
	}
	if _, err := ParseWei(cfg.MinimalReserve); err != nil {
		return fmt.Errorf("minimal_reserve: %w", err)
	}
	if threshold, err := ParseWei(cfg.FeePauseThreshold); err != nil {
		return fmt.Errorf("fee_pause_threshold: %w", err)
	} else if !threshold.IsPositive() {
		return errors.New("fee_pause_threshold must be positive")
	}
	if _, err := ParseAddress(cfg.TreasuryAddress); err != nil {
		return fmt.Errorf("treasury_address: %w", err)
	}
	if _, err := ParseAddress(cfg.PoolAddress); err != nil {
		return fmt.Errorf("pool_address: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// OracleConfig

// OracleConfig defines the default sanity parameters vault reports are
// checked against. Governance may replace them at runtime.
type OracleConfig struct {
	// How long an unexplained total value increase is held back
	QuarantinePeriod time.Duration `mapstructure:"quarantine_period"`

	// Largest total value increase, in basis points of the value explained
	// by deposits, trusted without quarantine
	MaxRewardRatioBP uint32 `mapstructure:"max_reward_ratio_bp"`

	// Fastest cumulative protocol fees may grow, in wei per second
	MaxLidoFeeRatePerSecond string `mapstructure:"max_lido_fee_rate_per_second"`
}

// DefaultOracleConfig returns the mainnet sanity parameters
func DefaultOracleConfig() *OracleConfig {
	return &OracleConfig{
		QuarantinePeriod:        72 * time.Hour,
		MaxRewardRatioBP:        350,
		MaxLidoFeeRatePerSecond: "100000000000000",
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *OracleConfig) ValidateBasic() error {
	if cfg.QuarantinePeriod < 0 {
		return errors.New("quarantine_period can't be negative")
	}
	if cfg.MaxRewardRatioBP > 10_000 {
		return errors.New("max_reward_ratio_bp can't exceed 10000")
	}
	if _, err := ParseWei(cfg.MaxLidoFeeRatePerSecond); err != nil {
		return fmt.Errorf("max_lido_fee_rate_per_second: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// FrameConfig

// FrameConfig defines the beacon chain timing reporting frames follow.
type FrameConfig struct {
	// Unix time of the genesis slot
	GenesisTime int64 `mapstructure:"genesis_time"`

	SecondsPerSlot uint64 `mapstructure:"seconds_per_slot"`
	SlotsPerEpoch  uint64 `mapstructure:"slots_per_epoch"`
	EpochsPerFrame uint64 `mapstructure:"epochs_per_frame"`

	// Epoch the first frame starts at
	InitialEpoch uint64 `mapstructure:"initial_epoch"`

	// Whole frames that must pass after a reference slot before roots for
	// it are accepted
	FinalityLagFrames uint64 `mapstructure:"finality_lag_frames"`
}

// DefaultFrameConfig returns the mainnet timing with daily frames
func DefaultFrameConfig() *FrameConfig {
	return &FrameConfig{
		GenesisTime:    1606824023,
		SecondsPerSlot: 12,
		SlotsPerEpoch:  32,
		EpochsPerFrame: 225,
	}
}

// Genesis returns the genesis time.
func (cfg *FrameConfig) Genesis() time.Time {
	return time.Unix(cfg.GenesisTime, 0).UTC()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *FrameConfig) ValidateBasic() error {
	if cfg.GenesisTime <= 0 {
		return errors.New("genesis_time must be positive")
	}
	if cfg.SecondsPerSlot == 0 {
		return errors.New("seconds_per_slot can't be zero")
	}
	if cfg.SlotsPerEpoch == 0 {
		return errors.New("slots_per_epoch can't be zero")
	}
	if cfg.EpochsPerFrame == 0 {
		return errors.New("epochs_per_frame can't be zero")
	}
	return nil
}

//-----------------------------------------------------------------------------
// AuthConfig

// AuthConfig lists the holders of each administrative role.
type AuthConfig struct {
	Reporters            []string `mapstructure:"reporters"`
	VaultMasters         []string `mapstructure:"vault_masters"`
	RedemptionMasters    []string `mapstructure:"redemption_masters"`
	Pausers              []string `mapstructure:"pausers"`
	SanityParamsUpdaters []string `mapstructure:"sanity_params_updaters"`
}

// DefaultAuthConfig grants no roles.
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{}
}

// Grants returns the holders of each role, keyed by role name.
func (cfg *AuthConfig) Grants() (map[string][]common.Address, error) {
	grants := make(map[string][]common.Address)
	for role, holders := range map[string][]string{
		"reporter":              cfg.Reporters,
		"vault_master":          cfg.VaultMasters,
		"redemption_master":     cfg.RedemptionMasters,
		"pauser":                cfg.Pausers,
		"sanity_params_updater": cfg.SanityParamsUpdaters,
	} {
		for _, h := range holders {
			addr, err := ParseAddress(h)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", role, err)
			}
			grants[role] = append(grants[role], addr)
		}
	}
	return grants, nil
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *AuthConfig) ValidateBasic() error {
	_, err := cfg.Grants()
	return err
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Maximum number of simultaneous connections.
	// If you want to accept a larger number than the default, make sure
	// you increase your OS limits.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "vaulthub",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// ParseWei parses a non-negative decimal amount.
func ParseWei(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("%q is not a decimal integer", s)
	}
	if v.IsNegative() {
		return math.Int{}, fmt.Errorf("%q is negative", s)
	}
	return v, nil
}

// ParseAddress parses a hex address. The empty string is the zero address.
func ParseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

//-----------------------------------------------------------------------------
// Moniker

var defaultMoniker = getDefaultMoniker()

// getDefaultMoniker returns a default moniker, which is the host name. If runtime
// fails to get the host name, "anonymous" will be returned.
func getDefaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}
