// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/gateway-fm/poolkit/internal/erc20"
	"github.com/gateway-fm/poolkit/internal/uniswapv3"
	"github.com/gateway-fm/poolkit/internal/units"
)

// Config holds poolkit configuration.
type Config struct {
	Network    string
	RPCURL     string
	WSURL      string // WebSocket URL for newHeads; empty disables head-driven receipt waits
	PrivateKey string
	ChainID    int64 // 0 = resolve from Network, else from the node

	Token           common.Address
	WETH            common.Address
	Pool            common.Address
	Factory         common.Address
	PositionManager common.Address
	TokenArtifact   string

	GasTipCap *big.Int // EIP-1559 priority fee in wei (nil = 0)
	GasFeeCap *big.Int // EIP-1559 max fee per gas in wei (nil = auto from chain)
	UseLegacy bool

	JournalPath     string // SQLite journal; empty disables journaling
	MetricsTextfile string
	PushgatewayURL  string
	LogLevel        string

	// EnvFile is the env file that was loaded, for write-back.
	EnvFile string
}

// Defaults
const (
	DefaultEnvFile     = ".env"
	LocalEnvFile       = ".env.local"
	DefaultNetwork     = "arbitrumSepolia"
	DefaultJournalPath = "./data/poolkit.db"
	DefaultLogLevel    = "info"
)

// Networks maps network names to chain ids.
var Networks = map[string]int64{
	"arbitrumSepolia": 421614,
	"arbitrum":        42161,
	"arbitrumOne":     42161,
	"localhost":       31337,
	"hardhat":         31337,
}

// NetworkName returns the name for chainID, or "chain-<id>" if unknown.
func NetworkName(chainID int64) string {
	switch chainID {
	case 421614:
		return "arbitrumSepolia"
	case 42161:
		return "arbitrum"
	case 31337:
		return "localhost"
	}
	return fmt.Sprintf("chain-%d", chainID)
}

// LoadEnvFiles loads ENV_FILE (default .env) and then .env.local into the
// process environment. Variables already set in the environment win, and
// .env.local wins over the base file. A missing default file is not an error;
// a missing explicit ENV_FILE is. Returns the base file path.
func LoadEnvFiles() (string, error) {
	path, merged, err := readEnvFiles(os.Getenv("ENV_FILE"))
	if err != nil {
		return path, err
	}
	for k, v := range merged {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return path, fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	return path, nil
}

// readEnvFiles reads path (DefaultEnvFile when empty) and LocalEnvFile,
// the local file's entries winning.
func readEnvFiles(path string) (string, map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	merged := map[string]string{}
	base, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range base {
			merged[k] = v
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return path, nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	if local, err := godotenv.Read(LocalEnvFile); err == nil {
		for k, v := range local {
			merged[k] = v
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return path, nil, fmt.Errorf("failed to read env file %s: %w", LocalEnvFile, err)
	}
	return path, merged, nil
}

// Load reads env files and then the environment.
func Load() (*Config, error) {
	envFile, err := LoadEnvFiles()
	if err != nil {
		return nil, err
	}
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.EnvFile = envFile
	return cfg, nil
}

// Environ returns a snapshot of the process environment.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// LoadWith re-reads the env files on every call and resolves them under env,
// which wins over file entries as the process environment does in Load. The
// process environment is left unchanged, so values written back to the env
// file by one call are seen by the next.
func LoadWith(env map[string]string) (*Config, error) {
	envFile, merged, err := readEnvFiles(env["ENV_FILE"])
	if err != nil {
		return nil, err
	}
	for k, v := range env {
		merged[k] = v
	}
	cfg, err := FromEnv(func(key string) (string, bool) {
		v, ok := merged[key]
		return v, ok
	})
	if err != nil {
		return nil, err
	}
	cfg.EnvFile = envFile
	return cfg, nil
}

// FromEnv builds a Config from lookupEnv (os.LookupEnv in production).
// Uniswap addresses not set explicitly default to the known deployment for
// the resolved chain id.
func FromEnv(lookupEnv func(string) (string, bool)) (*Config, error) {
	getenv := func(key string) string {
		v, _ := lookupEnv(key)
		return v
	}
	cfg := &Config{
		Network:       DefaultNetwork,
		TokenArtifact: erc20.DefaultArtifactPath,
		JournalPath:   DefaultJournalPath,
		LogLevel:      DefaultLogLevel,
		EnvFile:       DefaultEnvFile,
	}

	if v := getenv("NETWORK"); v != "" {
		cfg.Network = v
	}
	cfg.RPCURL = strings.TrimSpace(getenv("RPC_URL"))
	cfg.WSURL = strings.TrimSpace(getenv("WS_URL"))
	cfg.PrivateKey = strings.TrimSpace(getenv("PRIVATE_KEY"))
	if v := getenv("TOKEN_ARTIFACT"); v != "" {
		cfg.TokenArtifact = v
	}
	if v, ok := lookupEnv("JOURNAL_PATH"); ok {
		// JOURNAL_PATH="" disables the journal.
		cfg.JournalPath = v
	}
	cfg.MetricsTextfile = getenv("METRICS_TEXTFILE")
	cfg.PushgatewayURL = getenv("PUSHGATEWAY_URL")
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid CHAIN_ID %q", v)
		}
		cfg.ChainID = id
	} else if id, ok := Networks[cfg.Network]; ok {
		cfg.ChainID = id
	}

	addrs := []struct {
		key string
		dst *common.Address
	}{
		{"TOKEN_ADDRESS", &cfg.Token},
		{"WETH", &cfg.WETH},
		{"POOL_ADDRESS", &cfg.Pool},
		{"UNISWAP_FACTORY", &cfg.Factory},
		{"POSITION_MANAGER", &cfg.PositionManager},
	}
	for _, a := range addrs {
		addr, err := parseAddress(a.key, getenv(a.key))
		if err != nil {
			return nil, err
		}
		*a.dst = addr
	}

	// Gas values are given in gwei, e.g. GAS_FEE_CAP=0.1
	for _, g := range []struct {
		key string
		dst **big.Int
	}{
		{"GAS_TIP_CAP", &cfg.GasTipCap},
		{"GAS_FEE_CAP", &cfg.GasFeeCap},
	} {
		v := getenv(g.key)
		if v == "" {
			continue
		}
		wei, err := units.ParseGwei(v)
		if err != nil || wei.Sign() < 0 {
			return nil, fmt.Errorf("invalid %s %q (gwei)", g.key, v)
		}
		*g.dst = wei
	}
	if v := getenv("USE_LEGACY_TX"); v != "" {
		legacy, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid USE_LEGACY_TX %q", v)
		}
		cfg.UseLegacy = legacy
	}

	cfg.ApplyDeploymentDefaults()
	return cfg, nil
}

func parseAddress(key, v string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid %s %q: not a hex address", key, v)
	}
	return common.HexToAddress(v), nil
}

// ApplyDeploymentDefaults fills unset Uniswap addresses from
// uniswapv3.KnownDeployments for the configured chain id.
func (c *Config) ApplyDeploymentDefaults() {
	if c.ChainID <= 0 {
		return
	}
	d, ok := uniswapv3.KnownDeployments[uint64(c.ChainID)]
	if !ok {
		return
	}
	if c.Factory == (common.Address{}) {
		c.Factory = d.Factory
	}
	if c.PositionManager == (common.Address{}) {
		c.PositionManager = d.PositionManager
	}
	if c.WETH == (common.Address{}) {
		c.WETH = d.WETH
	}
}

// Requirement names a setting a command cannot run without.
type Requirement int

const (
	NeedToken Requirement = iota
	NeedPool
	NeedWETH
	NeedFactory
	NeedPositionManager
)

var requirementKeys = map[Requirement]string{
	NeedToken:           "TOKEN_ADDRESS",
	NeedPool:            "POOL_ADDRESS",
	NeedWETH:            "WETH",
	NeedFactory:         "UNISWAP_FACTORY",
	NeedPositionManager: "POSITION_MANAGER",
}

func (c *Config) address(r Requirement) common.Address {
	switch r {
	case NeedToken:
		return c.Token
	case NeedPool:
		return c.Pool
	case NeedWETH:
		return c.WETH
	case NeedFactory:
		return c.Factory
	case NeedPositionManager:
		return c.PositionManager
	}
	return common.Address{}
}

// Validate checks the settings every command needs plus the given requirements.
// All missing keys are reported together.
func (c *Config) Validate(reqs ...Requirement) error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	for _, r := range reqs {
		if c.address(r) == (common.Address{}) {
			missing = append(missing, requirementKeys[r])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.GasTipCap != nil && c.GasFeeCap != nil && c.GasTipCap.Cmp(c.GasFeeCap) > 0 {
		return fmt.Errorf("gas tip cap cannot exceed gas fee cap")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// SetEnvValue writes key=value into the env file at path, keeping the other
// entries. The file is created if missing.
func SetEnvValue(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env[key] = value
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", path, err)
	}
	return nil
}
