// Package config defines the flat, environment-populated configuration
// struct consumed by the WAVS core. CLI argument parsing and TOML file
// loading are explicit out-of-scope collaborators (spec §1); this package
// only defines the shape an external loader populates and offers an
// env-var loader for the common case, following the teacher's own
// flat-struct-plus-os.Getenv idiom (pkg/config/config.go) rather than
// adopting a configuration framework the teacher never reaches for.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ChainConfig describes one chain the operator talks to.
type ChainConfig struct {
	Key       string // "<namespace>:<id>", parsed by types.ParseChainKey
	RPCURL    string
	WSURL     string // EVM watchers subscribe over this
	ChainID   int64  // EVM numeric chain id, 0 for cosmos/dev
}

// Config holds every environment-derived setting the core needs.
type Config struct {
	DataDir     string
	ListenAddr  string
	AdminEnabled bool

	Chains []ChainConfig

	Mnemonic string // master mnemonic the submission manager derives signers from

	EngineCacheSize   int
	DefaultFuelLimit  uint64
	DefaultTimeLimit  time.Duration

	TriggerChannelSize int

	LogLevel  string
	LogJSON   bool
}

// EnvPrefix is the reserved prefix components may request passthrough
// environment variables under (spec §4.5, §6).
const EnvPrefix = "WAVS_ENV_"

// FromEnv populates a Config from process environment variables, using
// the same os.Getenv/strconv idiom as the teacher's pkg/config/config.go.
func FromEnv() (*Config, error) {
	c := &Config{
		DataDir:            getEnv("WAVS_DATA_DIR", "./data"),
		ListenAddr:         getEnv("WAVS_LISTEN_ADDR", ":8000"),
		AdminEnabled:       getEnvBool("WAVS_ADMIN_ENABLED", false),
		Mnemonic:           os.Getenv("WAVS_MNEMONIC"),
		EngineCacheSize:    getEnvInt("WAVS_ENGINE_CACHE_SIZE", 32),
		DefaultFuelLimit:   getEnvUint64("WAVS_DEFAULT_FUEL_LIMIT", 10_000_000),
		DefaultTimeLimit:   time.Duration(getEnvInt("WAVS_DEFAULT_TIME_LIMIT_SECS", 30)) * time.Second,
		TriggerChannelSize: getEnvInt("WAVS_TRIGGER_CHANNEL_SIZE", 256),
		LogLevel:           getEnv("WAVS_LOG_LEVEL", "info"),
		LogJSON:            getEnvBool("WAVS_LOG_JSON", true),
	}

	chainsEnv := os.Getenv("WAVS_CHAINS") // "evm:1,evm:137,cosmos:osmosis-1"
	for _, key := range splitNonEmpty(chainsEnv, ",") {
		safe := strings.ReplaceAll(strings.ToUpper(key), ":", "_")
		safe = strings.ReplaceAll(safe, "-", "_")
		cc := ChainConfig{
			Key:     key,
			RPCURL:  os.Getenv("WAVS_CHAIN_" + safe + "_RPC_URL"),
			WSURL:   os.Getenv("WAVS_CHAIN_" + safe + "_WS_URL"),
			ChainID: getEnvInt64("WAVS_CHAIN_"+safe+"_CHAIN_ID", 0),
		}
		c.Chains = append(c.Chains, cc)
	}

	if c.DataDir == "" {
		return nil, fmt.Errorf("config: WAVS_DATA_DIR must not be empty")
	}
	return c, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvUint64(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
