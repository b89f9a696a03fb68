package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddress = "127.0.0.1:8080"
	DefaultDataDir       = "./vault-data"
	DefaultEnvironment   = "dev"
	DefaultPoolFeePPM    = 3000
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	GenesisFile   string `toml:"GenesisFile"`
	// JournalPath defaults to journal.db inside DataDir.
	JournalPath string `toml:"JournalPath"`
	LogFile     string `toml:"LogFile"`
	Environment string `toml:"Environment"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `toml:"CORSOrigins"`

	Token      Token                `toml:"Token"`
	Pools      []Pool               `toml:"Pools"`
	Auth       Auth                 `toml:"Auth"`
	RateLimits map[string]RateLimit `toml:"RateLimits"`
	Pauses     Pauses               `toml:"Pauses"`
	Telemetry  Telemetry            `toml:"Telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		ListenAddress: DefaultListenAddress,
		DataDir:       DefaultDataDir,
		Environment:   DefaultEnvironment,
		Token:         Token{Symbol: "RUSD", Name: "Rebasing USD", Decimals: 18},
		Pools:         []Pool{{ID: "rusd-usdc", PlainAsset: "USDC", FeePPM: DefaultPoolFeePPM}},
		Auth: Auth{
			HMACSecretEnv: "VAULT_JWT_SECRET",
			ScopeClaim:    "scope",
			OptionalPaths: []string{"/healthz", "/metrics"},
		},
		RateLimits: map[string]RateLimit{
			"read":  {RequestsPerMinute: 600, Burst: 50},
			"write": {RequestsPerMinute: 120, Burst: 10},
			"admin": {RequestsPerMinute: 60, Burst: 5},
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = DefaultEnvironment
	}
	if strings.TrimSpace(c.JournalPath) == "" {
		c.JournalPath = filepath.Join(c.DataDir, "journal.db")
	}
	if strings.TrimSpace(c.Auth.ScopeClaim) == "" {
		c.Auth.ScopeClaim = "scope"
	}
	for i := range c.Pools {
		if c.Pools[i].FeePPM == 0 {
			c.Pools[i].FeePPM = DefaultPoolFeePPM
		}
	}
	if c.RateLimits == nil {
		c.RateLimits = map[string]RateLimit{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
