package config

// Token describes the rebasing token served by the vault.
type Token struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

// Pool binds one AMM pool to the plain asset it trades against the token.
type Pool struct {
	ID         string `toml:"ID"`
	PlainAsset string `toml:"PlainAsset"`
	FeePPM     uint32 `toml:"FeePPM"`
}

// Auth configures bearer token validation on the HTTP API.
type Auth struct {
	Enabled bool `toml:"Enabled"`
	// HMACSecret is used when set; otherwise the secret is read from the
	// environment variable named by HMACSecretEnv.
	HMACSecret       string   `toml:"HMACSecret"`
	HMACSecretEnv    string   `toml:"HMACSecretEnv"`
	Issuer           string   `toml:"Issuer"`
	Audience         string   `toml:"Audience"`
	ScopeClaim       string   `toml:"ScopeClaim"`
	ClockSkewSeconds int      `toml:"ClockSkewSeconds"`
	OptionalPaths    []string `toml:"OptionalPaths"`
	AllowAnonymous   bool     `toml:"AllowAnonymous"`
}

// RateLimit caps requests per client for one route group.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Pauses halts individual modules. Paused modules reject mutations.
type Pauses struct {
	Rebase bool `toml:"Rebase"`
	Bank   bool `toml:"Bank"`
	AMM    bool `toml:"AMM"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Enabled     bool   `toml:"Enabled"`
	Endpoint    string `toml:"Endpoint"`
	Insecure    bool   `toml:"Insecure"`
	Headers     string `toml:"Headers"`
	Traces      bool   `toml:"Traces"`
	Metrics     bool   `toml:"Metrics"`
	LogRequests bool   `toml:"LogRequests"`
}
