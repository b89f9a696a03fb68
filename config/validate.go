package config

import (
	"fmt"
	"net"
	"strings"
)

// MaxFeePPM is the largest accepted pool fee: fees at or above one million
// parts per million would consume the whole input.
const MaxFeePPM = 999_999

// MaxDecimals bounds token decimals so display scaling stays within uint256.
const MaxDecimals = 36

func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.Token.Symbol) == "" {
		return fmt.Errorf("token: symbol required")
	}
	if c.Token.Decimals > MaxDecimals {
		return fmt.Errorf("token: decimals %d exceeds %d", c.Token.Decimals, MaxDecimals)
	}
	seen := make(map[string]struct{}, len(c.Pools))
	for i, pool := range c.Pools {
		id := strings.TrimSpace(pool.ID)
		if id == "" {
			return fmt.Errorf("pools[%d]: id required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("pools[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(pool.PlainAsset) == "" {
			return fmt.Errorf("pools.%s: plain asset required", id)
		}
		if strings.EqualFold(strings.TrimSpace(pool.PlainAsset), strings.TrimSpace(c.Token.Symbol)) {
			return fmt.Errorf("pools.%s: plain asset must differ from the rebasing token", id)
		}
		if pool.FeePPM > MaxFeePPM {
			return fmt.Errorf("pools.%s: fee_ppm %d exceeds %d", id, pool.FeePPM, MaxFeePPM)
		}
	}
	for key, limit := range c.RateLimits {
		if limit.RequestsPerMinute < 0 || limit.Burst < 0 {
			return fmt.Errorf("rate_limits.%s: values must be non-negative", key)
		}
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" && strings.TrimSpace(c.Auth.HMACSecretEnv) == "" {
		return fmt.Errorf("auth: hmac secret or secret env required when enabled")
	}
	if c.Auth.ClockSkewSeconds < 0 {
		return fmt.Errorf("auth: clock skew must be non-negative")
	}
	if err := c.CheckExposure(); err != nil {
		return err
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: endpoint required when enabled")
	}
	return nil
}

// CheckExposure rejects a listener reachable beyond this host while auth is
// disabled. Without auth the caller identity comes from a request header, so
// only local clients may be trusted to send it.
func (c *Config) CheckExposure() error {
	if c.Auth.Enabled || IsLoopback(c.ListenAddress) {
		return nil
	}
	return fmt.Errorf("auth: disabled but ListenAddress %q is not loopback; enable [Auth] or bind 127.0.0.1", c.ListenAddress)
}

// IsLoopback reports whether addr only accepts local connections. An empty
// host binds every interface.
func IsLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil || host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
