package config

import (
	"fmt"
	"os"
	"strings"

	nativecommon "rebasevault/native/common"
)

// PauseSet converts the configured switches into the pause view consulted by
// the native modules.
func (c *Config) PauseSet() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{
		"rebase": c.Pauses.Rebase,
		"bank":   c.Pauses.Bank,
		"amm":    c.Pauses.AMM,
	}
}

// ResolveHMACSecret returns the inline secret, falling back to the configured
// environment variable.
func (a Auth) ResolveHMACSecret() (string, error) {
	if secret := strings.TrimSpace(a.HMACSecret); secret != "" {
		return secret, nil
	}
	name := strings.TrimSpace(a.HMACSecretEnv)
	if name == "" {
		return "", fmt.Errorf("auth: no hmac secret configured")
	}
	secret := strings.TrimSpace(os.Getenv(name))
	if secret == "" {
		return "", fmt.Errorf("auth: environment variable %s is empty", name)
	}
	return secret, nil
}
