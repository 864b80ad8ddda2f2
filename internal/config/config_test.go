package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnviron(overrides map[string]string) []string {
	base := map[string]string{
		"PPPOE_USERNAME":           "alice",
		"PPPOE_PASSWORD":           "s3cret",
		"GATEWAY":                  "203.0.113.1",
		"DISCORD_TOKEN":            "tok",
		"IP_ROTATION_TIME":         "30",
		"IP_ROTATION_WAIT_SECONDS": "5",
	}
	for k, v := range overrides {
		base[k] = v
	}
	environ := make([]string, 0, len(base))
	for k, v := range base {
		environ = append(environ, k+"="+v)
	}
	return environ
}

func TestFromEnviron_Defaults(t *testing.T) {
	cfg, err := FromEnviron(baseEnviron(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.SessionCount)
	assert.True(t, cfg.HealthCheckEnabled)
	assert.Equal(t, 30, cfg.HealthCheckInterval)
	assert.Equal(t, 3, cfg.HealthCheckThreshold)
	assert.Equal(t, "8.8.8.8", cfg.HealthCheckTarget)
	assert.Equal(t, "warn", cfg.GostLogLevel)
	assert.False(t, cfg.ProxyVerbose)
}

func TestFromEnviron_SessionCountRejectedAboveSeven(t *testing.T) {
	_, err := FromEnviron(baseEnviron(map[string]string{"PPPOE_SESSION_COUNT": "8"}))
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "PPPOE_SESSION_COUNT", cerr.Field)
}

func TestFromEnviron_MissingRequiredField(t *testing.T) {
	environ := baseEnviron(nil)
	filtered := environ[:0]
	for _, kv := range environ {
		if len(kv) >= len("GATEWAY=") && kv[:len("GATEWAY=")] == "GATEWAY=" {
			continue
		}
		filtered = append(filtered, kv)
	}
	_, err := FromEnviron(filtered)
	require.Error(t, err)
}

func TestFromEnviron_RotationDisabled(t *testing.T) {
	cfg, err := FromEnviron(baseEnviron(map[string]string{"IP_ROTATION_TIME": "0"}))
	require.NoError(t, err)
	assert.True(t, cfg.Rotation.Disabled())
}

func TestFromEnviron_DryRunDefaultsFalse(t *testing.T) {
	cfg, err := FromEnviron(baseEnviron(nil))
	require.NoError(t, err)
	assert.False(t, cfg.DryRun)

	cfg, err = FromEnviron(baseEnviron(map[string]string{"DRY_RUN": "true"}))
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
}

func TestFromEnviron_ProxyVerboseAcceptsBoolSpellings(t *testing.T) {
	cfg, err := FromEnviron(baseEnviron(map[string]string{"PROXY_VERBOSE": "1"}))
	require.NoError(t, err)
	assert.True(t, cfg.ProxyVerbose)

	_, err = FromEnviron(baseEnviron(map[string]string{"PROXY_VERBOSE": "maybe"}))
	require.Error(t, err)
}
