package proxyengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfig_OneServicePairPerSessionPlusUplink(t *testing.T) {
	cfg := BuildConfig(3, "warn")
	require.Len(t, cfg.Services, 4)

	assert.Equal(t, "uplink", cfg.Services[0].Name)
	assert.Equal(t, 100, cfg.Services[0].Table)

	assert.Equal(t, "ppp0", cfg.Services[1].Interface)
	assert.Equal(t, 101, cfg.Services[1].Table)
	assert.Equal(t, "ppp2", cfg.Services[3].Interface)
	assert.Equal(t, 103, cfg.Services[3].Table)

	assert.Contains(t, cfg.BypassCIDRs, "127.0.0.0/8")
	assert.Contains(t, cfg.BypassCIDRs, "::1/128")
	assert.Contains(t, cfg.BypassCIDRs, "fc00::/7")
	assert.Equal(t, "warn", cfg.LogLevel)
}
