package netctl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDryRunRunner_NeverExecutesAndAlwaysSucceeds(t *testing.T) {
	var r Runner = DryRunRunner{}
	require.NoError(t, r.Run(context.Background(), "nft", "-f", "/etc/nftables.conf"))
	require.NoError(t, r.Run(context.Background(), "ip", "route", "add", "default", "dev", "ppp0", "table", "101"))
}
