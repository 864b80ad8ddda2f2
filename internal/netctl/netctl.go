// Package netctl wraps the external ip(8)/ping(8)/nft(8) programs the
// supervisor and liveness subsystems shell out to (§6).
package netctl

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Runner executes external programs. Production code uses ExecRunner;
// tests substitute a fake to avoid touching the host's network stack.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner shells out via os/exec, capturing combined output for
// error messages only (nothing is parsed from it).
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

// DryRunRunner is a Runner that logs each invocation instead of
// executing it, and always reports success. It is the Go home for the original implementation's
// DRY_RUN flag (jeffpeng3/pppoe-socks's `setup_nft`/`init_route` both
// gate their `nft`/`ip` calls behind it), letting the fleet be
// exercised end to end on a host with no real pppd/ip/nft/ping
// available.
type DryRunRunner struct{}

func (DryRunRunner) Run(ctx context.Context, name string, args ...string) error {
	log.Printf("[DRY-RUN] %s %s", name, strings.Join(args, " "))
	return nil
}

// AddDefaultRoute installs "ip route add default dev <iface> table <table>".
// Errors are RouteInstallFailed: logged by the caller, never fatal —
// duplicate routes on reconnect are expected (§4.2).
func AddDefaultRoute(ctx context.Context, r Runner, iface string, table int) error {
	return r.Run(ctx, "ip", "route", "add", "default", "dev", iface, "table", fmt.Sprintf("%d", table))
}

// ApplyNftables loads the static ruleset at startup.
func ApplyNftables(ctx context.Context, r Runner, path string) error {
	return r.Run(ctx, "nft", "-f", path)
}

// Probe runs a single bound ICMP echo with a 2s timeout, per §4.4.
func Probe(ctx context.Context, r Runner, iface, target string) error {
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.Run(pctx, "ping", "-c", "1", "-W", "2", "-I", iface, target)
}
