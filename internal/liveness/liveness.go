// Package liveness implements the Liveness Prober (§4.4): a periodic
// task that probes reachability through each connected interface and
// feeds results into the supervisor's health-state update path.
package liveness

import (
	"context"
	"time"

	"github.com/netfleetops/pppfleet/internal/netctl"
)

// Target is the subset of supervisor.Manager the prober depends on.
// Keeping it as an interface lets tests swap in a fake without the
// liveness package importing supervisor's concrete type.
type Target interface {
	// ConnectedInterfaces returns the interfaces currently considered
	// connected (local_ip.is_some()), snapshotted under the registry
	// lock and released before probing (§4.4).
	ConnectedInterfaces() []string
	UpdateHealthStatus(iface string, ok bool, threshold int)
}

// Prober runs one ping(8) probe per connected interface at Interval.
type Prober struct {
	target    Target
	runner    netctl.Runner
	interval  time.Duration
	threshold int
	probeAddr string
}

// New constructs a Prober per the configured interval/threshold/target (§6).
func New(target Target, runner netctl.Runner, interval time.Duration, threshold int, probeAddr string) *Prober {
	return &Prober{target: target, runner: runner, interval: interval, threshold: threshold, probeAddr: probeAddr}
}

// Run probes forever at the configured interval until ctx is cancelled.
// It never holds any lock across a probe (§4.4, §5) — ConnectedInterfaces
// snapshots under lock and returns before any probe runs.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

func (p *Prober) probeAll(ctx context.Context) {
	for _, iface := range p.target.ConnectedInterfaces() {
		ok := netctl.Probe(ctx, p.runner, iface, p.probeAddr) == nil
		p.target.UpdateHealthStatus(iface, ok, p.threshold)
	}
}
