// Command pppfleetd runs the PPPoE fleet supervisor described in
// spec.md/SPEC_FULL.md: it dials a configured number of PPPoE sessions,
// keeps them up, rotates their public IPs on a schedule, and serves
// operator query/control operations.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/netfleetops/pppfleet/internal/config"
	"github.com/netfleetops/pppfleet/internal/netctl"
	"github.com/netfleetops/pppfleet/internal/proxyengine"
	"github.com/netfleetops/pppfleet/internal/session"
	"github.com/netfleetops/pppfleet/internal/supervisor"
	"golang.org/x/sys/unix"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup signal handling for graceful shutdown, same as the
	// teacher's main.go.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, unix.SIGINT, unix.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-signalCh
		log.Println("shutting down...")
		cancel()
	}()

	var runner netctl.Runner = netctl.ExecRunner{}
	var dialer session.Dialer = session.PppdDialer{}
	if cfg.DryRun {
		// DRY_RUN (carried over from original_source/jeffpeng3-pppoe-socks's
		// core/config.rs) skips every external-program invocation so the
		// fleet can be exercised on a host with no pppd/ip/nft/ping/gost.
		runner = netctl.DryRunRunner{}
		dialer = session.DryRunDialer{}
	}

	if err := netctl.ApplyNftables(ctx, runner, "/etc/nftables.conf"); err != nil {
		log.Printf("nftables apply failed: %v", err)
	}

	mgr := supervisor.New(runner)
	mgr.StartClients(cfg.PPPoEUsername, cfg.PPPoEPassword, cfg.SessionCount, dialer, 0)

	go mgr.RunEventLoop(ctx)

	proxy := proxyengine.New("./gost", "gost.json", cfg.ProxyVerbose, cfg.DryRun)
	if err := proxy.WriteConfig(proxyengine.BuildConfig(cfg.SessionCount, cfg.GostLogLevel)); err != nil {
		log.Fatalf("proxy engine: %v", err)
	}
	if err := proxy.Start(ctx); err != nil {
		log.Fatalf("proxy engine: %v", err)
	}

	mgr.StartAll()

	log.Printf("pppfleetd started with %d session(s)", cfg.SessionCount)

	if err := mgr.Serve(ctx, cfg); err != nil {
		log.Printf("serve: %v", err)
	}

	mgr.StopAll()
	mgr.StopClients()
	proxy.Close()
	log.Println("shutdown complete")
}
