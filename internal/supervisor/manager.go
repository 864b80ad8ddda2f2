// Package supervisor implements the Manager (§4.2): the mapping from
// interface to ConnectionInfo and command channel, the event loop, the
// rotation/liveness/stats orchestration entrypoint, and the public
// query/control contract.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/netfleetops/pppfleet/internal/events"
	"github.com/netfleetops/pppfleet/internal/netctl"
	"github.com/netfleetops/pppfleet/internal/session"
)

// tableBase is the policy-routing table id for session 0; session i
// uses tableBase+i (§3 invariant 4).
const tableBase = 101

// startStagger is the inter-client gap used when broadcasting Connect
// (§5 "start_all delivers Connect in stable key order with a 100 ms gap").
const startStagger = 100 * time.Millisecond

// Manager is the supervisor described in §4.2.
type Manager struct {
	reg *registry

	inbound chan events.PpmsEvent

	clients map[string]*session.Client

	netRunner netctl.Runner
}

// New constructs a Manager. netRunner is injectable so tests can avoid
// touching the real `ip` binary.
func New(netRunner netctl.Runner) *Manager {
	if netRunner == nil {
		netRunner = netctl.ExecRunner{}
	}
	return &Manager{
		reg:       newRegistry(),
		inbound:   make(chan events.PpmsEvent, 64),
		clients:   make(map[string]*session.Client),
		netRunner: netRunner,
	}
}

// StartClients spawns N Session Clients named ppp0..ppp(N-1) bound to
// the shared credentials, registering their command channels (§4.2).
// dialer is injected so production wiring can pass session.PppdDialer{}
// and tests can pass a fake.
func (m *Manager) StartClients(user, pass string, n int, dialer session.Dialer, maxAttempts int) {
	order := make([]string, n)
	for i := 0; i < n; i++ {
		iface := fmt.Sprintf("ppp%d", i)
		order[i] = iface

		c := session.New(iface, user, pass, dialer, maxAttempts, m.inbound)
		m.clients[iface] = c
		m.reg.registerCommandChan(iface, c.Commands())
		go c.Run()
	}
	m.reg.setOrder(order)
}

// StopClients signals every client to shut down and waits for them to
// exit (used at process shutdown, §5 "Cancellation and shutdown").
func (m *Manager) StopClients() {
	for _, c := range m.clients {
		c.Stop()
	}
}

func (m *Manager) send(iface string, cmd events.ClientCommand) error {
	ch, ok := m.reg.commandChan(iface)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInterfaceNotFound, iface)
	}
	select {
	case ch <- cmd:
		return nil
	case <-time.After(time.Second):
		// A send that can't land within a second means the client's
		// select loop is gone or wedged — surface ChannelClosed (§7)
		// rather than blocking the caller indefinitely.
		return fmt.Errorf("%w: %s", ErrChannelClosed, iface)
	}
}

// ConnectClient delivers a Connect command (§4.2).
func (m *Manager) ConnectClient(iface string) error { return m.send(iface, events.Connect()) }

// DisconnectClient delivers a Disconnect command (§4.2).
func (m *Manager) DisconnectClient(iface string) error { return m.send(iface, events.Disconnect()) }

// ReconnectClient delivers a Reconnect command (§4.2).
func (m *Manager) ReconnectClient(iface string) error { return m.send(iface, events.Reconnect()) }

// StartAll broadcasts Connect to every client in stable key order with
// a 100ms stagger between sends (§4.2, §5).
func (m *Manager) StartAll() {
	for i, iface := range m.reg.orderedInterfaces() {
		if i > 0 {
			time.Sleep(startStagger)
		}
		if err := m.ConnectClient(iface); err != nil {
			log.Printf("start_all: %s: %v", iface, err)
		}
	}
}

// StopAll broadcasts Disconnect to every client (§4.2, §4.5, §5
// shutdown path). No stagger: tearing down is not rate sensitive and
// §4.5 only requires the stagger on the up-phase.
func (m *Manager) StopAll() {
	for _, iface := range m.reg.orderedInterfaces() {
		if err := m.DisconnectClient(iface); err != nil {
			log.Printf("stop_all: %s: %v", iface, err)
		}
	}
}

// ConfiguredInterfaces returns the fixed ppp0..ppp(N-1) order fixed at
// StartClients time, independent of which interfaces have ever
// reported an IP (§3 "iteration order ... stable across rotations").
func (m *Manager) ConfiguredInterfaces() []string {
	return m.reg.orderedInterfaces()
}

// GetAllStats returns a snapshot of the registry in stable key order
// (§4.2).
func (m *Manager) GetAllStats() []NamedConnectionInfo {
	return m.reg.snapshot()
}

// CheckHealth runs a single liveness probe against iface and returns
// whether it succeeded, without mutating registry health state (§4.2
// "check_health"). UpdateHealthStatus is the stateful counterpart the
// liveness loop drives.
func (m *Manager) CheckHealth(ctx context.Context, iface, target string) bool {
	err := netctl.Probe(ctx, m.netRunner, iface, target)
	return err == nil
}

// UpdateHealthStatus mutates is_healthy/consecutive_failures/
// last_health_check and, once the failure threshold is reached,
// issues Reconnect to the interface's client without holding the
// registry lock across the send (§4.2, §5).
func (m *Manager) UpdateHealthStatus(iface string, ok bool, threshold int) {
	var shouldReconnect bool

	m.reg.withConn(iface, func(info *ConnectionInfo) {
		info.LastHealthCheck = time.Now()
		if ok {
			info.IsHealthy = true
			info.ConsecutiveFailures = 0
			return
		}
		info.IsHealthy = false
		info.ConsecutiveFailures++
		if int(info.ConsecutiveFailures) >= threshold {
			shouldReconnect = true
		}
	})

	if shouldReconnect {
		if err := m.ReconnectClient(iface); err != nil {
			log.Printf("update_health_status: %s: reconnect failed: %v", iface, err)
		}
	}
}

// RunEventLoop drains PpmsEvents forever, updating the registry and
// installing kernel routing (§4.2). It returns when ctx is cancelled.
func (m *Manager) RunEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.inbound:
			m.handleEvent(ctx, e)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, e events.PpmsEvent) {
	switch e.Kind {
	case events.EvtIpUpdated:
		m.reg.withConn(e.Interface, func(info *ConnectionInfo) {
			info.LocalIP = e.LocalIP
			info.ConnectedAt = e.ConnectedAt
		})

		idx, err := parseInterfaceSuffix(e.Interface)
		if err != nil {
			log.Printf("event loop: %s: %v", e.Interface, err)
			return
		}
		table := tableBase + idx
		if err := netctl.AddDefaultRoute(ctx, m.netRunner, e.Interface, table); err != nil {
			// RouteInstallFailed: logged, non-fatal (§4.2, §7).
			log.Printf("event loop: %s: route install failed: %v", e.Interface, err)
		}

	case events.EvtDisconnected:
		m.reg.withConn(e.Interface, func(info *ConnectionInfo) {
			info.LocalIP = ""
			info.ConnectedAt = time.Time{}
		})
	}
}

// parseInterfaceSuffix parses the full numeric suffix of an interface
// name like "ppp12", not merely its last character (§4.2, §9).
func parseInterfaceSuffix(iface string) (int, error) {
	const prefix = "ppp"
	if !strings.HasPrefix(iface, prefix) {
		return 0, fmt.Errorf("interface %q missing %q prefix", iface, prefix)
	}
	return strconv.Atoi(iface[len(prefix):])
}
