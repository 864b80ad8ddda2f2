package supervisor

import (
	"time"

	"github.com/netfleetops/pppfleet/internal/stats"
)

// The methods below satisfy stats.ConnectionView, letting the stats
// Collector (§4.3) read and mutate the registry without either package
// importing the other's concrete types.

// Interfaces returns the interfaces currently tracked in the registry,
// in stable key order.
func (m *Manager) Interfaces() []string {
	snap := m.reg.snapshot()
	out := make([]string, len(snap))
	for i, s := range snap {
		out[i] = s.Interface
	}
	return out
}

// ConnectedInterfaces returns the interfaces currently considered
// connected (local_ip.is_some()), used by the liveness prober (§4.4).
// The snapshot is taken under the registry lock and returned before
// any caller probes, per the lock-discipline in §5.
func (m *Manager) ConnectedInterfaces() []string {
	snap := m.reg.snapshot()
	out := make([]string, 0, len(snap))
	for _, s := range snap {
		if s.Connected() {
			out = append(out, s.Interface)
		}
	}
	return out
}

// ConnectedAt reports an interface's connected_at instant, if connected.
func (m *Manager) ConnectedAt(iface string) (time.Time, bool) {
	var at time.Time
	var connected bool
	m.reg.withConn(iface, func(info *ConnectionInfo) {
		connected = info.Connected()
		at = info.ConnectedAt
	})
	return at, connected
}

// ApplyCounters updates rate/uptime/total fields from a fresh counter
// sample (§4.3).
func (m *Manager) ApplyCounters(iface string, c stats.Counters, sendRateBps, receiveRateBps, uptimeSeconds uint64) {
	m.reg.withConn(iface, func(info *ConnectionInfo) {
		info.BytesSent = c.BytesSent
		info.BytesReceived = c.BytesReceived
		info.PacketsSent = c.PacketsSent
		info.PacketsReceived = c.PacketsReceived
		info.SendRateBps = sendRateBps
		info.ReceiveRateBps = receiveRateBps
		info.UptimeSeconds = uptimeSeconds
	})
}
