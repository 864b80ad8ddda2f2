package supervisor

import (
	"fmt"
	"strings"
	"time"
)

// FormatStatus renders get_all_stats()'s snapshot as the human-readable
// table the chat-ops `status` operation returns (§6, SPEC_FULL.md
// Supplemented Features). Ordering is whatever GetAllStats produced,
// i.e. stable key order.
func (m *Manager) FormatStatus() string {
	rows := m.GetAllStats()
	if len(rows) == 0 {
		return "no sessions have reported in yet"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-15s %-9s %-10s %-10s %-10s\n", "IFACE", "IP", "HEALTH", "UPTIME", "TX bps", "RX bps")
	for _, r := range rows {
		ip := r.LocalIP
		if ip == "" {
			ip = "-"
		}
		health := "unhealthy"
		if r.IsHealthy {
			health = "healthy"
		}
		if !r.Connected() {
			health = "-"
		}
		uptime := time.Duration(r.UptimeSeconds) * time.Second
		fmt.Fprintf(&b, "%-6s %-15s %-9s %-10s %-10d %-10d\n",
			r.Interface, ip, health, uptime, r.SendRateBps, r.ReceiveRateBps)
	}
	return b.String()
}
