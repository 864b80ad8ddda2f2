package supervisor

import (
	"sync"
	"time"

	"github.com/netfleetops/pppfleet/internal/events"
)

// ConnectionInfo is the mutable per-interface record described in §3.
// local_ip's presence is the connected predicate (invariant 2).
type ConnectionInfo struct {
	ConnectedAt time.Time
	LocalIP     string

	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
	UptimeSeconds   uint64
	SendRateBps     uint64
	ReceiveRateBps  uint64

	IsHealthy           bool
	LastHealthCheck     time.Time
	ConsecutiveFailures uint32
}

// Connected reports whether LocalIP is set (invariant 2: local_ip ⇔ connected_at).
func (c *ConnectionInfo) Connected() bool { return c.LocalIP != "" }

// registry holds the per-interface state map and the per-interface
// command-channel map, each behind its own mutex per §5 ("the registry
// map and the command-channel map are each protected by a mutex...
// nested acquisition of both maps is forbidden").
type registry struct {
	connMu sync.RWMutex
	conns  map[string]*ConnectionInfo

	cmdMu sync.RWMutex
	cmds  map[string]chan<- events.ClientCommand

	// order is the deterministic ppp0..ppp(N-1) iteration order fixed
	// at start_clients time (§3 "iteration order ... must be stable
	// across rotations to preserve staggered startup").
	order []string
}

func newRegistry() *registry {
	return &registry{
		conns: make(map[string]*ConnectionInfo),
		cmds:  make(map[string]chan<- events.ClientCommand),
	}
}

func (r *registry) setOrder(order []string) {
	r.order = append([]string(nil), order...)
}

func (r *registry) orderedInterfaces() []string {
	return append([]string(nil), r.order...)
}

func (r *registry) registerCommandChan(iface string, ch chan<- events.ClientCommand) {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()
	r.cmds[iface] = ch
}

func (r *registry) commandChan(iface string) (chan<- events.ClientCommand, bool) {
	r.cmdMu.RLock()
	defer r.cmdMu.RUnlock()
	ch, ok := r.cmds[iface]
	return ch, ok
}

// withConn runs fn under the registry mutex against the entry for
// iface, creating it lazily if missing (§3 "Lifecycle").
func (r *registry) withConn(iface string, fn func(*ConnectionInfo)) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	info, ok := r.conns[iface]
	if !ok {
		info = &ConnectionInfo{}
		r.conns[iface] = info
	}
	fn(info)
}

// snapshot returns a deep copy of the registry in stable key order
// (§4.2 get_all_stats).
func (r *registry) snapshot() []NamedConnectionInfo {
	r.connMu.RLock()
	defer r.connMu.RUnlock()

	out := make([]NamedConnectionInfo, 0, len(r.conns))
	for _, iface := range r.order {
		info, ok := r.conns[iface]
		if !ok {
			continue
		}
		cp := *info
		out = append(out, NamedConnectionInfo{Interface: iface, ConnectionInfo: cp})
	}
	return out
}

// NamedConnectionInfo pairs an interface name with its snapshot.
type NamedConnectionInfo struct {
	Interface string
	ConnectionInfo
}
