// Package stats implements the Stats Collector (§4.3): a 1Hz per
// interface counter sampler that refreshes ConnectionInfo rate/uptime
// fields.
package stats

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const samplePeriod = time.Second

// Counters is one kernel interface-counter snapshot.
type Counters struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
}

// Reader reads the current kernel counters for iface. Production code
// uses SysfsReader; tests substitute a fake map.
type Reader interface {
	Read(iface string) (Counters, bool)
}

// SysfsReader reads /sys/class/net/<iface>/statistics/*, the standard
// Linux per-interface counter exposition. No pack library targets
// this — it is a handful of small integer file reads, so stdlib is
// used directly (see DESIGN.md).
type SysfsReader struct{ Root string }

func (s SysfsReader) Read(iface string) (Counters, bool) {
	root := s.Root
	if root == "" {
		root = "/sys/class/net"
	}
	base := fmt.Sprintf("%s/%s/statistics", root, iface)
	read := func(name string) (uint64, bool) {
		data, err := os.ReadFile(base + "/" + name)
		if err != nil {
			return 0, false
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		return v, err == nil
	}

	var c Counters
	var ok bool
	if c.BytesSent, ok = read("tx_bytes"); !ok {
		return Counters{}, false
	}
	if c.BytesReceived, ok = read("rx_bytes"); !ok {
		return Counters{}, false
	}
	if c.PacketsSent, ok = read("tx_packets"); !ok {
		return Counters{}, false
	}
	if c.PacketsReceived, ok = read("rx_packets"); !ok {
		return Counters{}, false
	}
	return c, true
}

// ConnectionView is the subset of supervisor state the collector needs
// to read and mutate; supervisor.Manager satisfies it.
type ConnectionView interface {
	Interfaces() []string
	ConnectedAt(iface string) (time.Time, bool)
	ApplyCounters(iface string, c Counters, sendRateBps, receiveRateBps, uptimeSeconds uint64)
}

// Collector samples Reader at 1Hz and feeds deltas into a ConnectionView.
type Collector struct {
	reader Reader
	view   ConnectionView
	prev   map[string]Counters
}

// New constructs a Collector.
func New(reader Reader, view ConnectionView) *Collector {
	return &Collector{reader: reader, view: view, prev: make(map[string]Counters)}
}

// Run samples forever at 1Hz until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(samplePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleOnce()
		}
	}
}

func (c *Collector) sampleOnce() {
	for _, iface := range c.view.Interfaces() {
		cur, ok := c.reader.Read(iface)
		if !ok {
			// Missing counters (interface absent) leave fields unchanged (§4.3).
			continue
		}

		prev, hadPrev := c.prev[iface]
		c.prev[iface] = cur

		var sendRate, recvRate uint64
		if hadPrev {
			sendRate = deltaBits(prev.BytesSent, cur.BytesSent)
			recvRate = deltaBits(prev.BytesReceived, cur.BytesReceived)
		}

		var uptime uint64
		if at, connected := c.view.ConnectedAt(iface); connected {
			uptime = uint64(time.Since(at).Seconds())
		}

		c.view.ApplyCounters(iface, cur, sendRate, recvRate, uptime)
	}
}

func deltaBits(prev, cur uint64) uint64 {
	if cur < prev {
		return 0
	}
	return (cur - prev) * 8
}
