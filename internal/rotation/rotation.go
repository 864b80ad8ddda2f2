// Package rotation implements the Rotation Scheduler (§4.5): computing
// the next rotation instant from configuration and performing the
// fleet-wide down/wait/up cycle.
package rotation

import (
	"context"
	"strconv"
	"time"
)

// connectStagger is the inter-client gap used for the up-phase
// broadcast (§4.5).
const connectStagger = 100 * time.Millisecond

// Fleet is the subset of supervisor.Manager the scheduler needs.
type Fleet interface {
	StopAll()
	ConfiguredInterfaces() []string
	ConnectClient(iface string) error
}

// NextInterval computes the delay until the next rotation, per §4.5's
// precedence: an integer string is minutes (checked first — "10"
// means ten minutes, not ten o'clock, §9); else "HH:MM" is a wall-clock
// time, computed against now in local time, rolling to tomorrow if
// already past; "0" disables rotation, signalled by ok=false.
func NextInterval(rotationTime string, now time.Time) (d time.Duration, ok bool) {
	if rotationTime == "0" {
		return 0, false
	}
	if minutes, err := strconv.Atoi(rotationTime); err == nil {
		return time.Duration(minutes) * time.Minute, true
	}

	t, err := time.ParseInLocation("15:04", rotationTime, now.Location())
	if err != nil {
		// Malformed schedule: treat as disabled rather than panic or
		// busy-loop; the config loader is expected to have rejected
		// this already, but the scheduler must degrade safely.
		return 0, false
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now), true
}

// Scheduler runs the rotation loop described in §4.5.
type Scheduler struct {
	fleet        Fleet
	rotationTime string
	waitSeconds  int
	now          func() time.Time
}

// New constructs a Scheduler. now is injectable for deterministic tests.
func New(fleet Fleet, rotationTime string, waitSeconds int) *Scheduler {
	return &Scheduler{fleet: fleet, rotationTime: rotationTime, waitSeconds: waitSeconds, now: time.Now}
}

// Run idles indefinitely if rotation is disabled, otherwise fires
// RotateIPs at each computed interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		delay, ok := NextInterval(s.rotationTime, s.now())
		if !ok {
			<-ctx.Done()
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RotateIPs(ctx)
		}
	}
}

// RotateIPs performs one rotation cycle (§4.5): broadcast Disconnect,
// sleep wait_seconds with no live dialer, broadcast Connect with a
// 100ms stagger.
func (s *Scheduler) RotateIPs(ctx context.Context) {
	s.fleet.StopAll()

	timer := time.NewTimer(time.Duration(s.waitSeconds) * time.Second)
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	for i, iface := range s.fleet.ConfiguredInterfaces() {
		if i > 0 {
			time.Sleep(connectStagger)
		}
		_ = s.fleet.ConnectClient(iface)
	}
}
