package rotation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextInterval_IntegerMinutesWinsOverClockTime(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	d, ok := NextInterval("10", now)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, d)
}

func TestNextInterval_ClockTimeRollsToTomorrowIfPast(t *testing.T) {
	now := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	d, ok := NextInterval("01:00", now)
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, d)
}

func TestNextInterval_ZeroDisables(t *testing.T) {
	_, ok := NextInterval("0", time.Now())
	assert.False(t, ok)
}

type fakeFleet struct {
	mu         sync.Mutex
	stopCalls  int
	connects   []string
	connectAts []time.Time
}

func (f *fakeFleet) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func (f *fakeFleet) ConfiguredInterfaces() []string { return []string{"ppp0", "ppp1"} }

func (f *fakeFleet) ConnectClient(iface string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, iface)
	f.connectAts = append(f.connectAts, time.Now())
	return nil
}

func TestScheduler_RotateIPsSeparatesDownAndUpByWaitSeconds(t *testing.T) {
	fleet := &fakeFleet{}
	s := New(fleet, "0", 0)
	s.waitSeconds = 1

	start := time.Now()
	s.RotateIPs(context.Background())

	assert.Equal(t, 1, fleet.stopCalls)
	require.Len(t, fleet.connects, 2)
	assert.Equal(t, []string{"ppp0", "ppp1"}, fleet.connects)
	assert.GreaterOrEqual(t, fleet.connectAts[0].Sub(start), time.Second)
	assert.GreaterOrEqual(t, fleet.connectAts[1].Sub(fleet.connectAts[0]), 100*time.Millisecond)
}
