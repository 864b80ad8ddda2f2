package supervisor

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netfleetops/pppfleet/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner records every invocation instead of touching the
// real network stack.
type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if r.fail {
		return assertErr
	}
	return nil
}

func (r *recordingRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var assertErr = simpleErr("boom")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

type fakeChild struct {
	stdout io.Reader
	exitCh chan error
}

func newFakeChild(lines string) *fakeChild {
	return &fakeChild{stdout: strings.NewReader(lines), exitCh: make(chan error, 1)}
}

func (f *fakeChild) Stdout() io.Reader { return f.stdout }
func (f *fakeChild) Wait() error       { return <-f.exitCh }
func (f *fakeChild) Kill()             { select { case f.exitCh <- nil: default: } }

type fakeDialer struct{ lines string }

func (d fakeDialer) Start(ctx context.Context, iface, user, pass string) (session.Child, error) {
	return newFakeChild(d.lines), nil
}

func TestManager_SingleSessionHappyPath(t *testing.T) {
	runner := &recordingRunner{}
	m := New(runner)
	m.StartClients("user", "pass", 1, fakeDialer{lines: "local  IP address 10.20.30.40\n"}, 0)
	defer m.StopClients()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.RunEventLoop(ctx)

	require.Eventually(t, func() bool {
		stats := m.GetAllStats()
		return len(stats) == 1 && stats[0].LocalIP == "10.20.30.40"
	}, 2*time.Second, 10*time.Millisecond)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ip route add default dev ppp0 table 101", calls[0])
}

func TestManager_UnknownInterfaceReturnsNotFound(t *testing.T) {
	m := New(&recordingRunner{})
	err := m.ReconnectClient("ppp99")
	require.ErrorIs(t, err, ErrInterfaceNotFound)
}

func TestManager_UpdateHealthStatusTriggersReconnectAtThreshold(t *testing.T) {
	runner := &recordingRunner{}
	m := New(runner)
	m.StartClients("user", "pass", 1, fakeDialer{lines: "local  IP address 10.20.30.40\n"}, 0)
	defer m.StopClients()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.RunEventLoop(ctx)

	require.Eventually(t, func() bool {
		return len(m.GetAllStats()) == 1
	}, time.Second, 10*time.Millisecond)

	m.UpdateHealthStatus("ppp0", false, 3)
	m.UpdateHealthStatus("ppp0", false, 3)
	m.UpdateHealthStatus("ppp0", false, 3)

	stats := m.GetAllStats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint32(3), stats[0].ConsecutiveFailures)
	assert.False(t, stats[0].IsHealthy)

	// The threshold-triggered Reconnect kills the dialer, whose exit
	// clears local_ip until the respawn 2s later reports it again.
	require.Eventually(t, func() bool {
		return !m.GetAllStats()[0].Connected()
	}, time.Second, 10*time.Millisecond, "no Reconnect reached ppp0's client at the threshold")

	m.UpdateHealthStatus("ppp0", true, 3)
	stats = m.GetAllStats()
	assert.Equal(t, uint32(0), stats[0].ConsecutiveFailures)
	assert.True(t, stats[0].IsHealthy)
}

func TestParseInterfaceSuffix_HandlesMultiDigit(t *testing.T) {
	idx, err := parseInterfaceSuffix("ppp12")
	require.NoError(t, err)
	assert.Equal(t, 12, idx)
}
