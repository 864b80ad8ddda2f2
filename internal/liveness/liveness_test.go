package liveness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	iface := args[len(args)-2]
	if f.fail[iface] {
		return errBoom
	}
	return nil
}

type errT string

func (e errT) Error() string { return string(e) }

const errBoom = errT("boom")

type fakeTarget struct {
	mu        sync.Mutex
	connected []string
	updates   []string
	failures  map[string]int
}

func (t *fakeTarget) ConnectedInterfaces() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.connected...)
}

func (t *fakeTarget) UpdateHealthStatus(iface string, ok bool, threshold int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures == nil {
		t.failures = make(map[string]int)
	}
	if ok {
		t.failures[iface] = 0
	} else {
		t.failures[iface]++
	}
	t.updates = append(t.updates, iface)
}

func TestProber_FeedsResultsIntoTarget(t *testing.T) {
	target := &fakeTarget{connected: []string{"ppp0"}}
	runner := &fakeRunner{fail: map[string]bool{"ppp0": true}}
	p := New(target, runner, 10*time.Millisecond, 3, "8.8.8.8")

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		return target.failures["ppp0"] >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.GreaterOrEqual(t, target.failures["ppp0"], 3)
}
