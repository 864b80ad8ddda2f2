// Package session implements one Session Client per configured PPPoE
// interface (§4.1): it owns one external pppd child, parses its
// stdout for the assigned IP, and drives bounded auto-reconnect with
// linear backoff.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/netfleetops/pppfleet/internal/events"
)

const (
	maxBackoffSeconds  = 30
	backoffStepSeconds = 5
	reconnectKillDelay = 2 * time.Second
	ipAddressMarker    = "local  IP address"
)

// Dialer abstracts pppd invocation so tests can substitute a fake
// child process without spawning the real binary.
type Dialer interface {
	// Start spawns the dialer bound to iface with the given
	// credentials and returns a handle once it is running.
	Start(ctx context.Context, iface, user, pass string) (Child, error)
}

// Child is a spawned dialer process.
type Child interface {
	// Stdout returns the child's combined stdout+stderr stream, line
	// buffered by the caller.
	Stdout() io.Reader
	// Wait blocks until the child exits and returns its error, if any.
	Wait() error
	// Kill terminates the child and its process group.
	Kill()
}

// PppdDialer spawns the real pppd(8) binary per §4.1:
// "pty pppoe noauth nodetach usepeerdns ifname <iface> user <user> password <pass>".
type PppdDialer struct{}

func (PppdDialer) Start(ctx context.Context, iface, user, pass string) (Child, error) {
	cmd := exec.CommandContext(ctx, "pppd",
		"pty", "pppoe", "noauth", "nodetach", "usepeerdns",
		"ifname", iface, "user", user, "password", pass,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pppd stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("pppd spawn: %w", err)
	}
	return &pppdChild{cmd: cmd, stdout: stdout}, nil
}

type pppdChild struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

func (c *pppdChild) Stdout() io.Reader { return c.stdout }
func (c *pppdChild) Wait() error       { return c.cmd.Wait() }

func (c *pppdChild) Kill() {
	if c.cmd.Process == nil {
		return
	}
	// Negative pid signals the whole process group pppd started,
	// so pppd's own helper processes do not linger (§5 "no task may
	// leak a child process").
	if pgid, err := syscall.Getpgid(c.cmd.Process.Pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		c.cmd.Process.Kill()
	}
}

// DryRunDialer stands in for PppdDialer when DRY_RUN is set (original
// implementation: jeffpeng3/pppoe-socks's `core/config.rs`/`main.rs`
// gate every external spawn behind this flag for safe local testing).
// It never execs pppd; it hands out a synthetic child that reports a
// deterministic per-interface IP and stays "connected" until killed.
type DryRunDialer struct{}

func (DryRunDialer) Start(ctx context.Context, iface, user, pass string) (Child, error) {
	log.Printf("%s: [DRY-RUN] skipping pppd spawn", iface)
	return newDryRunChild(iface), nil
}

type dryRunChild struct {
	stdout *strings.Reader
	done   chan struct{}
	once   sync.Once
}

func newDryRunChild(iface string) *dryRunChild {
	octet := strings.TrimPrefix(iface, "ppp")
	if octet == "" {
		octet = "0"
	}
	return &dryRunChild{
		stdout: strings.NewReader(fmt.Sprintf("%s 10.0.%s.1\n", ipAddressMarker, octet)),
		done:   make(chan struct{}),
	}
}

func (c *dryRunChild) Stdout() io.Reader { return c.stdout }
func (c *dryRunChild) Wait() error       { <-c.done; return nil }
func (c *dryRunChild) Kill()             { c.once.Do(func() { close(c.done) }) }

// intent tracks what the client wants, independent of the dialer's
// current liveness.
type intent int

const (
	intentDown intent = iota
	intentUp
)

// Client is one Session Client state machine (§4.1 states: Idle,
// Desired-Up/Dialing, Up, Desired-Down, Backoff).
type Client struct {
	iface string
	user  string
	pass  string

	dialer      Dialer
	maxAttempts int // 0 = unbounded

	commands chan events.ClientCommand
	out      chan<- events.PpmsEvent
	ipSeen   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Session Client. It does not spawn anything until
// Run is started — Run itself performs the "enter Desired-Up; spawn
// dialer" startup transition.
func New(iface, user, pass string, dialer Dialer, maxAttempts int, out chan<- events.PpmsEvent) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		iface:       iface,
		user:        user,
		pass:        pass,
		dialer:      dialer,
		maxAttempts: maxAttempts,
		commands:    make(chan events.ClientCommand, 8),
		out:         out,
		ipSeen:      make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Commands returns the sender end the supervisor uses to deliver
// Connect/Disconnect/Reconnect commands (§9: supervisor holds only the
// command sender).
func (c *Client) Commands() chan<- events.ClientCommand { return c.commands }

// Stop cancels the client's background context and waits for Run to
// return, killing any live dialer.
func (c *Client) Stop() {
	c.cancel()
	<-c.done
}

// Run is the client's single serialization point (§4.1 "Commands
// ... never reordered relative to dialer exits"): one select loop
// consuming commands, dialer exits, and backoff timers. It must run in
// its own goroutine.
func (c *Client) Run() {
	defer close(c.done)

	want := intentUp
	var child Child
	var childExit chan error
	var attempts int
	var backoffTimer *time.Timer
	var backoffCh <-chan time.Time
	// reconnectTimer/reconnectPending implement §4.1's explicit
	// Reconnect sequence ("kill child; wait 2 s; spawn"): the respawn
	// is deferred to this timer instead of the ordinary backoff path,
	// and childExit observed while it is armed does not also schedule
	// a backoff respawn (§9 OQ2: Reconnect preempts backoff).
	var reconnectTimer *time.Timer
	var reconnectCh <-chan time.Time
	var reconnectPending bool

	stopBackoff := func() {
		if backoffTimer != nil {
			backoffTimer.Stop()
			backoffTimer = nil
			backoffCh = nil
		}
	}

	stopReconnect := func() {
		if reconnectTimer != nil {
			reconnectTimer.Stop()
			reconnectTimer = nil
			reconnectCh = nil
		}
		reconnectPending = false
	}

	spawn := func() {
		ch, err := c.dialer.Start(c.ctx, c.iface, c.user, c.pass)
		if err != nil {
			log.Printf("%s: dialer spawn failed: %v", c.iface, err)
			// Bridge spawn failure into the same backoff path as a
			// child exit (§4.1 "Implementers MUST bridge this").
			c.scheduleOrLatch(&want, &attempts, &backoffTimer, &backoffCh)
			return
		}
		child = ch
		exitCh := make(chan error, 1)
		go func() {
			exitCh <- child.Wait()
		}()
		childExit = exitCh
		go c.readStdout(child.Stdout())
	}

	// Startup: enter Desired-Up; spawn dialer.
	spawn()

	for {
		select {
		case <-c.ctx.Done():
			if child != nil {
				child.Kill()
			}
			stopBackoff()
			stopReconnect()
			return

		case cmd := <-c.commands:
			switch cmd.Kind {
			case events.CmdConnect:
				want = intentUp
				if child == nil && backoffCh == nil && !reconnectPending {
					attempts = 0
					spawn()
				}

			case events.CmdDisconnect:
				want = intentDown
				attempts = 0
				stopBackoff()
				stopReconnect()
				if child != nil {
					// The child's exit, observed on childExit below,
					// emits a further Disconnected.
					child.Kill()
				}
				c.emit(events.Disconnected(c.iface))

			case events.CmdReconnect:
				// §4.1: "set intent Up; reset backoff; kill child;
				// wait 2 s; spawn". The wait is a timer, not a
				// blocking sleep, so command intake stays responsive.
				want = intentUp
				attempts = 0
				stopBackoff()
				if child != nil {
					child.Kill()
				}
				reconnectPending = true
				reconnectTimer = time.NewTimer(reconnectKillDelay)
				reconnectCh = reconnectTimer.C
			}

		case err := <-childExit:
			if err != nil {
				log.Printf("%s: dialer exited: %v", c.iface, err)
			} else {
				log.Printf("%s: dialer exited", c.iface)
			}
			child = nil
			childExit = nil
			c.emit(events.Disconnected(c.iface))

			switch {
			case reconnectPending:
				// Respawn is deferred to reconnectCh below.
			case want == intentUp:
				c.scheduleOrLatch(&want, &attempts, &backoffTimer, &backoffCh)
			}

		case <-backoffCh:
			backoffTimer = nil
			backoffCh = nil
			if want == intentUp {
				spawn()
			}

		case <-reconnectCh:
			reconnectTimer = nil
			reconnectCh = nil
			reconnectPending = false
			if want == intentUp {
				spawn()
			}

		case <-c.ipSeen:
			attempts = 0
		}
	}
}

// backoffDelay computes the linear-backoff delay before the next
// respawn attempt (§4.1/§8 Testable Property #4): min(5×(attempts+1), 30)
// seconds, i.e. 5, 10, 15, 20, 25, 30, 30, 30... for attempts
// 0, 1, 2, ..., or reports exhaustion (ok=false) once attempts has
// reached maxAttempts (0 = unbounded). Split out from scheduleOrLatch
// so the delay sequence and the exhaustion boundary can be asserted
// directly without driving a real timer.
func backoffDelay(attempts, maxAttempts int) (delay time.Duration, ok bool) {
	if maxAttempts != 0 && attempts >= maxAttempts {
		return 0, false
	}
	seconds := backoffStepSeconds * (attempts + 1)
	if seconds > maxBackoffSeconds {
		seconds = maxBackoffSeconds
	}
	return time.Duration(seconds) * time.Second, true
}

// scheduleOrLatch implements the respawn-after-exit rule of §4.1: while
// attempts < maxAttempts (0 = unbounded) it arms a respawn timer for
// backoffDelay(attempts), i.e. min(5×(attempts+1), 30) seconds, and
// increments attempts; otherwise it latches intent Down and logs
// exhaustion.
func (c *Client) scheduleOrLatch(want *intent, attempts *int, timer **time.Timer, ch *<-chan time.Time) {
	delay, ok := backoffDelay(*attempts, c.maxAttempts)
	if !ok {
		*want = intentDown
		log.Printf("%s: backoff exhausted after %d attempts, giving up until explicit Connect", c.iface, *attempts)
		return
	}
	*attempts++

	t := time.NewTimer(delay)
	*timer = t
	*ch = t.C
}

// readStdout scans the dialer's stdout for the IP-assignment line and
// emits IpUpdated on a successful parse (§4.1 "Output parsing").
func (c *Client) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, ipAddressMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		ip := fields[3]
		c.emit(events.IpUpdated(c.iface, ip, time.Now().UTC()))
		select {
		case c.ipSeen <- struct{}{}:
		default:
		}
	}
}

func (c *Client) emit(e events.PpmsEvent) {
	select {
	case c.out <- e:
	case <-c.ctx.Done():
	}
}
