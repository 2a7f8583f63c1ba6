package health

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Status is the bridge connectivity state.
type Status string

const (
	// StatusChecking is the initial state before the first probe completes.
	StatusChecking Status = "checking"
	// StatusOnline means the bridge transport answered and the broker
	// session behind it is connected.
	StatusOnline Status = "online"
	// StatusNoIB means the bridge transport answered but the broker
	// session is down.
	StatusNoIB Status = "no-ib"
	// StatusOffline covers transport failure, timeout, or explicit error.
	StatusOffline Status = "offline"
)

// ProbeResult is the bridge probe contract.
type ProbeResult struct {
	Reachable bool  `json:"reachable"`
	Connected bool  `json:"connected"`
	LatencyMs int64 `json:"latency_ms,omitempty"`
}

// Prober issues one connectivity probe under the given timeout.
type Prober interface {
	Probe(ctx context.Context, timeout time.Duration) (*ProbeResult, error)
}

// State is the monitor's published snapshot.
type State struct {
	Status        Status    `json:"status"`
	LatencyMs     int64     `json:"latency_ms"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// Listener receives the new state after each completed check. Notification
// is synchronous and in subscription order: every listener sees the new
// state before the check that produced it returns.
type Listener func(State)

// Monitor coalesces redundant connectivity probes across many independent
// consumers against one rate-limited local bridge. It is a service object
// owned by one long-lived handle rather than ambient module state; all
// internal state sits behind a single mutex so the coalescing guarantee
// holds in a multi-goroutine process.
type Monitor struct {
	prober       Prober
	log          *logger.Entry
	now          func() time.Time
	cooldown     time.Duration
	pollInterval time.Duration
	probeTimeout time.Duration

	mu        sync.Mutex
	state     State
	inflight  chan struct{}
	listeners []subscription
	nextSubID int
	stopPoll  chan struct{}
}

type subscription struct {
	id       int
	listener Listener
}

// Option tweaks monitor timing; production code uses the defaults
// (5-minute poll, 5-minute cooldown, 3-second probe timeout).
type Option func(*Monitor)

func WithCooldown(d time.Duration) Option {
	return func(m *Monitor) { m.cooldown = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) { m.pollInterval = d }
}

func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.probeTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:       prober,
		log:          logger.WithField("component", "BridgeHealthMonitor"),
		now:          time.Now,
		cooldown:     5 * time.Minute,
		pollInterval: 5 * time.Minute,
		probeTimeout: 3 * time.Second,
		state:        State{Status: StatusChecking},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the last published snapshot without probing.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener and returns its unsubscribe function.
// The first subscriber starts the background poll; the last one leaving
// stops it, tying the probe resource to demand rather than to the
// monitor's lifetime.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.listeners = append(m.listeners, subscription{id: id, listener: l})

	if len(m.listeners) == 1 {
		stop := make(chan struct{})
		m.stopPoll = stop
		go m.poll(stop)
	}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i := range m.listeners {
			if m.listeners[i].id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				break
			}
		}
		if len(m.listeners) == 0 && m.stopPoll != nil {
			close(m.stopPoll)
			m.stopPoll = nil
		}
	}
}

func (m *Monitor) poll(stop chan struct{}) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.PerformCheck(context.Background(), true)
		}
	}
}

// PerformCheck probes the bridge and publishes the result. Within the
// cooldown window an unforced call returns the cached state untouched.
// Callers arriving while a probe is in flight await that probe's result
// instead of issuing a second one.
func (m *Monitor) PerformCheck(ctx context.Context, force bool) State {
	m.mu.Lock()

	if !force &&
		m.state.Status != StatusChecking &&
		m.now().Sub(m.state.LastCheckedAt) < m.cooldown {
		state := m.state
		m.mu.Unlock()
		return state
	}

	if m.inflight != nil {
		done := m.inflight
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return m.State()
	}

	done := make(chan struct{})
	m.inflight = done
	m.mu.Unlock()

	state := m.runProbe(ctx)

	m.mu.Lock()
	m.state = state
	m.inflight = nil
	listeners := make([]subscription, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	// Subscribers are notified synchronously, in subscription order,
	// before any coalesced waiter is released.
	for _, sub := range listeners {
		sub.listener(state)
	}
	close(done)

	return state
}

func (m *Monitor) runProbe(ctx context.Context) State {
	started := m.now()

	result, err := m.prober.Probe(ctx, m.probeTimeout)
	checkedAt := m.now()

	state := State{LastCheckedAt: checkedAt}

	switch {
	case err != nil || result == nil || !result.Reachable:
		state.Status = StatusOffline
		if err != nil {
			m.log.WithError(err).Debug("bridge probe failed")
		}
	case !result.Connected:
		state.Status = StatusNoIB
	default:
		state.Status = StatusOnline
	}

	if result != nil && result.LatencyMs > 0 {
		state.LatencyMs = result.LatencyMs
	} else if state.Status != StatusOffline {
		state.LatencyMs = checkedAt.Sub(started).Milliseconds()
	}

	m.log.WithFields(logger.Fields{
		"status":     state.Status,
		"latency_ms": state.LatencyMs,
	}).Debug("bridge health check completed")

	return state
}
