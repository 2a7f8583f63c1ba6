package health_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradeassistant/src/health"
)

type fakeProber struct {
	mu     sync.Mutex
	calls  int64
	result *health.ProbeResult
	err    error
	gate   chan struct{}
}

func (p *fakeProber) Probe(ctx context.Context, timeout time.Duration) (*health.ProbeResult, error) {
	atomic.AddInt64(&p.calls, 1)
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.err
}

func (p *fakeProber) callCount() int64 {
	return atomic.LoadInt64(&p.calls)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		result *health.ProbeResult
		err    error
		want   health.Status
	}{
		{"online", &health.ProbeResult{Reachable: true, Connected: true}, nil, health.StatusOnline},
		{"broker session down", &health.ProbeResult{Reachable: true, Connected: false}, nil, health.StatusNoIB},
		{"unreachable", &health.ProbeResult{Reachable: false}, nil, health.StatusOffline},
		{"probe error", nil, errors.New("connection refused"), health.StatusOffline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			monitor := health.NewMonitor(&fakeProber{result: tc.result, err: tc.err})
			state := monitor.PerformCheck(context.Background(), true)
			require.Equal(t, tc.want, state.Status)
		})
	}
}

func TestCooldownReturnsCachedState(t *testing.T) {
	prober := &fakeProber{result: &health.ProbeResult{Reachable: true, Connected: true}}

	base := time.Now()
	now := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	monitor := health.NewMonitor(prober, health.WithClock(clock), health.WithCooldown(5*time.Minute))

	monitor.PerformCheck(context.Background(), false)
	require.EqualValues(t, 1, prober.callCount())

	// One minute later the cached state is still inside the cooldown.
	mu.Lock()
	now = base.Add(time.Minute)
	mu.Unlock()
	state := monitor.PerformCheck(context.Background(), false)
	require.EqualValues(t, 1, prober.callCount())
	require.Equal(t, health.StatusOnline, state.Status)

	// Force always probes.
	monitor.PerformCheck(context.Background(), true)
	require.EqualValues(t, 2, prober.callCount())

	// Past the cooldown an unforced call probes again.
	mu.Lock()
	now = base.Add(11 * time.Minute)
	mu.Unlock()
	monitor.PerformCheck(context.Background(), false)
	require.EqualValues(t, 3, prober.callCount())
}

func TestConcurrentChecksCoalesceIntoOneProbe(t *testing.T) {
	gate := make(chan struct{})
	prober := &fakeProber{
		result: &health.ProbeResult{Reachable: true, Connected: true},
		gate:   gate,
	}
	monitor := health.NewMonitor(prober)

	const waiters = 5
	states := make(chan health.State, waiters)

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states <- monitor.PerformCheck(context.Background(), false)
		}()
	}

	// Let every goroutine reach the monitor before releasing the probe.
	require.Eventually(t, func() bool {
		return prober.callCount() == 1
	}, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(states)

	require.EqualValues(t, 1, prober.callCount())
	for state := range states {
		require.Equal(t, health.StatusOnline, state.Status)
	}
}

func TestListenersNotifiedInSubscriptionOrder(t *testing.T) {
	prober := &fakeProber{result: &health.ProbeResult{Reachable: true, Connected: true}}
	monitor := health.NewMonitor(prober)

	var mu sync.Mutex
	var order []string
	unsubA := monitor.Subscribe(func(s health.State) {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
	})
	unsubB := monitor.Subscribe(func(s health.State) {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	})
	defer unsubA()
	defer unsubB()

	monitor.PerformCheck(context.Background(), true)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b"}, order)
}

func TestSubscriberDrivenPolling(t *testing.T) {
	prober := &fakeProber{result: &health.ProbeResult{Reachable: true, Connected: true}}
	monitor := health.NewMonitor(prober, health.WithPollInterval(5*time.Millisecond))

	unsub := monitor.Subscribe(func(health.State) {})

	require.Eventually(t, func() bool {
		return prober.callCount() >= 2
	}, time.Second, time.Millisecond)

	unsub()
	settled := prober.callCount()
	time.Sleep(50 * time.Millisecond)

	// Allow for one tick that was already in flight when we unsubscribed.
	require.LessOrEqual(t, prober.callCount(), settled+1)
}

func TestInitialStateIsChecking(t *testing.T) {
	monitor := health.NewMonitor(&fakeProber{result: &health.ProbeResult{Reachable: true, Connected: true}})
	require.Equal(t, health.StatusChecking, monitor.State().Status)
}
