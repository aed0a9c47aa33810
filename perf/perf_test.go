package perf

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounce_TrailingCallOnly(t *testing.T) {
	clk := clock.NewMock()
	var (
		mu    sync.Mutex
		calls []int
	)
	d := Debounce(func(n int) {
		mu.Lock()
		calls = append(calls, n)
		mu.Unlock()
	}, 200*time.Millisecond, clk)

	// five calls within 50ms
	for i := 1; i <= 5; i++ {
		d.Call(i)
		if i < 5 {
			clk.Add(10 * time.Millisecond)
		}
	}

	clk.Add(199 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, calls)
	mu.Unlock()

	clk.Add(time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{5}, calls)
	mu.Unlock()
}

func TestDebounce_Stop(t *testing.T) {
	clk := clock.NewMock()
	var calls atomic.Int32
	d := Debounce(func(struct{}) { calls.Add(1) }, 200*time.Millisecond, clk)

	assert.False(t, d.Stop())
	d.Call(struct{}{})
	assert.True(t, d.Stop())

	clk.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestThrottle_LeadingEdgeWithLockout(t *testing.T) {
	clk := clock.NewMock()
	var calls atomic.Int32
	th := Throttle(func(string) { calls.Add(1) }, 200*time.Millisecond, clk)

	passed := 0
	for i := 0; i < 5; i++ {
		if th.Call("scroll") {
			passed++
		}
		if i < 4 {
			clk.Add(10 * time.Millisecond)
		}
	}
	assert.Equal(t, 1, passed)
	assert.Equal(t, int32(1), calls.Load())

	// 250ms after the first call
	clk.Add(210 * time.Millisecond)
	assert.True(t, th.Call("scroll"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestThrottle_WindowBoundary(t *testing.T) {
	clk := clock.NewMock()
	th := Throttle(func(int) {}, 100*time.Millisecond, clk)

	require.True(t, th.Call(1))
	clk.Add(99 * time.Millisecond)
	assert.False(t, th.Call(2))
	clk.Add(time.Millisecond)
	assert.True(t, th.Call(3))
}

func TestRetryWithBackoff_Schedule(t *testing.T) {
	clk := clock.NewMock()
	var attempts []time.Time
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)

	go func() {
		v, err := RetryWithBackoff(context.Background(), func(context.Context) (string, error) {
			attempts = append(attempts, clk.Now())
			if len(attempts) < 3 {
				return "", errors.New("catalog unavailable")
			}
			return "amethyst", nil
		}, 3, time.Second, WithClock(clk))
		done <- result{v, err}
	}()

	for {
		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.Equal(t, "amethyst", r.value)
			require.Len(t, attempts, 3)
			assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), time.Second)
			assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1]), 2*time.Second)
			return
		default:
			clk.Add(100 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, 2, time.Millisecond)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryWithBackoff(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	}, 3, time.Hour, WithClock(clock.NewMock()))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelay(t *testing.T) {
	clk := clock.NewMock()
	done := make(chan error, 1)
	go func() { done <- Delay(context.Background(), time.Second, WithClock(clk)) }()

	require.Eventually(t, func() bool {
		clk.Add(100 * time.Millisecond)
		select {
		case err := <-done:
			return err == nil
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Delay(ctx, time.Hour), context.Canceled)
}

func TestVisibility_FlipsOnce(t *testing.T) {
	v := NewVisibility(0)
	var fired atomic.Int32
	v.OnVisible(func() { fired.Add(1) })

	assert.False(t, v.Observe(0.05))
	assert.False(t, v.Visible())
	assert.True(t, v.Observing())

	assert.True(t, v.Observe(0.1))
	assert.True(t, v.Visible())
	assert.False(t, v.Observing())

	// scrolling out does not reset the latch
	assert.True(t, v.Observe(0))
	assert.True(t, v.Observe(0.9))
	assert.Equal(t, int32(1), fired.Load())

	select {
	case <-v.Done():
	default:
		t.Fatal("Done should be closed once visible")
	}

	late := false
	v.OnVisible(func() { late = true })
	assert.True(t, late)
}

func TestVisibility_Disconnect(t *testing.T) {
	v := NewVisibility(0.5)
	fired := false
	v.OnVisible(func() { fired = true })

	v.Disconnect()
	assert.False(t, v.Observe(1))
	assert.False(t, v.Visible())
	assert.False(t, fired)

	select {
	case <-v.Done():
	default:
		t.Fatal("Done should be closed after Disconnect")
	}

	// a second disconnect, or one after the latch flipped, is a no-op
	v.Disconnect()
	seen := NewVisibility(0)
	seen.Observe(1)
	seen.Disconnect()
	assert.True(t, seen.Visible())
}

type failingProbe struct{}

func (failingProbe) Probe(context.Context) (NetworkInfo, error) {
	return NetworkInfo{}, ErrUnavailable
}

func TestNetworkStatus(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, NetworkInfo{Online: true}, NetworkStatus(ctx, failingProbe{}))

	wifi := InterfaceProbe{Interfaces: func() ([]net.Interface, error) {
		return []net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			{Name: "eth0"},
			{Name: "wlan0", Flags: net.FlagUp},
		}, nil
	}}
	assert.Equal(t, NetworkInfo{Online: true, ConnectionType: "wifi"}, NetworkStatus(ctx, wifi))

	offline := InterfaceProbe{Interfaces: func() ([]net.Interface, error) {
		return []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, nil
	}}
	assert.Equal(t, NetworkInfo{Online: false}, NetworkStatus(ctx, offline))

	broken := InterfaceProbe{Interfaces: func() ([]net.Interface, error) {
		return nil, errors.New("netlink denied")
	}}
	assert.Equal(t, NetworkInfo{Online: true}, NetworkStatus(ctx, broken))
}

func TestLatencyProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
	}))
	defer server.Close()

	info := NetworkStatus(context.Background(), LatencyProbe{URL: server.URL})
	assert.True(t, info.Online)
	assert.Equal(t, "4g", info.EffectiveType)

	url := server.URL
	server.Close()
	info = NetworkStatus(context.Background(), LatencyProbe{URL: url})
	assert.False(t, info.Online)
}

func TestEffectiveType(t *testing.T) {
	assert.Equal(t, "4g", EffectiveType(50*time.Millisecond))
	assert.Equal(t, "3g", EffectiveType(300*time.Millisecond))
	assert.Equal(t, "2g", EffectiveType(1500*time.Millisecond))
	assert.Equal(t, "slow-2g", EffectiveType(3*time.Second))
}

type fixedProbe NetworkInfo

func (p fixedProbe) Probe(context.Context) (NetworkInfo, error) { return NetworkInfo(p), nil }

func TestDevicePerformance(t *testing.T) {
	d := DevicePerformance(context.Background(), fixedProbe{Online: true, EffectiveType: "3g"})
	assert.Positive(t, d.Cores)
	assert.Greater(t, d.MemoryRatio, 0.0)
	assert.LessOrEqual(t, d.MemoryRatio, 1.0)
	assert.Equal(t, "3g", d.ConnectionSpeed)

	assert.Empty(t, DevicePerformance(context.Background(), nil).ConnectionSpeed)
}

func TestMonitor(t *testing.T) {
	clk := clock.NewMock()
	m := NewMonitor(WithClock(clk))

	m.Mark("gallery-start")
	clk.Add(150 * time.Millisecond)
	m.Mark("gallery-ready")
	clk.Add(50 * time.Millisecond)

	assert.Equal(t, 150*time.Millisecond, m.Measure("gallery-start", "gallery-ready"))
	assert.Equal(t, 200*time.Millisecond, m.Measure("gallery-start", ""))
	assert.Zero(t, m.Measure("missing", ""))
	assert.Zero(t, m.Measure("gallery-start", "missing"))
	assert.Len(t, m.Marks(), 2)

	m.ClearMarks()
	assert.Empty(t, m.Marks())
}

func TestPrefetch_SettlesAll(t *testing.T) {
	var fetched sync.Map
	n := Prefetch(context.Background(), func(_ context.Context, url string) error {
		if url == "/images/broken.jpg" {
			return errors.New("404")
		}
		fetched.Store(url, true)
		return nil
	}, []string{"/images/quartz.jpg", "/images/broken.jpg", "/images/agate.jpg"}, 2)

	assert.Equal(t, 2, n)
	_, ok := fetched.Load("/images/agate.jpg")
	assert.True(t, ok)
}
