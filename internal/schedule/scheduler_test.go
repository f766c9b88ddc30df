package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundRecorder is a RoundFunc that records each timeout and returns at once
type roundRecorder struct {
	mu       sync.Mutex
	timeouts []time.Duration
	wait     bool
}

func (r *roundRecorder) round(ctx context.Context, timeout time.Duration) {
	r.mu.Lock()
	r.timeouts = append(r.timeouts, timeout)
	wait := r.wait
	r.mu.Unlock()

	if wait {
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
	}
}

func (r *roundRecorder) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.timeouts...)
}

func (r *roundRecorder) waitFor(t *testing.T, n int) []time.Duration {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, 2*time.Second, time.Millisecond)
	return r.snapshot()
}

func TestConfig_NewBackOffProgression(t *testing.T) {
	b := DefaultConfig().NewBackOff()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.NextBackOff(), "delay %d", i)
	}

	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
}

func TestConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"zero", Config{}, DefaultConfig()},
		{
			name: "max below initial",
			in:   Config{InitialDelay: 5 * time.Second, MaxDelay: time.Second, Multiplier: 3},
			want: Config{InitialDelay: 5 * time.Second, MaxDelay: 5 * time.Second, Multiplier: 3},
		},
		{
			name: "shrinking multiplier",
			in:   Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 0.5},
			want: Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: DefaultMultiplier},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}

func TestScheduler_DelaysAreMonotonicAndCapped(t *testing.T) {
	cfg := Config{InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}
	rec := &roundRecorder{}
	s := New(cfg, rec.round)

	s.Start()
	got := rec.waitFor(t, 8)
	s.Stop()

	assert.Equal(t, time.Millisecond, got[0], "first round uses InitialDelay")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "delay %d decreased", i)
		assert.LessOrEqual(t, got[i], cfg.MaxDelay, "delay %d exceeds MaxDelay", i)
	}
	assert.Equal(t, cfg.MaxDelay, got[len(got)-1])
}

func TestScheduler_StopResetsProgression(t *testing.T) {
	cfg := Config{InitialDelay: time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	rec := &roundRecorder{}
	s := New(cfg, rec.round)

	s.Start()
	first := len(rec.waitFor(t, 4))
	s.Stop()

	s.Start()
	got := rec.waitFor(t, first+1)
	s.Stop()

	assert.Equal(t, cfg.InitialDelay, got[first], "round after restart should use InitialDelay")
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	rec := &roundRecorder{wait: true}
	s := New(Config{InitialDelay: 20 * time.Millisecond, MaxDelay: 20 * time.Millisecond}, rec.round)

	s.Stop()
	assert.False(t, s.Running())

	s.Start()
	s.Start()
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestScheduler_RoundsDoNotOverlap(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	round := func(ctx context.Context, timeout time.Duration) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}

		mu.Lock()
		active--
		mu.Unlock()
	}

	s := New(Config{InitialDelay: 2 * time.Millisecond, MaxDelay: 4 * time.Millisecond}, round)
	s.Start()
	require.Eventually(t, func() bool { return s.Rounds() >= 5 }, 2*time.Second, time.Millisecond)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, active)
}

func TestScheduler_StopCancelsInFlightRound(t *testing.T) {
	started := make(chan struct{}, 1)
	round := func(ctx context.Context, timeout time.Duration) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
	}

	s := New(Config{InitialDelay: time.Hour, MaxDelay: time.Hour}, round)
	s.Start()
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the in-flight round")
	}
}
