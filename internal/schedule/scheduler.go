// Package schedule repeats discovery rounds with exponentially growing spacing.
//
// Rounds run strictly one after another: the next round starts only once the
// previous RoundFunc has returned. Each round is handed the current backoff
// delay as its timeout, so the spacing between round starts and the length of
// each round grow together up to MaxDelay.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/logging"
)

// Defaults used when a Config field is zero
const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
)

// Config controls the delay progression
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns 1s doubling up to 30s
func DefaultConfig() Config {
	return Config{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
	}
}

func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	return c
}

// NewBackOff returns a deterministic exponential backoff for the config.
// It never gives up: MaxElapsedTime is disabled.
func (c Config) NewBackOff() *backoff.ExponentialBackOff {
	c = c.withDefaults()
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxDelay,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// RoundFunc runs one discovery round and blocks until it ends or ctx is done
type RoundFunc func(ctx context.Context, timeout time.Duration)

// Scheduler drives RoundFunc with backoff spacing while started
type Scheduler struct {
	cfg   Config
	round RoundFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	rounds atomic.Int64
}

// New creates a stopped scheduler
func New(cfg Config, round RoundFunc) *Scheduler {
	return &Scheduler{
		cfg:   cfg.withDefaults(),
		round: round,
	}
}

// Config returns the effective configuration
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig replaces the delay configuration. A running scheduler picks it up
// on its next Start.
func (s *Scheduler) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.withDefaults()
}

// Start begins the round loop with an immediate round at InitialDelay.
// Calling Start on a running scheduler has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.cfg.NewBackOff(), s.done)

	logging.Debug("Scheduler started",
		zap.Duration("initial_delay", s.cfg.InitialDelay),
		zap.Duration("max_delay", s.cfg.MaxDelay),
	)
}

// Stop cancels the in-flight round and waits for the loop to exit. The next
// Start begins again at InitialDelay. Stop must not be called from inside the
// RoundFunc.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	<-s.done

	logging.Debug("Scheduler stopped", zap.Int64("rounds", s.rounds.Load()))
}

// Rounds returns how many rounds have completed since the scheduler was created
func (s *Scheduler) Rounds() int64 {
	return s.rounds.Load()
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, b *backoff.ExponentialBackOff, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		delay := b.NextBackOff()
		s.round(ctx, delay)
		s.rounds.Add(1)
	}
}
