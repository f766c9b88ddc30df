package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/logging"
)

// DefaultSearchInterval is the spacing between search requests within a round
const DefaultSearchInterval = time.Second

// ProbeEventType identifies what a ProbeEvent reports
type ProbeEventType int

const (
	// ProbeFound carries a device seen for the first time this round
	ProbeFound ProbeEventType = iota + 1
	// ProbeTimeout marks the end of a round
	ProbeTimeout
	// ProbeSkipped reports a responder whose device-info could not be used
	ProbeSkipped
)

// String returns the event name
func (t ProbeEventType) String() string {
	switch t {
	case ProbeFound:
		return "found"
	case ProbeTimeout:
		return "timeout"
	case ProbeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ProbeEvent is delivered to the probe's handler
type ProbeEvent struct {
	Type ProbeEventType

	// Device is set for ProbeFound
	Device *Device

	// Found is the number of devices emitted during the round (ProbeTimeout only)
	Found int

	// Location and Err describe the responder that was dropped (ProbeSkipped only)
	Location string
	Err      error
}

var (
	// ErrProbeRunning is returned by Start while a round is in flight
	ErrProbeRunning = errors.New("probe is already running")
	// ErrNoSources is returned by Start when the probe has nothing to search with
	ErrNoSources = errors.New("probe has no discovery sources")
)

// Probe runs bounded discovery rounds. The handler is called with the probe's
// lock held, so once Stop returns no further events are delivered. Handlers
// must not call back into the probe.
type Probe struct {
	sources []Source
	fetcher InfoFetcher
	handler func(ProbeEvent)

	mu       sync.Mutex
	interval time.Duration
	running  bool
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	timer    *time.Timer
	done     chan struct{}
	busy     []bool
	seen     map[string]struct{}
	emitted  map[string]struct{}
	found    int
}

// NewProbe creates an idle probe. A nil handler discards events.
func NewProbe(fetcher InfoFetcher, handler func(ProbeEvent), sources ...Source) *Probe {
	if handler == nil {
		handler = func(ProbeEvent) {}
	}
	done := make(chan struct{})
	close(done)

	return &Probe{
		sources:  sources,
		fetcher:  fetcher,
		handler:  handler,
		interval: DefaultSearchInterval,
		done:     done,
	}
}

// SetSearchInterval changes the spacing between search requests for rounds
// started afterwards. Non-positive values restore the default.
func (p *Probe) SetSearchInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultSearchInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

// Start begins a round: searches immediately and then every search interval
// until timeout elapses or Stop is called.
func (p *Probe) Start(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrProbeRunning
	}
	if len(p.sources) == 0 {
		return ErrNoSources
	}
	if timeout <= 0 {
		timeout = DefaultSearchInterval
	}

	interval := p.interval
	p.gen++
	gen := p.gen
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.running = true
	p.done = make(chan struct{})
	p.busy = make([]bool, len(p.sources))
	p.seen = make(map[string]struct{})
	p.emitted = make(map[string]struct{})
	p.found = 0
	p.timer = time.AfterFunc(timeout, func() { p.onTimeout(gen) })

	go p.searchLoop(p.ctx, gen, interval)

	logging.Debug("Discovery round started",
		zap.Duration("timeout", timeout),
		zap.Int("sources", len(p.sources)),
	)
	return nil
}

// Stop ends the current round without a timeout event. Safe to call at any time.
func (p *Probe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether a round is in flight
func (p *Probe) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done returns a channel that is closed when the current round ends
func (p *Probe) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Probe) stopLocked() {
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	p.timer.Stop()
	close(p.done)
}

func (p *Probe) onTimeout(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || gen != p.gen {
		return
	}
	found := p.found
	p.stopLocked()
	p.handler(ProbeEvent{Type: ProbeTimeout, Found: found})
}

func (p *Probe) searchLoop(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.searchAll(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.searchAll(ctx, gen)
		}
	}
}

// searchAll starts one request per source, skipping sources whose previous
// request is still listening
func (p *Probe) searchAll(ctx context.Context, gen uint64) {
	for i, src := range p.sources {
		if !p.claim(i, gen) {
			continue
		}
		go func(i int, src Source) {
			defer p.release(i, gen)
			emit := func(c Candidate) { p.handleCandidate(gen, c) }
			if err := src.Search(ctx, emit); err != nil && ctx.Err() == nil {
				logging.Debug("Discovery source failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
			}
		}(i, src)
	}
}

func (p *Probe) claim(i int, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || gen != p.gen || p.busy[i] {
		return false
	}
	p.busy[i] = true
	return true
}

func (p *Probe) release(i int, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.busy[i] = false
	}
}

func (p *Probe) handleCandidate(gen uint64, c Candidate) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		return
	}
	if _, ok := p.seen[c.Location]; ok {
		p.mu.Unlock()
		return
	}
	p.seen[c.Location] = struct{}{}
	ctx := p.ctx
	p.mu.Unlock()

	info, err := p.fetcher.FetchDeviceInfo(ctx, c.Location)
	if err != nil {
		logging.Debug("Skipping candidate",
			zap.String("location", c.Location),
			zap.String("source", c.Source),
			zap.String("reason", ShortMessage(err)),
			zap.Bool("retryable", IsRetryable(err)),
			zap.Error(err),
		)
		p.skip(gen, c.Location, err)
		return
	}

	device, err := NewDevice(c.Location, info)
	if err != nil {
		logging.Debug("Ignoring malformed device-info",
			zap.String("location", c.Location),
			zap.Error(err),
		)
		p.skip(gen, c.Location, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || gen != p.gen {
		return
	}
	if _, ok := p.emitted[device.ID]; ok {
		return
	}
	p.emitted[device.ID] = struct{}{}
	p.found++
	p.handler(ProbeEvent{Type: ProbeFound, Device: device})
}

func (p *Probe) skip(gen uint64, location string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || gen != p.gen {
		return
	}
	p.handler(ProbeEvent{Type: ProbeSkipped, Location: location, Err: err})
}

// ScanResult is the outcome of Scan
type ScanResult struct {
	Devices []*Device

	// Skipped holds responders that answered the search but whose
	// device-info could not be fetched or parsed
	Skipped []ProbeEvent
}

// Scan runs a single round to completion and returns every device found.
// An empty result is not an error.
func Scan(ctx context.Context, timeout time.Duration, fetcher InfoFetcher, sources ...Source) (ScanResult, error) {
	var result ScanResult
	probe := NewProbe(fetcher, func(ev ProbeEvent) {
		switch ev.Type {
		case ProbeFound:
			result.Devices = append(result.Devices, ev.Device)
		case ProbeSkipped:
			result.Skipped = append(result.Skipped, ev)
		}
	}, sources...)

	if err := probe.Start(timeout); err != nil {
		return ScanResult{}, err
	}

	select {
	case <-probe.Done():
	case <-ctx.Done():
		probe.Stop()
	}

	probe.mu.Lock()
	defer probe.mu.Unlock()
	return result, nil
}
