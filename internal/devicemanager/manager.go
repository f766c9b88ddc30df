package devicemanager

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/devicecache"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/logging"
	"github.com/rokutools/rokuscan/internal/schedule"
)

// State is the discovery lifecycle state
type State int

const (
	StateDisabled State = iota
	StateIdle
	StateDiscovering
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state name
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status tells an empty "not searched yet" answer apart from an empty
// answer after a completed round
type Status int

const (
	StatusNotYetSearched Status = iota
	StatusSearched
)

// String returns the status name
func (s Status) String() string {
	if s == StatusSearched {
		return "searched"
	}
	return "not-yet-searched"
}

// MarshalJSON encodes the status name
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is a snapshot of the active devices
type Result struct {
	Status  Status              `json:"status"`
	Devices []*discovery.Device `json:"devices"`
}

// Manager orchestrates discovery rounds, the device cache and events
type Manager struct {
	probe     *discovery.Probe
	scheduler *schedule.Scheduler
	cache     *devicecache.Cache
	events    *dispatcher
	notifier  Notifier

	// lifecycle serializes configuration changes and Close
	lifecycle sync.Mutex

	mu       sync.Mutex
	cfg      Config
	state    State
	searched bool
	lastUsed *discovery.Device
	closed   bool

	roundTimeout atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a manager and, when cfg.Enabled is set, starts discovery
func New(cfg Config, opts Options) *Manager {
	if len(opts.Sources) == 0 {
		opts.Sources = []discovery.Source{discovery.NewSSDPSource()}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = discovery.NewECPClient()
	}

	m := &Manager{
		notifier: opts.Notifier,
		state:    StateDisabled,
	}

	m.cache = devicecache.New(devicecache.Options{
		TTL:         cfg.CacheTTL,
		CheckPeriod: cfg.CheckPeriod,
		Now:         opts.Now,
		OnExpire:    m.onExpired,
	})
	m.probe = discovery.NewProbe(opts.Fetcher, m.onProbeEvent, opts.Sources...)
	m.probe.SetSearchInterval(cfg.SearchInterval)
	m.scheduler = schedule.New(cfg.Backoff, m.runRound)
	m.events = newDispatcher(m.deliver)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.cache.Run(ctx)
	}()

	m.OnConfigurationChanged(cfg)
	return m
}

// OnConfigurationChanged applies a new configuration. Toggling Enabled starts
// or stops discovery; repeating the current value has no effect.
func (m *Manager) OnConfigurationChanged(cfg Config) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.cfg
	wasEnabled := m.state != StateDisabled
	m.cfg = cfg
	m.mu.Unlock()

	m.probe.SetSearchInterval(cfg.SearchInterval)
	backoffChanged := prev.Backoff != cfg.Backoff
	if backoffChanged {
		m.scheduler.SetConfig(cfg.Backoff)
	}

	switch {
	case cfg.Enabled && !wasEnabled:
		m.enable()
	case !cfg.Enabled && wasEnabled:
		m.disable()
	case cfg.Enabled && backoffChanged:
		// restart so the new progression applies from its first delay
		m.scheduler.Stop()
		m.scheduler.Start()
	}
}

func (m *Manager) enable() {
	m.mu.Lock()
	m.state = StateIdle
	m.searched = false
	m.mu.Unlock()

	m.scheduler.Start()
	logging.Info("Device discovery enabled")
}

func (m *Manager) disable() {
	m.mu.Lock()
	m.state = StateDisabled
	m.searched = false
	m.mu.Unlock()

	m.scheduler.Stop()
	m.cache.FlushAll()
	logging.Info("Device discovery disabled")
}

// runRound is the scheduler's RoundFunc
func (m *Manager) runRound(ctx context.Context, timeout time.Duration) {
	m.mu.Lock()
	if m.state == StateDisabled {
		m.mu.Unlock()
		return
	}
	m.state = StateDiscovering
	m.mu.Unlock()

	m.roundTimeout.Store(int64(timeout))
	if err := m.probe.Start(timeout); err != nil {
		logging.Warn("Discovery round not started", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
	} else {
		select {
		case <-m.probe.Done():
		case <-ctx.Done():
			m.probe.Stop()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisabled {
		return
	}
	m.state = StateIdle
	if ctx.Err() == nil {
		m.searched = true
	}
}

// onProbeEvent runs with the probe's lock held
func (m *Manager) onProbeEvent(ev discovery.ProbeEvent) {
	switch ev.Type {
	case discovery.ProbeTimeout:
		logging.LogRound(time.Duration(m.roundTimeout.Load()), ev.Found)
	case discovery.ProbeFound:
		m.onDeviceFound(ev.Device)
	case discovery.ProbeSkipped:
		logging.Debug("Responder skipped",
			zap.String("location", ev.Location),
			zap.String("reason", discovery.ShortMessage(ev.Err)),
			zap.Bool("will_retry", discovery.IsRetryable(ev.Err)),
		)
	}
}

func (m *Manager) onDeviceFound(d *discovery.Device) {
	m.mu.Lock()
	if m.state == StateDisabled {
		m.mu.Unlock()
		return
	}
	cfg := m.cfg
	m.mu.Unlock()

	if !d.DeveloperEnabled() && !cfg.IncludeNonDeveloperDevices {
		logging.Debug("Ignoring device without developer mode",
			zap.String("device_id", d.ID),
			zap.String("ip", d.IP),
		)
		return
	}

	isNew := m.cache.Set(d.ID, d)
	logging.LogDeviceEvent(EventDeviceFound.String(), d.ID, d.IP)
	m.events.publish(Event{
		Type:   EventDeviceFound,
		Device: d,
		New:    isNew,
		notify: isNew && cfg.ShowInfoMessages,
	})
}

func (m *Manager) onExpired(d *discovery.Device) {
	logging.LogDeviceEvent(EventDeviceExpired.String(), d.ID, d.IP)
	m.events.publish(Event{Type: EventDeviceExpired, Device: d})
}

// deliver runs on the dispatcher goroutine ahead of subscribers
func (m *Manager) deliver(ev Event) {
	if ev.notify && m.notifier != nil {
		m.notifier.Notify("Device found: " + ev.Device.DisplayName())
	}
}

// Subscribe registers h for device events and returns a function that
// removes it. Handlers run one at a time on a dedicated goroutine.
func (m *Manager) Subscribe(h Handler) func() {
	return m.events.subscribe(h)
}

// ActiveDevices returns the cached devices in discovery order
func (m *Manager) ActiveDevices() Result {
	m.mu.Lock()
	status := StatusNotYetSearched
	if m.searched {
		status = StatusSearched
	}
	m.mu.Unlock()

	return Result{Status: status, Devices: m.cache.All()}
}

// Device returns the cached device with the given ID
func (m *Manager) Device(id string) (*discovery.Device, bool) {
	return m.cache.Get(id)
}

// CacheStats returns device cache diagnostics
func (m *Manager) CacheStats() devicecache.Stats {
	return m.cache.Stats()
}

// Rounds returns how many discovery rounds have completed
func (m *Manager) Rounds() int64 {
	return m.scheduler.Rounds()
}

// TimeSinceLastDiscoveredDevice reports how long ago a round last reported a
// device. ok is false when none has been reported yet.
func (m *Manager) TimeSinceLastDiscoveredDevice() (time.Duration, bool) {
	return m.cache.TimeSinceLastInsert()
}

// LastUsedDevice returns the device most recently chosen by the user
func (m *Manager) LastUsedDevice() *discovery.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUsed
}

// SetLastUsedDevice records the user's choice; nil clears it
func (m *Manager) SetLastUsedDevice(d *discovery.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed = d
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Config returns the configuration last applied
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Close stops discovery, the cache janitor and event delivery. Queued events
// are delivered before Close returns, so Close must not be called from a
// Handler.
func (m *Manager) Close() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	enabled := m.state != StateDisabled
	m.mu.Unlock()

	if enabled {
		m.disable()
	}
	m.cancel()
	m.wg.Wait()
	m.events.close()
}
