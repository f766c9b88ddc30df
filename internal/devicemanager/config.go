package devicemanager

import (
	"time"

	"github.com/rokutools/rokuscan/internal/devicecache"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/schedule"
)

// Config holds the settings a Manager reacts to
type Config struct {
	// Enabled turns background discovery on
	Enabled bool

	// ShowInfoMessages sends "Device found" notifications for new devices
	ShowInfoMessages bool

	// IncludeNonDeveloperDevices keeps devices without developer mode enabled
	IncludeNonDeveloperDevices bool

	// Backoff controls the spacing and length of discovery rounds
	Backoff schedule.Config

	// SearchInterval is the spacing between search requests within a round
	SearchInterval time.Duration

	// CacheTTL and CheckPeriod are read by New only
	CacheTTL    time.Duration
	CheckPeriod time.Duration
}

// DefaultConfig returns an enabled configuration with the standard timings
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Backoff:        schedule.DefaultConfig(),
		SearchInterval: discovery.DefaultSearchInterval,
		CacheTTL:       devicecache.DefaultTTL,
		CheckPeriod:    devicecache.DefaultCheckPeriod,
	}
}

// Notifier shows short informational messages to the user
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(message string)

// Notify implements Notifier
func (f NotifierFunc) Notify(message string) { f(message) }

// Options carries the collaborators of a Manager
type Options struct {
	// Sources default to a single SSDP source
	Sources []discovery.Source

	// Fetcher defaults to an ECP client
	Fetcher discovery.InfoFetcher

	// Notifier receives "Device found" messages; nil discards them
	Notifier Notifier

	// Now overrides the cache clock (tests)
	Now func() time.Time
}
