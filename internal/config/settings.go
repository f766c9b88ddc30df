package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rokutools/rokuscan/internal/devicecache"
	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/schedule"
)

// CurrentVersion is the settings file format version
const CurrentVersion = 1

// Discovery source names accepted in settings
const (
	SourceSSDP = "ssdp"
	SourceMDNS = "mdns"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Settings is the root of settings.yaml
type Settings struct {
	Version   int               `yaml:"version" validate:"eq=1"`
	Discovery DiscoverySettings `yaml:"discovery"`
	LastUsed  *LastUsedDevice   `yaml:"last_used_device,omitempty"`
}

// DiscoverySettings controls background device discovery
type DiscoverySettings struct {
	Enabled                    bool     `yaml:"enabled"`
	ShowInfoMessages           bool     `yaml:"show_info_messages"`
	IncludeNonDeveloperDevices bool     `yaml:"include_non_developer_devices"`
	Sources                    []string `yaml:"sources" validate:"min=1,dive,oneof=ssdp mdns"`
	MDNSService                string   `yaml:"mdns_service,omitempty"`

	InitialDelay   time.Duration `yaml:"initial_delay" validate:"gt=0"`
	MaxDelay       time.Duration `yaml:"max_delay" validate:"gt=0,gtefield=InitialDelay"`
	Multiplier     float64       `yaml:"multiplier" validate:"gte=1"`
	SearchInterval time.Duration `yaml:"search_interval" validate:"gt=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	CheckPeriod    time.Duration `yaml:"check_period" validate:"gt=0"`
}

// LastUsedDevice is the device the user picked most recently
type LastUsedDevice struct {
	ID         string            `yaml:"id" validate:"required"`
	IP         string            `yaml:"ip" validate:"required,ip"`
	Location   string            `yaml:"location,omitempty"`
	DeviceInfo map[string]string `yaml:"device_info,omitempty"`
	LastSeen   time.Time         `yaml:"last_seen,omitempty"`
}

// DefaultSettings returns settings with discovery enabled over SSDP
func DefaultSettings() *Settings {
	backoff := schedule.DefaultConfig()
	return &Settings{
		Version: CurrentVersion,
		Discovery: DiscoverySettings{
			Enabled:        true,
			Sources:        []string{SourceSSDP},
			MDNSService:    discovery.DefaultMDNSService,
			InitialDelay:   backoff.InitialDelay,
			MaxDelay:       backoff.MaxDelay,
			Multiplier:     backoff.Multiplier,
			SearchInterval: discovery.DefaultSearchInterval,
			CacheTTL:       devicecache.DefaultTTL,
			CheckPeriod:    devicecache.DefaultCheckPeriod,
		},
	}
}

// LoadDefault loads settings from GetConfigPath
func LoadDefault() (*Settings, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return Load(path)
}

// Load reads and validates the settings file at path.
// If the file doesn't exist, DefaultSettings is returned.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes settings YAML. Fields missing from data keep their defaults.
func Parse(data []byte) (*Settings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if settings.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported settings version: %d (expected %d)", settings.Version, CurrentVersion)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes the settings to path.
// Performs an atomic write to prevent corruption on crash.
func (s *Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	header := []byte(`# rokuscan settings
# Discovery runs in the background while "enabled" is true. Edits made while
# "rokuscan watch" or "rokuscan serve" is running are applied immediately.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings file: %w", err)
	}

	return nil
}

// ManagerConfig maps the discovery settings onto a devicemanager.Config
func (s *Settings) ManagerConfig() devicemanager.Config {
	d := s.Discovery
	return devicemanager.Config{
		Enabled:                    d.Enabled,
		ShowInfoMessages:           d.ShowInfoMessages,
		IncludeNonDeveloperDevices: d.IncludeNonDeveloperDevices,
		Backoff: schedule.Config{
			InitialDelay: d.InitialDelay,
			MaxDelay:     d.MaxDelay,
			Multiplier:   d.Multiplier,
		},
		SearchInterval: d.SearchInterval,
		CacheTTL:       d.CacheTTL,
		CheckPeriod:    d.CheckPeriod,
	}
}

// NewSources builds the discovery sources named in the settings
func (d DiscoverySettings) NewSources() []discovery.Source {
	sources := make([]discovery.Source, 0, len(d.Sources))
	for _, name := range d.Sources {
		switch name {
		case SourceSSDP:
			sources = append(sources, discovery.NewSSDPSource())
		case SourceMDNS:
			sources = append(sources, discovery.NewMDNSSource(d.MDNSService))
		}
	}
	return sources
}

// RememberDevice records d as the last used device. A nil device clears it.
func (s *Settings) RememberDevice(d *discovery.Device) {
	if d == nil {
		s.LastUsed = nil
		return
	}

	info := make(map[string]string, len(d.DeviceInfo))
	for k, v := range d.DeviceInfo {
		info[k] = v
	}
	s.LastUsed = &LastUsedDevice{
		ID:         d.ID,
		IP:         d.IP,
		Location:   d.Location,
		DeviceInfo: info,
		LastSeen:   time.Now().UTC().Truncate(time.Second),
	}
}

// LastUsedDevice returns the remembered device, or nil
func (s *Settings) LastUsedDevice() *discovery.Device {
	if s.LastUsed == nil {
		return nil
	}

	lu := s.LastUsed
	location := lu.Location
	if location == "" {
		location = fmt.Sprintf("http://%s:%d", lu.IP, discovery.ECPPort)
	}
	return &discovery.Device{
		ID:           lu.ID,
		IP:           lu.IP,
		Location:     location,
		DeviceInfo:   lu.DeviceInfo,
		DiscoveredAt: lu.LastSeen,
	}
}
