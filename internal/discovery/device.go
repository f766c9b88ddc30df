package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// ECPPort is the External Control Protocol port every Roku device listens on
const ECPPort = 8060

// Well-known device-info keys
const (
	InfoDeviceID          = "device-id"
	InfoSerialNumber      = "serial-number"
	InfoModelNumber       = "model-number"
	InfoModelName         = "model-name"
	InfoUserDeviceName    = "user-device-name"
	InfoDefaultDeviceName = "default-device-name"
	InfoSoftwareVersion   = "software-version"
	InfoDeveloperEnabled  = "developer-enabled"
)

// Device describes one discovered Roku device. Devices are not modified after
// construction; a later discovery of the same ID produces a new Device.
type Device struct {
	// ID is the stable device identifier (device-id, or serial-number as fallback)
	ID string `json:"id" yaml:"id"`

	// IP is the device address (e.g., "192.168.1.20")
	IP string `json:"ip" yaml:"ip"`

	// Location is the ECP base URL (e.g., "http://192.168.1.20:8060")
	Location string `json:"location" yaml:"location"`

	// DeviceInfo holds the flattened /query/device-info document
	DeviceInfo map[string]string `json:"deviceInfo" yaml:"device_info,omitempty"`

	// DiscoveredAt is when the device-info document was fetched
	DiscoveredAt time.Time `json:"discoveredAt" yaml:"-"`
}

// NewDevice builds a Device from the location a candidate advertised and the
// device-info it returned. It fails when the location is unusable or the
// info carries no identifier.
func NewDevice(location string, info map[string]string) (*Device, error) {
	ip, port, err := splitLocation(location)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("invalid location %q", location), err)
	}

	id := info[InfoDeviceID]
	if id == "" {
		id = info[InfoSerialNumber]
	}
	if id == "" {
		return nil, NewParseError("device-info has no device-id or serial-number", nil)
	}

	copied := make(map[string]string, len(info))
	for k, v := range info {
		copied[k] = v
	}

	return &Device{
		ID:           id,
		IP:           ip,
		Location:     "http://" + net.JoinHostPort(ip, strconv.Itoa(port)),
		DeviceInfo:   copied,
		DiscoveredAt: time.Now(),
	}, nil
}

// splitLocation extracts host and port from an advertised location URL.
// The port defaults to ECPPort.
func splitLocation(location string) (string, int, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", 0, err
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("missing host")
	}

	port := ECPPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}
	return host, port, nil
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Roku %s (%s) at %s", d.ID, d.DisplayName(), d.IP)
}

// BaseURL returns the ECP base URL for the device
func (d *Device) BaseURL() string {
	if d.Location != "" {
		return d.Location
	}
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(ECPPort))
}

// Info retrieves a device-info value by key, or returns empty string if not found
func (d *Device) Info(key string) string {
	if d.DeviceInfo == nil {
		return ""
	}
	return d.DeviceInfo[key]
}

// DisplayName returns the user-assigned name, then the default name, then the model
func (d *Device) DisplayName() string {
	for _, key := range []string{InfoUserDeviceName, InfoDefaultDeviceName, InfoModelName} {
		if v := d.Info(key); v != "" {
			return v
		}
	}
	return d.IP
}

// DeveloperEnabled reports whether developer mode is switched on
func (d *Device) DeveloperEnabled() bool {
	return d.Info(InfoDeveloperEnabled) == "true"
}
