// Package picker turns the current device list and the last used device into
// the ordered entries shown by host selection prompts.
//
// Build is pure: it does no I/O and returns the same list for the same input.
package picker

import (
	"encoding/json"
	"fmt"

	"github.com/rokutools/rokuscan/internal/discovery"
)

// ManualEntryID identifies the "Enter manually" sentinel device
const ManualEntryID = "9223372036854775807"

// Labels used by Build
const (
	ManualEntryLabel  = "Enter manually"
	LastUsedSeparator = "last used"
	OtherDevicesSep   = "other devices"
	DevicesSeparator  = "devices"
	BlankSeparator    = " "
)

// Kind classifies a picker Item
type Kind int

const (
	KindSeparator Kind = iota
	KindDevice
	KindManual
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindSeparator:
		return "separator"
	case KindDevice:
		return "device"
	case KindManual:
		return "manual"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind name
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Item is one row of the picker list
type Item struct {
	Kind   Kind              `json:"kind"`
	Label  string            `json:"label"`
	Device *discovery.Device `json:"device,omitempty"`
}

// IsSeparator reports whether the item is a section heading
func (i Item) IsSeparator() bool { return i.Kind == KindSeparator }

// IsManual reports whether the item is the manual-entry sentinel
func (i Item) IsManual() bool { return i.Kind == KindManual }

// Separator returns a section heading item
func Separator(label string) Item {
	return Item{Kind: KindSeparator, Label: label}
}

// ManualEntry returns the sentinel appended to every list
func ManualEntry() Item {
	return Item{
		Kind:   KindManual,
		Label:  ManualEntryLabel,
		Device: &discovery.Device{ID: ManualEntryID},
	}
}

// DeviceItem returns the selectable row for d
func DeviceItem(d *discovery.Device) Item {
	return Item{Kind: KindDevice, Label: DeviceLabel(d), Device: d}
}

// DeviceLabel formats "{ip} | {user-device-name} - {serial-number} - {model-number}"
func DeviceLabel(d *discovery.Device) string {
	return fmt.Sprintf("%s | %s - %s - %s",
		d.IP,
		d.Info(discovery.InfoUserDeviceName),
		d.Info(discovery.InfoSerialNumber),
		d.Info(discovery.InfoModelNumber),
	)
}

// Build produces the picker list. The last used device is listed first when
// set, taken from devices when present there and from lastUsed otherwise.
// Remaining devices keep their given order. The list always ends with exactly
// one manual-entry item.
func Build(devices []*discovery.Device, lastUsed *discovery.Device) []Item {
	items := make([]Item, 0, len(devices)+5)

	remaining := make([]*discovery.Device, 0, len(devices))
	var pinned *discovery.Device
	for _, d := range devices {
		if d == nil {
			continue
		}
		if lastUsed != nil && pinned == nil && d.ID == lastUsed.ID {
			pinned = d
			continue
		}
		if lastUsed != nil && d.ID == lastUsed.ID {
			continue
		}
		remaining = append(remaining, d)
	}
	if lastUsed != nil && pinned == nil {
		pinned = lastUsed
	}

	if pinned != nil {
		items = append(items, Separator(LastUsedSeparator), DeviceItem(pinned))
	}

	if len(remaining) > 0 {
		heading := DevicesSeparator
		if pinned != nil {
			heading = OtherDevicesSep
		}
		items = append(items, Separator(heading))
		for _, d := range remaining {
			items = append(items, DeviceItem(d))
		}
	}

	if len(items) > 0 {
		items = append(items, Separator(BlankSeparator))
	}

	return append(items, ManualEntry())
}
