package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// Summary returns a one-line description of the device
func (d *Device) Summary() string {
	return fmt.Sprintf("%s @ %s (%s, SW: %s)", d.DisplayName(), d.IP, d.ID, orNone(d.Info(InfoSoftwareVersion)))
}

// FormatCompact returns the short multi-line form used by `rokuscan scan`
func (d *Device) FormatCompact() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Name:      %s\n", d.DisplayName())
	fmt.Fprintf(&b, "ID:        %s\n", d.ID)
	fmt.Fprintf(&b, "Address:   %s\n", d.BaseURL())
	fmt.Fprintf(&b, "Model:     %s %s\n", orNone(d.Info(InfoModelName)), d.Info(InfoModelNumber))
	fmt.Fprintf(&b, "Developer: %v\n", d.DeveloperEnabled())

	return b.String()
}

// FormatDetailed lists every device-info key in alphabetical order
func (d *Device) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("=== " + d.DisplayName() + " ===\n")
	b.WriteString(d.FormatCompact())

	keys := make([]string, 0, len(d.DeviceInfo))
	width := 0
	for k := range d.DeviceInfo {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		b.WriteString("\n--- device-info ---\n")
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "%-*s  %s\n", width, k, d.DeviceInfo[k])
	}

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
