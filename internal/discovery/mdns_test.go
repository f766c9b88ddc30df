package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestCandidateFromEntry(t *testing.T) {
	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantOK       bool
		wantLocation string
	}{
		{
			name: "IPv4 host",
			entry: &zeroconf.ServiceEntry{
				HostName: "Roku-Ultra.local.",
				AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
			},
			wantOK:       true,
			wantLocation: "http://192.168.4.16:8060/",
		},
		{
			name: "IPv6 only host",
			entry: &zeroconf.ServiceEntry{
				HostName: "Roku-TV.local.",
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantOK:       true,
			wantLocation: "http://[fe80::1]:8060/",
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantOK:       true,
			wantLocation: "http://192.168.1.50:8060/",
		},
		{
			name:   "no address",
			entry:  &zeroconf.ServiceEntry{HostName: "Roku.local."},
			wantOK: false,
		},
		{
			name:   "nil entry",
			entry:  nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := candidateFromEntry(tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("candidateFromEntry() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && c.Location != tt.wantLocation {
				t.Errorf("Location = %v, want %v", c.Location, tt.wantLocation)
			}
		})
	}
}

func TestNewMDNSSource(t *testing.T) {
	src := NewMDNSSource("")
	if src.Service != DefaultMDNSService {
		t.Errorf("Service = %v, want %v", src.Service, DefaultMDNSService)
	}
	if src.Domain != ServiceDomain {
		t.Errorf("Domain = %v, want %v", src.Domain, ServiceDomain)
	}
	if src.Name() != "mdns" {
		t.Errorf("Name() = %v, want mdns", src.Name())
	}
}
