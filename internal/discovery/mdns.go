package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultMDNSService is browsed when no service type is configured.
	// Recent Roku players and TVs advertise AirPlay.
	DefaultMDNSService = "_airplay._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseWait is how long one browse listens for answers
	DefaultBrowseWait = time.Second
)

// MDNSSource discovers candidate hosts with mDNS/DNS-SD browsing.
// Hosts are only candidates: the probe confirms them through ECP.
type MDNSSource struct {
	// Service is the DNS-SD service type to browse
	Service string

	// Domain is the browse domain
	Domain string

	// Wait bounds a single browse
	Wait time.Duration
}

// NewMDNSSource creates an mDNS source for the given service type
func NewMDNSSource(service string) *MDNSSource {
	if service == "" {
		service = DefaultMDNSService
	}
	return &MDNSSource{
		Service: service,
		Domain:  ServiceDomain,
		Wait:    DefaultBrowseWait,
	}
}

// Name implements Source
func (s *MDNSSource) Name() string { return "mdns" }

// Search browses for the service and emits one candidate per resolved host
func (s *MDNSSource) Search(ctx context.Context, emit func(Candidate)) error {
	ctx, cancel := context.WithTimeout(ctx, s.Wait)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if c, ok := candidateFromEntry(entry); ok {
				emit(c)
			}
		}
	}()

	if err := resolver.Browse(ctx, s.Service, s.Domain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	return nil
}

// candidateFromEntry converts a zeroconf entry into an ECP location, preferring IPv4
func candidateFromEntry(entry *zeroconf.ServiceEntry) (Candidate, bool) {
	if entry == nil {
		return Candidate{}, false
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return Candidate{}, false
	}

	location := "http://" + net.JoinHostPort(ip, strconv.Itoa(ECPPort)) + "/"
	return Candidate{Location: location, Source: "mdns"}, true
}
