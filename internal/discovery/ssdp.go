package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/koron/go-ssdp"
)

const (
	// SearchTarget is the SSDP search target Roku devices answer to
	SearchTarget = "roku:ecp"

	// DefaultSearchWait is the M-SEARCH MX value in seconds
	DefaultSearchWait = 1
)

// searchFunc matches ssdp.Search so tests can substitute responses
type searchFunc func(searchType string, waitSec int, localAddr string) ([]ssdp.Service, error)

// SSDPSource discovers Roku devices with SSDP M-SEARCH requests
type SSDPSource struct {
	// SearchTarget is the ST header sent with each request
	SearchTarget string

	// WaitSec is how long each request listens for responses
	WaitSec int

	// LocalAddr optionally binds the request to one interface address
	LocalAddr string

	search searchFunc
}

// NewSSDPSource creates an SSDP source searching for roku:ecp
func NewSSDPSource() *SSDPSource {
	return &SSDPSource{
		SearchTarget: SearchTarget,
		WaitSec:      DefaultSearchWait,
		search:       ssdp.Search,
	}
}

// Name implements Source
func (s *SSDPSource) Name() string { return "ssdp" }

// Search sends one M-SEARCH and emits every Roku response received within WaitSec
func (s *SSDPSource) Search(ctx context.Context, emit func(Candidate)) error {
	services, err := s.search(s.SearchTarget, s.WaitSec, s.LocalAddr)
	if err != nil {
		return fmt.Errorf("ssdp search failed: %w", err)
	}

	for _, svc := range services {
		if ctx.Err() != nil {
			return nil
		}
		if c, ok := candidateFromResponse(svc.Type, svc.Location); ok {
			emit(c)
		}
	}
	return nil
}

// candidateFromResponse accepts responses whose ST names a Roku service and
// which advertise a usable LOCATION
func candidateFromResponse(st, location string) (Candidate, bool) {
	if !strings.Contains(strings.ToLower(st), "roku") {
		return Candidate{}, false
	}
	if location == "" {
		return Candidate{}, false
	}
	u, err := url.Parse(location)
	if err != nil || u.Hostname() == "" {
		return Candidate{}, false
	}
	return Candidate{Location: location, Source: "ssdp"}, true
}
