package discovery

import "context"

// Candidate is a host that answered a discovery request and may be a Roku device
type Candidate struct {
	// Location is the advertised base URL (e.g., "http://192.168.1.20:8060/")
	Location string

	// Source names the discovery mechanism that produced the candidate
	Source string
}

// Source issues one discovery request and reports every candidate it sees.
// Search blocks until the request's listen window closes or ctx is done.
type Source interface {
	Name() string
	Search(ctx context.Context, emit func(Candidate)) error
}
