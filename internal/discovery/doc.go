// Package discovery finds Roku devices on the local network.
//
// Discovery runs in bounded rounds. A Probe repeatedly issues search requests
// through one or more Sources until its round timeout fires, fetches the
// device-info document from every candidate that answers, and emits one
// found event per device per round.
//
// # Sources
//
//   - SSDPSource: multicast M-SEARCH for the "roku:ecp" search target
//     (UDP 239.255.255.250:1900). This is the default.
//   - MDNSSource: mDNS/DNS-SD browse for a configurable service type, useful
//     on networks that filter SSDP. Every host found is treated as a candidate
//     and verified through ECP.
//
// # Device Information
//
// Candidates are confirmed by an HTTP GET of {location}/query/device-info on
// the External Control Protocol port (8060). The XML document is flattened into
// a map keyed by element name ("device-id", "serial-number", "model-number",
// "user-device-name", ...). A device is identified by its device-id, falling
// back to its serial number.
//
// # Failure Handling
//
// A round that finds nothing is not an error. Malformed responses and
// per-device fetch failures are logged at debug level and reported as
// ProbeSkipped events; they never abort the round.
//
// # Usage Example
//
//	result, err := discovery.Scan(ctx, 5*time.Second, discovery.NewECPClient(),
//	    discovery.NewSSDPSource())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range result.Devices {
//	    fmt.Println(d)
//	}
package discovery
