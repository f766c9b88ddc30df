package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DeviceInfoPath is the ECP query that returns device metadata
	DeviceInfoPath = "/query/device-info"

	// DefaultFetchTimeout bounds a single device-info request
	DefaultFetchTimeout = 5 * time.Second

	// maxDeviceInfoSize caps the document size read from a device
	maxDeviceInfoSize = 64 << 10
)

// InfoFetcher retrieves the device-info document advertised at a location
type InfoFetcher interface {
	FetchDeviceInfo(ctx context.Context, location string) (map[string]string, error)
}

// ECPClient fetches device-info over the External Control Protocol
type ECPClient struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// NewECPClient creates a client with the default request timeout
func NewECPClient() *ECPClient {
	return &ECPClient{
		HTTPClient: &http.Client{Timeout: DefaultFetchTimeout},
	}
}

// DeviceInfoURL returns the device-info URL for a location
func DeviceInfoURL(location string) string {
	return strings.TrimSuffix(location, "/") + DeviceInfoPath
}

// FetchDeviceInfo performs GET {location}/query/device-info and flattens the response
func (c *ECPClient) FetchDeviceInfo(ctx context.Context, location string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DeviceInfoURL(location), nil)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("invalid location %q", location), err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError("device-info request failed", location, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, location)
	}

	info, err := ParseDeviceInfo(io.LimitReader(resp.Body, maxDeviceInfoSize))
	if err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			devErr.Location = location
		}
		return nil, err
	}
	return info, nil
}

// ParseDeviceInfo flattens a <device-info> document into element name/value pairs.
// Only direct children of the root element are collected.
func ParseDeviceInfo(r io.Reader) (map[string]string, error) {
	decoder := xml.NewDecoder(r)
	info := make(map[string]string)

	depth := 0
	var current string
	var text strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewParseError("malformed device-info XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 && t.Name.Local != "device-info" {
				return nil, NewParseError(fmt.Sprintf("unexpected root element <%s>", t.Name.Local), nil)
			}
			if depth == 2 {
				current = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 {
				info[current] = strings.TrimSpace(text.String())
			}
			depth--
		}
	}

	if len(info) == 0 {
		return nil, NewParseError("empty device-info document", nil)
	}
	return info, nil
}
