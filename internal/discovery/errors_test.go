package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
)

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{
			name:          "deadline exceeded",
			err:           os.ErrDeadlineExceeded,
			wantType:      ErrTypeTimeout,
			wantRetryable: true,
		},
		{
			name:     "dns failure",
			err:      &net.DNSError{Name: "roku.local", Err: "no such host"},
			wantType: ErrTypeDNS,
		},
		{
			name:          "connection refused",
			err:           &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			wantType:      ErrTypeConnectionRefused,
			wantRetryable: true,
		},
		{
			name:          "refused wrapped in url error",
			err:           &url.Error{Op: "Get", URL: "http://10.0.0.1:8060", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
			wantType:      ErrTypeConnectionRefused,
			wantRetryable: true,
		},
		{
			name:          "generic",
			err:           errors.New("boom"),
			wantType:      ErrTypeNetwork,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err, "http://10.0.0.1:8060")
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetryable)
			}
			if got.Location != "http://10.0.0.1:8060" {
				t.Errorf("Location = %v", got.Location)
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestDeviceError_Wrapping(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := fmt.Errorf("fetch: %w", NewParseError("malformed device-info XML", cause))

	if !IsParseError(err) {
		t.Error("IsParseError() = false through wrapping, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should reach the cause")
	}
	if IsNetworkError(err) {
		t.Error("IsNetworkError() = true for parse error")
	}
}

func TestNewHTTPError_Retryable(t *testing.T) {
	if IsRetryable(NewHTTPError(404, "")) {
		t.Error("404 should not be retryable")
	}
	if !IsRetryable(NewHTTPError(503, "")) {
		t.Error("503 should be retryable")
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewHTTPError(403, ""), "Device error (HTTP 403)"},
		{NewParseError("bad", nil), "Failed to parse device response"},
		{ClassifyNetworkError(os.ErrDeadlineExceeded, ""), "Device not responding (timeout)"},
		{errors.New("plain"), "plain"},
	}

	for _, tt := range tests {
		if got := ShortMessage(tt.err); got != tt.want {
			t.Errorf("ShortMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
