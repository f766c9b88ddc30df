package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const mockDeviceInfo = `<?xml version="1.0" encoding="UTF-8" ?>
<device-info>
	<udn>29380007-0800-1025-80a4-d83154332d7e</udn>
	<serial-number>X004000AAAAA</serial-number>
	<device-id>S00000AAAAA</device-id>
	<vendor-name>Roku</vendor-name>
	<model-number>4660X</model-number>
	<model-name>Roku Ultra</model-name>
	<user-device-name>Living Room</user-device-name>
	<software-version>11.5.0</software-version>
	<developer-enabled>true</developer-enabled>
	<is-tv>false</is-tv>
</device-info>
`

func TestParseDeviceInfo(t *testing.T) {
	info, err := ParseDeviceInfo(strings.NewReader(mockDeviceInfo))
	if err != nil {
		t.Fatalf("ParseDeviceInfo() error = %v", err)
	}

	expected := map[string]string{
		"serial-number":     "X004000AAAAA",
		"device-id":         "S00000AAAAA",
		"model-number":      "4660X",
		"user-device-name":  "Living Room",
		"developer-enabled": "true",
		"is-tv":             "false",
	}
	for key, want := range expected {
		if got := info[key]; got != want {
			t.Errorf("info[%q] = %q, want %q", key, got, want)
		}
	}
	if len(info) != 10 {
		t.Errorf("info has %d entries, want 10", len(info))
	}
}

func TestParseDeviceInfo_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"wrong root", "<html><body>nope</body></html>"},
		{"truncated", "<device-info><device-id>S1</device"},
		{"no children", "<device-info></device-info>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDeviceInfo(strings.NewReader(tt.body)); !IsParseError(err) {
				t.Errorf("ParseDeviceInfo() error = %v, want parse error", err)
			}
		})
	}
}

func TestParseDeviceInfo_IgnoresNestedElements(t *testing.T) {
	body := `<device-info><device-id>S1</device-id><extra><inner>x</inner></extra></device-info>`
	info, err := ParseDeviceInfo(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseDeviceInfo() error = %v", err)
	}
	if _, ok := info["inner"]; ok {
		t.Error("nested element should not be flattened")
	}
	if info["device-id"] != "S1" {
		t.Errorf("device-id = %q, want S1", info["device-id"])
	}
}

func TestECPClient_FetchDeviceInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if r.URL.Path != DeviceInfoPath {
			t.Errorf("Path = %s, want %s", r.URL.Path, DeviceInfoPath)
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(mockDeviceInfo))
	}))
	defer server.Close()

	client := NewECPClient()
	info, err := client.FetchDeviceInfo(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("FetchDeviceInfo() error = %v", err)
	}
	if info[InfoDeviceID] != "S00000AAAAA" {
		t.Errorf("device-id = %q, want S00000AAAAA", info[InfoDeviceID])
	}
}

func TestECPClient_FetchDeviceInfo_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewECPClient().FetchDeviceInfo(context.Background(), server.URL)
	devErr, ok := asDeviceError(err)
	if !ok {
		t.Fatalf("error = %v, want *DeviceError", err)
	}
	if devErr.Type != ErrTypeHTTP || devErr.StatusCode != http.StatusForbidden {
		t.Errorf("error = %+v, want HTTP 403", devErr)
	}
}

func TestECPClient_FetchDeviceInfo_ParseErrorCarriesLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := NewECPClient().FetchDeviceInfo(context.Background(), server.URL)
	devErr, ok := asDeviceError(err)
	if !ok || devErr.Type != ErrTypeParse {
		t.Fatalf("error = %v, want parse error", err)
	}
	if devErr.Location != server.URL {
		t.Errorf("Location = %q, want %q", devErr.Location, server.URL)
	}
}

func TestECPClient_FetchDeviceInfo_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	location := server.URL
	server.Close()

	_, err := NewECPClient().FetchDeviceInfo(context.Background(), location)
	if !IsNetworkError(err) {
		t.Errorf("error = %v, want network error", err)
	}
}

func TestDeviceInfoURL(t *testing.T) {
	tests := map[string]string{
		"http://10.0.0.1:8060/": "http://10.0.0.1:8060/query/device-info",
		"http://10.0.0.1:8060":  "http://10.0.0.1:8060/query/device-info",
	}
	for location, want := range tests {
		if got := DeviceInfoURL(location); got != want {
			t.Errorf("DeviceInfoURL(%q) = %q, want %q", location, got, want)
		}
	}
}
