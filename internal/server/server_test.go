package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokutools/rokuscan/internal/devicecache"
	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/discovery"
)

type fakeManager struct {
	mu       sync.Mutex
	devices  []*discovery.Device
	status   devicemanager.Status
	lastUsed *discovery.Device
	since    time.Duration
	handlers []devicemanager.Handler
}

func (f *fakeManager) ActiveDevices() devicemanager.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return devicemanager.Result{Status: f.status, Devices: f.devices}
}

func (f *fakeManager) Device(id string) (*discovery.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

func (f *fakeManager) CacheStats() devicecache.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return devicecache.Stats{Keys: len(f.devices), Hits: 3, Misses: 1}
}

func (f *fakeManager) TimeSinceLastDiscoveredDevice() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since, f.since > 0
}

func (f *fakeManager) setSince(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = d
}

func (f *fakeManager) State() devicemanager.State { return devicemanager.StateIdle }

func (f *fakeManager) Rounds() int64 { return 4 }

func (f *fakeManager) LastUsedDevice() *discovery.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUsed
}

func (f *fakeManager) SetLastUsedDevice(d *discovery.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsed = d
}

func (f *fakeManager) Subscribe(h devicemanager.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
	idx := len(f.handlers) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[idx] = nil
	}
}

func (f *fakeManager) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.handlers {
		if h != nil {
			n++
		}
	}
	return n
}

func (f *fakeManager) emit(ev devicemanager.Event) {
	f.mu.Lock()
	handlers := append([]devicemanager.Handler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(ev)
		}
	}
}

func testDevice(id, ip string) *discovery.Device {
	return &discovery.Device{
		ID:       id,
		IP:       ip,
		Location: "http://" + ip + ":8060",
		DeviceInfo: map[string]string{
			discovery.InfoUserDeviceName: "Roku " + id,
			discovery.InfoSerialNumber:   "SN" + id,
			discovery.InfoModelNumber:    "3930X",
		},
	}
}

func newTestServer(t *testing.T, mgr *fakeManager, onSelect func(*discovery.Device)) *httptest.Server {
	t.Helper()
	s := New(Config{OnSelect: onSelect}, mgr)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestDevices(t *testing.T) {
	mgr := &fakeManager{
		status:  devicemanager.StatusSearched,
		devices: []*discovery.Device{testDevice("R1", "10.0.0.1")},
	}
	ts := newTestServer(t, mgr, nil)

	var body struct {
		Status  string              `json:"status"`
		Devices []*discovery.Device `json:"devices"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/devices", &body))
	assert.Equal(t, "searched", body.Status)
	require.Len(t, body.Devices, 1)
	assert.Equal(t, "R1", body.Devices[0].ID)
}

func TestDevices_NotYetSearched(t *testing.T) {
	ts := newTestServer(t, &fakeManager{}, nil)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/devices", &body))
	assert.Equal(t, "not-yet-searched", body["status"])
}

func TestStats(t *testing.T) {
	mgr := &fakeManager{devices: []*discovery.Device{testDevice("R1", "10.0.0.1")}}
	ts := newTestServer(t, mgr, nil)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/stats", &body))
	assert.Equal(t, float64(1), body["keys"])
	assert.Equal(t, float64(3), body["hits"])
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, float64(4), body["rounds"])
	assert.Equal(t, float64(0), body["streams"])
	assert.Nil(t, body["time_since_last_discovered_ms"])

	mgr.setSince(1500 * time.Millisecond)
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/stats", &body))
	assert.Equal(t, float64(1500), body["time_since_last_discovered_ms"])
}

func TestPicker(t *testing.T) {
	a := testDevice("A", "10.0.0.1")
	b := testDevice("B", "10.0.0.2")
	mgr := &fakeManager{devices: []*discovery.Device{a, b}, lastUsed: b}
	ts := newTestServer(t, mgr, nil)

	var items []struct {
		Kind  string `json:"kind"`
		Label string `json:"label"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/picker", &items))

	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	assert.Equal(t, []string{
		"last used", "10.0.0.2 | Roku B - SNB - 3930X",
		"other devices", "10.0.0.1 | Roku A - SNA - 3930X",
		" ", "Enter manually",
	}, labels)
	assert.Equal(t, "manual", items[len(items)-1].Kind)
}

func TestLastUsed(t *testing.T) {
	mgr := &fakeManager{devices: []*discovery.Device{testDevice("R1", "10.0.0.1")}}
	var selected []*discovery.Device
	ts := newTestServer(t, mgr, func(d *discovery.Device) { selected = append(selected, d) })

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/last-used", nil))

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/last-used/R1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var d discovery.Device
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/last-used", &d))
	assert.Equal(t, "R1", d.ID)

	req, err = http.NewRequest(http.MethodPut, ts.URL+"/last-used/missing", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/last-used", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, mgr.LastUsedDevice())

	require.Len(t, selected, 2)
	assert.Equal(t, "R1", selected[0].ID)
	assert.Nil(t, selected[1])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeManager{}, nil)

	resp, err := http.Post(ts.URL+"/devices", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	mgr := &fakeManager{}
	ts := newTestServer(t, mgr, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return mgr.subscribers() == 1 }, 2*time.Second, time.Millisecond)

	var stats map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/stats", &stats))
	assert.Equal(t, float64(1), stats["streams"])

	mgr.emit(devicemanager.Event{Type: devicemanager.EventDeviceFound, Device: testDevice("R1", "10.0.0.1"), New: true})
	mgr.emit(devicemanager.Event{Type: devicemanager.EventDeviceExpired, Device: testDevice("R1", "10.0.0.1")})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "device-found", first["type"])
	assert.Equal(t, true, first["new"])

	var second map[string]any
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "device-expired", second["type"])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return mgr.subscribers() == 0 }, 2*time.Second, time.Millisecond)
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	s := New(Config{Host: "127.0.0.1"}, &fakeManager{})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/devices"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, s.ActiveStreams())
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8089", New(Config{}, &fakeManager{}).Addr())
	assert.Equal(t, "127.0.0.1:9000", New(Config{Host: "127.0.0.1", Port: 9000}, &fakeManager{}).Addr())
}
