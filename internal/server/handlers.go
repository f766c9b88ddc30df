package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/devicecache"
	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/logging"
	"github.com/rokutools/rokuscan/internal/picker"
)

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	devicecache.Stats
	State devicemanager.State `json:"state"`

	// Rounds counts completed discovery rounds
	Rounds int64 `json:"rounds"`

	// Streams is the number of connected /events clients
	Streams int `json:"streams"`

	// TimeSinceLastDiscoveredMs is null until a device has been found
	TimeSinceLastDiscoveredMs *int64 `json:"time_since_last_discovered_ms"`
}

// ErrorResponse is the body of non-2xx responses
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler returns the HTTP handler with all routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /picker", s.handlePicker)
	mux.HandleFunc("GET /last-used", s.handleGetLastUsed)
	mux.HandleFunc("PUT /last-used/{id}", s.handleSetLastUsed)
	mux.HandleFunc("DELETE /last-used", s.handleClearLastUsed)
	mux.HandleFunc("GET /events", s.handleEvents)
	return logRequests(mux)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ActiveDevices())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Stats:   s.manager.CacheStats(),
		State:   s.manager.State(),
		Rounds:  s.manager.Rounds(),
		Streams: s.ActiveStreams(),
	}
	if since, ok := s.manager.TimeSinceLastDiscoveredDevice(); ok {
		ms := since.Milliseconds()
		resp.TimeSinceLastDiscoveredMs = &ms
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePicker(w http.ResponseWriter, r *http.Request) {
	items := picker.Build(s.manager.ActiveDevices().Devices, s.manager.LastUsedDevice())
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetLastUsed(w http.ResponseWriter, r *http.Request) {
	d := s.manager.LastUsedDevice()
	if d == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no device selected"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSetLastUsed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := s.manager.Device(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "device " + id + " is not active"})
		return
	}

	s.manager.SetLastUsedDevice(d)
	if s.config.OnSelect != nil {
		s.config.OnSelect(d)
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleClearLastUsed(w http.ResponseWriter, r *http.Request) {
	s.manager.SetLastUsedDevice(nil)
	if s.config.OnSelect != nil {
		s.config.OnSelect(nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes the upgrade through to the underlying writer
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}
