package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/devicecache"
	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/logging"
)

// DefaultPort is the port used when Config.Port is zero
const DefaultPort = 8089

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// OnSelect is called after PUT or DELETE /last-used changes the selection
	OnSelect func(*discovery.Device)
}

// Manager is the subset of devicemanager.Manager the server uses
type Manager interface {
	ActiveDevices() devicemanager.Result
	Device(id string) (*discovery.Device, bool)
	CacheStats() devicecache.Stats
	Rounds() int64
	TimeSinceLastDiscoveredDevice() (time.Duration, bool)
	State() devicemanager.State
	LastUsedDevice() *discovery.Device
	SetLastUsedDevice(*discovery.Device)
	Subscribe(devicemanager.Handler) func()
}

// Server serves device queries and the event stream
type Server struct {
	config   Config
	manager  Manager
	upgrader websocket.Upgrader

	httpServer *http.Server
	wg         sync.WaitGroup
	mu         sync.Mutex
	streams    map[string]*websocket.Conn
}

// New creates a new Server instance
func New(config Config, manager Manager) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}

	s := &Server{
		config:  config,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		streams: make(map[string]*websocket.Conn),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// Start listens on the configured address and blocks until a shutdown
// signal arrives or ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until a shutdown signal arrives or
// ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, closes event streams and waits for
// in-flight handlers
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)

	// Hijacked WebSocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, conn := range s.streams {
		logging.Debug("Closing event stream", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// ActiveStreams returns the number of connected event stream clients
func (s *Server) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}
