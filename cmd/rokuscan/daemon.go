package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/config"
	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/logging"
	"github.com/rokutools/rokuscan/internal/server"
)

// Serve flags
var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run background discovery and print device events",
	Long: `Run the device manager in the foreground and print a line for every
device found or expired, until interrupted.

Changes to the settings file are applied while running: disabling
discovery stops the scheduler and clears the device list, and new backoff
timings restart it.`,
	RunE: runWatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve discovered devices over HTTP and WebSocket",
	Long: `Run the device manager behind a local HTTP server.

Endpoints:
  GET    /devices         {status, devices}
  GET    /stats           cache statistics, discovery state, round and stream counts
  GET    /picker          the host picker list
  GET    /last-used       the last used device
  PUT    /last-used/{id}  select a discovered device
  DELETE /last-used       forget the last used device
  GET    /events          WebSocket stream of device-found/device-expired

Selections made through the server are remembered in the settings file.
With show_info_messages enabled, "Device found" messages are written to
the log (use --log-level info to see them).`,
	Example: `  # Listen on localhost:8089 (default)
  rokuscan serve

  # Listen on all interfaces
  rokuscan serve --host 0.0.0.0 --port 9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&servePort, "port", server.DefaultPort, "Listen port")
}

// session is a running manager bound to a settings file
type session struct {
	manager *devicemanager.Manager
	path    string

	mu       sync.Mutex
	settings *config.Settings
}

func newSession(notifier devicemanager.Notifier) (*session, error) {
	settings, path, err := loadSettings()
	if err != nil {
		return nil, err
	}

	m := devicemanager.New(settings.ManagerConfig(), devicemanager.Options{
		Sources:  settings.Discovery.NewSources(),
		Notifier: notifier,
	})
	m.SetLastUsedDevice(settings.LastUsedDevice())

	return &session{manager: m, path: path, settings: settings}, nil
}

// watchSettings applies settings file changes to the manager until ctx is done
func (s *session) watchSettings(ctx context.Context) {
	err := config.Watch(ctx, s.path, func(updated *config.Settings) {
		s.mu.Lock()
		updated.LastUsed = s.settings.LastUsed
		s.settings = updated
		s.mu.Unlock()

		logging.Info("Settings changed", zap.String("path", s.path))
		s.manager.OnConfigurationChanged(updated.ManagerConfig())
	})
	if err != nil {
		logging.Warn("Not watching settings file",
			zap.String("path", s.path),
			zap.Error(err),
		)
	}
}

// remember persists d as the last used device
func (s *session) remember(d *discovery.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.RememberDevice(d)
	if err := s.settings.Save(s.path); err != nil {
		logging.Warn("Failed to remember selected device",
			zap.String("path", s.path),
			zap.Error(err),
		)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	sess, err := newSession(devicemanager.NotifierFunc(func(msg string) {
		fmt.Fprintln(os.Stderr, msg)
	}))
	if err != nil {
		return err
	}
	defer sess.manager.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubscribe := sess.manager.Subscribe(func(ev devicemanager.Event) {
		fmt.Println(formatEvent(time.Now(), ev))
	})
	defer unsubscribe()

	go sess.watchSettings(ctx)

	if sess.manager.State() == devicemanager.StateDisabled {
		fmt.Printf("Discovery is disabled in %s; waiting for it to be enabled.\n", sess.path)
	} else {
		fmt.Println("Watching for Roku devices (Ctrl+C to stop)...")
	}

	<-ctx.Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	sess, err := newSession(logNotifier)
	if err != nil {
		return err
	}
	defer sess.manager.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go sess.watchSettings(ctx)

	srv := server.New(server.Config{
		Host:     serveHost,
		Port:     servePort,
		OnSelect: sess.remember,
	}, sess.manager)

	fmt.Printf("Serving devices on http://%s\n", srv.Addr())
	return srv.Start(ctx)
}

// logNotifier routes "Device found" messages to the log
var logNotifier = devicemanager.NotifierFunc(func(msg string) {
	logging.Info(msg)
})

func formatEvent(at time.Time, ev devicemanager.Event) string {
	marker := "+"
	if ev.Type == devicemanager.EventDeviceExpired {
		marker = "-"
	} else if !ev.New {
		marker = "="
	}
	return fmt.Sprintf("%s %s %-14s %s", at.Format("15:04:05"), marker, ev.Type, ev.Device.Summary())
}
