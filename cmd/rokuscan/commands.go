package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/config"
	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/logging"
	"github.com/rokutools/rokuscan/internal/picker"
	"github.com/rokutools/rokuscan/internal/tui"
	"github.com/rokutools/rokuscan/internal/urls"
)

// Scan and pick flags
var (
	scanTimeout  time.Duration
	scanSources  []string
	scanAll      bool
	outputFormat string
	pickTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(pickCmd)
}

// scanCmd runs a single discovery round
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one discovery round and list the devices found",
	Long: `Run a single discovery round and print every Roku device that answered.

Search requests are repeated every second until the timeout elapses. Each
responder is queried for /query/device-info; devices without developer mode
are hidden unless --all is given.`,
	Example: `  # Scan for 5 seconds (default)
  rokuscan scan

  # Use both SSDP and mDNS, include retail devices
  rokuscan scan --source ssdp --source mdns --all

  # Machine-readable output
  rokuscan scan --format json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 5*time.Second, "Length of the discovery round")
	scanCmd.Flags().StringSliceVar(&scanSources, "source", nil, "Discovery source (ssdp, mdns); defaults to the settings file")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Include devices without developer mode")
	scanCmd.Flags().StringVar(&outputFormat, "format", "compact", "Output format (compact, detailed, json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanTimeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", scanTimeout)
	}
	switch outputFormat {
	case "compact", "detailed", "json":
	default:
		return fmt.Errorf("unknown format %q (want compact, detailed or json)", outputFormat)
	}

	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	ds := settings.Discovery
	if len(scanSources) > 0 {
		if err := validateSources(scanSources); err != nil {
			return err
		}
		ds.Sources = scanSources
	}
	includeAll := scanAll || ds.IncludeNonDeveloperDevices

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if outputFormat != "json" {
		fmt.Printf("Scanning for Roku devices (timeout: %s)...\n\n", scanTimeout)
	}

	result, err := discovery.Scan(ctx, scanTimeout, discovery.NewECPClient(), ds.NewSources()...)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	devices := make([]*discovery.Device, 0, len(result.Devices))
	hidden := 0
	for _, d := range result.Devices {
		if !includeAll && !d.DeveloperEnabled() {
			hidden++
			continue
		}
		devices = append(devices, d)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	defer printSkipped(result.Skipped)

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		if hidden > 0 {
			fmt.Printf("\n%d device(s) answered without developer mode enabled (use --all to list them).\n", hidden)
			fmt.Printf("Enable developer mode: %s\n", urls.DeveloperSetup)
			return nil
		}
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the device is powered on and on the same network")
		fmt.Println("  - Check that your firewall allows UDP port 1900 (SSDP)")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Try --source mdns if multicast SSDP is filtered")
		fmt.Printf("  - Make sure network access is allowed for control: %s\n", urls.NetworkAccess)
		fmt.Printf("\nECP reference: %s\n", urls.ExternalControlAPI)
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		if outputFormat == "detailed" {
			fmt.Println(d.FormatDetailed())
			continue
		}
		fmt.Printf("%d. %s\n", i+1, picker.DeviceLabel(d))
		fmt.Print(indent(d.FormatCompact(), "   "))
		fmt.Println()
	}
	if hidden > 0 {
		fmt.Printf("%d device(s) without developer mode hidden (use --all to list them).\n", hidden)
	}
	return nil
}

// printSkipped lists responders that answered discovery but could not be
// queried over ECP
func printSkipped(skipped []discovery.ProbeEvent) {
	if len(skipped) == 0 {
		return
	}
	fmt.Printf("\n%d responder(s) could not be queried:\n", len(skipped))
	for _, ev := range skipped {
		fmt.Printf("  - %s: %s\n", ev.Location, skipHint(ev.Err))
	}
}

func skipHint(err error) string {
	msg := discovery.ShortMessage(err)
	switch {
	case discovery.IsParseError(err):
		return msg + " (not a Roku device?)"
	case discovery.IsNetworkError(err):
		return msg + " (check \"Control by mobile apps\" network access)"
	}
	return msg
}

func validateSources(sources []string) error {
	for _, s := range sources {
		if s != config.SourceSSDP && s != config.SourceMDNS {
			return fmt.Errorf("unknown source %q (want %s or %s)", s, config.SourceSSDP, config.SourceMDNS)
		}
	}
	return nil
}

// pickCmd chooses a device and remembers it
var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Choose a device interactively",
	Long: `Run background discovery and choose a device from the picker.

The last used device is pinned to the top of the list. The chosen device's
IP address is printed to stdout and remembered in the settings file, so
the picker can be used in scripts:

  export ROKU_DEV_TARGET=$(rokuscan pick)

When stdout is not a terminal the list is printed once the first discovery
round has completed (or --timeout has elapsed).`,
	RunE: runPick,
}

func init() {
	pickCmd.Flags().DurationVar(&pickTimeout, "timeout", 10*time.Second, "How long to wait for the first round when not interactive")
}

func runPick(cmd *cobra.Command, args []string) error {
	settings, path, err := loadSettings()
	if err != nil {
		return err
	}

	cfg := settings.ManagerConfig()
	cfg.Enabled = true
	manager := devicemanager.New(cfg, devicemanager.Options{Sources: settings.Discovery.NewSources()})
	defer manager.Close()
	manager.SetLastUsedDevice(settings.LastUsedDevice())

	if !tui.IsTerminal(os.Stdout) || !tui.IsTerminal(os.Stdin) {
		waitForFirstRound(cmd.Context(), manager, pickTimeout)
		items := picker.Build(manager.ActiveDevices().Devices, manager.LastUsedDevice())
		return tui.WritePlainList(os.Stdout, items)
	}

	selection, err := tui.Run(manager, manager)
	if err != nil {
		return err
	}
	if selection == nil {
		return nil
	}

	if selection.Manual() {
		fmt.Println(selection.Host)
		return nil
	}

	manager.SetLastUsedDevice(selection.Device)
	settings.RememberDevice(selection.Device)
	if err := settings.Save(path); err != nil {
		logging.Warn("Failed to remember selected device",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	fmt.Println(selection.Device.IP)
	return nil
}

// waitForFirstRound blocks until the manager reports a completed round,
// the timeout elapses or ctx is cancelled
func waitForFirstRound(ctx context.Context, m *devicemanager.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for m.ActiveDevices().Status != devicemanager.StatusSearched {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(strings.TrimSuffix(s, "\n"), "\n", "\n"+prefix) + "\n"
}
