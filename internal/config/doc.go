// Package config manages the rokuscan settings file.
//
// Settings live in a YAML file stored in the platform configuration
// directory:
//   - Linux: $XDG_CONFIG_HOME/rokuscan/settings.yaml or $HOME/.config/rokuscan/settings.yaml
//   - macOS: $HOME/.config/rokuscan/settings.yaml
//   - Windows: %LOCALAPPDATA%\rokuscan\settings.yaml
//
// The file holds the discovery settings consumed by devicemanager and the
// last device the user picked. A missing file yields DefaultSettings.
//
// # Usage Example
//
//	settings, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr := devicemanager.New(settings.ManagerConfig(), devicemanager.Options{
//	    Sources: settings.Discovery.NewSources(),
//	})
//
//	// Follow edits made while running
//	go config.Watch(ctx, path, func(s *config.Settings) {
//	    mgr.OnConfigurationChanged(s.ManagerConfig())
//	})
//
// # Thread Safety
//
// Save serializes writers with a package mutex and replaces the file with an
// atomic rename, so Watch never observes a half-written file.
package config
