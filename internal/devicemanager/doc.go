// Package devicemanager runs background Roku discovery while enabled and
// answers "which devices are on the network right now".
//
// A Manager owns a discovery.Probe, a schedule.Scheduler that repeats probe
// rounds with growing spacing, and a devicecache.Cache holding what was found.
// Consumers read snapshots with ActiveDevices and subscribe to device-found
// and device-expired events. Configuration is passed to New and updated with
// OnConfigurationChanged; turning discovery off stops the scheduler and
// flushes the cache.
package devicemanager
