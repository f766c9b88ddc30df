// Package tui implements the interactive terminal device picker.
//
// The picker shows the list built by picker.Build for the devices a running
// devicemanager.Manager knows about, refreshes it as device events arrive and
// shows a searching indicator until the first discovery round completes.
// Choosing "Enter manually" opens a text input for an IP address.
package tui
