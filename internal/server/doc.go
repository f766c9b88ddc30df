// Package server exposes a running device manager over HTTP.
//
// Endpoints:
//
//	GET    /devices         active devices as {"status": ..., "devices": [...]}
//	GET    /stats           cache statistics, discovery state, round and stream counts
//	GET    /picker          the host picker list for the current devices
//	GET    /last-used       the last used device (404 when unset)
//	PUT    /last-used/{id}  select a device from the live device list
//	DELETE /last-used       clear the selection
//	GET    /events          WebSocket stream of device-found / device-expired events
//
// Each WebSocket message is one JSON event:
//
//	{"type": "device-found", "device": {...}, "new": true}
//
// The server shuts down gracefully on SIGINT/SIGTERM or when the context
// passed to Start is cancelled.
package server
