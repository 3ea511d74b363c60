// Package server is the local listening side of ampm.
//
// Ownership boundary:
// - OSC receiver for /heart, /event, /log, /getAppState and custom routes
// - per-host app registry with a liveness window
// - HTTP surface: /config, /apps, /health, /metrics
//
// Apps are keyed by sender host. A host not heard from within
// KillClientsAfter is dropped along with its reply endpoint.
package server
