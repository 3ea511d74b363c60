// Package transport owns the telemetry session endpoints.
//
// Ownership boundary:
// - sender bound to a fixed local address, aimed at one destination
// - listener bound to the receive address
// - datagram (udp) and stream (tcp) modes
//
// Nothing here retries, reconnects or acknowledges. A failed write is
// reported to the caller once and forgotten.
package transport
