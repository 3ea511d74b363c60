// Package wire owns the telemetry wire contract.
//
// Ownership boundary:
// - OSC message encode/decode (one route, positional arguments)
// - packet-size framing for stream transports
//
// Telemetry payloads are a single OSC string argument holding a JSON object.
package wire
