// Package telemetry is the app-side client of the ampm server.
//
// Ownership boundary:
// - the bound sender/listener session
// - heartbeat, analytics event, log and custom message emission
// - one-shot configuration document fetch
//
// Every emission is fire-and-forget: nothing is acknowledged, retried or
// reported back to the caller. Failures are visible only in the process log
// and in the ampm_client_messages_sent_total metric.
//
// Routes on the wire:
//
//	/heart  no arguments
//	/event  {"Category","Action","Label","Value"}
//	/log    {"level","message","line","lineNum"}
//
// Records travel as one OSC string argument holding a JSON object whose keys
// keep insertion order.
package telemetry
