// Package adapter connects crawlscope to the external crawler process.
//
// Supervisor owns the single WebSocket connection. Inbound frames are handed
// to a FrameHandler; outbound start and stop commands go through Send,
// paced by a token bucket.
//
// # Reconnects
//
// A dropped connection is redialled immediately. Failed dials back off
// exponentially with jitter, optionally bounded by a maximum number of
// consecutive attempts. A circuit breaker around the dial stops hammering
// an unreachable crawler and half-opens after a timeout.
//
// Connection changes are published on the event bus as stream_connected
// and stream_disconnected.
package adapter
