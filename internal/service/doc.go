// Package service implements the crawl aggregation logic for crawlscope.
//
// Frames read from the crawler stream are decoded into domain events and
// handed to the Aggregator, which routes each one and applies the
// resulting effects.
//
// # Components
//
// Route maps an event to an ordered list of effects. Every event is logged
// to the message log and filed in the branch index; new_domain events also
// enqueue a relationship, and the stop handshake events drive CrawlControl.
//
// Batcher buffers relationships and flushes them once input has been quiet
// for a configurable period. Each flush is applied to the graph in one
// step and followed by exactly one layout recompute.
//
// CrawlControl tracks the crawl lifecycle and keeps stop requests
// idempotent until the crawler confirms the stop ended.
//
// NotificationCenter holds short-lived status messages that expire a fixed
// time after they are posted.
//
// # Event System
//
// Components publish on the EventBus; the hub forwards every event to
// connected SSE clients.
package service
