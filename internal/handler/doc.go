// Package handler implements the HTTP API for crawlscope.
//
// CrawlHandler exposes the aggregator: the graph snapshot and its exports,
// the branch view, the raw message log, notifications and the crawl
// controls. NewRouter mounts it on a chi router together with the SSE
// event stream, Prometheus metrics and a health check.
//
// Errors are returned as JSON with {error, details} and a matching status
// code. Start requests are validated before any command is sent.
package handler
