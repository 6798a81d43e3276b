// Package domain defines the core types of the crawlscope aggregator.
//
// # Inbound
//
// Event is a decoded crawler stream frame. DecodeEvent accepts both the
// "message_type" and the "action" spelling of the event type, and both
// "child_link" and "childLink" for the raw link.
//
// # Graph
//
// Graph is the deduplicated directed relationship graph. ApplyBatch is its
// only mutation entry point and returns the render operations (add_node,
// add_edge, set_bidirectional, remove_edge) the layout engine mirrors. For
// any unordered pair of domains the graph holds at most one edge; a second
// sighting in either direction marks that edge bidirectional.
//
// # Branches
//
// BranchIndex groups raw message URLs by hostname. Messages that do not parse
// as absolute URLs are filed under the empty key.
//
// # Outbound
//
// Command is the JSON message sent back to the crawler to start or stop a run.
//
// Nothing in this package is safe for concurrent use or depends on
// infrastructure; callers serialise access.
package domain
