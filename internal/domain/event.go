package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType identifies an inbound crawler event
type EventType string

const (
	EventNewDomain EventType = "new_domain"
	EventNewLink   EventType = "new_link"
	EventStopStart EventType = "stop_start"
	EventStopEnd   EventType = "stop_end"
)

// ErrIncompleteRelationship is returned for new_domain events missing either endpoint
var ErrIncompleteRelationship = errors.New("relationship missing parent or child domain")

// Event is a decoded crawler stream message. Only the fields relevant to
// Type are populated; unknown types keep whatever link they carried.
type Event struct {
	Type         EventType `json:"message_type"`
	ParentDomain string    `json:"parent_domain,omitempty"`
	ChildDomain  string    `json:"child_domain,omitempty"`
	ChildLink    string    `json:"child_link,omitempty"`
}

// Known reports whether the event type is one the router has a dedicated path for
func (e Event) Known() bool {
	switch e.Type {
	case EventNewDomain, EventNewLink, EventStopStart, EventStopEnd:
		return true
	}
	return false
}

// Relationship returns the parent -> child pair carried by a new_domain event
func (e Event) Relationship() (Relationship, error) {
	parent := strings.TrimSpace(e.ParentDomain)
	child := strings.TrimSpace(e.ChildDomain)
	if parent == "" || child == "" {
		return Relationship{}, fmt.Errorf("%w: parent=%q child=%q", ErrIncompleteRelationship, e.ParentDomain, e.ChildDomain)
	}
	return Relationship{Parent: parent, Child: child}, nil
}

// wireEvent accepts every spelling the crawler has used on the wire.
// Stop handshakes arrive under "action"; the type and link also come
// camel-cased.
type wireEvent struct {
	MessageType    string `json:"message_type"`
	MessageTypeAlt string `json:"messageType"`
	Action         string `json:"action"`
	ParentDomain   string `json:"parent_domain"`
	ChildDomain    string `json:"child_domain"`
	ChildLink      string `json:"child_link"`
	ChildLinkAlt   string `json:"childLink"`
}

// DecodeEvent parses one stream frame
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	typ := w.MessageType
	if typ == "" {
		typ = w.MessageTypeAlt
	}
	if typ == "" {
		typ = w.Action
	}
	link := w.ChildLink
	if link == "" {
		link = w.ChildLinkAlt
	}

	return Event{
		Type:         EventType(typ),
		ParentDomain: w.ParentDomain,
		ChildDomain:  w.ChildDomain,
		ChildLink:    link,
	}, nil
}

// Relationship is a discovered parent -> child domain link awaiting graph insertion
type Relationship struct {
	Parent string `json:"parent_domain"`
	Child  string `json:"child_domain"`
}
