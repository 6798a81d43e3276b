package service

import "crawlscope/internal/domain"

// EffectKind is what the aggregator must do for one routed event
type EffectKind uint8

const (
	EffectLogMessage EffectKind = iota
	EffectEnqueueRelationship
	EffectStopStarted
	EffectStopEnded
)

func (k EffectKind) String() string {
	switch k {
	case EffectLogMessage:
		return "log_message"
	case EffectEnqueueRelationship:
		return "enqueue_relationship"
	case EffectStopStarted:
		return "stop_started"
	case EffectStopEnded:
		return "stop_ended"
	}
	return "unknown"
}

// Effect is one routing decision
type Effect struct {
	Kind         EffectKind
	Message      string
	Relationship domain.Relationship
}

// Route classifies ev into the effects the aggregator applies, in order.
// Every event, known or not, ends with a LogMessage effect. A new_domain
// event missing an endpoint yields a non-nil error alongside its effects.
func Route(ev domain.Event) ([]Effect, error) {
	var (
		effects []Effect
		err     error
	)

	switch ev.Type {
	case domain.EventNewDomain:
		var r domain.Relationship
		if r, err = ev.Relationship(); err == nil {
			effects = append(effects, Effect{Kind: EffectEnqueueRelationship, Relationship: r})
		}
	case domain.EventStopStart:
		effects = append(effects, Effect{Kind: EffectStopStarted})
	case domain.EventStopEnd:
		effects = append(effects, Effect{Kind: EffectStopEnded})
	}

	effects = append(effects, Effect{Kind: EffectLogMessage, Message: ev.ChildLink})
	return effects, err
}
