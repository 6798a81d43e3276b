package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"crawlscope/internal/domain"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Event
		want    []Effect
		wantErr error
	}{
		{
			name: "new_domain enqueues then logs",
			event: domain.Event{
				Type:         domain.EventNewDomain,
				ParentDomain: "a.com",
				ChildDomain:  "b.com",
				ChildLink:    "https://b.com/x",
			},
			want: []Effect{
				{Kind: EffectEnqueueRelationship, Relationship: domain.Relationship{Parent: "a.com", Child: "b.com"}},
				{Kind: EffectLogMessage, Message: "https://b.com/x"},
			},
		},
		{
			name:  "new_domain missing child still logs",
			event: domain.Event{Type: domain.EventNewDomain, ParentDomain: "a.com", ChildLink: "https://b.com"},
			want: []Effect{
				{Kind: EffectLogMessage, Message: "https://b.com"},
			},
			wantErr: domain.ErrIncompleteRelationship,
		},
		{
			name:  "new_link only logs",
			event: domain.Event{Type: domain.EventNewLink, ChildLink: "https://a.com/page"},
			want: []Effect{
				{Kind: EffectLogMessage, Message: "https://a.com/page"},
			},
		},
		{
			name:  "stop_start",
			event: domain.Event{Type: domain.EventStopStart},
			want: []Effect{
				{Kind: EffectStopStarted},
				{Kind: EffectLogMessage},
			},
		},
		{
			name:  "stop_end",
			event: domain.Event{Type: domain.EventStopEnd},
			want: []Effect{
				{Kind: EffectStopEnded},
				{Kind: EffectLogMessage},
			},
		},
		{
			name:  "unknown type only logs",
			event: domain.Event{Type: "heartbeat", ChildLink: "ping"},
			want: []Effect{
				{Kind: EffectLogMessage, Message: "ping"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Route() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEffectKindString(t *testing.T) {
	assert.Equal(t, "enqueue_relationship", EffectEnqueueRelationship.String())
	assert.Equal(t, "unknown", EffectKind(99).String())
}
