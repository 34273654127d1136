// Package events fans domain events out to webhooks and, when configured,
// to a Kafka topic.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"projecthub/internal/engine/webhooks"
	"projecthub/internal/pkg/logger"
)

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, orgID, eventType string, data interface{}) (webhooks.Result, error)
}

// Envelope is the Kafka message value.
type Envelope struct {
	Event          string      `json:"event"`
	OrganizationID string      `json:"organization_id"`
	Timestamp      string      `json:"timestamp"`
	Data           interface{} `json:"data"`
}

type Bus struct {
	dispatcher WebhookDispatcher
	publisher  Publisher
	now        func() time.Time
	log        zerolog.Logger
}

// NewBus builds a bus. publisher may be nil.
func NewBus(dispatcher WebhookDispatcher, publisher Publisher) *Bus {
	return &Bus{
		dispatcher: dispatcher,
		publisher:  publisher,
		now:        time.Now,
		log:        logger.Component("events"),
	}
}

// Publish delivers the event to subscribed webhooks and the Kafka topic and
// returns the webhook delivery counts. Kafka errors are logged only.
func (b *Bus) Publish(ctx context.Context, orgID, eventType string, data interface{}) (webhooks.Result, error) {
	if b.publisher != nil {
		env := Envelope{
			Event:          eventType,
			OrganizationID: orgID,
			Timestamp:      b.now().UTC().Format(time.RFC3339),
			Data:           data,
		}
		if err := b.publisher.Publish(ctx, orgID, env); err != nil {
			b.log.Error().Err(err).Str("event", eventType).Str("org_id", orgID).Msg("Failed to publish event")
		}
	}
	if b.dispatcher == nil {
		return webhooks.Result{}, nil
	}
	return b.dispatcher.Dispatch(ctx, orgID, eventType, data)
}

// Emit is Publish for callers that only need the side effect. Deliveries
// outlive the caller's context; a disconnecting client must not count as a
// webhook failure.
func (b *Bus) Emit(ctx context.Context, orgID, eventType string, data interface{}) {
	res, err := b.Publish(context.WithoutCancel(ctx), orgID, eventType, data)
	if err != nil {
		b.log.Error().Err(err).Str("event", eventType).Str("org_id", orgID).Msg("Webhook dispatch failed")
		return
	}
	if res.Attempted > 0 {
		b.log.Debug().Str("event", eventType).Str("org_id", orgID).
			Int("attempted", res.Attempted).Int("failed", res.Failed).Msg("Event dispatched")
	}
}

// Recorded is one event captured by Recorder.
type Recorded struct {
	OrgID string
	Type  string
	Data  interface{}
}

// Recorder captures emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Emit(ctx context.Context, orgID, eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{OrgID: orgID, Type: eventType, Data: data})
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}
