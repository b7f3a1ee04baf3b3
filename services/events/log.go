package eventsvc

import (
	"context"
	"sync"

	"github.com/kcci/portal/core"
)

// LogPublisher logs events instead of delivering them. Used when no Kafka brokers are configured.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...core.Event) error {
	for _, evt := range events {
		p.logger.Info("event: "+evt.Type, map[string]interface{}{
			"id":       evt.ID,
			"actor_id": evt.ActorID,
			"data":     evt.Data,
		})
	}
	return nil
}

// PublisherMock records published events. For tests.
type PublisherMock struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*PublisherMock)(nil)

func NewPublisherMock() *PublisherMock {
	return &PublisherMock{}
}

func (p *PublisherMock) Publish(_ context.Context, events ...core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// Events returns the recorded events, optionally only those of the given types.
func (p *PublisherMock) Events(types ...string) []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(types) == 0 {
		return append([]core.Event(nil), p.events...)
	}
	var evts []core.Event
	for _, evt := range p.events {
		for _, typ := range types {
			if evt.Type == typ {
				evts = append(evts, evt)
				break
			}
		}
	}
	return evts
}

func (p *PublisherMock) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
