package services

import "guess-reward-backend/internal/models"

// EventSink receives committed events. Publish is called while the core
// holds its write lock, so implementations must not block or call back
// into the core.
type EventSink interface {
	Publish(event models.Event)
}

// SinkFunc adapts a plain function to EventSink.
type SinkFunc func(event models.Event)

func (f SinkFunc) Publish(event models.Event) {
	f(event)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(event models.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(event)
		}
	}
}

type discardSink struct{}

func (discardSink) Publish(models.Event) {}
