package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
)

// kernel is the single serialization point shared by every core component.
// Mutations hold mu for their whole validate, apply and emit sequence.
type kernel struct {
	mu    sync.RWMutex
	sink  EventSink
	seq   uint64
	clock func() time.Time
	log   *logrus.Logger
}

func newKernel(sink EventSink, clock func() time.Time, log *logrus.Logger) *kernel {
	if sink == nil {
		sink = discardSink{}
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logrus.New()
	}
	return &kernel{sink: sink, clock: clock, log: log}
}

// emit must be called with mu held for writing.
func (k *kernel) emit(eventType models.EventType, principals map[string]models.Principal, amounts, attributes map[string]string) {
	k.seq++
	k.sink.Publish(models.Event{
		ID:         models.GenerateEventID(),
		Sequence:   k.seq,
		Type:       eventType,
		Principals: principals,
		Amounts:    amounts,
		Attributes: attributes,
		Timestamp:  k.clock(),
	})
}

// EventLog keeps the most recent events in memory.
type EventLog struct {
	mu     sync.RWMutex
	events []models.Event
	max    int
}

func NewEventLog(max int) *EventLog {
	if max <= 0 {
		max = 1000
	}
	return &EventLog{max: max}
}

func (l *EventLog) Publish(event models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if len(l.events) > l.max {
		l.events = append(l.events[:0], l.events[len(l.events)-l.max:]...)
	}
}

// Recent returns up to limit events, newest first. A limit <= 0 returns all.
func (l *EventLog) Recent(limit int) []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}
	out := make([]models.Event, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.events[i])
	}
	return out
}

// ForPrincipal filters Recent to events that involve p.
func (l *EventLog) ForPrincipal(p models.Principal, limit int) []models.Event {
	var out []models.Event
	for _, e := range l.Recent(0) {
		if e.Involves(p) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
