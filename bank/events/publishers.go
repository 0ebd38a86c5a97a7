// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogPublisher publishes events to a zap logger.
type LogPublisher struct {
	log *zap.Logger
}

// NewLogPublisher creates a publisher that logs every event.
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish implements Publisher.
func (pub *LogPublisher) Publish(ctx context.Context, event Event) {
	pub.log.Info(event.Name(), zap.Any("event", event))
}

// Recorder collects published events for inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates a new Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Publish implements Publisher.
func (rec *Recorder) Publish(ctx context.Context, event Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.events = append(rec.events, event)
}

// All returns a copy of the recorded events.
func (rec *Recorder) All() []Event {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]Event{}, rec.events...)
}

// Named returns the recorded events with the given name.
func (rec *Recorder) Named(name string) []Event {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var matched []Event
	for _, event := range rec.events {
		if event.Name() == name {
			matched = append(matched, event)
		}
	}
	return matched
}
