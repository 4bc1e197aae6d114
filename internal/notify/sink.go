package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/persistence"
)

// Sink receives controller events.
type Sink interface {
	RecordEvent(ctx context.Context, e persistence.Event) error
}

type namedSink struct {
	name string
	sink Sink
}

// Fanout delivers each event to every configured sink. One failing sink does
// not stop delivery to the others.
type Fanout struct {
	sinks []namedSink
}

// NewFanout creates an empty fan-out sink.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers sink under name. Nil sinks are ignored.
func (f *Fanout) Add(name string, sink Sink) *Fanout {
	if sink != nil {
		f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
	}
	return f
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// RecordEvent implements Sink.
func (f *Fanout) RecordEvent(ctx context.Context, e persistence.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.RecordEvent(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to the structured log.
type LogSink struct{}

// RecordEvent implements Sink.
func (LogSink) RecordEvent(_ context.Context, e persistence.Event) error {
	log.Info().
		Int64("source_id", e.SourceID).
		Str("action", e.Action).
		Bool("notification", e.IsNotification).
		Msg(e.Details)
	return nil
}
