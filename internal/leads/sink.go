package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
)

// Sink durably appends a confirmed booking.
type Sink interface {
	Append(ctx context.Context, rec dialogue.LeadRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec dialogue.LeadRecord) error

// Append calls f.
func (f SinkFunc) Append(ctx context.Context, rec dialogue.LeadRecord) error {
	return f(ctx, rec)
}

// NamedSink labels a sink for error messages.
type NamedSink struct {
	Name string
	Sink Sink
}

// MultiSink fans a record out to every sink. A failing sink does not stop the
// others; all failures are joined into the returned error.
type MultiSink struct {
	sinks []NamedSink
}

// NewMultiSink skips nil sinks.
func NewMultiSink(sinks ...NamedSink) *MultiSink {
	out := make([]NamedSink, 0, len(sinks))
	for _, s := range sinks {
		if s.Sink != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

// Len returns the number of configured sinks.
func (m *MultiSink) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

// Append validates rec and writes it to every sink.
func (m *MultiSink) Append(ctx context.Context, rec dialogue.LeadRecord) error {
	if err := ValidateRecord(rec); err != nil {
		return fmt.Errorf("leads: invalid record: %w", err)
	}
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("leads: sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the configured sinks in fan-out order.
func (m *MultiSink) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name)
	}
	return names
}
