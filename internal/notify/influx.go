package notify

import (
	"context"
	"fmt"
	"time"
)

// PointWriter is the part of influxdb.Client the InfluxDB sink needs.
type PointWriter interface {
	WriteReading(id, value int64, loggedAt time.Time)
	DeleteReading(ctx context.Context, id int64) error
}

// InfluxSink mirrors readings into the time-series store.
//
// An update deletes the reading's existing points before writing the new
// one, because a changed loggedAt would otherwise leave the old point behind.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Deliver implements Sink.
func (s *InfluxSink) Deliver(ctx context.Context, e Event) error {
	switch e.Kind {
	case KindCreated:
		s.write(e)
	case KindUpdated:
		if err := s.w.DeleteReading(ctx, e.ID); err != nil {
			return fmt.Errorf("replacing reading %d: %w", e.ID, err)
		}
		s.write(e)
	case KindDeleted:
		if err := s.w.DeleteReading(ctx, e.ID); err != nil {
			return fmt.Errorf("deleting reading %d: %w", e.ID, err)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

func (s *InfluxSink) write(e Event) {
	if e.Reading == nil {
		return
	}
	s.w.WriteReading(e.ID, e.Reading.Value, e.Reading.LoggedAt)
}
