package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/power-analytics/internal/infrastructure/logging"
	"github.com/nerrad567/power-analytics/internal/reading"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "power_reading_events_total",
			Help: "Reading change events emitted, by kind.",
		},
		[]string{"kind"},
	)
	deliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "power_reading_event_delivery_failures_total",
			Help: "Reading change events a sink failed to deliver.",
		},
		[]string{"sink"},
	)
)

// Dispatcher turns service notifications into events and hands them to
// every registered sink. It implements reading.Observer.
//
// Thread Safety: the sink list is fixed at construction, so all methods are
// safe for concurrent use as long as the sinks are.
type Dispatcher struct {
	sinks  []Sink
	logger *logging.Logger
	now    func() time.Time
}

var _ reading.Observer = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher delivering to sinks in order.
// Nil sinks are skipped so optional integrations can be passed directly.
func NewDispatcher(logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		logger: logger.With("component", "notify"),
		now:    time.Now,
	}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// SinkCount returns the number of registered sinks.
func (d *Dispatcher) SinkCount() int {
	return len(d.sinks)
}

// ReadingsCreated emits one created event per reading.
func (d *Dispatcher) ReadingsCreated(ctx context.Context, created []reading.DTO) {
	at := d.now().UTC()
	for i := range created {
		dto := created[i]
		d.emit(ctx, Event{Kind: KindCreated, ID: idOf(dto), Reading: &dto, OccurredAt: at})
	}
}

// ReadingUpdated emits an updated event.
func (d *Dispatcher) ReadingUpdated(ctx context.Context, updated reading.DTO) {
	d.emit(ctx, Event{Kind: KindUpdated, ID: idOf(updated), Reading: &updated, OccurredAt: d.now().UTC()})
}

// ReadingDeleted emits a deleted event.
func (d *Dispatcher) ReadingDeleted(ctx context.Context, id int64) {
	d.emit(ctx, Event{Kind: KindDeleted, ID: id, OccurredAt: d.now().UTC()})
}

func (d *Dispatcher) emit(ctx context.Context, e Event) {
	eventsTotal.WithLabelValues(string(e.Kind)).Inc()

	for _, s := range d.sinks {
		if err := s.Deliver(ctx, e); err != nil {
			deliveryFailuresTotal.WithLabelValues(s.Name()).Inc()
			d.logger.Warn("event delivery failed",
				"sink", s.Name(),
				"kind", e.Kind,
				"reading_id", e.ID,
				"error", err,
			)
		}
	}
}

func idOf(d reading.DTO) int64 {
	if d.ID == nil {
		return 0
	}
	return *d.ID
}
