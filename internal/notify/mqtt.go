package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/power-analytics/internal/infrastructure/mqtt"
)

// Publisher is the part of mqtt.Client the MQTT sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// MQTTSink publishes each event on its event topic and keeps the retained
// per-reading state topic current. A delete clears the retained state.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver implements Sink.
func (s *MQTTSink) Deliver(_ context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	qos := s.pub.QoS()
	if err := s.pub.Publish(s.topics.ReadingEvent(string(e.Kind)), payload, qos, false); err != nil {
		return fmt.Errorf("publishing %s event: %w", e.Kind, err)
	}

	state := []byte{}
	if e.Reading != nil {
		if state, err = json.Marshal(e.Reading); err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
	}
	if err := s.pub.Publish(s.topics.ReadingState(e.ID), state, qos, true); err != nil {
		return fmt.Errorf("publishing state for reading %d: %w", e.ID, err)
	}
	return nil
}
