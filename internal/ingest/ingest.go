// Package ingest feeds power readings published on an MQTT topic into the
// reading service.
//
// Each message is a JSON array of readings or a single reading object and
// goes through the same create operation as POST /. Messages that cannot be
// decoded or are rejected by the service are logged and dropped; MQTT has no
// way to report the failure back to the publisher.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/power-analytics/internal/audit"
	"github.com/nerrad567/power-analytics/internal/infrastructure/logging"
	"github.com/nerrad567/power-analytics/internal/infrastructure/mqtt"
	"github.com/nerrad567/power-analytics/internal/reading"
)

// handleTimeout bounds the create call for one message.
const handleTimeout = 10 * time.Second

// ErrMalformedMessage is returned by Decode for payloads that are neither a
// reading array nor a reading object.
var ErrMalformedMessage = errors.New("ingest: malformed message")

// Subscriber is the part of mqtt.Client the ingestor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Creator stores a batch of readings.
type Creator interface {
	Create(ctx context.Context, dtos []reading.DTO) ([]reading.DTO, error)
}

// Ingestor subscribes to one topic and creates the readings it receives.
type Ingestor struct {
	sub     Subscriber
	creator Creator
	topic   string
	qos     byte
	logger  *logging.Logger

	mu       sync.Mutex
	ctx      context.Context
	received int
	stored   int
	dropped  int
}

// Stats counts what the ingestor has seen since it started.
type Stats struct {
	Received int `json:"received"`
	Stored   int `json:"stored"`
	Dropped  int `json:"dropped"`
}

// New creates an Ingestor. It does nothing until Start is called.
func New(sub Subscriber, creator Creator, topic string, qos byte, logger *logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ingestor{
		sub:     sub,
		creator: creator,
		topic:   topic,
		qos:     qos,
		logger:  logger.With("component", "ingest", "topic", topic),
		ctx:     context.Background(),
	}
}

// Start subscribes to the topic. Creates triggered by messages run under
// ctx, so cancelling it abandons in-flight work.
func (i *Ingestor) Start(ctx context.Context) error {
	i.mu.Lock()
	i.ctx = ctx
	i.mu.Unlock()

	if err := i.sub.Subscribe(i.topic, i.qos, i.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", i.topic, err)
	}
	i.logger.Info("reading ingestion started")
	return nil
}

// Stop unsubscribes from the topic.
func (i *Ingestor) Stop() error {
	if err := i.sub.Unsubscribe(i.topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", i.topic, err)
	}
	i.logger.Info("reading ingestion stopped")
	return nil
}

// Stats returns a snapshot of the message counters.
func (i *Ingestor) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Stats{Received: i.received, Stored: i.stored, Dropped: i.dropped}
}

// handle is the MQTT message handler. It always returns nil: a bad message
// is dropped here rather than retried.
func (i *Ingestor) handle(topic string, payload []byte) error {
	i.mu.Lock()
	i.received++
	base := i.ctx
	i.mu.Unlock()

	dtos, err := Decode(payload)
	if err != nil {
		i.drop("undecodable reading message", topic, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(audit.WithSource(base, audit.SourceMQTT), handleTimeout)
	defer cancel()

	created, err := i.creator.Create(ctx, dtos)
	if err != nil {
		i.drop("rejected reading message", topic, err)
		return nil
	}

	i.mu.Lock()
	i.stored += len(created)
	i.mu.Unlock()
	i.logger.Debug("readings ingested", "count", len(created))
	return nil
}

func (i *Ingestor) drop(msg, topic string, err error) {
	i.mu.Lock()
	i.dropped++
	i.mu.Unlock()
	i.logger.Warn(msg, "message_topic", topic, "error", err)
}

// Decode parses a message payload. An array yields its elements, an object
// yields a one-element batch, and a JSON null yields a nil slice so the
// service reports it as absent input.
func Decode(payload []byte) ([]reading.DTO, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}

	switch trimmed[0] {
	case '[':
		var dtos []reading.DTO
		if err := json.Unmarshal(trimmed, &dtos); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
		return dtos, nil
	case '{':
		var dto reading.DTO
		if err := json.Unmarshal(trimmed, &dto); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
		return []reading.DTO{dto}, nil
	case 'n':
		if string(trimmed) == "null" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%w: expected a JSON array or object", ErrMalformedMessage)
}
