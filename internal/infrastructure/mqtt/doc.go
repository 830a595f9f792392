// Package mqtt connects the power analytics service to an MQTT broker.
//
// The broker is optional. When enabled it carries:
//   - reading change events (poweranalytics/events/reading/{kind})
//   - retained per-reading state (poweranalytics/state/reading/{id})
//   - service status with a Last Will (poweranalytics/system/status)
//   - inbound readings for ingestion (mqtt.ingest.topic)
//
// Reconnects use paho's exponential backoff between the configured initial
// and maximum delays. Subscriptions are restored on every reconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.MQTT.Ingest.Topic, client.QoS(),
//	    func(topic string, payload []byte) error {
//	        return ingest(payload)
//	    })
//
// Tests that need a broker at 127.0.0.1:1883 are behind the integration
// build tag:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...
package mqtt
