// Package notify fans reading change events out to the places that mirror
// them: the WebSocket hub, MQTT topics and the InfluxDB time-series store.
//
// A Dispatcher is registered as the reading service's observer. Each
// successful write becomes one Event per affected reading, delivered to
// every Sink in registration order:
//
//	reading.Service ──► Dispatcher ──► Sink (api.Hub)
//	                                ├─► MQTTSink ──► mqtt.Client
//	                                └─► InfluxSink ──► influxdb.Client
//
// Delivery is best effort. A failing sink is logged and counted; it never
// changes the outcome of the write that produced the event.
package notify
