// Package logging provides structured logging for the power analytics service.
//
// It wraps log/slog so every component logs through the same handler with
// the same default fields (service, version).
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("readings created", "count", 3)
//
// Never log bearer tokens, MQTT passwords or InfluxDB tokens.
package logging
