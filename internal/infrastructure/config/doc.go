// Package config loads and validates the power analytics service configuration.
//
// Configuration is read once at startup from a YAML file (or TOML when the
// path ends in ".toml"), then overridden by POWERANALYTICS_* environment
// variables, then validated as a whole so every problem is reported at once.
//
// Secrets (JWT secret, MQTT password, InfluxDB token) belong in the
// environment, not in the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
