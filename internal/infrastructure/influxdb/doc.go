// Package influxdb mirrors power readings into InfluxDB v2.
//
// Each reading is one point in the power_reading measurement, tagged with
// reading_id and carrying an integer value field, timestamped at loggedAt.
// Deleting a reading issues a predicate delete on its reading_id.
//
// The relational store stays the system of record; InfluxDB is a read-side
// copy for dashboards and downsampling.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading(42, 1234, loggedAt)
//	err = client.DeleteReading(ctx, 42)
//
// Writes are batched per batch_size and flush_interval and are non-blocking.
// Their errors are delivered through SetOnError.
package influxdb
