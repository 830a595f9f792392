package influxdb

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Reading point schema.
const (
	MeasurementReading = "power_reading"
	TagReadingID       = "reading_id"
	FieldValue         = "value"
)

// Widest time range InfluxDB accepts for a delete.
var (
	deleteRangeStart = time.Unix(0, math.MinInt64).UTC()
	deleteRangeStop  = time.Unix(0, math.MaxInt64).UTC()
)

// readingPoint builds the point for one reading, stamped at loggedAt.
func readingPoint(id, value int64, loggedAt time.Time) *write.Point {
	return write.NewPoint(
		MeasurementReading,
		map[string]string{TagReadingID: strconv.FormatInt(id, 10)},
		map[string]interface{}{FieldValue: value},
		loggedAt,
	)
}

// deletePredicate selects every point of one reading.
func deletePredicate(id int64) string {
	return fmt.Sprintf(`_measurement="%s" AND %s="%d"`, MeasurementReading, TagReadingID, id)
}

// WriteReading queues a point for the reading. The write is batched and
// non-blocking; failures surface through SetOnError.
//
// Updating a reading writes it again. When loggedAt changes the old point
// stays, so callers delete first.
func (c *Client) WriteReading(id, value int64, loggedAt time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(id, value, loggedAt))
}

// DeleteReading removes every point for the reading across all time.
func (c *Client) DeleteReading(ctx context.Context, id int64) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Pending writes for this id must land before the delete runs.
	c.writeAPI.Flush()

	err := c.deleteAPI.DeleteWithName(ctx, c.cfg.Org, c.cfg.Bucket,
		deleteRangeStart, deleteRangeStop, deletePredicate(id))
	if err != nil {
		return fmt.Errorf("%w: reading %d: %w", ErrDeleteFailed, id, err)
	}
	return nil
}
