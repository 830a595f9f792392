package reading

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// storageLayout is the fixed-width UTC form written to the store.
// Every value has the same length, so string order equals time order.
const storageLayout = "2006-01-02T15:04:05.000000000Z"

// Accepted timestamps must fall within these UTC years. Outside them the
// four-digit year in storageLayout and in JSON no longer holds.
const (
	minTimestampYear = 0
	maxTimestampYear = 9999
)

// acceptedLayouts are tried in order when parsing caller-supplied timestamps.
// Layouts without a zone are read as UTC.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Reading is a stored power measurement.
type Reading struct {
	ID       int64
	Value    int64
	LoggedAt time.Time
}

// DTO is the wire representation of a Reading.
// ID is nil until storage has assigned one.
type DTO struct {
	ID       *int64    `json:"id,omitempty"`
	Value    int64     `json:"value"`
	LoggedAt time.Time `json:"loggedAt"`
}

// UnmarshalJSON decodes a DTO, accepting loggedAt in any of the layouts
// ParseTimestamp understands. A missing or empty loggedAt leaves the zero time.
// A null reading is rejected with ErrNullReading.
func (d *DTO) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return ErrNullReading
	}

	var raw struct {
		ID       *int64  `json:"id"`
		Value    int64   `json:"value"`
		LoggedAt *string `json:"loggedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.ID = raw.ID
	d.Value = raw.Value
	d.LoggedAt = time.Time{}
	if raw.LoggedAt != nil && *raw.LoggedAt != "" {
		t, err := ParseTimestamp(*raw.LoggedAt)
		if err != nil {
			return fmt.Errorf("loggedAt: %w", err)
		}
		d.LoggedAt = t
	}
	return nil
}

// ParseTimestamp parses an RFC 3339 timestamp, a zone-less date-time (read
// as UTC) or a bare date (midnight UTC). The instant must lie in UTC years
// 0000 to 9999.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if y := t.UTC().Year(); y < minTimestampYear || y > maxTimestampYear {
			return time.Time{}, fmt.Errorf("%w: %q is outside years 0000-9999 UTC", ErrInvalidTimestamp, s)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// formatTimestamp renders t in storageLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storageLayout)
}

// parseStoredTimestamp reverses formatTimestamp.
func parseStoredTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(storageLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}
