package mqtt

import (
	"fmt"
	"strconv"
)

// TopicPrefix is the root of every topic this service publishes.
const TopicPrefix = "poweranalytics"

// Topics builds the topics used by the service so publishers and
// subscribers agree on naming.
//
//	topics := mqtt.Topics{}
//	topics.ReadingState(42) // "poweranalytics/state/reading/42"
type Topics struct{}

// SystemStatus is where online/offline status and the LWT are published.
//
// Example: poweranalytics/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ReadingEvent is the topic for a reading change event of the given kind
// (created, updated or deleted). Events are not retained.
//
// Example: poweranalytics/events/reading/created
func (Topics) ReadingEvent(kind string) string {
	return fmt.Sprintf("%s/events/reading/%s", TopicPrefix, kind)
}

// ReadingState is the retained topic holding the current value of one reading.
//
// Example: poweranalytics/state/reading/42
func (Topics) ReadingState(id int64) string {
	return TopicPrefix + "/state/reading/" + strconv.FormatInt(id, 10)
}

// AllReadingEvents matches every reading event.
//
// Pattern: poweranalytics/events/reading/+
func (Topics) AllReadingEvents() string {
	return TopicPrefix + "/events/reading/+"
}

// AllReadingStates matches every retained reading state.
//
// Pattern: poweranalytics/state/reading/+
func (Topics) AllReadingStates() string {
	return TopicPrefix + "/state/reading/+"
}

// DefaultIngest is the default topic readings are ingested from.
//
// Example: poweranalytics/ingest/readings
func (Topics) DefaultIngest() string {
	return TopicPrefix + "/ingest/readings"
}
