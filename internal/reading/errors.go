package reading

import (
	"errors"
	"fmt"
)

// Domain errors for the reading package.
//
// Every input validation error wraps ErrInvalidArgument, so callers that only
// need the category can check it once:
//
//	if errors.Is(err, reading.ErrInvalidArgument) {
//	    // client error
//	}
var (
	// ErrInvalidArgument is the category for all input validation failures.
	ErrInvalidArgument = errors.New("reading: invalid argument")

	// ErrNilReadings is returned when Create receives no collection at all.
	ErrNilReadings = fmt.Errorf("%w: readings should not be null", ErrInvalidArgument)

	// ErrEmptyReadings is returned when Create receives a present but empty collection.
	ErrEmptyReadings = fmt.Errorf("%w: readings should not be empty", ErrInvalidArgument)

	// ErrMissingID is returned when Update receives a DTO without an id.
	ErrMissingID = fmt.Errorf("%w: reading id is required", ErrInvalidArgument)

	// ErrIDMismatch is returned when a route id and a body id disagree.
	ErrIDMismatch = fmt.Errorf("%w: id does not match reading id", ErrInvalidArgument)

	// ErrNullReading is returned when a reading is JSON null.
	ErrNullReading = fmt.Errorf("%w: reading should not be null", ErrInvalidArgument)

	// ErrInvalidTimestamp is returned when a timestamp string cannot be parsed.
	ErrInvalidTimestamp = fmt.Errorf("%w: invalid timestamp", ErrInvalidArgument)

	// ErrReadingNotFound is returned by repositories when an id does not exist.
	// The Service turns it into an absent result.
	ErrReadingNotFound = errors.New("reading: not found")
)
