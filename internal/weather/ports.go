package weather

import (
	"context"
	"errors"
	"fmt"
)

// ErrLocationUnavailable is returned by a Locator when no fix can be
// obtained: services disabled, no answer within the provider's own
// timeout, or an unusable response.
var ErrLocationUnavailable = errors.New("location unavailable")

// FetchError is the single failure type a Client surfaces: transport
// errors, non-2xx responses and malformed payloads all collapse into
// it. The coordinator pattern-matches on the type, not the message.
type FetchError struct {
	Reason string
}

func (e *FetchError) Error() string {
	return "weather fetch failed: " + e.Reason
}

// NewFetchError builds a FetchError from a formatted reason.
func NewFetchError(format string, args ...any) *FetchError {
	return &FetchError{Reason: fmt.Sprintf(format, args...)}
}

// Client performs a single remote current-weather lookup by
// coordinates. Implementations do not retry internally; retry policy,
// if any, belongs to the caller.
type Client interface {
	FetchByCoordinates(ctx context.Context, coords Coordinates) (Record, error)
}

// Store is the durable per-city record store. Upsert replaces any
// prior record for the same city name entirely (last-write-wins),
// assigns LastUpdated at write time and returns the stored record.
// Upsert must be safe to call from concurrent fetch completions.
// LoadAll returns all records ordered by LastUpdated descending and
// reflects every upsert that completed before it was invoked.
type Store interface {
	Upsert(ctx context.Context, rec Record) (Record, error)
	LoadAll(ctx context.Context) ([]Record, error)
}

// Locator resolves the device's current coordinates. Enabled reports
// whether location lookups are permitted at all; when false the
// coordinator skips the network refresh entirely. CurrentCoordinates
// returns ErrLocationUnavailable when no fix is obtained. Callers
// issue at most one outstanding request at a time; the locator does
// not queue.
type Locator interface {
	Enabled() bool
	CurrentCoordinates(ctx context.Context) (Coordinates, error)
}

// ConnectivityChecker is a point-in-time gate consulted before
// attempting network work. It holds no state machine.
type ConnectivityChecker interface {
	IsOnline() bool
}
