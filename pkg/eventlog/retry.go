package eventlog

import (
	"context"
	"errors"
)

// AppendWithRetry appends to runID, retrying exactly once if the store
// reports ErrConcurrentAppend — the documented recovery for two writers
// racing to extend the same run's tail. A second failure is returned
// as-is; the run loop logs it and goes on with the tick, so that event is
// not appended and the run is not failed.
func AppendWithRetry(ctx context.Context, s Store, runID, eventType string, payload any) (Event, error) {
	e, err := s.Append(ctx, runID, eventType, payload)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrConcurrentAppend) {
		return Event{}, err
	}
	return s.Append(ctx, runID, eventType, payload)
}
