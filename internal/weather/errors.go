package weather

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedForecast   = errors.New("malformed forecast")
	ErrForecastUnavailable = errors.New("forecast unavailable")
)

// MalformedError rejects a whole forecast because of one bad entry.
type MalformedError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed forecast: %s", e.Reason)
	}
	return fmt.Sprintf("malformed forecast: entry %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedForecast
}

// FetchError is returned once retries are exhausted and no cached
// forecast can stand in.
type FetchError struct {
	Attempts uint
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("forecast unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrForecastUnavailable
}
