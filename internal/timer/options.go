package timer

import (
	"errors"
	"fmt"
	"time"

	"cragcast/internal/events"
)

var ErrInvalidTransition = errors.New("invalid timer transition")

type options struct {
	now func() time.Time
	bus *events.Bus
}

type Option func(*options)

// WithNow replaces the wall clock, mostly for tests.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// FormatHMS renders whole seconds as HH:MM:SS.
func FormatHMS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
