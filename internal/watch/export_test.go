package watch

import "time"

var (
	ErrServiceClosed = errServiceClosed
)

func WithMaxDegradedDuration(d time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.maxDegradedDuration = d
	}
}

func WithDebounce(d time.Duration) Option {
	return func(o *deriverOptions) {
		o.debounce = d
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *deriverOptions) {
		o.now = now
	}
}
