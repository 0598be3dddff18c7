package core

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"incidentcore/internal/credential"
)

// Option configures a Serializer, Repository, or Service.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
	newID   func() string
	hasher  credential.Hasher
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		hasher:  credential.NewHasher(credential.DefaultCost),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the structured logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. A nil recorder disables metrics.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(o *options) {
		if metrics == nil {
			metrics = noopMetrics{}
		}
		o.metrics = metrics
	}
}

// WithClock overrides the timestamp source used for createdAt values.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides uuid v4 id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithHasher sets the password hasher used by Register and Authenticate.
func WithHasher(h credential.Hasher) Option {
	return func(o *options) { o.hasher = h }
}
