package herald

import "github.com/rs/zerolog"

// Option configures a Handler.
type Option func(*config)

type config struct {
	name    string
	logger  zerolog.Logger
	metrics *Metrics
}

func defaultConfig() config {
	return config{
		name:   "default",
		logger: zerolog.Nop(),
	}
}

// WithName labels the handler in logs and metrics.
// Empty names are ignored.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the logger used for subscription lifecycle messages.
// By default nothing is logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records deliveries, suppressions, failures and the current
// subscription count in m. A nil m disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}
