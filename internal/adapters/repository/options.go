package repository

import "time"

// Option applies a configuration option to the RankIndex.
type Option func(*RankIndex)

// WithMetricsUpdateInterval sets how often the index size gauge is refreshed.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(r *RankIndex) {
		if interval > 0 {
			r.metricsUpdateInterval = interval
		}
	}
}
