package dedupe

// Option configures the in-memory deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds the number of remembered IDs. Once full, the oldest ID
// is forgotten first. A non-positive value disables the bound.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
