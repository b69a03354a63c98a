package dedupe

type config struct {
	maxSize int
}

// Option configures the deduper.
type Option func(*config)

// WithMaxSize sets how many keys the window holds. Values <= 0 select
// DefaultWindow.
func WithMaxSize(maxSize int) Option {
	return func(c *config) {
		c.maxSize = maxSize
	}
}
