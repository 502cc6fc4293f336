package mockkafka

type Option func(*Consumer)

// WithTopics makes topics resolvable without queueing any records.
func WithTopics(topics ...string) Option {
	return func(c *Consumer) {
		for _, t := range topics {
			c.topics[t] = struct{}{}
		}
	}
}

// WithMaxPollRecords caps how many records a single Poll returns.
func WithMaxPollRecords(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.maxPollRecords = n
		}
	}
}

// WithPollError scripts an error returned by Poll. The func is consulted
// on every call, so it can fail a fixed number of times and then recover.
func WithPollError(fn func() error) Option {
	return func(c *Consumer) {
		c.pollErr = fn
	}
}

// WithTopicsError makes Topics fail.
func WithTopicsError(err error) Option {
	return func(c *Consumer) {
		c.topicsErr = err
	}
}
