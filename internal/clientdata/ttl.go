package clientdata

import "time"

// Default lifetimes for cached upstream responses
const (
	// TTLQuote bounds how long a last-traded price is reused
	TTLQuote = 5 * time.Minute

	// TTLCleanupInterval is how often expired entries are swept
	TTLCleanupInterval = time.Hour
)
