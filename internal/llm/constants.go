package llm

import "time"

// Retry policy shared by the raw-HTTP provider clients.
const (
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second
	defaultMaxTokens  = 1024
)
