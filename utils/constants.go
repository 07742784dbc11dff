package utils

import (
	"time"
)

// Gate timing defaults
const (
	// DefaultVerifyDwell is the minimum time a visitor stays on step 1 before the verify action is accepted
	DefaultVerifyDwell = 5 * time.Second

	// DefaultProcessingDelay is the simulated processing time after verify, before navigating to step 2
	DefaultProcessingDelay = 1500 * time.Millisecond

	// DefaultCountdownSeconds is the step 2 countdown length
	DefaultCountdownSeconds = 15

	// GateTickInterval is the countdown cadence
	GateTickInterval = 1 * time.Second
)

// Gate URL contract
const (
	// VerifyPathMarker is the path segment that precedes a token in bot-issued verify links
	VerifyPathMarker = "/verify/"
)

// Short link constants
const (
	// ShortCodeAlphabet is the nanoid alphabet for generated short codes
	ShortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultShortCodeLength is the length of generated short codes
	DefaultShortCodeLength = 8
)

// Content source constants
const (
	// BloggerPageSize is the maxResults value sent to the content API
	BloggerPageSize = 10

	// ExcerptLength is the default excerpt size for post cards
	ExcerptLength = 150

	// HeroExcerptLength is the excerpt size for the home page hero
	HeroExcerptLength = 220

	// ContentCacheKeyPrefix is prepended to every content cache key
	ContentCacheKeyPrefix = "content:"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// APIKeyHeader is the header carrying bot and admin API keys
	APIKeyHeader = "X-API-Key"
)
