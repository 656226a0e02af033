package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for staff access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for staff access tokens in seconds
	AccessTokenTTLSeconds = 86400

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Transaction scan constants
const (
	// ScanPageSize is the number of transaction rows fetched per page
	ScanPageSize = 1000

	// DefaultMaxScan is the scan ceiling applied when a request does not set one
	DefaultMaxScan = 10000

	// HardMaxScan is the absolute scan ceiling; requests cannot raise it further
	HardMaxScan = 50000

	// MinMaxScan is the floor for a caller-supplied scan ceiling
	MinMaxScan = 100
)

// Campaign constants
const (
	// MaxMessageLength is the longest campaign message body accepted
	MaxMessageLength = 1000

	// MessageInsertBatchSize is the chunk size for campaign message inserts
	MessageInsertBatchSize = 500

	// HistoryChunkSize is the phone chunk size for message history lookups
	HistoryChunkSize = 500

	// DefaultSenderID is used when a campaign does not name one
	DefaultSenderID = "fluxsms"
)
