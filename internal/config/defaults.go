// ABOUTME: Centralized configuration defaults for snapfeed
// ABOUTME: Contains magic numbers and hardcoded values for transfer, display and export

package config

import "time"

// Backend names
const (
	BackendREST = "rest"
	BackendS3   = "s3"
)

// HTTP settings
const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultServerURL   = "http://localhost:5000"
)

// Feed settings
const (
	DefaultPageSize = 2
	MaxPageSize     = 100
)

// Display settings
const (
	SeparatorWidth = 60
	NearEndRows    = 2
)

// Storage settings
const (
	DefaultDirPerms  = 0755
	DefaultFilePerms = 0644
	DefaultS3Prefix  = "snapfeed/"
	DefaultS3Region  = "us-east-1"
)

// Environment overrides
const (
	EnvServer  = "SNAPFEED_SERVER"
	EnvBackend = "SNAPFEED_BACKEND"
)
