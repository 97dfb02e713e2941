package core

import (
	"github.com/git-pkgs/provision/client"
)

// Type aliases so provider implementations only import core.
type (
	RateLimiter = client.RateLimiter
	Client      = client.Client
	Option      = client.Option
	URLBuilder  = client.URLBuilder
	BaseURLs    = client.BaseURLs
	HTTPError   = client.HTTPError
)

// Function aliases.
var (
	DefaultClient   = client.DefaultClient
	NewClient       = client.NewClient
	WithTimeout     = client.WithTimeout
	WithMaxRetries  = client.WithMaxRetries
	WithRateLimiter = client.WithRateLimiter
	BuildURLs       = client.BuildURLs
)
