package xclient

import (
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/anatolykoptev/go-xclient/xtid"
)

// ClientConfig holds all configuration for the signed API client.
type ClientConfig struct {
	// Proxy is the proxy URL all requests go through, including the signer's page fetches.
	Proxy string

	// UserAgent overrides the browser User-Agent.
	// Default: Profile.UserAgent, or a desktop Chrome UA when no profile is set.
	UserAgent string

	// Profile selects the TLS fingerprint. The zero value keeps go-stealth's default.
	Profile stealth.BrowserProfile

	// AuthToken and CT0 are the session cookies. Both empty sends anonymous requests.
	AuthToken string
	CT0       string

	// Language is sent as x-twitter-client-language. Default: en.
	Language string

	// HomeURL is the page the signer scrapes. Default: https://x.com.
	HomeURL string

	// OnDemandURLFormat expands the ondemand.s hash into a bundle URL.
	OnDemandURLFormat string

	// RefreshInterval is how long a signing context is used before it is rebuilt.
	// Default: 30 minutes.
	RefreshInterval time.Duration

	// MaxRetries is the number of attempts per request. Default: 3.
	MaxRetries int

	// RateLimit configures the per-endpoint request budget. A 429 or error 88
	// blocks the endpoint until the reset time the server reports.
	// Default: ratelimit.DefaultConfig.
	RateLimit ratelimit.Config

	// MetricsHook is called once per attempt that got an HTTP response.
	// endpoint is the URL path, success and rateLimited indicate the outcome.
	MetricsHook func(endpoint string, success, rateLimited bool)
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.UserAgent == "" {
		cfg.UserAgent = cfg.Profile.UserAgent
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = xtid.DefaultHomeURL
	}
	if cfg.OnDemandURLFormat == "" {
		cfg.OnDemandURLFormat = xtid.DefaultOnDemandURLFormat
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 30 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
}

// BuiltinProfile returns one of go-stealth's built-in browser profiles, wrapping idx.
func BuiltinProfile(idx int) stealth.BrowserProfile {
	n := len(stealth.BuiltinProfiles)
	return stealth.BuiltinProfiles[((idx%n)+n)%n]
}
