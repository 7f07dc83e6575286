// Package xclient is a client for the X web API that signs every request with an
// x-client-transaction-id.
package xclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/anatolykoptev/go-xclient/xtid"
)

// transport is the request surface of *stealth.BrowserClient the client relies on.
type transport interface {
	DoWithHeaderOrder(method, url string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error)
}

// Client sends signed requests to the X web API.
type Client struct {
	transport   transport
	xtidMgr     *xtid.Manager
	rateLimiter *ratelimit.Limiter
	cfg         ClientConfig

	sleep   func(context.Context) error
	backoff func(int) time.Duration

	mu        sync.Mutex
	authToken string
	ct0       string
}

// NewClient creates a client and initializes its transaction id signer.
// A signer that cannot initialize is an error: no request could be signed.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	cfg.defaults()

	opts := []stealth.ClientOption{
		stealth.WithHeaderOrder(apiHeaderOrder),
	}
	if cfg.Proxy != "" {
		opts = append(opts, stealth.WithProxy(cfg.Proxy))
	}
	if cfg.Profile.UserAgent != "" {
		opts = append(opts, stealth.WithProfile(cfg.Profile.TLSProfile))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}
	if cfg.Proxy != "" {
		slog.Debug("xclient: using proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
	}
	return newClient(ctx, cfg, bc)
}

func newClient(ctx context.Context, cfg ClientConfig, t transport) (*Client, error) {
	fetcher := xtid.NewFetcher(stealthDoer{t: t})
	fetcher.HomeURL = cfg.HomeURL
	fetcher.Headers = pageHeaders(cfg.UserAgent)

	parser := xtid.DefaultParser()
	parser.OnDemand = xtid.OnDemandExtractor{URLFormat: cfg.OnDemandURLFormat}

	mgr := xtid.NewManager(xtid.ManagerConfig{
		Fetcher:         fetcher,
		Parser:          parser,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err := mgr.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("init transaction id signer: %w", err)
	}

	return &Client{
		transport:   t,
		xtidMgr:     mgr,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		cfg:         cfg,
		sleep:       stealth.DefaultJitter.Sleep,
		backoff:     stealth.DefaultBackoff.Duration,
		authToken:   cfg.AuthToken,
		ct0:         cfg.CT0,
	}, nil
}

// Signer returns the transaction id manager used for every request.
func (c *Client) Signer() *xtid.Manager {
	return c.xtidMgr
}

// CT0 returns the current csrf token, which may have been rotated by the server.
func (c *Client) CT0() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ct0
}

func (c *Client) credentials() (authToken, ct0 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authToken, c.ct0
}

// updateCT0 stores a ct0 rotated via set-cookie and reports whether it changed.
func (c *Client) updateCT0(headers map[string]string) bool {
	newCT0 := extractCT0FromHeaders(headers)
	if newCT0 == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if newCT0 == c.ct0 {
		return false
	}
	c.ct0 = newCT0
	return true
}

// EndpointAvailableAt returns when endpoint may be requested again, or the zero
// time if it is available now.
func (c *Client) EndpointAvailableAt(endpoint string) time.Time {
	return c.rateLimiter.AvailableAt(endpoint)
}

// recordAPICall calls the metrics hook if configured.
func (c *Client) recordAPICall(endpoint string, success, rateLimited bool) {
	if c.cfg.MetricsHook != nil {
		c.cfg.MetricsHook(endpoint, success, rateLimited)
	}
}

// stealthDoer routes the signer's page fetches through the API client's transport
// so both share one proxy and TLS fingerprint.
type stealthDoer struct {
	t transport
}

func (d stealthDoer) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	data, _, status, err := d.t.DoWithHeaderOrder(method, url, headers, body, pageHeaderOrder)
	return data, status, err
}
