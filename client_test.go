package xclient

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-xclient/xtid"
)

const bundleURL = "https://abs.twimg.com/responsive-web/client-web/ondemand.s.a1b2c3da.js"

type sentRequest struct {
	method  string
	url     string
	headers map[string]string
	body    string
	order   []string
}

type reply struct {
	status  int
	body    string
	headers map[string]string
	err     error
}

// fakeTransport serves the signer fixtures and replays API replies in order.
type fakeTransport struct {
	t *testing.T

	mu      sync.Mutex
	home    string
	bundle  string
	replies []reply
	sent    []sentRequest
}

func newFakeTransport(t *testing.T, replies ...reply) *fakeTransport {
	t.Helper()
	home, err := os.ReadFile("xtid/testdata/home.html")
	require.NoError(t, err)
	bundle, err := os.ReadFile("xtid/testdata/ondemand.js")
	require.NoError(t, err)
	return &fakeTransport{t: t, home: string(home), bundle: string(bundle), replies: replies}
}

func (f *fakeTransport) DoWithHeaderOrder(method, url string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error) {
	var b []byte
	if body != nil {
		b, _ = io.ReadAll(body)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch url {
	case xtid.DefaultHomeURL:
		return []byte(f.home), nil, http.StatusOK, nil
	case bundleURL:
		return []byte(f.bundle), nil, http.StatusOK, nil
	}

	f.sent = append(f.sent, sentRequest{method: method, url: url, headers: headers, body: string(b), order: order})
	if len(f.replies) == 0 {
		f.t.Errorf("unexpected request %s %s", method, url)
		return nil, nil, 0, errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return []byte(r.body), r.headers, r.status, r.err
}

func (f *fakeTransport) requests() []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentRequest(nil), f.sent...)
}

func testClient(t *testing.T, cfg ClientConfig, replies ...reply) (*Client, *fakeTransport) {
	t.Helper()
	cfg.defaults()
	ft := newFakeTransport(t, replies...)
	c, err := newClient(context.Background(), cfg, ft)
	require.NoError(t, err)
	c.sleep = func(context.Context) error { return nil }
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c, ft
}

func TestNewClientSignerFailure(t *testing.T) {
	cfg := ClientConfig{}
	cfg.defaults()
	ft := newFakeTransport(t)
	ft.home = "<html><body>maintenance</body></html>"

	_, err := newClient(context.Background(), cfg, ft)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init transaction id signer")

	var ee *xtid.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "ondemand", ee.Step)
}

func TestGetSignsPath(t *testing.T) {
	c, ft := testClient(t, ClientConfig{AuthToken: "tok", CT0: "csrf"}, reply{body: `{"id":1}`})

	before := xtid.EpochSeconds(time.Now())
	resp, err := c.Get(context.Background(), "https://x.com/i/api/1.1/account/verify_credentials.json?include_email=true")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	var out struct{ ID int }
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, 1, out.ID)

	sent := ft.requests()
	require.Len(t, sent, 1)
	h := sent[0].headers
	assert.Equal(t, "Bearer "+BearerToken, h["authorization"])
	assert.Equal(t, "csrf", h["x-csrf-token"])
	assert.Equal(t, "auth_token=tok; ct0=csrf", h["cookie"])
	assert.Equal(t, "OAuth2Session", h["x-twitter-auth-type"])
	assert.Equal(t, "en", h["x-twitter-client-language"])
	assert.Contains(t, sent[0].order, xtid.HeaderName)

	payload, err := xtid.DecodeID(h[xtid.HeaderName])
	require.NoError(t, err)
	require.Len(t, payload, 28)
	assert.Equal(t, []byte("testkey"), payload[:7])

	ts := int64(binary.LittleEndian.Uint32(payload[7:11]))
	assert.InDelta(t, before, ts, 2)
	anim := c.Signer().Context().AnimationKey()
	sum := sha256.Sum256([]byte(fmt.Sprintf("GET!/i/api/1.1/account/verify_credentials.json!%d%s%s", ts, "obfiowerehiring", anim)))
	assert.Equal(t, sum[:16], payload[11:27], "hash must cover the path without query")
}

func TestAnonymousHeaders(t *testing.T) {
	c, ft := testClient(t, ClientConfig{Language: "ja"}, reply{body: `{}`})
	_, err := c.Get(context.Background(), "https://x.com/i/api/graphql/abc/Op")
	require.NoError(t, err)

	h := ft.requests()[0].headers
	assert.NotContains(t, h, "cookie")
	assert.NotContains(t, h, "x-csrf-token")
	assert.Equal(t, "ja", h["x-twitter-client-language"])
	assert.Equal(t, defaultUserAgent, h["user-agent"])
}

func TestPostJSON(t *testing.T) {
	c, ft := testClient(t, ClientConfig{CT0: "c"}, reply{status: http.StatusCreated, body: `{"data":{"ok":true}}`})
	resp, err := c.PostJSON(context.Background(), "https://x.com/i/api/graphql/abc/CreateTweet", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)

	sent := ft.requests()[0]
	assert.Equal(t, http.MethodPost, sent.method)
	assert.JSONEq(t, `{"text":"hi"}`, sent.body)
	assert.Equal(t, "ct0=c", sent.headers["cookie"])

	_, err = c.PostJSON(context.Background(), "https://x.com/x", make(chan int))
	require.Error(t, err)
}

func TestRetryServerError(t *testing.T) {
	c, ft := testClient(t, ClientConfig{},
		reply{status: http.StatusServiceUnavailable, body: "over capacity"},
		reply{err: errors.New("connection reset by peer")},
		reply{body: `{"data":{}}`},
	)
	_, err := c.Get(context.Background(), "https://x.com/i/api/graphql/abc/Op")
	require.NoError(t, err)

	sent := ft.requests()
	require.Len(t, sent, 3)
	for _, r := range sent {
		_, err := xtid.DecodeID(r.headers[xtid.HeaderName])
		require.NoError(t, err, "each attempt carries its own transaction id")
	}
}

func TestRetryExhausted(t *testing.T) {
	c, ft := testClient(t, ClientConfig{MaxRetries: 2},
		reply{status: http.StatusBadGateway},
		reply{status: http.StatusBadGateway},
	)
	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindServerError, apiErr.Kind)
	assert.Len(t, ft.requests(), 2)
}

func TestNoRetryOnClientErrors(t *testing.T) {
	tests := []struct {
		name string
		r    reply
		kind ErrorKind
		code int
	}{
		{"not found", reply{status: 404, body: "nope"}, KindNotFound, 0},
		{"unauthorized", reply{status: 401}, KindUnauthorized, 0},
		{"auth expired", reply{status: 401, body: `{"errors":[{"code":32,"message":"Could not authenticate you."}]}`}, KindAuthExpired, 32},
		{"suspended in 200", reply{body: `{"errors":[{"code":64,"message":"suspended"}]}`}, KindSuspended, 64},
		{"abuse in 200", reply{body: `{"errors":[{"code":88}]}`}, KindRateLimitAbuse, 88},
		{"locked", reply{status: 403, body: `{"errors":[{"code":326}]}`}, KindLocked, 326},
		{"timeout", reply{status: 408}, KindRequestTimeout, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ft := testClient(t, ClientConfig{}, tt.r)
			_, err := c.Get(context.Background(), "https://x.com/i/api/x")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Len(t, ft.requests(), 1)
		})
	}
}

func TestRateLimited(t *testing.T) {
	var hooks []string
	cfg := ClientConfig{MetricsHook: func(endpoint string, success, rateLimited bool) {
		hooks = append(hooks, fmt.Sprintf("%s %v %v", endpoint, success, rateLimited))
	}}
	c, ft := testClient(t, cfg,
		reply{status: 429, headers: map[string]string{"x-rate-limit-reset": "1900000000"}},
		reply{body: `{}`},
	)

	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTooManyRequests, apiErr.Kind)
	assert.Equal(t, time.Unix(1900000000, 0), apiErr.RateLimitReset)
	assert.Equal(t, time.Unix(1900000000, 0), c.EndpointAvailableAt("/i/api/x"))

	// Blocked until the reset: nothing reaches the server.
	_, err = c.Get(context.Background(), "https://x.com/i/api/x?cursor=2")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, ft.requests(), 1)
	assert.Equal(t, []string{"/i/api/x false true", "/i/api/x false true"}, hooks)

	// Other endpoints are unaffected.
	_, err = c.Get(context.Background(), "https://x.com/i/api/y")
	require.NoError(t, err)
	assert.Len(t, ft.requests(), 2)
}

func TestRateLimitResetInPast(t *testing.T) {
	past := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
	c, ft := testClient(t, ClientConfig{},
		reply{status: 429, headers: map[string]string{"x-rate-limit-reset": past}},
		reply{body: `{}`},
	)
	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	require.Error(t, err)
	_, err = c.Get(context.Background(), "https://x.com/i/api/x")
	require.NoError(t, err)
	assert.Len(t, ft.requests(), 2)
}

func TestRateLimitAbuseBlocksEndpoint(t *testing.T) {
	c, ft := testClient(t, ClientConfig{}, reply{body: `{"errors":[{"code":88}]}`})
	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindRateLimitAbuse, apiErr.Kind)
	assert.True(t, apiErr.RateLimitReset.After(time.Now()))

	_, err = c.Get(context.Background(), "https://x.com/i/api/x")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, ft.requests(), 1)
}

func TestRequestBudget(t *testing.T) {
	cfg := ClientConfig{RateLimit: ratelimit.Config{RequestsPerWindow: 1, WindowDuration: time.Hour}}
	c, ft := testClient(t, cfg, reply{body: `{}`})

	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "https://x.com/i/api/x")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, ft.requests(), 1)
}

func TestInternalErrorHandling(t *testing.T) {
	c, ft := testClient(t, ClientConfig{},
		reply{body: `{"errors":[{"code":131,"message":"Internal error"}]}`},
		reply{body: `{"errors":[{"code":131}],"data":{"user":{}}}`},
	)
	resp, err := c.Get(context.Background(), "https://x.com/i/api/x")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), `"user"`)
	assert.Len(t, ft.requests(), 2)
}

func TestCT0Rotation(t *testing.T) {
	c, ft := testClient(t, ClientConfig{AuthToken: "a", CT0: "old"},
		reply{status: 403, body: `{"errors":[{"code":353}]}`, headers: map[string]string{"set-cookie": "ct0=new; Path=/; Secure"}},
		reply{body: `{}`, headers: map[string]string{"set-cookie": "guest_id=1; Path=/, ct0=newer; Path=/"}},
	)
	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	require.NoError(t, err)

	sent := ft.requests()
	require.Len(t, sent, 2)
	assert.Equal(t, "old", sent[0].headers["x-csrf-token"])
	assert.Equal(t, "new", sent[1].headers["x-csrf-token"])
	assert.Equal(t, "newer", c.CT0())
}

func TestCSRFWithoutRotationFails(t *testing.T) {
	c, ft := testClient(t, ClientConfig{CT0: "old"}, reply{status: 403, body: `{"errors":[{"code":353}]}`})
	_, err := c.Get(context.Background(), "https://x.com/i/api/x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindCSRF, apiErr.Kind)
	assert.Len(t, ft.requests(), 1)
}

func TestDoContextCanceled(t *testing.T) {
	c, _ := testClient(t, ClientConfig{}, reply{status: 500})
	c.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "https://x.com/i/api/x")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoBadURL(t *testing.T) {
	c, _ := testClient(t, ClientConfig{})
	_, err := c.Get(context.Background(), "://bad")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse url"))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://x.com/i/api/graphql/a/B", ResolveURL("/graphql/a/B"))
	assert.Equal(t, "https://api.x.com/1.1/x.json", ResolveURL("https://api.x.com/1.1/x.json"))
}

func TestConfigDefaults(t *testing.T) {
	cfg := ClientConfig{}
	cfg.defaults()
	assert.Equal(t, defaultUserAgent, cfg.UserAgent)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, xtid.DefaultHomeURL, cfg.HomeURL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, ratelimit.DefaultConfig, cfg.RateLimit)

	p := BuiltinProfile(-1)
	cfg = ClientConfig{Profile: p}
	cfg.defaults()
	assert.Equal(t, p.UserAgent, cfg.UserAgent)
}
