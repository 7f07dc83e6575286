// Package httpclient provides an *http.Client whose TLS handshake looks like Chrome,
// for fetching x.com pages that reject Go's default ClientHello.
package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// New returns an *http.Client with a Chrome uTLS fingerprint.
// Every HTTPS request gets its own connection, released when the body is closed.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &chromeTransport{
			dialer: &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
			h2:     &http2.Transport{},
		},
	}
}

type chromeTransport struct {
	dialer *net.Dialer
	h2     *http2.Transport
}

func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return http.DefaultTransport.RoundTrip(req)
	}

	conn, err := t.dialTLS(req.Context(), req.URL)
	if err != nil {
		return nil, err
	}

	if conn.ConnectionState().NegotiatedProtocol == http2.NextProtoTLS {
		cc, err := t.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		resp, err := cc.RoundTrip(req)
		if err != nil {
			cc.Close()
			return nil, err
		}
		resp.Body = &connClosingBody{ReadCloser: resp.Body, conn: cc}
		return resp, nil
	}

	h1 := &http.Transport{
		DialTLSContext: func(context.Context, string, string) (net.Conn, error) {
			return conn, nil
		},
		DisableKeepAlives: true,
	}
	return h1.RoundTrip(req)
}

// dialTLS dials the request host and completes a Chrome handshake, both bounded by ctx.
func (t *chromeTransport) dialTLS(ctx context.Context, u *url.URL) (*utls.UConn, error) {
	host := u.Hostname()
	raw, err := t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, portFromURL(u)))
	if err != nil {
		return nil, err
	}

	conn := utls.UClient(raw, &utls.Config{
		ServerName: host,
		NextProtos: []string{http2.NextProtoTLS, "http/1.1"},
	}, utls.HelloChrome_Auto)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// connClosingBody closes the single-use h2 connection along with the response body.
type connClosingBody struct {
	io.ReadCloser
	conn io.Closer
}

func (b *connClosingBody) Close() error {
	err := b.ReadCloser.Close()
	b.conn.Close()
	return err
}

func portFromURL(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}
