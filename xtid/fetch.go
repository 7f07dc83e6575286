package xtid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var migrationRegex = regexp.MustCompile(`(http(?:s)?://(?:www\.)?(twitter|x){1}\.com(/x)?/migrate([/?])?tok=[a-zA-Z0-9%\-_]+)+`)

// Doer sends a single HTTP request and returns the response body and status code.
type Doer interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error)
}

// HTTPDoer adapts an *http.Client to Doer.
type HTTPDoer struct {
	Client *http.Client
}

func (d HTTPDoer) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// DefaultHeaders are the browser navigation headers sent with page fetches.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"user-agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "en-US,en;q=0.9",
	}
}

// Fetcher loads the home page, following the twitter.com to x.com migration,
// and the JS bundles it references.
type Fetcher struct {
	Doer    Doer
	Headers map[string]string

	// HomeURL defaults to DefaultHomeURL.
	HomeURL string
	// MigrateURL is the form target used when the migration form has no action.
	MigrateURL string
	// MigrationPattern matches migration redirect URLs in the page.
	MigrationPattern *regexp.Regexp
}

// NewFetcher returns a Fetcher for x.com sending DefaultHeaders through d.
func NewFetcher(d Doer) *Fetcher {
	return &Fetcher{
		Doer:             d,
		Headers:          DefaultHeaders(),
		HomeURL:          DefaultHomeURL,
		MigrateURL:       DefaultMigrateURL,
		MigrationPattern: migrationRegex,
	}
}

// FetchHome returns the parsed home document. A meta refresh or inline
// migrate?tok= link is followed once, and a migration form is resubmitted.
func (f *Fetcher) FetchHome(ctx context.Context) (*Document, error) {
	homeURL := f.HomeURL
	if homeURL == "" {
		homeURL = DefaultHomeURL
	}
	doc, err := f.fetchDocument(ctx, http.MethodGet, homeURL, f.headers(), nil)
	if err != nil {
		return nil, err
	}

	if target := f.migrationTarget(doc); target != "" {
		slog.Debug("xtid: following migration redirect", slog.String("url", target))
		doc, err = f.fetchDocument(ctx, http.MethodGet, target, f.headers(), nil)
		if err != nil {
			return nil, err
		}
	}

	if form := f.migrationForm(doc); form != nil {
		doc, err = f.submitForm(ctx, form)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// FetchText GETs url and returns the body as text.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	body, err := f.do(ctx, http.MethodGet, url, f.headers(), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) migrationTarget(doc *Document) string {
	pattern := f.MigrationPattern
	if pattern == nil {
		pattern = migrationRegex
	}
	if meta := doc.Find("meta[http-equiv='refresh']").First(); meta.Length() > 0 {
		if html, err := goquery.OuterHtml(meta); err == nil {
			if target := pattern.FindString(html); target != "" {
				return target
			}
		}
	}
	return pattern.FindString(doc.Raw())
}

func (f *Fetcher) migrationForm(doc *Document) *goquery.Selection {
	if form := doc.Find("form[name='f']").First(); form.Length() > 0 {
		return form
	}
	if form := doc.Find(fmt.Sprintf("form[action='%s']", f.migrateURL())).First(); form.Length() > 0 {
		return form
	}
	return nil
}

func (f *Fetcher) submitForm(ctx context.Context, form *goquery.Selection) (*Document, error) {
	target := form.AttrOr("action", f.migrateURL()) + "/?mx=2"
	method := strings.ToUpper(form.AttrOr("method", http.MethodPost))

	values := url.Values{}
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok {
			values.Set(name, in.AttrOr("value", ""))
		}
	})

	headers := f.headers()
	var body io.Reader
	if method == http.MethodGet {
		target += "&" + values.Encode()
	} else {
		headers["content-type"] = "application/x-www-form-urlencoded"
		body = strings.NewReader(values.Encode())
	}

	slog.Debug("xtid: submitting migration form", slog.String("url", target), slog.String("method", method))
	return f.fetchDocument(ctx, method, target, headers, body)
}

func (f *Fetcher) fetchDocument(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*Document, error) {
	data, err := f.do(ctx, method, url, headers, body)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

func (f *Fetcher) do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, error) {
	if f.Doer == nil {
		return nil, fmt.Errorf("fetch %s: no transport configured", url)
	}
	data, status, err := f.Doer.Do(ctx, method, url, headers, body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, status)
	}
	return data, nil
}

func (f *Fetcher) headers() map[string]string {
	if f.Headers == nil {
		return DefaultHeaders()
	}
	return maps.Clone(f.Headers)
}

func (f *Fetcher) migrateURL() string {
	if f.MigrateURL == "" {
		return DefaultMigrateURL
	}
	return f.MigrateURL
}

// Init fetches the home page and its on-demand bundle and builds a SigningContext.
// A nil parser means DefaultParser.
func Init(ctx context.Context, f *Fetcher, p *Parser) (*SigningContext, error) {
	if p == nil {
		p = DefaultParser()
	}
	home, err := f.FetchHome(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch home page: %w", err)
	}
	jsURL, err := p.OnDemand.Extract(home)
	if err != nil {
		return nil, err
	}
	js, err := f.FetchText(ctx, jsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch ondemand.s: %w", err)
	}
	return p.Parse(home, js)
}
