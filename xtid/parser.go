package xtid

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	onDemandFileRegex = regexp.MustCompile(`['|"]{1}ondemand\.s['|"]{1}:\s*['|"]{1}([\w]*)['|"]{1}`)
	indicesRegex      = regexp.MustCompile(`\(\w{1}\[(\d{1,2})\],\s*16\)`)
	pathNumberRegex   = regexp.MustCompile(`\d+`)
)

// Frame is the parsed path data of one loading animation, one row per cubic segment.
type Frame [][]int

// Indices are the positions scraped from the on-demand bundle.
type Indices struct {
	// Row is a key byte position, not a row number: the frame row used is
	// keyBytes[Row] % 16.
	Row int
	// KeyBytes are the key byte positions whose values (mod 16) multiply into
	// the animation time. Positions past the end of the key are skipped.
	KeyBytes []int
}

// Extractor pulls one value out of the home page.
type Extractor[T any] interface {
	Extract(doc *Document) (T, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc[T any] func(doc *Document) (T, error)

func (f ExtractorFunc[T]) Extract(doc *Document) (T, error) { return f(doc) }

// IndexScanner pulls the row and key byte indices out of the on-demand bundle source.
type IndexScanner interface {
	Scan(js string) (Indices, error)
}

// KeyExtractor reads the content of the site verification meta tag.
type KeyExtractor struct {
	// Name overrides the name attribute looked up. Default: twitter-site-verification.
	Name string
}

func (e KeyExtractor) Extract(doc *Document) (string, error) {
	name := e.Name
	if name == "" {
		name = verificationMetaName
	}
	el := doc.Find(fmt.Sprintf("[name='%s']", name)).First()
	content, ok := el.Attr("content")
	if !ok || content == "" {
		return "", extractionErr("key", ErrKeyNotFound)
	}
	return content, nil
}

// FrameExtractor reads the path data of the loading-x-anim-N SVGs.
type FrameExtractor struct {
	// IDPrefix overrides the id prefix of the frame elements. Default: loading-x-anim.
	IDPrefix string
}

func (e FrameExtractor) Extract(doc *Document) ([]Frame, error) {
	prefix := e.IDPrefix
	if prefix == "" {
		prefix = frameIDPrefix
	}
	nodes := doc.Find(fmt.Sprintf("[id^='%s']", prefix))
	if nodes.Length() != frameCount {
		return nil, extractionErr("frames", fmt.Errorf("%w: found %d elements, want %d", ErrFramesNotFound, nodes.Length(), frameCount))
	}

	// A frame without path data stays nil; only the selected frame must parse.
	frames := make([]Frame, frameCount)
	nodes.Each(func(i int, s *goquery.Selection) {
		if d, ok := s.Children().First().Children().Eq(1).Attr("d"); ok {
			frames[i] = parsePathData(d)
		}
	})
	return frames, nil
}

// parsePathData drops the move-to prefix and splits the remaining path on its
// cubic commands. Every non-digit is a separator.
func parsePathData(d string) Frame {
	if len(d) > pathPrefixLen {
		d = d[pathPrefixLen:]
	} else {
		d = ""
	}
	parts := strings.Split(d, "C")
	rows := make(Frame, 0, len(parts))
	for _, part := range parts {
		nums := pathNumberRegex.FindAllString(part, -1)
		row := make([]int, 0, len(nums))
		for _, n := range nums {
			if v, err := strconv.Atoi(n); err == nil {
				row = append(row, v)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// OnDemandExtractor locates the ondemand.s bundle referenced by the home page.
type OnDemandExtractor struct {
	// URLFormat overrides the bundle URL template. Default: DefaultOnDemandURLFormat.
	URLFormat string
}

func (e OnDemandExtractor) Extract(doc *Document) (string, error) {
	format := e.URLFormat
	if format == "" {
		format = DefaultOnDemandURLFormat
	}
	m := onDemandFileRegex.FindStringSubmatch(doc.Raw())
	if len(m) < 2 || m[1] == "" {
		return "", extractionErr("ondemand", ErrIndicesNotFound)
	}
	return fmt.Sprintf(format, m[1]), nil
}

// RegexIndexScanner collects N from every "(x[N],16)" expression in scan order.
type RegexIndexScanner struct{}

func (RegexIndexScanner) Scan(js string) (Indices, error) {
	matches := indicesRegex.FindAllStringSubmatch(js, -1)
	indices := make([]int, 0, len(matches))
	for _, m := range matches {
		if idx, err := strconv.Atoi(m[1]); err == nil {
			indices = append(indices, idx)
		}
	}
	if len(indices) < 2 {
		return Indices{}, extractionErr("indices", fmt.Errorf("%w: %d matches", ErrIndicesNotFound, len(indices)))
	}
	return Indices{Row: indices[0], KeyBytes: indices[1:]}, nil
}

// decodeKey decodes the verification key, tolerating missing padding.
func decodeKey(key string) ([]byte, error) {
	if rem := len(key) % 4; rem != 0 {
		key += strings.Repeat("=", 4-rem)
	}
	b, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, extractionErr("key", fmt.Errorf("%w: %v", ErrKeyNotFound, err))
	}
	return b, nil
}
