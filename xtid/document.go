package xtid

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed HTML page together with its raw source.
// Selectors run against the DOM while regex scans run against the raw text.
type Document struct {
	dom *goquery.Document
	raw string
}

// ParseDocument parses an HTML body. An empty body is rejected.
func ParseDocument(body []byte) (*Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidDocument)
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &Document{dom: dom, raw: string(body)}, nil
}

// Find returns the elements matching a CSS selector.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Raw returns the unparsed page source.
func (d *Document) Raw() string { return d.raw }
