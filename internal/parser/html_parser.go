// Package parser extracts hyperlink targets from HTML markup.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// LinkExtractor returns the absolute hyperlink targets found in markup
type LinkExtractor struct {
	allowedSchemes []string
}

// NewLinkExtractor creates an extractor that keeps http and https links
func NewLinkExtractor() *LinkExtractor {
	return NewLinkExtractorWithSchemes([]string{"https://", "http://"})
}

// NewLinkExtractorWithSchemes creates an extractor with custom allowed schemes
func NewLinkExtractorWithSchemes(allowedSchemes []string) *LinkExtractor {
	if len(allowedSchemes) == 0 {
		allowedSchemes = []string{"https://", "http://"}
	}
	return &LinkExtractor{allowedSchemes: allowedSchemes}
}

// Extract parses markup and returns the href of every <a> element whose
// target is fully qualified with an allowed scheme, in document order.
// Relative, fragment-only and non-http links are dropped. Duplicates are
// kept; deduplication is the caller's concern.
func (e *LinkExtractor) Extract(markup []byte) ([]string, error) {
	if len(bytes.TrimSpace(markup)) == 0 {
		return nil, nil
	}

	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var links []string
	e.traverse(doc, &links)
	return links, nil
}

func (e *LinkExtractor) traverse(n *html.Node, links *[]string) {
	if n.Type == html.ElementNode && n.Data == "a" {
		if href, ok := e.absoluteHref(n); ok {
			*links = append(*links, href)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.traverse(c, links)
	}
}

func (e *LinkExtractor) absoluteHref(n *html.Node) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key != "href" {
			continue
		}
		href := strings.TrimSpace(attr.Val)
		if !e.isAllowedScheme(href) {
			return "", false
		}
		u, err := url.Parse(href)
		if err != nil || u.Host == "" {
			return "", false
		}
		return href, true
	}
	return "", false
}

func (e *LinkExtractor) isAllowedScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range e.allowedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
