// Package parser provides HTML parsing for the crawler and the search
// engine. It extracts the document title, outgoing anchor links resolved to
// absolute URLs, and the visible text content.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser extracts title, links and text from HTML documents.
type HTMLParser struct {
	baseURL *url.URL
}

// ParseResult contains the parsed HTML data.
type ParseResult struct {
	Title string
	Links []string // Absolute anchor targets, document order
	Text  string   // Visible text with tags stripped
}

// NewHTMLParser creates a parser resolving relative links against baseURL.
func NewHTMLParser(baseURL string) (*HTMLParser, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &HTMLParser{baseURL: parsedURL}, nil
}

// Parse parses HTML content and extracts the title, all anchor hrefs
// resolved to absolute URLs, and the visible text of the document.
func (p *HTMLParser) Parse(htmlContent []byte) (*ParseResult, error) {
	doc, err := html.Parse(strings.NewReader(string(htmlContent)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &ParseResult{}

	var text strings.Builder
	p.traverse(doc, result, &text)
	result.Text = strings.Join(strings.Fields(text.String()), " ")

	return result, nil
}

// Title returns the <title> content of an HTML document, or "" when the
// document has none or cannot be parsed.
func Title(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title
}

// traverse recursively walks the HTML tree
func (p *HTMLParser) traverse(n *html.Node, result *ParseResult, text *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript":
			return // no visible text, no followable links
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				result.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "a":
			p.parseAnchor(n, result)
		}
	case html.TextNode:
		text.WriteString(n.Data)
		text.WriteByte(' ')
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, result, text)
	}
}

// parseAnchor extracts the href target from an anchor tag
func (p *HTMLParser) parseAnchor(n *html.Node, result *ParseResult) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}

	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return
	}

	absURL, err := p.resolveURL(href)
	if err != nil {
		return
	}

	if !strings.HasPrefix(absURL, "http://") && !strings.HasPrefix(absURL, "https://") {
		return
	}

	result.Links = append(result.Links, absURL)
}

// resolveURL converts relative URLs to absolute URLs
func (p *HTMLParser) resolveURL(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}

	return p.baseURL.ResolveReference(u).String(), nil
}
