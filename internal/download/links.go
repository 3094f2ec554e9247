package download

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ListLinks returns the absolute URLs of all <a href> targets on pageURL that
// end in ext, in page order without duplicates.
func (c *Client) ListLinks(ctx context.Context, pageURL, ext string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	hrefs, err := extractLinks(resp.Body, ext)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			c.logger.Warn("skipping bad link", "href", href, "error", err)
			continue
		}
		links = append(links, base.ResolveReference(ref).String())
	}
	return links, nil
}

func extractLinks(r io.Reader, ext string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	ext = strings.ToLower(ext)
	seen := make(map[string]bool)
	var hrefs []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if strings.HasSuffix(strings.ToLower(href), ext) && !seen[href] {
					seen[href] = true
					hrefs = append(hrefs, href)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return hrefs, nil
}
