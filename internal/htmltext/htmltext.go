// Package htmltext extracts plain text and links from the HTML bodies the
// platform delivers. Block and line breaks become newlines so the line-based
// directive grammar can see message structure.
package htmltext

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// PlainText renders the HTML body as plain text. <br> becomes a newline and
// every <p> is followed by a blank line, mirroring how the platform composes
// paragraphs.
func PlainText(body string) string {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// Tolerant parser; errors only happen on malformed readers. Fall
		// back to the raw string rather than losing the message.
		return strings.TrimSpace(body)
	}

	var b strings.Builder
	writeText(&b, root)
	return strings.TrimSpace(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteString("\n")
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}

	if n.Type == html.ElementNode && n.Data == "p" {
		b.WriteString("\n\n")
	}
}

// FirstLink returns the href of the first anchor whose host is in the
// allow-list, or "" when none matches.
func FirstLink(body string, allowedHosts map[string]bool) string {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return findLink(root, allowedHosts)
}

func findLink(n *html.Node, allowedHosts map[string]bool) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key != "href" {
				continue
			}
			if parsed, err := url.Parse(attr.Val); err == nil && allowedHosts[parsed.Host] {
				return attr.Val
			}
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if href := findLink(child, allowedHosts); href != "" {
			return href
		}
	}
	return ""
}
