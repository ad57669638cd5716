package parser

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"ul": true, "ol": true, "tr": true, "table": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "header": true, "footer": true, "figure": true, "figcaption": true,
	"dd": true, "dt": true,
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// nodeText returns the visible text under n with line breaks at block
// boundaries.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
			if n.Data == "br" {
				b.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return b.String()
}

// normalizeSpace collapses all whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeBlock collapses whitespace within lines and drops blank lines.
func normalizeBlock(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = normalizeSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// truncateRunes cuts s to at most n runes; n <= 0 leaves it unchanged.
func truncateRunes(s string, n int) string {
	if n <= 0 || runeLen(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
