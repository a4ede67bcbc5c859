// Package promptctx assembles the dynamic context injected into the upstream
// extraction prompt: learned few-shot examples from the taste engine and
// channel knowledge from the history service.
package promptctx

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/msg43/winnow/internal/model"
)

// aggregateMaxLen bounds the example-query aggregate; beyond this the extra
// text adds noise rather than signal.
const aggregateMaxLen = 2000

// BuildAggregate builds the text used to query the taste engine for relevant
// examples. Signal hierarchy, highest first: tags and categories, the
// locally computed summary, the externally supplied AI summary, the title.
//
// The description is excluded on purpose — it is disproportionately noisy
// (links, sponsorships, boilerplate) relative to its signal.
func BuildAggregate(meta model.DocumentMeta) string {
	var parts []string

	if tags := strings.Join(append(append([]string{}, meta.Tags...), meta.Categories...), ", "); tags != "" {
		parts = append(parts, tags)
	}
	if s := stripMarkup(meta.Summary); s != "" {
		parts = append(parts, s)
	}
	if s := stripMarkup(meta.AISummary); s != "" {
		parts = append(parts, s)
	}
	if meta.Title != "" {
		parts = append(parts, meta.Title)
	}

	aggregate := strings.TrimSpace(strings.Join(parts, "\n"))
	if len(aggregate) > aggregateMaxLen {
		// Back up to a rune boundary so the cut never hands the embedder a
		// split multi-byte character.
		cut := aggregateMaxLen
		for cut > 0 && !utf8.RuneStart(aggregate[cut]) {
			cut--
		}
		aggregate = aggregate[:cut]
	}
	return aggregate
}

// stripMarkup flattens HTML-bearing metadata fields to visible text. Plain
// text passes through unchanged.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(buf.String())
}
