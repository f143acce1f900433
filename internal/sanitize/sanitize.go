// Package sanitize turns provider-supplied HTML snippets into plain text
// suitable for a terminal.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Text strips every tag from s, unescapes entities and collapses runs of
// whitespace.
type Text struct {
	policy *bluemonday.Policy
}

func NewText() *Text {
	return &Text{policy: bluemonday.StrictPolicy()}
}

func (t *Text) Clean(s string) string {
	if s == "" {
		return ""
	}
	stripped := t.policy.Sanitize(s)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

var blockEnd = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|blockquote|pre|section|article)>|<br\s*/?>`)

// Paragraphs is Clean for longer documents: block boundaries survive as
// blank lines and empty blocks are dropped.
func (t *Text) Paragraphs(s string) string {
	var out []string
	for _, block := range blockEnd.Split(s, -1) {
		if p := t.Clean(block); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// TrimAPIMarker drops the "[+1234 chars]" marker some news APIs append to
// clipped content.
func TrimAPIMarker(s string) string {
	if i := strings.LastIndex(s, "[+"); i >= 0 && strings.HasSuffix(s, " chars]") {
		return strings.TrimSpace(s[:i])
	}
	return s
}
