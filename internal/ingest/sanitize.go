package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// Sanitize strips markup tags (footnote anchors, emphasis) from s, decodes
// entities and collapses whitespace
func Sanitize(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
