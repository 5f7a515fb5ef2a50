package normalizer

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const previewLength = 200

// Preview picks the provider snippet when present, otherwise derives one from the bodies.
func Preview(snippet, plain, htmlBody string) string {
	text := html.UnescapeString(snippet)
	if strings.TrimSpace(text) == "" {
		text = plain
	}
	if strings.TrimSpace(text) == "" && htmlBody != "" {
		text = StripHTML(htmlBody)
	}
	return truncate(strings.Join(strings.Fields(text), " "), previewLength)
}

// StripHTML returns the visible text of an HTML fragment. Script, style and
// head content, comments and attributes are dropped; entities are decoded.
func StripHTML(s string) string {
	var (
		b    strings.Builder
		skip int
	)
	z := xhtml.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			// io.EOF or a truncated document; keep what was read
			return b.String()
		case xhtml.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				skip++
			}
			b.WriteByte(' ')
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				if skip > 0 {
					skip--
				}
			}
			b.WriteByte(' ')
		case xhtml.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
