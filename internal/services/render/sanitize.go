package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// allowedTags is the sanitizer allow-list. Anything else is unwrapped,
// keeping its text content.
var allowedTags = map[string]bool{
	"p": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"strong": true, "b": true, "em": true, "i": true, "u": true, "s": true,
	"a": true, "img": true, "sup": true, "sub": true, "blockquote": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "th": true, "td": true,
	"code": true, "pre": true, "span": true, "div": true, "figure": true, "figcaption": true,
}

// droppedTags are removed together with their content
var droppedTags = []string{"script", "style", "iframe", "object", "embed", "form", "input", "button", "noscript"}

// allowedAttrs is the per-element attribute allow-list
var allowedAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true,
	"id": true, "class": true, "target": true, "rel": true,
	"colspan": true, "rowspan": true, "loading": true,
}

// invisibleChars are stripped from all output; they break rendering and
// word counting downstream.
var invisibleChars = []string{
	"\u200b", // zero width space
	"\u200c", // zero width non-joiner
	"\u200d", // zero width joiner
	"\ufeff", // byte order mark
	"\u00ad", // soft hyphen
	"\u2060", // word joiner
}

// SanitizeHTML canonicalizes an HTML fragment: parsing repairs unclosed and
// double-closed tags, dangerous elements and attributes are dropped, and
// invisible characters removed.
func SanitizeHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return stripInvisible(fragment)
	}

	for _, tag := range droppedTags {
		doc.Find(tag).Remove()
	}

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		tag := strings.ToLower(node.Data)
		if tag == "html" || tag == "head" || tag == "body" {
			return
		}

		if !allowedTags[tag] {
			// Unwrap: keep children, drop the element itself
			sel.ReplaceWithHtml(innerHTML(sel))
			return
		}

		for _, attr := range node.Attr {
			key := strings.ToLower(attr.Key)
			if !allowedAttrs[key] {
				sel.RemoveAttr(attr.Key)
				continue
			}
			if (key == "href" || key == "src") && isDangerousRef(attr.Val) {
				sel.RemoveAttr(attr.Key)
			}
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return stripInvisible(fragment)
	}
	return strings.TrimSpace(stripInvisible(out))
}

// StripTags returns the plain text content of an HTML fragment, used for
// word counting.
func StripTags(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(stripInvisible(doc.Text()))
}

func innerHTML(sel *goquery.Selection) string {
	html, err := sel.Html()
	if err != nil {
		return sel.Text()
	}
	return html
}

func isDangerousRef(val string) bool {
	val = strings.ToLower(strings.TrimSpace(val))
	for _, scheme := range []string{"javascript:", "data:", "vbscript:", "file:"} {
		if strings.HasPrefix(val, scheme) {
			return true
		}
	}
	return false
}

func stripInvisible(s string) string {
	for _, ch := range invisibleChars {
		s = strings.ReplaceAll(s, ch, "")
	}
	return s
}
