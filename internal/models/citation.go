package models

import (
	"fmt"
	"strings"
)

// Citation is one numbered source reference extracted from the article's
// free-form Sources block.
type Citation struct {
	Number          int    `json:"number"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description,omitempty"`
}

// CitationList is an ordered sequence of citations. Numbers are reassigned
// to 1..N after any filtering via Renumber.
type CitationList []Citation

// Renumber reassigns citation numbers contiguously from 1 in list order
func (l CitationList) Renumber() CitationList {
	for i := range l {
		l[i].Number = i + 1
	}
	return l
}

// Format renders the list back into the Sources wire format, one citation
// per line: "[N]: <url> – <title>".
func (l CitationList) Format() string {
	var b strings.Builder
	for i, c := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d]: %s – %s", c.Number, c.URL, c.Title)
	}
	return b.String()
}

// URLMap returns the number → URL citation map
func (l CitationList) URLMap() map[int]string {
	m := make(map[int]string, len(l))
	for _, c := range l {
		m[c.Number] = c.URL
	}
	return m
}
