package citations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// bracketRE matches academic-style bracket citations like [3]
var bracketRE = regexp.MustCompile(`\[(\d+)\]`)

// anchorRE matches complete anchor elements so name linking never nests
// a link inside an existing one.
var anchorRE = regexp.MustCompile(`(?is)<a\b[^>]*>.*?</a>`)

// LinkifyBrackets replaces [N] bracket citations with superscript anchors
// pointing at #source-N. Numbers absent from the citation map are left as
// plain text.
func LinkifyBrackets(text string, citationMap map[int]string) string {
	if text == "" || len(citationMap) == 0 {
		return text
	}

	return bracketRE.ReplaceAllStringFunc(text, func(match string) string {
		number, err := strconv.Atoi(bracketRE.FindStringSubmatch(match)[1])
		if err != nil {
			return match
		}
		if _, ok := citationMap[number]; !ok {
			return match
		}
		return fmt.Sprintf(`<a href="#source-%d"><sup>[%d]</sup></a>`, number, number)
	})
}

// LinkifyNames turns natural mentions of known source names ("According to
// IBM") into inline anchors. Mentions already inside an anchor element are
// left alone.
func LinkifyNames(text string, nameMap map[string]string) string {
	if text == "" || len(nameMap) == 0 {
		return text
	}

	for name, targetURL := range nameMap {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			continue
		}
		text = replaceOutsideAnchors(text, pattern, func(match string) string {
			return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener">%s</a>`, targetURL, match)
		})
	}
	return text
}

// replaceOutsideAnchors applies the replacement only to text segments that
// are not inside an existing <a> element. At most one mention per field is
// linked so repeated names do not flood the body with links.
func replaceOutsideAnchors(text string, pattern *regexp.Regexp, replace func(string) string) string {
	anchors := anchorRE.FindAllStringIndex(text, -1)
	replaced := false

	var b strings.Builder
	prev := 0
	for _, span := range anchors {
		b.WriteString(replaceOnce(text[prev:span[0]], pattern, replace, &replaced))
		b.WriteString(text[span[0]:span[1]])
		prev = span[1]
	}
	b.WriteString(replaceOnce(text[prev:], pattern, replace, &replaced))
	return b.String()
}

func replaceOnce(segment string, pattern *regexp.Regexp, replace func(string) string, done *bool) string {
	if *done {
		return segment
	}
	loc := pattern.FindStringIndex(segment)
	if loc == nil {
		return segment
	}
	*done = true
	return segment[:loc[0]] + replace(segment[loc[0]:loc[1]]) + segment[loc[1]:]
}

// BuildNameMap derives a source-name map from grounding metadata: each
// domain's display name maps to its deepest consulted URL.
func BuildNameMap(grounding []interfaces.GroundingURL) map[string]string {
	type best struct {
		url   string
		depth int
	}
	byName := make(map[string]best)

	for _, g := range grounding {
		domain := g.Domain
		if domain == "" {
			domain = common.ExtractDomain(g.URL)
		}
		if domain == "" {
			continue
		}

		name := common.DeriveCompanyName("https://" + domain)
		if name == "" {
			continue
		}
		// Short base names are almost always acronyms (IBM, AWS, SAP)
		if len(name) <= 4 && !strings.Contains(name, " ") {
			name = strings.ToUpper(name)
		}

		depth := pathDepth(g.URL)
		if current, ok := byName[name]; !ok || depth > current.depth {
			byName[name] = best{url: g.URL, depth: depth}
		}
	}

	out := make(map[string]string, len(byName))
	for name, b := range byName {
		out[name] = b.url
	}
	return out
}
