package citations

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/scriptor/internal/models"
)

// strictLineRE matches the canonical source line "[N]: <url> – <title>".
// The separator between URL and title is an en/em dash, a hyphen, or bare
// whitespace.
var strictLineRE = regexp.MustCompile(`^\[(\d+)\]:\s*(https?://\S+?)(?:\s+[–—\-]\s+|\s+)(.+)$`)

// relaxedLineRE matches any numbered line; the URL is recovered by scanning
// the remainder.
var relaxedLineRE = regexp.MustCompile(`^\[(\d+)\]:\s*(.+)$`)

var urlInTextRE = regexp.MustCompile(`https?://\S+`)

// ParseSources extracts citations from the free-form Sources block. Lines
// that yield no absolute http/https URL are dropped, and the surviving
// citations are renumbered contiguously from 1.
func ParseSources(sources string) models.CitationList {
	var out models.CitationList

	for _, line := range strings.Split(sources, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if c, ok := parseStrict(line); ok {
			out = append(out, c)
			continue
		}
		if c, ok := parseRelaxed(line); ok {
			out = append(out, c)
		}
	}

	return out.Renumber()
}

func parseStrict(line string) (models.Citation, bool) {
	m := strictLineRE.FindStringSubmatch(line)
	if m == nil {
		return models.Citation{}, false
	}

	number, _ := strconv.Atoi(m[1])
	rawURL := trimURLPunctuation(m[2])
	if !isAbsoluteURL(rawURL) {
		return models.Citation{}, false
	}

	return models.Citation{
		Number: number,
		URL:    rawURL,
		Title:  strings.TrimSpace(m[3]),
	}, true
}

func parseRelaxed(line string) (models.Citation, bool) {
	m := relaxedLineRE.FindStringSubmatch(line)
	if m == nil {
		return models.Citation{}, false
	}

	number, _ := strconv.Atoi(m[1])
	rest := m[2]

	loc := urlInTextRE.FindStringIndex(rest)
	if loc == nil {
		return models.Citation{}, false
	}

	rawURL := trimURLPunctuation(rest[loc[0]:loc[1]])
	if !isAbsoluteURL(rawURL) {
		return models.Citation{}, false
	}

	// The title is whatever surrounds the URL, separators stripped
	title := strings.TrimSpace(rest[:loc[0]] + " " + rest[loc[1]:])
	title = strings.Trim(title, "–—- \t")

	return models.Citation{
		Number: number,
		URL:    rawURL,
		Title:  strings.TrimSpace(title),
	}, true
}

// trimURLPunctuation strips trailing punctuation that regex greediness can
// drag in from prose.
func trimURLPunctuation(raw string) string {
	return strings.TrimRight(raw, ".,;:)]}\"'")
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// IsDomainOnly reports whether a URL points at a bare domain rather than a
// specific page.
func IsDomainOnly(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	return path == "" && parsed.RawQuery == "" && parsed.Fragment == ""
}
