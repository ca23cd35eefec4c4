package common

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// dangerousSchemes are URL schemes that are never fetched or cited
var dangerousSchemes = map[string]bool{
	"javascript":       true,
	"file":             true,
	"data":             true,
	"vbscript":         true,
	"about":            true,
	"chrome":           true,
	"chrome-extension": true,
}

// NormalizeCompanyURL validates a company URL and strips the trailing slash.
// Scheme-less hosts like "acme.com" default to https; otherwise only http and
// https are accepted.
func NormalizeCompanyURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("company URL is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid company URL %q: %w", rawURL, err)
	}

	if parsed.Scheme == "" {
		trimmed = "https://" + strings.TrimPrefix(trimmed, "//")
		parsed, err = url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid company URL %q: %w", rawURL, err)
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if dangerousSchemes[scheme] {
		return "", fmt.Errorf("dangerous URL scheme %q rejected", scheme)
	}
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q (expected http or https)", scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("company URL %q has no host", rawURL)
	}

	return strings.TrimRight(trimmed, "/"), nil
}

// IsValidPageURL reports whether a URL is acceptable as a crawled page:
// http/https scheme, a dot in the host, and not a dangerous scheme.
func IsValidPageURL(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if dangerousSchemes[scheme] {
		return false
	}
	if scheme != "http" && scheme != "https" {
		return false
	}
	return strings.Contains(parsed.Host, ".")
}

// ExtractDomain returns the host of a URL without any www. prefix
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// DeriveCompanyName derives a display name from a company URL's domain:
// strip www., drop the TLD, split on hyphens, Title Case the parts.
func DeriveCompanyName(companyURL string) string {
	domain := ExtractDomain(companyURL)
	if domain == "" {
		return ""
	}

	base := domain
	if idx := strings.Index(domain, "."); idx > 0 {
		base = domain[:idx]
	}

	parts := strings.Split(base, "-")
	for i, part := range parts {
		parts[i] = titleCaseWord(part)
	}
	return strings.Join(parts, " ")
}

// TitleFromSlug converts the final non-empty path segment of a URL into a
// readable title: hyphens and underscores become spaces, words Title Cased.
func TitleFromSlug(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	slug := ""
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			slug = segments[i]
			break
		}
	}
	if slug == "" {
		return ""
	}

	slug = strings.ReplaceAll(slug, "-", " ")
	slug = strings.ReplaceAll(slug, "_", " ")

	words := strings.Fields(slug)
	for i, word := range words {
		words[i] = titleCaseWord(word)
	}
	return strings.Join(words, " ")
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a title to a lowercase hyphen-separated anchor slug
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func titleCaseWord(word string) string {
	if word == "" {
		return ""
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
