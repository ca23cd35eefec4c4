package common

import (
	"testing"
)

func TestNormalizeCompanyURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain https", "https://cyberguard.tech", "https://cyberguard.tech", false},
		{"trailing slash stripped", "https://cyberguard.tech/", "https://cyberguard.tech", false},
		{"http accepted", "http://example.com", "http://example.com", false},
		{"scheme-less host defaults to https", "acme.com", "https://acme.com", false},
		{"scheme-less with path", "acme.com/about/", "https://acme.com/about", false},
		{"protocol-relative", "//acme.com", "https://acme.com", false},
		{"javascript rejected", "javascript:alert(1)", "", true},
		{"file rejected", "file:///etc/passwd", "", true},
		{"data rejected", "data:text/html,hi", "", true},
		{"ftp rejected", "ftp://example.com", "", true},
		{"empty rejected", "", "", true},
		{"no host rejected", "https://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCompanyURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeCompanyURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeCompanyURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidPageURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/blog/post", true},
		{"http://www.example.co.uk/about", true},
		{"javascript:void(0)", false},
		{"https://localhost/page", false}, // no dot in host
		{"mailto:someone@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidPageURL(tt.url); got != tt.want {
			t.Errorf("IsValidPageURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestDeriveCompanyName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cyberguard.tech", "Cyberguard"},
		{"https://www.acme-security.com", "Acme Security"},
		{"https://data-flow-labs.io/path", "Data Flow Labs"},
	}

	for _, tt := range tests {
		if got := DeriveCompanyName(tt.url); got != tt.want {
			t.Errorf("DeriveCompanyName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestTitleFromSlug(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/blog/zero-trust-architecture", "Zero Trust Architecture"},
		{"https://example.com/docs/getting_started/", "Getting Started"},
		{"https://example.com/", ""},
	}

	for _, tt := range tests {
		if got := TitleFromSlug(tt.url); got != tt.want {
			t.Errorf("TitleFromSlug(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"What Is Zero Trust?", "what-is-zero-trust"},
		{"  Cloud   Security 101 ", "cloud-security-101"},
		{"FAQ: Common Questions", "faq-common-questions"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.title); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
