package models

import "time"

// PageLabel classifies a sitemap page by its path
type PageLabel string

const (
	PageLabelBlog     PageLabel = "blog"
	PageLabelProduct  PageLabel = "product"
	PageLabelService  PageLabel = "service"
	PageLabelDocs     PageLabel = "docs"
	PageLabelResource PageLabel = "resource"
	PageLabelCompany  PageLabel = "company"
	PageLabelLegal    PageLabel = "legal"
	PageLabelContact  PageLabel = "contact"
	PageLabelLanding  PageLabel = "landing"
	PageLabelOther    PageLabel = "other"
)

// SitemapPage is one classified URL from a company sitemap.
// Identity is by URL.
type SitemapPage struct {
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	Label      PageLabel `json:"label"`
	Title      string    `json:"title"`
	Confidence float64   `json:"confidence"` // [0,1]
}

// SitemapPageList is the result of one sitemap crawl
type SitemapPageList struct {
	CompanyURL string        `json:"company_url"`
	Pages      []SitemapPage `json:"pages"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// PagesByLabel returns the pages carrying the given label, in crawl order
func (l *SitemapPageList) PagesByLabel(label PageLabel) []SitemapPage {
	var out []SitemapPage
	for _, p := range l.Pages {
		if p.Label == label {
			out = append(out, p)
		}
	}
	return out
}

// LabelCounts returns the number of pages per label
func (l *SitemapPageList) LabelCounts() map[PageLabel]int {
	counts := make(map[PageLabel]int)
	for _, p := range l.Pages {
		counts[p.Label]++
	}
	return counts
}

// SiteType characterizes a company site from its label distribution
type SiteType string

const (
	SiteTypeContentMarketing SiteType = "content-marketing"
	SiteTypeProductFocused   SiteType = "product-focused"
	SiteTypeServiceFocused   SiteType = "service-focused"
	SiteTypeCorporate        SiteType = "corporate"
)

// DetectSiteType derives the site type from label ratios
func (l *SitemapPageList) DetectSiteType() SiteType {
	total := len(l.Pages)
	if total == 0 {
		return SiteTypeCorporate
	}

	counts := l.LabelCounts()
	blogRatio := float64(counts[PageLabelBlog]+counts[PageLabelResource]) / float64(total)
	productRatio := float64(counts[PageLabelProduct]) / float64(total)
	serviceRatio := float64(counts[PageLabelService]) / float64(total)

	switch {
	case blogRatio >= 0.3:
		return SiteTypeContentMarketing
	case productRatio >= 0.2 && productRatio >= serviceRatio:
		return SiteTypeProductFocused
	case serviceRatio >= 0.2:
		return SiteTypeServiceFocused
	default:
		return SiteTypeCorporate
	}
}
