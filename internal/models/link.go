package models

// InternalLink is a candidate internal link for the article body.
// Uniqueness key is URL.
type InternalLink struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Relevance int    `json:"relevance"` // 1..10
	Domain    string `json:"domain"`
}

// TOCEntry is one table-of-contents row derived from a section title
type TOCEntry struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}
