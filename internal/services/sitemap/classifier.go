package sitemap

import (
	"net/url"
	"regexp"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
)

// labelPatterns maps each page label to the path patterns that indicate it.
// Each matching pattern adds matchScore to the label's score.
var labelPatterns = map[models.PageLabel][]*regexp.Regexp{
	models.PageLabelBlog: {
		regexp.MustCompile(`(?i)/blog(/|$)`),
		regexp.MustCompile(`(?i)/news(/|$)`),
		regexp.MustCompile(`(?i)/magazine(/|$)`),
		regexp.MustCompile(`(?i)/articles?(/|$)`),
		regexp.MustCompile(`(?i)/posts?(/|$)`),
		regexp.MustCompile(`(?i)/\d{4}/\d{2}/`),
	},
	models.PageLabelProduct: {
		regexp.MustCompile(`(?i)/products?(/|$)`),
		regexp.MustCompile(`(?i)/shop(/|$)`),
		regexp.MustCompile(`(?i)/store(/|$)`),
		regexp.MustCompile(`(?i)/pricing(/|$)`),
	},
	models.PageLabelService: {
		regexp.MustCompile(`(?i)/services?(/|$)`),
		regexp.MustCompile(`(?i)/solutions?(/|$)`),
		regexp.MustCompile(`(?i)/consulting(/|$)`),
	},
	models.PageLabelDocs: {
		regexp.MustCompile(`(?i)/docs?(/|$)`),
		regexp.MustCompile(`(?i)/documentation(/|$)`),
		regexp.MustCompile(`(?i)/api(/|$)`),
		regexp.MustCompile(`(?i)/developers?(/|$)`),
	},
	models.PageLabelResource: {
		regexp.MustCompile(`(?i)/resources?(/|$)`),
		regexp.MustCompile(`(?i)/guides?(/|$)`),
		regexp.MustCompile(`(?i)/whitepapers?(/|$)`),
		regexp.MustCompile(`(?i)/ebooks?(/|$)`),
		regexp.MustCompile(`(?i)/case-stud(y|ies)(/|$)`),
	},
	models.PageLabelCompany: {
		regexp.MustCompile(`(?i)/about(-us)?(/|$)`),
		regexp.MustCompile(`(?i)/team(/|$)`),
		regexp.MustCompile(`(?i)/careers?(/|$)`),
		regexp.MustCompile(`(?i)/company(/|$)`),
	},
	models.PageLabelLegal: {
		regexp.MustCompile(`(?i)/privacy(/|$)`),
		regexp.MustCompile(`(?i)/terms(/|$)`),
		regexp.MustCompile(`(?i)/imprint(/|$)`),
		regexp.MustCompile(`(?i)/legal(/|$)`),
		regexp.MustCompile(`(?i)/cookie(s)?(/|$)`),
	},
	models.PageLabelContact: {
		regexp.MustCompile(`(?i)/contact(-us)?(/|$)`),
		regexp.MustCompile(`(?i)/support(/|$)`),
		regexp.MustCompile(`(?i)/help(/|$)`),
	},
	models.PageLabelLanding: {
		regexp.MustCompile(`(?i)/lp(/|$)`),
		regexp.MustCompile(`(?i)/landing(/|$)`),
		regexp.MustCompile(`(?i)/campaigns?(/|$)`),
	},
}

const (
	matchScore = 0.4 // Score added per matching pattern
	baseScore  = 0.1 // Floor score for the "other" label
)

// labelOrder fixes the tie-break order for classification
var labelOrder = []models.PageLabel{
	models.PageLabelBlog,
	models.PageLabelProduct,
	models.PageLabelService,
	models.PageLabelDocs,
	models.PageLabelResource,
	models.PageLabelCompany,
	models.PageLabelLegal,
	models.PageLabelContact,
	models.PageLabelLanding,
}

// ClassifyURL labels a page URL from its path and derives a title from the
// final slug. Confidence is capped at 1.0.
func ClassifyURL(rawURL string) models.SitemapPage {
	path := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	}

	bestLabel := models.PageLabelOther
	bestScore := baseScore

	for _, label := range labelOrder {
		score := 0.0
		for _, pattern := range labelPatterns[label] {
			if pattern.MatchString(path) {
				score += matchScore
			}
		}
		if score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}

	confidence := bestScore
	if confidence > 1.0 {
		confidence = 1.0
	}

	return models.SitemapPage{
		URL:        rawURL,
		Path:       path,
		Label:      bestLabel,
		Title:      common.TitleFromSlug(rawURL),
		Confidence: confidence,
	}
}
