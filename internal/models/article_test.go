package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArticleOutput(t *testing.T) {
	raw := `{
		"Headline": "Zero Trust Security Architecture Explained",
		"Subtitle": "A practical guide",
		"Teaser": "Why perimeter defense is over.",
		"Direct_Answer": "Zero trust assumes no implicit trust.",
		"Intro": "<p>Every request is verified.</p>",
		"Meta_Title": "Zero Trust Guide",
		"Meta_Description": "Learn zero trust.",
		"section_01_title": "What Is Zero Trust?",
		"section_01_content": "<p>Never trust, always verify.</p>",
		"section_02_title": "Core Principles",
		"section_02_content": "<p>Least privilege access.</p>",
		"Sources": "[1]: https://www.nist.gov/zta – NIST Zero Trust Architecture"
	}`

	article, err := ParseArticleOutput(raw)
	require.NoError(t, err)

	assert.Equal(t, "Zero Trust Security Architecture Explained", article.Headline)
	assert.Empty(t, article.MissingRequiredFields())

	sections := article.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, 1, sections[0].Index)
	assert.Equal(t, "What Is Zero Trust?", sections[0].Title)
}

func TestParseArticleOutputWithCodeFence(t *testing.T) {
	raw := "```json\n{\"Headline\": \"H\", \"Subtitle\": \"S\", \"Teaser\": \"T\", \"Direct_Answer\": \"D\", \"Intro\": \"I\", \"Meta_Title\": \"M\", \"Meta_Description\": \"MD\"}\n```"

	article, err := ParseArticleOutput(raw)
	require.NoError(t, err)
	assert.Equal(t, "H", article.Headline)
}

func TestParseArticleOutputInvalidJSON(t *testing.T) {
	_, err := ParseArticleOutput("not json at all")
	assert.Error(t, err)
}

func TestMissingRequiredFields(t *testing.T) {
	article := &ArticleOutput{
		Headline: "H",
		Subtitle: "S",
		Teaser:   "T",
		Intro:    "I",
	}
	missing := article.MissingRequiredFields()
	assert.Equal(t, []string{"Direct_Answer", "Meta_Title", "Meta_Description"}, missing)
}

func TestSectionsToleratesGaps(t *testing.T) {
	article := &ArticleOutput{
		Section01Title: "First",
		Section03Title: "Third", // gap at 02
	}
	sections := article.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, 1, sections[0].Index)
	assert.Equal(t, 3, sections[1].Index)
}

func TestSetSectionContent(t *testing.T) {
	article := &ArticleOutput{Section02Title: "T"}
	article.SetSectionContent(2, "<p>rewritten</p>")
	assert.Equal(t, "<p>rewritten</p>", article.Section(2).Content)

	// Out-of-range writes are ignored
	article.SetSectionContent(0, "x")
	article.SetSectionContent(10, "x")
}

func TestTableValidation(t *testing.T) {
	table := Table{
		Title:   "Comparison",
		Headers: []string{"A", "B"},
		Rows:    [][]string{{"1", "2"}, {"3"}},
	}
	assert.Error(t, table.Validate())

	table.Rows = [][]string{{"1", "2"}}
	assert.NoError(t, table.Validate())
}

func TestFAQAndPAAPairs(t *testing.T) {
	article := &ArticleOutput{
		FAQ01Question: "Q1", FAQ01Answer: "A1",
		FAQ03Question: "Q3", FAQ03Answer: "A3",
		PAA01Question: "P1", PAA01Answer: "PA1",
	}

	faq := article.FAQPairs()
	require.Len(t, faq, 2)
	assert.Equal(t, "Q1", faq[0].Question)
	assert.Equal(t, "Q3", faq[1].Question)

	paa := article.PAAPairs()
	require.Len(t, paa, 1)
}

func TestCitationListRenumberAndRoundTrip(t *testing.T) {
	list := CitationList{
		{Number: 3, URL: "https://www.nist.gov/zta", Title: "NIST ZTA"},
		{Number: 7, URL: "https://www.ibm.com/security", Title: "IBM Security"},
	}
	list = list.Renumber()
	assert.Equal(t, 1, list[0].Number)
	assert.Equal(t, 2, list[1].Number)

	formatted := list.Format()
	assert.Contains(t, formatted, "[1]: https://www.nist.gov/zta – NIST ZTA")
	assert.Contains(t, formatted, "[2]: https://www.ibm.com/security – IBM Security")

	urlMap := list.URLMap()
	assert.Equal(t, "https://www.nist.gov/zta", urlMap[1])
}

func TestDetectSiteType(t *testing.T) {
	blogHeavy := &SitemapPageList{Pages: []SitemapPage{
		{URL: "a", Label: PageLabelBlog},
		{URL: "b", Label: PageLabelBlog},
		{URL: "c", Label: PageLabelCompany},
	}}
	assert.Equal(t, SiteTypeContentMarketing, blogHeavy.DetectSiteType())

	empty := &SitemapPageList{}
	assert.Equal(t, SiteTypeCorporate, empty.DetectSiteType())
}
