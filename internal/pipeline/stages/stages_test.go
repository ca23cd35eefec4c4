package stages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/citations"
	"github.com/ternarybob/scriptor/internal/services/render"
)

type fakeSitemap struct {
	pages []models.SitemapPage
}

func (f *fakeSitemap) Crawl(_ context.Context, companyURL string, _ int) *models.SitemapPageList {
	return &models.SitemapPageList{CompanyURL: companyURL, Pages: f.pages, FetchedAt: time.Now()}
}

func (f *fakeSitemap) CacheStats() (int, int, int) { return 0, 0, 0 }

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.GenerateResult{Text: f.response}, nil
}

func (f *fakeGenerator) Name() string { return "fake" }

type fakeStore struct {
	req    *interfaces.StoreRequest
	result *interfaces.StoreResult
	err    error
}

func (f *fakeStore) Store(_ context.Context, req *interfaces.StoreRequest) (*interfaces.StoreResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeProber struct {
	failing map[string]bool
}

func (f *fakeProber) Head(_ context.Context, url string) (*interfaces.ProbeResult, error) {
	if f.failing[url] {
		return &interfaces.ProbeResult{StatusCode: 404, FinalURL: url}, nil
	}
	return &interfaces.ProbeResult{StatusCode: 200, FinalURL: url}, nil
}

func testContext(keyword, companyURL string) *pipeline.Context {
	return pipeline.NewContext("job-1", &models.JobConfig{
		PrimaryKeyword: keyword,
		CompanyURL:     companyURL,
	})
}

func testArticle() *models.ArticleOutput {
	return &models.ArticleOutput{
		Headline:         "Zero Trust Explained",
		Subtitle:         "A practical guide",
		Teaser:           "What zero trust means in practice.",
		DirectAnswer:     "<p>Zero trust assumes no implicit trust.</p>",
		Intro:            "<p>Every request is verified.</p>",
		MetaTitle:        "Zero Trust Explained: A Practical Guide",
		MetaDescription:  strings.Repeat("Zero trust security model explained. ", 4),
		Section01Title:   "What Is Zero Trust?",
		Section01Content: "<p>It is a security model.</p>",
		Section02Title:   "How It Works",
		Section02Content: "<p>Identity checks on every request.</p>",
	}
}

func TestFetchStageMissingFieldsFatal(t *testing.T) {
	stage := NewFetchStage(&fakeSitemap{}, common.GetLogger())
	ec := testContext("", "")

	err := stage.Execute(context.Background(), ec)
	require.Error(t, err)

	var classified *pipeline.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, pipeline.CategoryValidation, classified.Category)
	assert.False(t, classified.Recoverable)
	assert.Contains(t, err.Error(), "primary_keyword")
	assert.Contains(t, err.Error(), "company_url")
}

func TestFetchStageCrawledBlogURLsWinOverProvided(t *testing.T) {
	crawler := &fakeSitemap{pages: []models.SitemapPage{
		{URL: "https://acme.com/blog/post-1", Label: models.PageLabelBlog},
		{URL: "https://acme.com/blog/post-2", Label: models.PageLabelBlog},
		{URL: "https://acme.com/pricing", Label: models.PageLabelProduct},
	}}
	stage := NewFetchStage(crawler, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.JobConfig.SitemapURLs = []string{"https://acme.com/blog/provided"}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Equal(t, []string{"https://acme.com/blog/post-1", "https://acme.com/blog/post-2"}, ec.BlogPool)
	assert.Equal(t, 3, ec.SitemapData.TotalPages)
}

func TestFetchStageBlogPoolFallsBackToProvidedURLs(t *testing.T) {
	stage := NewFetchStage(&fakeSitemap{}, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.JobConfig.SitemapURLs = []string{"https://acme.com/blog/a", "https://acme.com/blog/b"}
	ec.JobConfig.BatchSiblings = []string{"https://acme.com/blog/b", "https://acme.com/blog/c"}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Equal(t, []string{
		"https://acme.com/blog/a",
		"https://acme.com/blog/b",
		"https://acme.com/blog/c",
	}, ec.BlogPool)
}

func TestFetchStageKeepsProvidedCompanyData(t *testing.T) {
	stage := NewFetchStage(&fakeSitemap{}, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.CompanyData["company_name"] = "Acme Corporation"

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Equal(t, "Acme Corporation", ec.CompanyData["company_name"])
	assert.Equal(t, "https://acme.com", ec.CompanyData["company_url"])
}

func TestPromptStageIncludesSubmissionFields(t *testing.T) {
	stage := NewPromptStage(common.GetLogger())

	ec := testContext("zero trust", "https://acme.com")
	ec.JobConfig.Normalize()
	ec.JobConfig.ContentInstruction = "Focus on implementation steps."
	ec.CompanyData["company_name"] = "Acme"
	ec.SitemapData = &pipeline.SitemapData{
		SiteType: models.SiteTypeContentMarketing,
		BlogURLs: []string{"https://acme.com/blog/a"},
	}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Contains(t, ec.Prompt, `"zero trust"`)
	assert.Contains(t, ec.Prompt, "Acme")
	assert.Contains(t, ec.Prompt, "Focus on implementation steps.")
	assert.Contains(t, ec.Prompt, "content-marketing")
	assert.Contains(t, ec.Prompt, "[1]")
}

func TestSystemInstructionSectionBudget(t *testing.T) {
	tests := []struct {
		words    int
		sections string
	}{
		{800, "3 to 5 sections"},
		{1500, "5 to 7 sections"},
		{2500, "7 to 9 sections"},
	}

	for _, tt := range tests {
		instruction := SystemInstruction(&models.JobConfig{WordCount: tt.words})
		assert.Contains(t, instruction, tt.sections, "word count %d", tt.words)
	}
}

func TestTOCStageBuildsAnchors(t *testing.T) {
	stage := NewTOCStage(common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()

	require.NoError(t, stage.Execute(context.Background(), ec))

	v, ok := ec.Parallel().Get("toc")
	require.True(t, ok)
	toc := v.([]models.TOCEntry)
	require.Len(t, toc, 2)
	assert.Equal(t, 1, toc[0].ID)
	assert.Equal(t, "what-is-zero-trust", toc[0].Anchor)
	assert.Equal(t, "how-it-works", toc[1].Anchor)

	count, _ := ec.Parallel().Get("toc_count")
	assert.Equal(t, 2, count)
}

func TestClampReadTime(t *testing.T) {
	assert.Equal(t, 1, clampReadTime(0))
	assert.Equal(t, 1, clampReadTime(150))
	assert.Equal(t, 5, clampReadTime(1000))
	assert.Equal(t, 30, clampReadTime(12000))
}

func TestRandomPublicationDateWithinWindow(t *testing.T) {
	now := time.Now()
	for i := 0; i < 20; i++ {
		raw := randomPublicationDate(now)
		ts, err := time.Parse(time.RFC3339, raw)
		require.NoError(t, err)
		assert.False(t, ts.After(now))
		assert.False(t, ts.Before(now.AddDate(0, 0, -publicationWindow).Add(-time.Minute)))
	}
}

func TestMetadataStageCountsStrippedWords(t *testing.T) {
	stage := NewMetadataStage(common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.JobConfig.Normalize()
	ec.Article = testArticle()

	require.NoError(t, stage.Execute(context.Background(), ec))

	words, ok := ec.Parallel().Get("word_count")
	require.True(t, ok)
	assert.Greater(t, words.(int), 10)

	readTime, _ := ec.Parallel().Get("read_time")
	assert.Equal(t, 1, readTime)

	meta, _ := ec.Parallel().Get("metadata")
	assert.Equal(t, "zero-trust-explained", meta.(map[string]any)["slug"])
}

func TestFAQStageDeduplicatesAndCaps(t *testing.T) {
	stage := NewFAQStage(common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	article := testArticle()
	article.FAQ01Question = "What is zero trust?"
	article.FAQ01Answer = "A security model."
	article.FAQ02Question = "what is zero trust"
	article.FAQ02Answer = "Duplicate answer."
	article.FAQ03Question = "Is it expensive?"
	article.FAQ03Answer = ""
	article.FAQ04Question = "How long does adoption take?"
	article.FAQ04Answer = "Months, usually."
	ec.Article = article

	require.NoError(t, stage.Execute(context.Background(), ec))

	v, _ := ec.Parallel().Get("faq_items")
	faq := v.([]models.QAPair)
	require.Len(t, faq, 2)
	assert.Equal(t, "What is zero trust?", faq[0].Question)
	assert.Equal(t, "How long does adoption take?", faq[1].Question)

	count, _ := ec.Parallel().Get("faq_count")
	assert.Equal(t, 2, count)
}

func TestCleanPairsHonorsLimit(t *testing.T) {
	pairs := make([]models.QAPair, 0, 8)
	for _, q := range []string{"a?", "b?", "c?", "d?", "e?"} {
		pairs = append(pairs, models.QAPair{Question: q, Answer: "x"})
	}
	assert.Len(t, cleanPairs(pairs, 4), 4)
}

func TestReviewStageSkipsWithoutPrompts(t *testing.T) {
	stage := NewReviewStage(&fakeGenerator{}, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	assert.True(t, stage.ShouldSkip(ec))

	ec.JobConfig.ReviewPrompts = []string{"shorten the intro"}
	assert.False(t, stage.ShouldSkip(ec))
}

func TestReviewStageRewritesTargetedSection(t *testing.T) {
	gen := &fakeGenerator{response: "<p>Rewritten section body.</p>"}
	stage := NewReviewStage(gen, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()
	ec.JobConfig.ReviewPrompts = []string{"Make section 2 more concrete"}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Equal(t, "<p>Rewritten section body.</p>", ec.Article.Section(2).Content)
	assert.Equal(t, "<p>It is a security model.</p>", ec.Article.Section(1).Content)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Make section 2 more concrete")
}

func TestReviewStageRemovePromptNeedsNoGenerator(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("should not be called")}
	stage := NewReviewStage(gen, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()
	ec.Article.Intro = "<p>Every request is verified. Obviously, this matters.</p>"
	ec.JobConfig.ReviewPrompts = []string{"remove Obviously, this matters."}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.NotContains(t, ec.Article.Intro, "Obviously")
	assert.Empty(t, gen.prompts)
}

func TestReviewStageKeepsOriginalOnGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	stage := NewReviewStage(gen, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()
	original := ec.Article.Intro
	ec.JobConfig.ReviewPrompts = []string{"improve the intro"}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Equal(t, original, ec.Article.Intro)
}

func TestReviewStageRefreshesValidatedContent(t *testing.T) {
	gen := &fakeGenerator{response: "Zero Trust, Revisited"}
	stage := NewReviewStage(gen, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()
	ec.ValidatedArticle = map[string]any{
		"headline": ec.Article.Headline,
		"intro":    ec.Article.Intro,
		"content":  "<h1>Zero Trust Explained</h1>",
	}
	ec.JobConfig.ReviewPrompts = []string{"Punch up the headline"}

	require.NoError(t, stage.Execute(context.Background(), ec))
	assert.Equal(t, "Zero Trust, Revisited", ec.ValidatedArticle["headline"])

	content, _ := ec.ValidatedArticle["content"].(string)
	assert.Contains(t, content, "Zero Trust, Revisited")
	assert.Contains(t, content, "How It Works")
	assert.NotContains(t, content, "Zero Trust Explained")
}

func TestCleanupStageMergesAndFiltersCitations(t *testing.T) {
	logger := common.GetLogger()
	validator := citations.NewValidator(&fakeProber{failing: map[string]bool{
		"https://dead.example.com/report": true,
	}}, 2, 0, logger)
	stage := NewCleanupStage(render.NewRenderer(logger), validator, logger)

	ec := testContext("zero trust", "acme.com")
	ec.JobConfig.Normalize()
	ec.Article = testArticle()
	ec.Article.Section01Content = "<p>Attackers move laterally [1][2].</p>"

	parallel := ec.Parallel()
	parallel.Set("stage_04_citations", "citations_list", models.CitationList{
		{Number: 1, URL: "https://www.nist.gov/zero-trust", Title: "NIST"},
		{Number: 2, URL: "https://dead.example.com/report", Title: "Dead Report"},
	})
	parallel.Set("stage_04_citations", "citations_html", "<p id=\"source-1\"></p>")
	parallel.Set("stage_07_metadata", "word_count", 900)
	parallel.Set("stage_07_metadata", "read_time", 5)

	require.NoError(t, stage.Execute(context.Background(), ec))

	require.NotNil(t, ec.ValidatedArticle)
	assert.Equal(t, map[int]string{1: "https://www.nist.gov/zero-trust"}, ec.CitationMap)
	assert.Contains(t, ec.ValidatedArticle["content"].(string), "<h1>Zero Trust Explained</h1>")
	assert.Contains(t, ec.Article.Section(1).Content, `href="#source-1"`)
	assert.NotContains(t, ec.Article.Section(1).Content, `href="#source-2"`)
	assert.NotNil(t, ec.QualityReport)
}

func TestCleanupStageRejectsKeyCollision(t *testing.T) {
	logger := common.GetLogger()
	validator := citations.NewValidator(&fakeProber{}, 2, 0, logger)
	stage := NewCleanupStage(render.NewRenderer(logger), validator, logger)

	ec := testContext("zero trust", "acme.com")
	ec.JobConfig.Normalize()
	ec.Article = testArticle()

	parallel := ec.Parallel()
	parallel.Set("stage_06_toc", "toc_count", 2)
	parallel.Set("stage_08_faq", "toc_count", 3)

	err := stage.Execute(context.Background(), ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision")
}

func TestStoreStagePersistsRenderedDocument(t *testing.T) {
	store := &fakeStore{result: &interfaces.StoreResult{
		Success:    true,
		ArticleID:  "art-42",
		MirrorPath: "/mirrors/zero-trust.md",
		Embedded:   true,
	}}
	stage := NewStoreStage(render.NewRenderer(common.GetLogger()), store, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()
	ec.ValidatedArticle = map[string]any{
		"read_time":        5,
		"publication_date": "2026-08-01T10:00:00Z",
		"citations_html":   `<p id="source-1"><sup>[1]</sup> <a href="https://www.nist.gov">NIST</a></p>`,
		"image_url":        "https://cdn.example.com/hero.png",
		"image_alt_text":   "Diagram of a zero trust network",
	}

	require.NoError(t, stage.Execute(context.Background(), ec))

	require.NotNil(t, store.req)
	assert.Equal(t, "job-1", store.req.JobID)
	assert.Equal(t, ec.FinalHTML, store.req.HTMLContent)
	assert.Contains(t, ec.FinalHTML, "<h1>Zero Trust Explained</h1>")
	assert.Contains(t, ec.FinalHTML, "hero.png")
	assert.Contains(t, ec.FinalHTML, "Sources")
	assert.Equal(t, "art-42", ec.StorageResult.ArticleID)
}

func TestStoreStageFailsWithoutValidatedArticle(t *testing.T) {
	stage := NewStoreStage(render.NewRenderer(common.GetLogger()), &fakeStore{}, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()

	err := stage.Execute(context.Background(), ec)
	require.Error(t, err)
}

func TestStoreStagePropagatesStorageFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("badger: closed")}
	stage := NewStoreStage(render.NewRenderer(common.GetLogger()), store, common.GetLogger())

	ec := testContext("zero trust", "acme.com")
	ec.Article = testArticle()
	ec.ValidatedArticle = map[string]any{}

	err := stage.Execute(context.Background(), ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "article storage failed")
}

func TestImageRefMissingSlot(t *testing.T) {
	assert.Nil(t, imageRef(map[string]any{}, "image"))

	ref := imageRef(map[string]any{
		"mid_image_url":      "https://cdn.example.com/mid.png",
		"mid_image_alt_text": "Chart",
	}, "mid_image")
	require.NotNil(t, ref)
	assert.Equal(t, "Chart", ref.AltText)
	assert.Empty(t, ref.Credit)
}
