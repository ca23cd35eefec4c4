package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scriptor/internal/models"
)

func longParagraph(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = "word"
	}
	half := len(parts) / 2
	return "<p>" + strings.Join(parts[:half], " ") + ". " + strings.Join(parts[half:], " ") + ".</p>"
}

func TestSplitLongParagraphs(t *testing.T) {
	content := longParagraph(80)
	out := SplitLongParagraphs(content)
	assert.Equal(t, 2, strings.Count(out, "<p>"), "long paragraph split in two")
}

func TestSplitLongParagraphsLeavesShortOnes(t *testing.T) {
	content := "<p>Short paragraph. Nothing to do here.</p>"
	assert.Equal(t, content, SplitLongParagraphs(content))
}

func TestSplitLongParagraphsNoSentenceBoundary(t *testing.T) {
	content := "<p>" + strings.Repeat("word ", 80) + "</p>"
	assert.Equal(t, content, SplitLongParagraphs(content), "unsplittable paragraph untouched")
}

func TestIsQuestionHeader(t *testing.T) {
	assert.True(t, IsQuestionHeader("What Is Zero Trust?"))
	assert.True(t, IsQuestionHeader("How to Get Started"))
	assert.True(t, IsQuestionHeader("Why It Matters"))
	assert.False(t, IsQuestionHeader("Key Benefits"))
	assert.False(t, IsQuestionHeader("Implementation Roadmap"))
}

func TestOptimizeInjectsConversationalPhraseEnglishOnly(t *testing.T) {
	article := &models.ArticleOutput{
		Section01Title:   "Overview",
		Section01Content: "<p>A formal statement of the problem domain.</p>",
	}
	notes := Optimize(article, "en")
	require.NotEmpty(t, notes)
	assert.True(t, hasConversationalPhrase(article.Section01Content))

	german := &models.ArticleOutput{
		Section01Title:   "Überblick",
		Section01Content: "<p>Eine formale Beschreibung des Problems.</p>",
	}
	Optimize(german, "de")
	assert.False(t, hasConversationalPhrase(german.Section01Content))
}

func TestOptimizeSplitsLongParagraphsForAllLanguages(t *testing.T) {
	article := &models.ArticleOutput{
		Section01Title:   "Abschnitt",
		Section01Content: longParagraph(80),
	}
	Optimize(article, "de")
	assert.Equal(t, 2, strings.Count(article.Section01Content, "<p>"))
}

func TestScoreRangeAndSignals(t *testing.T) {
	empty := &models.ArticleOutput{}
	assert.Zero(t, Score(empty))

	strong := &models.ArticleOutput{
		Section01Title:   "What Is Zero Trust?",
		Section01Content: "<p>Strong claim [1].</p><ul><li>item</li></ul>",
		Section02Title:   "How Does It Work?",
		Section02Content: "<p>Another cited claim [2].</p><ul><li>item</li></ul>",
	}
	score := Score(strong)
	assert.Greater(t, score, 90.0)
	assert.LessOrEqual(t, score, 100.0)

	weak := &models.ArticleOutput{
		Section01Title:   "Benefits",
		Section01Content: longParagraph(80),
	}
	assert.Less(t, Score(weak), score)
}

func TestCheckWarnings(t *testing.T) {
	article := &models.ArticleOutput{
		MetaTitle:        "Short",
		MetaDescription:  "Too short for a meta description.",
		Section01Title:   "Only Section",
		Section01Content: "<p>Content.</p>",
	}

	report := Check(&CheckInput{
		Article:         article,
		WordCount:       300,
		ReadTime:        2,
		TargetWordCount: 1500,
	})

	assert.Equal(t, 1, report.Metrics.SectionCount)
	assert.Equal(t, 300, report.Metrics.WordCount)

	joined := strings.Join(report.Warnings, "\n")
	assert.Contains(t, joined, "meta title")
	assert.Contains(t, joined, "meta description")
	assert.Contains(t, joined, "sections")
	assert.Contains(t, joined, "citations")
	assert.Contains(t, joined, "word count")
}
