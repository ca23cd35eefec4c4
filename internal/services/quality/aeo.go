package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/scriptor/internal/models"
)

// maxParagraphWords is the split threshold for answer-engine readability
const maxParagraphWords = 60

// conversationalPhrases are the lead-ins injected into sections that read
// too formally. Injection is English-only; other languages keep their prose
// untouched while the remaining rules still apply.
var conversationalPhrases = []string{
	"Here's the thing:",
	"Let's break it down.",
	"So what does this mean in practice?",
	"The short answer:",
	"Put simply,",
}

var paragraphRE = regexp.MustCompile(`(?s)<p>(.*?)</p>`)

var bracketCitationRE = regexp.MustCompile(`\[\d+\]|#source-\d+`)

// sentenceEndRE finds sentence boundaries for paragraph splitting
var sentenceEndRE = regexp.MustCompile(`[.!?]\s+`)

// Optimize applies the answer-engine post-processing rules in place and
// returns a note per applied change.
func Optimize(article *models.ArticleOutput, language string) []string {
	var notes []string

	english := isEnglish(language)
	injected := false

	for n := 1; n <= models.MaxSections; n++ {
		section := article.Section(n)
		if section.Content == "" {
			continue
		}

		content := SplitLongParagraphs(section.Content)
		if content != section.Content {
			notes = append(notes, fmt.Sprintf("split long paragraphs in section %d", n))
		}

		if english && !injected && !hasConversationalPhrase(content) {
			content = injectLeadIn(content, conversationalPhrases[(n-1)%len(conversationalPhrases)])
			injected = true
			notes = append(notes, fmt.Sprintf("added conversational lead-in to section %d", n))
		}

		article.SetSectionContent(n, content)
	}

	return notes
}

// SplitLongParagraphs splits any <p> block over the word threshold at the
// sentence boundary closest to its midpoint.
func SplitLongParagraphs(content string) string {
	return paragraphRE.ReplaceAllStringFunc(content, func(match string) string {
		inner := paragraphRE.FindStringSubmatch(match)[1]
		if wordCount(inner) <= maxParagraphWords {
			return match
		}

		boundaries := sentenceEndRE.FindAllStringIndex(inner, -1)
		if len(boundaries) == 0 {
			return match
		}

		mid := len(inner) / 2
		split := boundaries[0][1]
		for _, b := range boundaries {
			if abs(b[1]-mid) < abs(split-mid) {
				split = b[1]
			}
		}

		first := strings.TrimSpace(inner[:split])
		second := strings.TrimSpace(inner[split:])
		if second == "" {
			return match
		}
		return "<p>" + first + "</p><p>" + second + "</p>"
	})
}

// IsQuestionHeader reports whether a section title is question-formatted
func IsQuestionHeader(title string) bool {
	title = strings.TrimSpace(title)
	if strings.HasSuffix(title, "?") {
		return true
	}
	lower := strings.ToLower(title)
	for _, prefix := range []string{"what ", "why ", "how ", "when ", "where ", "who ", "which ", "can ", "should ", "is ", "are ", "do ", "does "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Score computes the 0..100 answer-engine score from citation distribution,
// question headers, list presence, and paragraph discipline.
func Score(article *models.ArticleOutput) float64 {
	sections := article.Sections()
	if len(sections) == 0 {
		return 0
	}

	cited := 0
	listBearing := 0
	longParagraphs := 0
	totalParagraphs := 0
	questions := 0

	for _, section := range sections {
		if bracketCitationRE.MatchString(section.Content) {
			cited++
		}
		if strings.Contains(section.Content, "<ul") || strings.Contains(section.Content, "<ol") ||
			strings.Contains(section.Content, "\n- ") {
			listBearing++
		}
		if IsQuestionHeader(section.Title) {
			questions++
		}
		for _, m := range paragraphRE.FindAllStringSubmatch(section.Content, -1) {
			totalParagraphs++
			if wordCount(m[1]) > maxParagraphWords {
				longParagraphs++
			}
		}
	}

	n := float64(len(sections))
	citationScore := float64(cited) / n
	questionScore := minf(float64(questions)/2.0, 1.0)
	listScore := minf(float64(listBearing)/2.0, 1.0)

	paragraphScore := 1.0
	if totalParagraphs > 0 {
		paragraphScore = 1.0 - float64(longParagraphs)/float64(totalParagraphs)
	}

	return 100 * (0.35*citationScore + 0.25*questionScore + 0.2*listScore + 0.2*paragraphScore)
}

func isEnglish(language string) bool {
	lang := strings.ToLower(strings.TrimSpace(language))
	return lang == "" || lang == "en" || strings.HasPrefix(lang, "en-")
}

func hasConversationalPhrase(content string) bool {
	for _, phrase := range conversationalPhrases {
		if strings.Contains(content, phrase) {
			return true
		}
	}
	return false
}

// injectLeadIn prepends the phrase to the first paragraph
func injectLeadIn(content, phrase string) string {
	loc := paragraphRE.FindStringSubmatchIndex(content)
	if loc == nil {
		return phrase + " " + content
	}
	// loc[2] is the start of the inner group
	return content[:loc[2]] + phrase + " " + content[loc[2]:]
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
