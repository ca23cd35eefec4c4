package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ArticleOutput models the generator's structured output as a flat record.
// Field names mirror the response schema sent to the generator, so the raw
// JSON unmarshals directly into this struct.
type ArticleOutput struct {
	Headline        string `json:"Headline"`
	Subtitle        string `json:"Subtitle"`
	Teaser          string `json:"Teaser"`
	DirectAnswer    string `json:"Direct_Answer"`
	Intro           string `json:"Intro"`
	MetaTitle       string `json:"Meta_Title"`
	MetaDescription string `json:"Meta_Description"`

	Section01Title   string `json:"section_01_title,omitempty"`
	Section01Content string `json:"section_01_content,omitempty"`
	Section02Title   string `json:"section_02_title,omitempty"`
	Section02Content string `json:"section_02_content,omitempty"`
	Section03Title   string `json:"section_03_title,omitempty"`
	Section03Content string `json:"section_03_content,omitempty"`
	Section04Title   string `json:"section_04_title,omitempty"`
	Section04Content string `json:"section_04_content,omitempty"`
	Section05Title   string `json:"section_05_title,omitempty"`
	Section05Content string `json:"section_05_content,omitempty"`
	Section06Title   string `json:"section_06_title,omitempty"`
	Section06Content string `json:"section_06_content,omitempty"`
	Section07Title   string `json:"section_07_title,omitempty"`
	Section07Content string `json:"section_07_content,omitempty"`
	Section08Title   string `json:"section_08_title,omitempty"`
	Section08Content string `json:"section_08_content,omitempty"`
	Section09Title   string `json:"section_09_title,omitempty"`
	Section09Content string `json:"section_09_content,omitempty"`

	KeyTakeaway01 string `json:"key_takeaway_01,omitempty"`
	KeyTakeaway02 string `json:"key_takeaway_02,omitempty"`
	KeyTakeaway03 string `json:"key_takeaway_03,omitempty"`

	FAQ01Question string `json:"faq_01_question,omitempty"`
	FAQ01Answer   string `json:"faq_01_answer,omitempty"`
	FAQ02Question string `json:"faq_02_question,omitempty"`
	FAQ02Answer   string `json:"faq_02_answer,omitempty"`
	FAQ03Question string `json:"faq_03_question,omitempty"`
	FAQ03Answer   string `json:"faq_03_answer,omitempty"`
	FAQ04Question string `json:"faq_04_question,omitempty"`
	FAQ04Answer   string `json:"faq_04_answer,omitempty"`
	FAQ05Question string `json:"faq_05_question,omitempty"`
	FAQ05Answer   string `json:"faq_05_answer,omitempty"`
	FAQ06Question string `json:"faq_06_question,omitempty"`
	FAQ06Answer   string `json:"faq_06_answer,omitempty"`

	PAA01Question string `json:"paa_01_question,omitempty"`
	PAA01Answer   string `json:"paa_01_answer,omitempty"`
	PAA02Question string `json:"paa_02_question,omitempty"`
	PAA02Answer   string `json:"paa_02_answer,omitempty"`
	PAA03Question string `json:"paa_03_question,omitempty"`
	PAA03Answer   string `json:"paa_03_answer,omitempty"`
	PAA04Question string `json:"paa_04_question,omitempty"`
	PAA04Answer   string `json:"paa_04_answer,omitempty"`

	Image01URL     string `json:"image_01_url,omitempty"`
	Image01AltText string `json:"image_01_alt_text,omitempty"`
	Image01Credit  string `json:"image_01_credit,omitempty"`
	Image02URL     string `json:"image_02_url,omitempty"`
	Image02AltText string `json:"image_02_alt_text,omitempty"`
	Image02Credit  string `json:"image_02_credit,omitempty"`
	Image03URL     string `json:"image_03_url,omitempty"`
	Image03AltText string `json:"image_03_alt_text,omitempty"`
	Image03Credit  string `json:"image_03_credit,omitempty"`

	Sources       string  `json:"Sources,omitempty"`
	SearchQueries string  `json:"Search_Queries,omitempty"`
	TLDR          string  `json:"TLDR,omitempty"`
	Tables        []Table `json:"tables,omitempty"`
}

// Table is an ordered table block. Every row has exactly len(Headers) cells.
type Table struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Validate checks that every row matches the header width
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("table %q row %d has %d cells, expected %d", t.Title, i, len(row), len(t.Headers))
		}
	}
	return nil
}

// Section is one article section addressed by its 1-based index
type Section struct {
	Index   int
	Title   string
	Content string
}

// MaxSections is the number of section slots in the structured output
const MaxSections = 9

// Section returns the section at 1-based index n. Returns a zero Section for
// out-of-range indices.
func (a *ArticleOutput) Section(n int) Section {
	titles := [MaxSections]string{
		a.Section01Title, a.Section02Title, a.Section03Title,
		a.Section04Title, a.Section05Title, a.Section06Title,
		a.Section07Title, a.Section08Title, a.Section09Title,
	}
	contents := [MaxSections]string{
		a.Section01Content, a.Section02Content, a.Section03Content,
		a.Section04Content, a.Section05Content, a.Section06Content,
		a.Section07Content, a.Section08Content, a.Section09Content,
	}
	if n < 1 || n > MaxSections {
		return Section{}
	}
	return Section{Index: n, Title: titles[n-1], Content: contents[n-1]}
}

// SetSectionContent overwrites the content of the section at 1-based index n
func (a *ArticleOutput) SetSectionContent(n int, content string) {
	targets := [MaxSections]*string{
		&a.Section01Content, &a.Section02Content, &a.Section03Content,
		&a.Section04Content, &a.Section05Content, &a.Section06Content,
		&a.Section07Content, &a.Section08Content, &a.Section09Content,
	}
	if n >= 1 && n <= MaxSections {
		*targets[n-1] = content
	}
}

// Sections returns all sections with a non-empty title, in order. Gaps in the
// numbering are tolerated on read; rendering stops at the first empty title.
func (a *ArticleOutput) Sections() []Section {
	var sections []Section
	for n := 1; n <= MaxSections; n++ {
		s := a.Section(n)
		if strings.TrimSpace(s.Title) != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

// KeyTakeaways returns the non-empty key takeaways in order
func (a *ArticleOutput) KeyTakeaways() []string {
	var out []string
	for _, t := range []string{a.KeyTakeaway01, a.KeyTakeaway02, a.KeyTakeaway03} {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

// QAPair is a question/answer item from the FAQ or PAA blocks
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQPairs returns the raw FAQ pairs, including incomplete ones, in order
func (a *ArticleOutput) FAQPairs() []QAPair {
	return collectPairs([][2]string{
		{a.FAQ01Question, a.FAQ01Answer},
		{a.FAQ02Question, a.FAQ02Answer},
		{a.FAQ03Question, a.FAQ03Answer},
		{a.FAQ04Question, a.FAQ04Answer},
		{a.FAQ05Question, a.FAQ05Answer},
		{a.FAQ06Question, a.FAQ06Answer},
	})
}

// PAAPairs returns the raw People-Also-Ask pairs in order
func (a *ArticleOutput) PAAPairs() []QAPair {
	return collectPairs([][2]string{
		{a.PAA01Question, a.PAA01Answer},
		{a.PAA02Question, a.PAA02Answer},
		{a.PAA03Question, a.PAA03Answer},
		{a.PAA04Question, a.PAA04Answer},
	})
}

func collectPairs(raw [][2]string) []QAPair {
	var pairs []QAPair
	for _, qa := range raw {
		if strings.TrimSpace(qa[0]) == "" && strings.TrimSpace(qa[1]) == "" {
			continue
		}
		pairs = append(pairs, QAPair{Question: qa[0], Answer: qa[1]})
	}
	return pairs
}

// requiredFields maps JSON field names to their accessor for validation
func (a *ArticleOutput) requiredFields() map[string]string {
	return map[string]string{
		"Headline":         a.Headline,
		"Subtitle":         a.Subtitle,
		"Teaser":           a.Teaser,
		"Direct_Answer":    a.DirectAnswer,
		"Intro":            a.Intro,
		"Meta_Title":       a.MetaTitle,
		"Meta_Description": a.MetaDescription,
	}
}

// MissingRequiredFields returns the names of required top-level fields that
// are empty, sorted by field name for deterministic error messages.
func (a *ArticleOutput) MissingRequiredFields() []string {
	var missing []string
	for _, name := range []string{"Headline", "Subtitle", "Teaser", "Direct_Answer", "Intro", "Meta_Title", "Meta_Description"} {
		if strings.TrimSpace(a.requiredFields()[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// ParseArticleOutput unmarshals the generator's raw JSON into an ArticleOutput
func ParseArticleOutput(raw string) (*ArticleOutput, error) {
	trimmed := strings.TrimSpace(raw)
	// Tolerate markdown code fences around the JSON payload
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var article ArticleOutput
	if err := json.Unmarshal([]byte(trimmed), &article); err != nil {
		return nil, fmt.Errorf("failed to parse structured article output: %w", err)
	}
	for i := range article.Tables {
		if err := article.Tables[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &article, nil
}
