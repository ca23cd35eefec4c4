package stages

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/render"
)

const (
	wordsPerMinute     = 200
	minReadTime        = 1
	maxReadTime        = 30
	publicationWindow  = 90 // days
)

// MetadataStage computes word count, read time, and a publication date
type MetadataStage struct {
	logger arbor.ILogger
}

func NewMetadataStage(logger arbor.ILogger) *MetadataStage {
	return &MetadataStage{logger: logger}
}

func (s *MetadataStage) StageNum() int     { return 7 }
func (s *MetadataStage) StageName() string { return "stage_07_metadata" }

func (s *MetadataStage) Execute(_ context.Context, ec *pipeline.Context) error {
	article := ec.Article

	words := countWords(article.Headline) +
		countWords(article.Teaser) +
		countWords(article.DirectAnswer) +
		countWords(article.Intro)
	for _, section := range article.Sections() {
		words += countWords(section.Content)
	}

	readTime := clampReadTime(words)
	publicationDate := randomPublicationDate(time.Now())

	parallel := ec.Parallel()
	parallel.Set(s.StageName(), "word_count", words)
	parallel.Set(s.StageName(), "read_time", readTime)
	parallel.Set(s.StageName(), "publication_date", publicationDate)
	parallel.Set(s.StageName(), "metadata", map[string]any{
		"primary_keyword": ec.JobConfig.PrimaryKeyword,
		"language":        ec.JobConfig.Language,
		"country":         ec.JobConfig.Country,
		"company_name":    ec.CompanyData["company_name"],
		"slug":            common.Slugify(article.Headline),
	})

	s.logger.Debug().
		Str("job_id", ec.JobID).
		Int("word_count", words).
		Int("read_time", readTime).
		Msg("Metadata computed")

	return nil
}

// countWords counts words in a field with HTML stripped
func countWords(text string) int {
	return len(strings.Fields(render.StripTags(text)))
}

// clampReadTime maps word count to minutes in [1, 30]
func clampReadTime(words int) int {
	minutes := int(math.Round(float64(words) / wordsPerMinute))
	if minutes < minReadTime {
		return minReadTime
	}
	if minutes > maxReadTime {
		return maxReadTime
	}
	return minutes
}

// randomPublicationDate returns an ISO 8601 timestamp uniformly distributed
// within the trailing 90 days.
func randomPublicationDate(now time.Time) string {
	offset := time.Duration(rand.Int63n(int64(publicationWindow * 24 * time.Hour)))
	return now.Add(-offset).Format(time.RFC3339)
}
