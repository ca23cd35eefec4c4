package stages

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// TOCStage derives the table of contents from non-empty section titles.
// Pure transformation, no I/O.
type TOCStage struct {
	logger arbor.ILogger
}

func NewTOCStage(logger arbor.ILogger) *TOCStage {
	return &TOCStage{logger: logger}
}

func (s *TOCStage) StageNum() int     { return 6 }
func (s *TOCStage) StageName() string { return "stage_06_toc" }

func (s *TOCStage) Execute(_ context.Context, ec *pipeline.Context) error {
	sections := ec.Article.Sections()
	toc := make([]models.TOCEntry, 0, len(sections))
	for _, section := range sections {
		toc = append(toc, models.TOCEntry{
			ID:     section.Index,
			Title:  section.Title,
			Anchor: common.Slugify(section.Title),
		})
	}

	parallel := ec.Parallel()
	parallel.Set(s.StageName(), "toc", toc)
	parallel.Set(s.StageName(), "toc_count", len(toc))

	return nil
}
